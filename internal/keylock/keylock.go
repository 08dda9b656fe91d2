// Package keylock serializes work per key inside one process.
package keylock

import (
	"slices"
	"sync"
)

// Map hands out one mutex per key. The zero value is ready to use.
// An entry is dropped once no caller holds or waits for it.
type Map struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// Lock blocks until key is free and returns the func that releases it.
func (m *Map) Lock(key string) (unlock func()) {
	m.mu.Lock()
	if m.locks == nil {
		m.locks = make(map[string]*entry)
	}
	e, ok := m.locks[key]
	if !ok {
		e = &entry{}
		m.locks[key] = e
	}
	e.refs++
	m.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		m.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(m.locks, key)
		}
		m.mu.Unlock()
	}
}

// LockAll locks every distinct key. Keys are taken in sorted order so
// overlapping callers cannot deadlock.
func (m *Map) LockAll(keys []string) (unlock func()) {
	sorted := slices.Compact(slices.Sorted(slices.Values(keys)))
	unlocks := make([]func(), len(sorted))
	for i, k := range sorted {
		unlocks[i] = m.Lock(k)
	}
	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}

// held reports how many keys have an entry.
func (m *Map) held() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
