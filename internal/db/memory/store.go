// Package memory implements db.Store in process.
//
// Documents, hashes and plain values live in maps guarded by one RWMutex.
// Indexes are evaluated on read: every query scans the documents under the
// index prefixes, so the driver suits local runs and tests, not large datasets.
package memory

import (
	"context"
	"encoding/json"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kailas-cloud/annosearch/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

type document struct {
	raw   []byte
	value any
}

// Store is an in-process db.Store.
type Store struct {
	mu      sync.RWMutex
	hashes  map[string]map[string]string
	docs    map[string]document
	values  map[string][]byte
	indexes map[string]*db.IndexDefinition
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		hashes:  make(map[string]map[string]string),
		docs:    make(map[string]document),
		values:  make(map[string][]byte),
		indexes: make(map[string]*db.IndexDefinition),
	}
}

// Ping always succeeds unless ctx is done.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op.
func (s *Store) Close() {}

// WaitForReady returns immediately: the store is ready once created.
func (s *Store) WaitForReady(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

// --- hashes ---

// HSet sets hash fields.
func (s *Store) HSet(_ context.Context, key string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.hashes[key]
	if !ok {
		h = make(map[string]string, len(fields))
		s.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
	return nil
}

// HGetAll returns all fields of a hash; a missing key yields an empty map.
func (s *Store) HGetAll(_ context.Context, key string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyHash(s.hashes[key]), nil
}

// HGetAllMulti returns all fields for several hashes, in key order.
func (s *Store) HGetAllMulti(_ context.Context, keys []string) ([]map[string]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]map[string]string, len(keys))
	for i, key := range keys {
		out[i] = copyHash(s.hashes[key])
	}
	return out, nil
}

// Del deletes a key of any kind.
func (s *Store) Del(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.hashes, key)
	delete(s.docs, key)
	delete(s.values, key)
	return nil
}

// Exists checks if a key of any kind exists.
func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.existsLocked(key), nil
}

// Scan returns the keys matching a glob pattern, sorted.
func (s *Store) Scan(_ context.Context, pattern string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	collect := func(key string) error {
		ok, err := path.Match(pattern, key)
		if err != nil {
			return &db.Error{Op: db.OpScan, Err: err}
		}
		if ok {
			keys = append(keys, key)
		}
		return nil
	}
	for key := range s.hashes {
		if err := collect(key); err != nil {
			return nil, err
		}
	}
	for key := range s.docs {
		if err := collect(key); err != nil {
			return nil, err
		}
	}
	for key := range s.values {
		if err := collect(key); err != nil {
			return nil, err
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// --- plain values ---

// Get retrieves a value by key.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return append([]byte(nil), v...), nil
}

// SetNX stores a value only if the key is absent and reports whether it did.
func (s *Store) SetNX(_ context.Context, key string, value []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.existsLocked(key) {
		return false, nil
	}
	s.values[key] = append([]byte(nil), value...)
	return true, nil
}

func (s *Store) existsLocked(key string) bool {
	if _, ok := s.hashes[key]; ok {
		return true
	}
	if _, ok := s.docs[key]; ok {
		return true
	}
	_, ok := s.values[key]
	return ok
}

func copyHash(h map[string]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// --- JSON documents ---

// JSONSet stores a JSON document. Only the root path is supported.
func (s *Store) JSONSet(_ context.Context, key, p string, data []byte) error {
	doc, err := parseDocument(p, data)
	if err != nil {
		return &db.Error{Op: db.OpJSONSet, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[key] = doc
	return nil
}

// JSONSetMulti stores several documents; nothing is written if any is invalid.
func (s *Store) JSONSetMulti(_ context.Context, items []db.JSONSetItem) error {
	if len(items) == 0 {
		return nil
	}

	docs := make([]document, len(items))
	for i, item := range items {
		doc, err := parseDocument(item.Path, item.Data)
		if err != nil {
			return &db.Error{Op: db.OpJSONSet, Key: item.Key, Err: err}
		}
		docs[i] = doc
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, item := range items {
		s.docs[item.Key] = docs[i]
	}
	return nil
}

// JSONGet returns a document. With no paths it returns the document itself;
// each path otherwise yields a JSON array of the values it matches.
func (s *Store) JSONGet(_ context.Context, key string, paths ...string) ([]byte, error) {
	s.mu.RLock()
	doc, ok := s.docs[key]
	s.mu.RUnlock()
	if !ok {
		return nil, db.ErrKeyNotFound
	}

	switch {
	case len(paths) == 0:
		return append([]byte(nil), doc.raw...), nil
	case len(paths) == 1 && paths[0] == "$":
		return wrapRoot(doc.raw), nil
	case len(paths) == 1:
		data, err := json.Marshal(resolve(doc.value, paths[0]))
		if err != nil {
			return nil, &db.Error{Op: db.OpJSONGet, Err: err}
		}
		return data, nil
	default:
		out := make(map[string]any, len(paths))
		for _, p := range paths {
			out[p] = resolve(doc.value, p)
		}
		data, err := json.Marshal(out)
		if err != nil {
			return nil, &db.Error{Op: db.OpJSONGet, Err: err}
		}
		return data, nil
	}
}

// JSONGetMulti fetches the root of several documents. Missing keys yield nil entries.
func (s *Store) JSONGetMulti(_ context.Context, keys []string) ([][]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([][]byte, len(keys))
	for i, key := range keys {
		if doc, ok := s.docs[key]; ok {
			out[i] = wrapRoot(doc.raw)
		}
	}
	return out, nil
}

func parseDocument(p string, data []byte) (document, error) {
	if p != "$" && p != "." {
		return document{}, errUnsupportedPath(p)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return document{}, err
	}
	return document{raw: append([]byte(nil), data...), value: v}, nil
}

func wrapRoot(raw []byte) []byte {
	out := make([]byte, 0, len(raw)+2)
	out = append(out, '[')
	out = append(out, raw...)
	return append(out, ']')
}

// resolve walks a "$.a.b" path. Arrays met on the way are traversed element-wise.
func resolve(root any, p string) []any {
	p = strings.TrimPrefix(strings.TrimPrefix(p, "$"), ".")
	current := []any{root}
	if p == "" {
		return current
	}
	for _, seg := range strings.Split(p, ".") {
		seg, wildcard := strings.CutSuffix(seg, "[*]")
		var next []any
		for _, v := range current {
			switch node := v.(type) {
			case map[string]any:
				if child, ok := node[seg]; ok {
					next = appendChild(next, child, wildcard)
				}
			case []any:
				for _, el := range node {
					if m, ok := el.(map[string]any); ok {
						if child, ok := m[seg]; ok {
							next = appendChild(next, child, wildcard)
						}
					}
				}
			}
		}
		current = next
	}
	return current
}

// appendChild appends child, or its elements when the segment ended in [*].
func appendChild(dst []any, child any, wildcard bool) []any {
	if arr, ok := child.([]any); ok && wildcard {
		return append(dst, arr...)
	}
	return append(dst, child)
}
