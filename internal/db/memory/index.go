package memory

import (
	"context"
	"strings"

	"github.com/kailas-cloud/annosearch/internal/db"
)

// CreateIndex registers an index definition.
func (s *Store) CreateIndex(_ context.Context, def *db.IndexDefinition) error {
	if err := def.Validate(); err != nil {
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.indexes[def.Name]; ok {
		return db.ErrIndexExists
	}
	cp := *def
	cp.Fields = append([]db.IndexField(nil), def.Fields...)
	s.indexes[def.Name] = &cp
	return nil
}

// AlterIndex adds fields to an index. Fields it already has are skipped.
func (s *Store) AlterIndex(_ context.Context, name string, fields []db.IndexField) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.indexes[name]
	if !ok {
		return db.ErrIndexNotFound
	}
	for _, f := range fields {
		if _, exists := idx.Field(f.Key()); exists {
			continue
		}
		idx.Fields = append(idx.Fields, f)
	}
	return nil
}

// DropIndex removes an index. Indexed documents are kept.
func (s *Store) DropIndex(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.indexes[name]; !ok {
		return db.ErrIndexNotFound
	}
	delete(s.indexes, name)
	return nil
}

// IndexExists reports whether an index is registered.
func (s *Store) IndexExists(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.indexes[name]
	return ok, nil
}

// entry is one document as an index sees it.
type entry struct {
	key    string
	fields map[string][]any
}

// entriesLocked extracts the indexed fields of every JSON document under idx.
// Callers hold at least the read lock.
func (s *Store) entriesLocked(idx *db.IndexDefinition) []entry {
	var out []entry
	for key, doc := range s.docs {
		if !strings.HasPrefix(key, idx.Prefix) {
			continue
		}
		fields := make(map[string][]any, len(idx.Fields))
		for _, f := range idx.Fields {
			if vals := fieldValues(&f, resolve(doc.value, f.Name)); len(vals) > 0 {
				fields[f.Key()] = vals
			}
		}
		out = append(out, entry{key: key, fields: fields})
	}
	return out
}
