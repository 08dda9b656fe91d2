package memory

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/kailas-cloud/annosearch/internal/db"
	"github.com/kailas-cloud/annosearch/internal/domain/search/filter"
	"github.com/kailas-cloud/annosearch/internal/domain/search/scope"
)

// Search evaluates a filtered, optionally full-text, sorted search.
// Without sort keys text hits are ordered by score and listings by key.
func (s *Store) Search(_ context.Context, q *db.SearchQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if q.Limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.indexes[q.IndexName]
	if !ok {
		return nil, db.ErrIndexNotFound
	}
	for _, k := range q.Sort {
		if _, ok := idx.Field(db.FieldKey(k.Scope)); !ok {
			return nil, &db.Error{Op: db.OpSearch, Err: errUnknownField(db.FieldKey(k.Scope))}
		}
	}

	entries := s.entriesLocked(idx)
	matched, err := filterEntries(idx, entries, q.Filters)
	if err != nil {
		return nil, err
	}

	scores := make(map[string]float64, len(matched))
	if q.Text != "" {
		if matched, scores, err = matchText(idx, entries, matched, q.Text, q.TextField); err != nil {
			return nil, err
		}
	}

	switch {
	case len(q.Sort) > 0:
		slices.SortFunc(matched, func(a, b entry) int { return compareSorted(q.Sort, a, b) })
	case q.Text != "":
		slices.SortFunc(matched, func(a, b entry) int {
			if c := cmp.Compare(scores[b.key], scores[a.key]); c != 0 {
				return c
			}
			return strings.Compare(a.key, b.key)
		})
	default:
		slices.SortFunc(matched, func(a, b entry) int { return strings.Compare(a.key, b.key) })
	}

	res := &db.SearchResult{Total: len(matched)}
	for _, e := range page(matched, q.Offset, q.Limit) {
		res.Entries = append(res.Entries, db.SearchEntry{Key: e.key, Score: scores[e.key]})
	}
	return res, nil
}

// matchText keeps the candidates containing every term of text and scores them.
func matchText(
	idx *db.IndexDefinition, all, candidates []entry, text string, field scope.Scope,
) ([]entry, map[string]float64, error) {
	keys, err := textFields(idx, field)
	if err != nil {
		return nil, nil, err
	}
	scores := scoreText(all, candidates, keys, tokenize(text))
	kept := make([]entry, 0, len(scores))
	for _, e := range candidates {
		if _, ok := scores[e.key]; ok {
			kept = append(kept, e)
		}
	}
	return kept, scores, nil
}

// SearchKNN returns the K nearest documents by cosine similarity.
func (s *Store) SearchKNN(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if q.K <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.indexes[q.IndexName]
	if !ok {
		return nil, db.ErrIndexNotFound
	}
	key := db.FieldKey(q.Field)
	f, ok := idx.Field(key)
	if !ok || f.Type != db.IndexFieldVector {
		return nil, &db.Error{Op: db.OpSearch, Err: errUnknownField(key)}
	}
	if len(q.Vector) != f.VectorDim {
		return nil, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("vector dimension %d does not match %d", len(q.Vector), f.VectorDim)}
	}

	entries := s.entriesLocked(idx)
	matched, err := filterEntries(idx, entries, q.Filters)
	if err != nil {
		return nil, err
	}
	if q.Text != "" {
		if matched, _, err = matchText(idx, entries, matched, q.Text, q.TextField); err != nil {
			return nil, err
		}
	}

	hits := make([]db.SearchEntry, 0, len(matched))
	for _, e := range matched {
		vals := e.fields[key]
		if len(vals) == 0 {
			continue
		}
		hits = append(hits, db.SearchEntry{Key: e.key, Score: cosine(q.Vector, vals[0].([]float32))})
	}
	slices.SortFunc(hits, func(a, b db.SearchEntry) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return strings.Compare(a.Key, b.Key)
	})
	if len(hits) > q.K {
		hits = hits[:q.K]
	}
	return &db.SearchResult{Total: len(hits), Entries: hits}, nil
}

// SearchCount returns the number of documents matching filters.
func (s *Store) SearchCount(_ context.Context, index string, filters filter.Expression) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.indexes[index]
	if !ok {
		return 0, db.ErrIndexNotFound
	}
	matched, err := filterEntries(idx, s.entriesLocked(idx), filters)
	if err != nil {
		return 0, err
	}
	return len(matched), nil
}

func page(entries []entry, offset, limit int) []entry {
	if offset >= len(entries) {
		return nil
	}
	end := min(offset+limit, len(entries))
	return entries[offset:end]
}

// --- filters ---

func filterEntries(idx *db.IndexDefinition, entries []entry, expr filter.Expression) ([]entry, error) {
	out := make([]entry, 0, len(entries))
	for _, e := range entries {
		ok, err := matchExpression(idx, e, expr)
		if err != nil {
			return nil, &db.Error{Op: db.OpSearch, Err: err}
		}
		if ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func matchExpression(idx *db.IndexDefinition, e entry, expr filter.Expression) (bool, error) {
	for _, c := range expr.Must() {
		ok, err := matchCondition(idx, e, c)
		if err != nil || !ok {
			return false, err
		}
	}
	if should := expr.Should(); len(should) > 0 {
		hit := false
		for _, c := range should {
			ok, err := matchCondition(idx, e, c)
			if err != nil {
				return false, err
			}
			if ok {
				hit = true
				break
			}
		}
		if !hit {
			return false, nil
		}
	}
	for _, c := range expr.MustNot() {
		ok, err := matchCondition(idx, e, c)
		if err != nil || ok {
			return false, err
		}
	}
	return true, nil
}

func matchCondition(idx *db.IndexDefinition, e entry, c filter.Condition) (bool, error) {
	switch c.Kind() {
	case filter.KindTerms:
		key := db.FieldKey(c.Scope())
		f, ok := idx.Field(key)
		if !ok {
			return false, errUnknownField(key)
		}
		tags := make([]string, len(c.Terms()))
		for i, t := range c.Terms() {
			tags[i] = db.TagValue(c.Scope(), t)
		}
		return matchTerms(f, e.fields[key], tags), nil

	case filter.KindRange:
		key := db.FieldKey(c.Scope())
		f, ok := idx.Field(key)
		if !ok {
			return false, errUnknownField(key)
		}
		if f.Type != db.IndexFieldNumeric {
			return false, fmt.Errorf("range on non-numeric field %q", key)
		}
		for _, v := range e.fields[key] {
			if c.Range().Contains(v.(float64)) {
				return true, nil
			}
		}
		return false, nil

	case filter.KindExists:
		key, tag := db.ExistsKey(c.Scope())
		f, ok := idx.Field(key)
		if !ok {
			return false, errUnknownField(key)
		}
		if tag != "" {
			return matchTerms(f, e.fields[key], []string{tag}), nil
		}
		return len(e.fields[key]) > 0, nil

	default:
		return false, fmt.Errorf("unknown condition kind %d", c.Kind())
	}
}

func matchTerms(f *db.IndexField, values []any, terms []string) bool {
	for _, v := range values {
		for _, t := range terms {
			switch stored := v.(type) {
			case string:
				if stored == t || (!f.TagCaseSensitive && strings.EqualFold(stored, t)) {
					return true
				}
			case float64:
				if n, err := strconv.ParseFloat(t, 64); err == nil && n == stored {
					return true
				}
			}
		}
	}
	return false
}

// --- sorting ---

// compareSorted orders by the sort keys, documents lacking a value last, then by key.
func compareSorted(keys []db.SortKey, a, b entry) int {
	for _, k := range keys {
		fk := db.FieldKey(k.Scope)
		av, bv := a.fields[fk], b.fields[fk]
		switch {
		case len(av) == 0 && len(bv) == 0:
			continue
		case len(av) == 0:
			return 1
		case len(bv) == 0:
			return -1
		}
		c := compareValues(av[0], bv[0])
		if k.Desc {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return strings.Compare(a.key, b.key)
}

func compareValues(a, b any) int {
	switch av := a.(type) {
	case float64:
		if bv, ok := b.(float64); ok {
			return cmp.Compare(av, bv)
		}
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	}
	return 0
}

// --- vectors ---

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
