package db

import (
	"github.com/kailas-cloud/annosearch/internal/domain/search/filter"
	"github.com/kailas-cloud/annosearch/internal/domain/search/scope"
)

// SortKey orders results by one scope.
type SortKey struct {
	Scope scope.Scope
	Desc  bool
}

// SearchQuery is the input for filtered, optionally full-text, search.
// An empty Text lists every document matching Filters.
// A zero TextField matches Text across all TEXT fields.
type SearchQuery struct {
	IndexName string
	Text      string
	TextField scope.Scope
	Filters   filter.Expression
	Sort      []SortKey
	Offset    int
	Limit     int
}

// KNNQuery is the input for vector similarity search.
// A non-empty Text restricts candidates to documents matching it.
type KNNQuery struct {
	IndexName string
	Field     scope.Scope
	Filters   filter.Expression
	Text      string
	TextField scope.Scope
	Vector    []float32
	K         int
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key   string
	Score float64
}
