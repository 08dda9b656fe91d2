// Package query holds a search request resolved against a dataset schema:
// every scope is concrete and the filter is ready for the engine.
package query

import (
	"github.com/kailas-cloud/annosearch/internal/domain/search/filter"
	"github.com/kailas-cloud/annosearch/internal/domain/search/scope"
)

// Sort is one resolved sort key.
type Sort struct {
	Scope scope.Scope
	Desc  bool
}

// Text is a full-text match. A zero Field matches every text field.
type Text struct {
	Q     string
	Field scope.Scope
}

// Vector is a similarity match against one vector space.
type Vector struct {
	Field        scope.Scope
	Value        []float32
	LeastSimilar bool
}

// Query is a compiled search.
// Vector queries return the Limit nearest neighbours; Offset and Sort do not apply.
type Query struct {
	Text   *Text
	Vector *Vector
	Filter filter.Expression
	Sort   []Sort
	Offset int
	Limit  int
}

// Scored reports whether hits carry a relevance or similarity score.
func (q Query) Scored() bool {
	return q.Text != nil || q.Vector != nil
}
