// Package request holds validated search requests before they are resolved
// against a dataset's schema.
package request

import (
	"fmt"

	"github.com/kailas-cloud/annosearch/internal/domain/schema"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed text query length.
	MaxQueryLength = 4096
	DefaultLimit   = 50
	MaxLimit       = 1000
)

// Entity names a scope family in user requests.
type Entity string

// Scope entities.
const (
	EntityRecord     Entity = "record"
	EntityMetadata   Entity = "metadata"
	EntitySuggestion Entity = "suggestion"
	EntityResponse   Entity = "response"
)

// ScopeRef is an unresolved scope: Name is the metadata property or question.
type ScopeRef struct {
	Entity   Entity
	Name     string
	Property string
}

// String renders the reference the way error messages name it.
func (s ScopeRef) String() string {
	switch {
	case s.Name != "" && s.Property != "":
		return fmt.Sprintf("%s.%s.%s", s.Entity, s.Name, s.Property)
	case s.Name != "":
		return fmt.Sprintf("%s.%s", s.Entity, s.Name)
	case s.Property != "":
		return fmt.Sprintf("%s.%s", s.Entity, s.Property)
	default:
		return string(s.Entity)
	}
}

// FilterType discriminates user filters.
type FilterType string

// Filter types.
const (
	FilterTerms FilterType = "terms"
	FilterRange FilterType = "range"
)

// Filter is one user filter; the top level is always their conjunction.
type Filter struct {
	Type   FilterType
	Scope  ScopeRef
	Values []string
	GE     *float64
	LE     *float64
}

// Validate checks the filter shape.
func (f Filter) Validate() error {
	if f.Scope.Entity == "" {
		return fmt.Errorf("filter scope entity is required")
	}
	switch f.Type {
	case FilterTerms:
		if len(f.Values) == 0 {
			return fmt.Errorf("terms filter on %s requires at least one value", f.Scope)
		}
	case FilterRange:
		if f.GE == nil && f.LE == nil {
			return fmt.Errorf("range filter on %s requires at least one of ge or le", f.Scope)
		}
		if f.GE != nil && f.LE != nil && *f.GE > *f.LE {
			return fmt.Errorf("range filter on %s: ge (%g) is greater than le (%g)", f.Scope, *f.GE, *f.LE)
		}
	default:
		return fmt.Errorf("invalid filter type %q, expected terms or range", f.Type)
	}
	return nil
}

// Order is a sort direction.
type Order string

// Sort directions.
const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// ParseOrder validates a sort direction; empty means ascending.
func ParseOrder(s string) (Order, error) {
	switch Order(s) {
	case "", OrderAsc:
		return OrderAsc, nil
	case OrderDesc:
		return OrderDesc, nil
	default:
		return "", fmt.Errorf("invalid sort order %q, expected asc or desc", s)
	}
}

// Sort is one sort key.
type Sort struct {
	Scope ScopeRef
	Order Order
}

// TextQuery is a free-text query, optionally restricted to one field.
type TextQuery struct {
	Q     string
	Field string
}

// VectorOrder selects nearest or farthest neighbours.
type VectorOrder string

// Vector orders.
const (
	MostSimilar  VectorOrder = "most_similar"
	LeastSimilar VectorOrder = "least_similar"
)

// VectorQuery is a similarity query by value or by a seed record's vector.
type VectorQuery struct {
	Name     string
	Value    []float32
	RecordID string
	Order    VectorOrder
}

// StatusFilter is a response-status filter value.
type StatusFilter string

// StatusMissing matches records the user has not responded to.
const StatusMissing StatusFilter = "missing"

// ParseStatusFilter validates a response-status filter value.
func ParseStatusFilter(s string) (StatusFilter, error) {
	if StatusFilter(s) == StatusMissing {
		return StatusMissing, nil
	}
	if _, err := schema.ParseResponseStatus(s); err != nil {
		return "", fmt.Errorf("invalid response status %q, expected one of [missing, draft, submitted, discarded]", s)
	}
	return StatusFilter(s), nil
}

// Params are the raw inputs of New.
type Params struct {
	Text           *TextQuery
	Vector         *VectorQuery
	Filters        []Filter
	Sort           []Sort
	ResponseStatus []StatusFilter
	// User binds response scopes and the response-status filter.
	User   string
	Offset int
	Limit  int
}

// Search is a validated search request.
type Search struct {
	text           *TextQuery
	vector         *VectorQuery
	filters        []Filter
	sort           []Sort
	responseStatus []StatusFilter
	user           string
	offset         int
	limit          int
}

// New validates and normalizes search parameters. Limit defaults to 50.
func New(p Params) (Search, error) {
	if p.Text != nil {
		if p.Text.Q == "" {
			return Search{}, fmt.Errorf("text query is required")
		}
		if len(p.Text.Q) > MaxQueryLength {
			return Search{}, fmt.Errorf("text query too long (max %d chars)", MaxQueryLength)
		}
	}
	if p.Vector != nil {
		v := *p.Vector
		if v.Name == "" {
			return Search{}, fmt.Errorf("vector query name is required")
		}
		if (len(v.Value) == 0) == (v.RecordID == "") {
			return Search{}, fmt.Errorf("vector query requires exactly one of value or record_id")
		}
		switch v.Order {
		case "":
			v.Order = MostSimilar
		case MostSimilar, LeastSimilar:
		default:
			return Search{}, fmt.Errorf("invalid vector order %q, expected most_similar or least_similar", v.Order)
		}
		p.Vector = &v
	}
	for _, f := range p.Filters {
		if err := f.Validate(); err != nil {
			return Search{}, err
		}
	}
	for _, s := range p.Sort {
		if _, err := ParseOrder(string(s.Order)); err != nil {
			return Search{}, err
		}
	}
	for _, st := range p.ResponseStatus {
		if _, err := ParseStatusFilter(string(st)); err != nil {
			return Search{}, err
		}
	}
	if len(p.ResponseStatus) > 0 && p.User == "" {
		return Search{}, fmt.Errorf("response status filter requires a user")
	}
	if p.Offset < 0 {
		return Search{}, fmt.Errorf("offset must not be negative")
	}
	if p.Limit < 0 {
		return Search{}, fmt.Errorf("limit must not be negative")
	}
	if p.Limit == 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		return Search{}, fmt.Errorf("limit must be at most %d", MaxLimit)
	}

	return Search{
		text:           p.Text,
		vector:         p.Vector,
		filters:        p.Filters,
		sort:           p.Sort,
		responseStatus: p.ResponseStatus,
		user:           p.User,
		offset:         p.Offset,
		limit:          p.Limit,
	}, nil
}

// Text returns the free-text query, if any.
func (s *Search) Text() *TextQuery { return s.text }

// Vector returns the similarity query, if any.
func (s *Search) Vector() *VectorQuery { return s.vector }

// Filters returns the user filters.
func (s *Search) Filters() []Filter { return s.filters }

// Sort returns the sort keys.
func (s *Search) Sort() []Sort { return s.sort }

// ResponseStatus returns the response-status filter values.
func (s *Search) ResponseStatus() []StatusFilter { return s.responseStatus }

// User returns the user response scopes are bound to.
func (s *Search) User() string { return s.user }

// Offset returns the pagination offset.
func (s *Search) Offset() int { return s.offset }

// Limit returns the page size.
func (s *Search) Limit() int { return s.limit }
