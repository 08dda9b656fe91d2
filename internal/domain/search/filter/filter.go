package filter

import (
	"fmt"

	"github.com/kailas-cloud/annosearch/internal/domain/search/scope"
)

// MaxConditionsPerGroup is the maximum number of conditions per filter group.
const MaxConditionsPerGroup = 64

// Expression is a compiled filter with must/should/must_not boolean semantics.
// A non-empty should group requires at least one of its conditions.
type Expression struct {
	must    []Condition
	should  []Condition
	mustNot []Condition
}

// NewExpression validates and creates a filter Expression.
func NewExpression(must, should, mustNot []Condition) (Expression, error) {
	if len(must) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many must conditions (max %d)", MaxConditionsPerGroup)
	}
	if len(should) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many should conditions (max %d)", MaxConditionsPerGroup)
	}
	if len(mustNot) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many must_not conditions (max %d)", MaxConditionsPerGroup)
	}
	return Expression{must: must, should: should, mustNot: mustNot}, nil
}

// And returns an expression whose must group also holds extra.
func (e Expression) And(extra ...Condition) Expression {
	must := make([]Condition, 0, len(e.must)+len(extra))
	must = append(must, e.must...)
	must = append(must, extra...)
	return Expression{must: must, should: e.should, mustNot: e.mustNot}
}

// Must returns the must conditions.
func (e Expression) Must() []Condition { return e.must }

// Should returns the should conditions.
func (e Expression) Should() []Condition { return e.should }

// MustNot returns the must-not conditions.
func (e Expression) MustNot() []Condition { return e.mustNot }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool {
	return len(e.must) == 0 && len(e.should) == 0 && len(e.mustNot) == 0
}

// Kind discriminates conditions.
type Kind int

const (
	// KindTerms matches when any stored value is one of the terms.
	KindTerms Kind = iota
	// KindRange matches when a stored number lies within the bounds.
	KindRange
	// KindExists matches when the scope has any stored value.
	KindExists
)

// Condition is a single filter clause anchored to a scope.
type Condition struct {
	kind      Kind
	scope     scope.Scope
	terms     []string
	rangeExpr *Range
}

// NewTerms creates an any-of terms condition.
func NewTerms(s scope.Scope, terms []string) (Condition, error) {
	if s.IsZero() {
		return Condition{}, fmt.Errorf("filter scope is required")
	}
	if len(terms) == 0 {
		return Condition{}, fmt.Errorf("terms filter on %s requires at least one value", s)
	}
	return Condition{kind: KindTerms, scope: s, terms: terms}, nil
}

// NewRange creates a numeric range condition.
func NewRange(s scope.Scope, r Range) (Condition, error) {
	if s.IsZero() {
		return Condition{}, fmt.Errorf("filter scope is required")
	}
	return Condition{kind: KindRange, scope: s, rangeExpr: &r}, nil
}

// NewExists creates a presence condition.
func NewExists(s scope.Scope) Condition {
	return Condition{kind: KindExists, scope: s}
}

// Kind returns the condition kind.
func (c Condition) Kind() Kind { return c.kind }

// Scope returns the filtered dimension.
func (c Condition) Scope() scope.Scope { return c.scope }

// Terms returns the accepted terms.
func (c Condition) Terms() []string { return c.terms }

// Range returns the numeric range expression.
func (c Condition) Range() *Range { return c.rangeExpr }

// IsTerms reports whether this is a terms condition.
func (c Condition) IsTerms() bool { return c.kind == KindTerms }

// IsRange reports whether this is a range condition.
func (c Condition) IsRange() bool { return c.kind == KindRange }

// IsExists reports whether this is a presence condition.
func (c Condition) IsExists() bool { return c.kind == KindExists }

// Range is an inclusive numeric range.
type Range struct {
	gte *float64
	lte *float64
}

// NewRangeFilter validates and creates a Range. At least one bound is required.
func NewRangeFilter(gte, lte *float64) (Range, error) {
	if gte == nil && lte == nil {
		return Range{}, fmt.Errorf("at least one range boundary (ge, le) is required")
	}
	if gte != nil && lte != nil && *gte > *lte {
		return Range{}, fmt.Errorf("range lower bound %g is greater than upper bound %g", *gte, *lte)
	}
	return Range{gte: gte, lte: lte}, nil
}

// GTE returns the lower inclusive bound.
func (r Range) GTE() *float64 { return r.gte }

// LTE returns the upper inclusive bound.
func (r Range) LTE() *float64 { return r.lte }

// Contains reports whether v lies within the range.
func (r Range) Contains(v float64) bool {
	if r.gte != nil && v < *r.gte {
		return false
	}
	if r.lte != nil && v > *r.lte {
		return false
	}
	return true
}
