package search

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/kailas-cloud/annosearch/internal/domain"
	"github.com/kailas-cloud/annosearch/internal/domain/schema"
	"github.com/kailas-cloud/annosearch/internal/domain/search/filter"
	"github.com/kailas-cloud/annosearch/internal/domain/search/query"
	"github.com/kailas-cloud/annosearch/internal/domain/search/request"
	"github.com/kailas-cloud/annosearch/internal/domain/search/scope"
	"github.com/kailas-cloud/annosearch/internal/domain/search/sortby"
)

// errNoMatch is returned when a filter provably matches no record
// (e.g. a rating range containing no option).
var errNoMatch = errors.New("filter matches no records")

// compiler resolves request scopes against one dataset's schema.
type compiler struct {
	ds     schema.Dataset
	user   string
	legacy bool
}

// compile turns a validated request into a backend-neutral query.
// vector is the resolved similarity target, nil for filtered searches.
func (c compiler) compile(req *request.Search, vector *query.Vector) (query.Query, error) {
	q := query.Query{Vector: vector, Offset: req.Offset(), Limit: req.Limit()}

	if t := req.Text(); t != nil {
		text, err := c.text(*t)
		if err != nil {
			return query.Query{}, err
		}
		q.Text = text
	}

	must := make([]filter.Condition, 0, len(req.Filters())+1)
	for _, f := range req.Filters() {
		cond, err := c.condition(f)
		if err != nil {
			return query.Query{}, err
		}
		must = append(must, cond)
	}

	statusMust, statusMustNot, err := responseStatusConditions(req.User(), req.ResponseStatus())
	if err != nil {
		return query.Query{}, err
	}
	must = append(must, statusMust...)

	expr, err := filter.NewExpression(must, nil, statusMustNot)
	if err != nil {
		return query.Query{}, domain.Validationf("%v", err)
	}
	q.Filter = expr

	sorts, err := c.sort(req.Sort())
	if err != nil {
		return query.Query{}, err
	}
	if len(sorts) == 0 && q.Text == nil && q.Vector == nil {
		sorts = []query.Sort{{Scope: scope.MustRecord(scope.RecordInsertedAt)}}
	}
	q.Sort = sorts

	return q, nil
}

func (c compiler) text(t request.TextQuery) (*query.Text, error) {
	if t.Field == "" {
		return &query.Text{Q: t.Q}, nil
	}
	f, ok := c.ds.FieldByName(t.Field)
	if !ok {
		return nil, domain.Unprocessablef("field `%s` not found in dataset `%s`", t.Field, c.ds.ID())
	}
	if !f.IsText() {
		return nil, domain.Unprocessablef("field `%s` of type %s does not support text search", t.Field, f.Type())
	}
	return &query.Text{Q: t.Q, Field: scope.Field(t.Field)}, nil
}

// vector resolves the similarity target. value is the query vector or the seed record's.
func (c compiler) vector(vq request.VectorQuery, value []float32) (*query.Vector, error) {
	vs, ok := c.ds.VectorSettingsByName(vq.Name)
	if !ok {
		return nil, domain.Unprocessablef("vector settings `%s` not found in dataset `%s`", vq.Name, c.ds.ID())
	}
	if err := vs.ValidateValue(value); err != nil {
		return nil, domain.Unprocessablef("%v", err)
	}
	return &query.Vector{
		Field:        scope.Vector(vs.Name()),
		Value:        value,
		LeastSimilar: vq.Order == request.LeastSimilar,
	}, nil
}

func (c compiler) condition(f request.Filter) (filter.Condition, error) {
	switch f.Scope.Entity {
	case request.EntityRecord:
		return c.recordCondition(f)
	case request.EntityMetadata:
		return c.metadataCondition(f)
	case request.EntitySuggestion:
		return c.suggestionCondition(f)
	case request.EntityResponse:
		return c.responseCondition(f)
	default:
		return filter.Condition{}, domain.Unprocessablef("unknown filter scope entity `%s`", f.Scope.Entity)
	}
}

func (c compiler) recordCondition(f request.Filter) (filter.Condition, error) {
	sc, err := scope.Record(f.Scope.Property)
	if err != nil {
		return filter.Condition{}, domain.Unprocessablef("%v", err)
	}
	date := sc.Property() == scope.RecordInsertedAt || sc.Property() == scope.RecordUpdatedAt
	if f.Type == request.FilterRange {
		if !date {
			return filter.Condition{}, rangeUnsupported(f.Scope)
		}
		return rangeCondition(sc, f)
	}
	if date {
		return filter.Condition{}, termsUnsupported(f.Scope)
	}
	if sc.Property() == scope.RecordStatus {
		for _, v := range f.Values {
			if v != string(schema.RecordPending) && v != string(schema.RecordCompleted) {
				return filter.Condition{}, domain.Unprocessablef(
					"invalid record status `%s`, expected one of [pending, completed]", v)
			}
		}
	}
	return termsCondition(sc, f.Values)
}

func (c compiler) metadataCondition(f request.Filter) (filter.Condition, error) {
	p, ok := c.ds.MetadataPropertyByName(f.Scope.Name)
	if !ok {
		return filter.Condition{}, domain.Unprocessablef(
			"metadata property `%s` not found in dataset `%s`", f.Scope.Name, c.ds.ID())
	}
	sc := scope.Metadata(p.Name())

	switch settings := p.Settings().(type) {
	case schema.TermsMetadataSettings:
		if f.Type != request.FilterTerms {
			return filter.Condition{}, domain.Unprocessablef(
				"metadata property `%s` of type terms only supports terms filters", p.Name())
		}
		for _, v := range f.Values {
			if !settings.Allows(v) {
				return filter.Condition{}, domain.Unprocessablef(
					"`%s` is not an allowed value for metadata property `%s`, allowed values are: %s",
					v, p.Name(), strings.Join(settings.Values, ", "))
			}
		}
		return termsCondition(sc, f.Values)
	case schema.Bounded:
		if f.Type != request.FilterRange {
			return filter.Condition{}, domain.Unprocessablef(
				"metadata property `%s` of type %s only supports range filters", p.Name(), p.Type())
		}
		if err := checkBounds(p, settings, f); err != nil {
			return filter.Condition{}, err
		}
		return rangeCondition(sc, f)
	default:
		return filter.Condition{}, domain.Unprocessablef("metadata property `%s` cannot be filtered", p.Name())
	}
}

// checkBounds requires range bounds to lie within the property's configured min/max.
func checkBounds(p schema.MetadataProperty, b schema.Bounded, f request.Filter) error {
	lo, hi := b.Bounds()
	for _, bound := range []*float64{f.GE, f.LE} {
		if bound == nil {
			continue
		}
		if (lo != nil && *bound < *lo) || (hi != nil && *bound > *hi) {
			return domain.Unprocessablef("range bound %s is out of the bounds of metadata property `%s` [%s, %s]",
				schema.FormatNumber(*bound), p.Name(), formatBound(lo), formatBound(hi))
		}
	}
	return nil
}

func formatBound(b *float64) string {
	if b == nil {
		return "-"
	}
	return schema.FormatNumber(*b)
}

func (c compiler) suggestionCondition(f request.Filter) (filter.Condition, error) {
	q, err := c.question(f.Scope)
	if err != nil {
		return filter.Condition{}, err
	}
	sc, err := scope.Suggestion(q.Name(), f.Scope.Property)
	if err != nil {
		return filter.Condition{}, domain.Unprocessablef("%v", err)
	}

	switch sc.Property() {
	case scope.SuggestionScore:
		if f.Type != request.FilterRange {
			return filter.Condition{}, termsUnsupported(f.Scope)
		}
		return rangeCondition(sc, f)
	case scope.SuggestionAgent:
		if f.Type != request.FilterTerms {
			return filter.Condition{}, rangeUnsupported(f.Scope)
		}
		return termsCondition(sc, f.Values)
	case scope.SuggestionType:
		if f.Type != request.FilterTerms {
			return filter.Condition{}, rangeUnsupported(f.Scope)
		}
		for _, v := range f.Values {
			if v != string(schema.SuggestionModel) && v != string(schema.SuggestionHuman) {
				return filter.Condition{}, domain.Unprocessablef(
					"invalid suggestion type `%s`, expected one of [model, human]", v)
			}
		}
		return termsCondition(sc, f.Values)
	default:
		return answerCondition(sc, q, f)
	}
}

func (c compiler) responseCondition(f request.Filter) (filter.Condition, error) {
	if c.user == "" {
		return filter.Condition{}, domain.Unprocessablef("response filters require a user")
	}

	if f.Scope.Property == scope.ResponseStatus {
		sc := scope.ResponseStatusOf(c.user)
		if f.Type != request.FilterTerms {
			return filter.Condition{}, rangeUnsupported(f.Scope)
		}
		for _, v := range f.Values {
			if _, err := schema.ParseResponseStatus(v); err != nil {
				return filter.Condition{}, domain.Unprocessablef("%v", err)
			}
		}
		return termsCondition(sc, f.Values)
	}

	q, err := c.question(f.Scope)
	if err != nil {
		return filter.Condition{}, err
	}
	sc, err := scope.Response(q.Name(), f.Scope.Property, c.user)
	if err != nil {
		return filter.Condition{}, domain.Unprocessablef("%v", err)
	}
	return answerCondition(sc, q, f)
}

func (c compiler) question(ref request.ScopeRef) (schema.Question, error) {
	q, ok := c.ds.QuestionByName(ref.Name)
	if !ok {
		return schema.Question{}, domain.Unprocessablef("question `%s` not found in dataset `%s`", ref.Name, c.ds.ID())
	}
	return q, nil
}

// answerCondition filters on a suggested or answered value. Values are stored
// as keywords, so a range on a rating is expanded into the options it covers.
func answerCondition(sc scope.Scope, q schema.Question, f request.Filter) (filter.Condition, error) {
	if !q.Settings().MappingFragment().Index {
		return filter.Condition{}, domain.Unprocessablef("question `%s` of type %s cannot be filtered", q.Name(), q.Type())
	}

	if f.Type == request.FilterRange {
		rating, ok := q.Settings().(schema.RatingQuestionSettings)
		if !ok {
			return filter.Condition{}, rangeUnsupported(f.Scope)
		}
		terms := ratingTerms(rating, f.GE, f.LE)
		if len(terms) == 0 {
			return filter.Condition{}, errNoMatch
		}
		return termsCondition(sc, terms)
	}

	if chooser, ok := q.Settings().(schema.Chooser); ok {
		options := chooser.OptionValues()
		for _, v := range f.Values {
			if !slices.Contains(options, v) {
				return filter.Condition{}, domain.Unprocessablef(
					"`%s` is not a valid option for question `%s`, valid options are: %s",
					v, q.Name(), strings.Join(options, ", "))
			}
		}
	}
	return termsCondition(sc, f.Values)
}

func ratingTerms(s schema.RatingQuestionSettings, ge, le *float64) []string {
	var out []string
	for _, v := range s.RatingValues() {
		f := float64(v)
		if (ge != nil && f < *ge) || (le != nil && f > *le) {
			continue
		}
		out = append(out, strconv.Itoa(v))
	}
	return out
}

// responseStatusConditions compiles the per-user response-status filter.
// A user holds at most one response per record, so "missing or S" equals
// "no response with a status outside S".
func responseStatusConditions(
	user string, statuses []request.StatusFilter,
) (must, mustNot []filter.Condition, err error) {
	if len(statuses) == 0 {
		return nil, nil, nil
	}
	sc := scope.ResponseStatusOf(user)

	missing := false
	selected := make(map[string]bool, len(statuses))
	for _, st := range statuses {
		if st == request.StatusMissing {
			missing = true
			continue
		}
		selected[string(st)] = true
	}

	if !missing {
		cond, err := termsCondition(sc, slices.Sorted(maps.Keys(selected)))
		if err != nil {
			return nil, nil, err
		}
		return []filter.Condition{cond}, nil, nil
	}

	var others []string
	for _, st := range []schema.ResponseStatus{schema.ResponseDraft, schema.ResponseSubmitted, schema.ResponseDiscarded} {
		if !selected[string(st)] {
			others = append(others, string(st))
		}
	}
	switch {
	case len(others) == 0:
		// every state selected: no restriction
		return nil, nil, nil
	case len(selected) == 0:
		return nil, []filter.Condition{filter.NewExists(sc)}, nil
	default:
		cond, err := termsCondition(sc, others)
		if err != nil {
			return nil, nil, err
		}
		return nil, []filter.Condition{cond}, nil
	}
}

func (c compiler) sort(in []request.Sort) ([]query.Sort, error) {
	out := make([]query.Sort, 0, len(in))
	for _, s := range in {
		sc, err := c.sortScope(s.Scope)
		if err != nil {
			return nil, err
		}
		out = append(out, query.Sort{Scope: sc, Desc: s.Order == request.OrderDesc})
	}
	return out, nil
}

func (c compiler) sortScope(ref request.ScopeRef) (scope.Scope, error) {
	switch ref.Entity {
	case request.EntityRecord:
		sc, err := scope.Record(ref.Property)
		if err == nil && (sc.Sortable() || (c.legacy && sortby.IsLegacySortable(ref.Property))) {
			return sc, nil
		}
	case request.EntityMetadata:
		p, ok := c.ds.MetadataPropertyByName(ref.Name)
		if !ok {
			return scope.Scope{}, domain.Unprocessablef(
				"metadata property `%s` not found in dataset `%s`", ref.Name, c.ds.ID())
		}
		return scope.Metadata(p.Name()), nil
	}
	return scope.Scope{}, domain.Unprocessablef("sorting by %s is not supported, valid sort fields are: %s",
		ref, strings.Join(c.sortFields(), ", "))
}

// sortFields names what the dataset can be sorted by.
func (c compiler) sortFields() []string {
	fields := []string{scope.RecordInsertedAt, scope.RecordUpdatedAt}
	for _, p := range c.ds.MetadataProperties() {
		fields = append(fields, fmt.Sprintf("metadata.%s", p.Name()))
	}
	return fields
}

func termsCondition(sc scope.Scope, values []string) (filter.Condition, error) {
	cond, err := filter.NewTerms(sc, values)
	if err != nil {
		return filter.Condition{}, domain.Validationf("%v", err)
	}
	return cond, nil
}

func rangeCondition(sc scope.Scope, f request.Filter) (filter.Condition, error) {
	r, err := filter.NewRangeFilter(f.GE, f.LE)
	if err != nil {
		return filter.Condition{}, domain.Validationf("range filter on %s: %v", f.Scope, err)
	}
	cond, err := filter.NewRange(sc, r)
	if err != nil {
		return filter.Condition{}, domain.Validationf("%v", err)
	}
	return cond, nil
}

func rangeUnsupported(ref request.ScopeRef) error {
	return domain.Unprocessablef("range filters are not supported on %s", ref)
}

func termsUnsupported(ref request.ScopeRef) error {
	return domain.Unprocessablef("terms filters are not supported on %s", ref)
}
