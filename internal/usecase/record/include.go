package record

import (
	"maps"
	"slices"
	"strings"

	"github.com/kailas-cloud/annosearch/internal/domain"
	"github.com/kailas-cloud/annosearch/internal/domain/schema"
)

// Include selects the optional parts of returned records.
type Include struct {
	Responses   bool
	Suggestions bool
	// Vectors lists the vector settings to return; AllVectors returns every vector.
	Vectors    []string
	AllVectors bool
	// User restricts responses to one user's when set.
	User string
}

// ParseInclude parses include query values: "responses", "suggestions",
// "vectors" or "vectors:<name>[,<name>...]".
func ParseInclude(values []string) (Include, error) {
	var inc Include
	for _, v := range values {
		name, list, hasList := strings.Cut(v, ":")
		switch name {
		case "responses":
			inc.Responses = true
		case "suggestions":
			inc.Suggestions = true
		case "vectors":
			if !hasList {
				inc.AllVectors = true
				continue
			}
			for n := range strings.SplitSeq(list, ",") {
				if n = strings.TrimSpace(n); n != "" && !slices.Contains(inc.Vectors, n) {
					inc.Vectors = append(inc.Vectors, n)
				}
			}
		default:
			return Include{}, domain.Validationf(
				"invalid include %q, expected one of [responses, suggestions, vectors[:<name>,...]]", v)
		}
	}
	return inc, nil
}

// Apply returns r without the parts inc does not select.
func (inc Include) Apply(r schema.Record) schema.Record {
	st := schema.RecordState{
		ID:         r.ID(),
		ExternalID: r.ExternalID(),
		Fields:     r.Fields(),
		Metadata:   r.Metadata(),
		Status:     r.Status(),
		InsertedAt: r.InsertedAt(),
		UpdatedAt:  r.UpdatedAt(),
	}
	if inc.Responses {
		st.Responses = r.Responses()
		if inc.User != "" {
			st.Responses = nil
			if resp, ok := r.ResponseByUser(inc.User); ok {
				st.Responses = []schema.Response{resp}
			}
		}
	}
	if inc.Suggestions {
		st.Suggestions = r.Suggestions()
	}
	switch {
	case inc.AllVectors:
		st.Vectors = r.Vectors()
	case len(inc.Vectors) > 0:
		st.Vectors = maps.Clone(r.Vectors())
		maps.DeleteFunc(st.Vectors, func(name string, _ []float32) bool {
			return !slices.Contains(inc.Vectors, name)
		})
	}
	return schema.ReconstructRecord(st)
}
