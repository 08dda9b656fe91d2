// Package sortby parses sort_by query parameters of both API generations.
package sortby

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/annosearch/internal/domain"
	"github.com/kailas-cloud/annosearch/internal/domain/search/request"
	"github.com/kailas-cloud/annosearch/internal/domain/search/scope"
)

const metadataPrefix = "metadata."

// V1Fields lists the sort_by names of the v1 API.
var V1Fields = []string{scope.RecordInsertedAt, scope.RecordUpdatedAt, metadataPrefix + "<name>"}

// V0Fields lists the sort_by names of the legacy API.
var V0Fields = []string{"id", metadataPrefix + "<name>", "score", "status", "last_updated", "event_timestamp"}

// legacy maps legacy names onto record properties.
var legacy = map[string]string{
	"id":              scope.RecordID,
	"status":          scope.RecordStatus,
	"last_updated":    scope.RecordUpdatedAt,
	"event_timestamp": scope.RecordInsertedAt,
}

// ParseV1 parses "field[:asc|desc]" values of the v1 API.
func ParseV1(values []string) ([]request.Sort, error) {
	out := make([]request.Sort, 0, len(values))
	for _, v := range values {
		field, order, err := split(v)
		if err != nil {
			return nil, err
		}
		switch {
		case field == scope.RecordInsertedAt || field == scope.RecordUpdatedAt:
			out = append(out, request.Sort{
				Scope: request.ScopeRef{Entity: request.EntityRecord, Property: field},
				Order: order,
			})
		case strings.HasPrefix(field, metadataPrefix) && len(field) > len(metadataPrefix):
			out = append(out, request.Sort{
				Scope: request.ScopeRef{Entity: request.EntityMetadata, Name: strings.TrimPrefix(field, metadataPrefix)},
				Order: order,
			})
		default:
			return nil, unknown(field, V1Fields)
		}
	}
	return out, nil
}

// ParseV0 parses legacy sort_by values. "score" selects relevance ordering,
// which is the engine default, so it yields no sort key and only accepts desc.
func ParseV0(values []string) ([]request.Sort, error) {
	out := make([]request.Sort, 0, len(values))
	for _, v := range values {
		field, order, err := split(v)
		if err != nil {
			return nil, err
		}
		if prop, ok := legacy[field]; ok {
			out = append(out, request.Sort{
				Scope: request.ScopeRef{Entity: request.EntityRecord, Property: prop},
				Order: order,
			})
			continue
		}
		switch {
		case field == "score":
			if order != request.OrderDesc && strings.Contains(v, ":") {
				return nil, domain.Unprocessablef("score can only be sorted in desc order")
			}
		case strings.HasPrefix(field, metadataPrefix) && len(field) > len(metadataPrefix):
			out = append(out, request.Sort{
				Scope: request.ScopeRef{Entity: request.EntityMetadata, Name: strings.TrimPrefix(field, metadataPrefix)},
				Order: order,
			})
		default:
			return nil, unknown(field, V0Fields)
		}
	}
	return out, nil
}

// IsLegacySortable reports whether the legacy API may sort by a record property.
func IsLegacySortable(property string) bool {
	for _, p := range legacy {
		if p == property {
			return true
		}
	}
	return false
}

func split(v string) (string, request.Order, error) {
	field, rawOrder, _ := strings.Cut(v, ":")
	order, err := request.ParseOrder(rawOrder)
	if err != nil {
		return "", "", domain.Unprocessablef("sort_by %q: %v", v, err)
	}
	return field, order, nil
}

func unknown(field string, valid []string) error {
	return domain.Unprocessablef("sort_by field %q is not valid, valid fields are: %s", field, strings.Join(valid, ", "))
}

// String renders a sort key back into sort_by form.
func String(s request.Sort) string {
	name := s.Scope.Property
	if s.Scope.Entity == request.EntityMetadata {
		name = fmt.Sprintf("%s%s", metadataPrefix, s.Scope.Name)
	}
	return name + ":" + string(s.Order)
}
