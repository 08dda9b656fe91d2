// Package scope names a queryable, filterable or sortable dimension of a record.
package scope

import "fmt"

// Kind is the family a scope belongs to.
type Kind string

const (
	// KindRecord is a top-level record property.
	KindRecord Kind = "record"
	// KindMetadata is a dataset metadata property.
	KindMetadata Kind = "metadata"
	// KindSuggestion is a property of a question's suggestion.
	KindSuggestion Kind = "suggestion"
	// KindResponse is a property of one user's response.
	KindResponse Kind = "response"
	// KindField is a record field (full-text target).
	KindField Kind = "field"
	// KindVector is a named vector space.
	KindVector Kind = "vector"
)

// Record properties.
const (
	RecordID         = "id"
	RecordStatus     = "status"
	RecordExternalID = "external_id"
	RecordInsertedAt = "inserted_at"
	RecordUpdatedAt  = "updated_at"
)

// Suggestion properties.
const (
	SuggestionValue = "value"
	SuggestionAgent = "agent"
	SuggestionScore = "score"
	SuggestionType  = "type"
)

// Response properties.
const (
	ResponseValue  = "value"
	ResponseStatus = "status"
)

// Scope is an immutable reference to a record dimension.
type Scope struct {
	kind     Kind
	name     string
	property string
	user     string
}

// Record returns a record property scope.
func Record(property string) (Scope, error) {
	switch property {
	case RecordID, RecordStatus, RecordExternalID, RecordInsertedAt, RecordUpdatedAt:
		return Scope{kind: KindRecord, property: property}, nil
	default:
		return Scope{}, fmt.Errorf("invalid record property %q, expected one of %v", property, RecordProperties())
	}
}

// RecordProperties lists the record properties.
func RecordProperties() []string {
	return []string{RecordID, RecordStatus, RecordExternalID, RecordInsertedAt, RecordUpdatedAt}
}

// MustRecord is Record for compile-time constants.
func MustRecord(property string) Scope {
	s, err := Record(property)
	if err != nil {
		panic(err)
	}
	return s
}

// Metadata returns a metadata property scope.
func Metadata(name string) Scope {
	return Scope{kind: KindMetadata, name: name}
}

// Suggestion returns a suggestion scope. An empty property means the suggested value.
func Suggestion(question, property string) (Scope, error) {
	switch property {
	case "":
		property = SuggestionValue
	case SuggestionValue, SuggestionAgent, SuggestionScore, SuggestionType:
	default:
		return Scope{}, fmt.Errorf("invalid suggestion property %q, expected one of [value, agent, score, type]", property)
	}
	return Scope{kind: KindSuggestion, name: question, property: property}, nil
}

// Response returns a response scope bound to user. An empty property means the answer value.
// The status property ignores question.
func Response(question, property, user string) (Scope, error) {
	if user == "" {
		return Scope{}, fmt.Errorf("response scope requires a user")
	}
	switch property {
	case "", ResponseValue:
		if question == "" {
			return Scope{}, fmt.Errorf("response value scope requires a question")
		}
		return Scope{kind: KindResponse, name: question, property: ResponseValue, user: user}, nil
	case ResponseStatus:
		return Scope{kind: KindResponse, property: ResponseStatus, user: user}, nil
	default:
		return Scope{}, fmt.Errorf("invalid response property %q, expected value or status", property)
	}
}

// ResponseStatusOf is the per-user response status scope.
func ResponseStatusOf(user string) Scope {
	return Scope{kind: KindResponse, property: ResponseStatus, user: user}
}

// Field returns a record field scope.
func Field(name string) Scope {
	return Scope{kind: KindField, name: name}
}

// Vector returns a vector space scope.
func Vector(name string) Scope {
	return Scope{kind: KindVector, name: name}
}

// Kind returns the scope family.
func (s Scope) Kind() Kind { return s.kind }

// Name returns the metadata/question/field/vector name (empty for record scopes).
func (s Scope) Name() string { return s.name }

// Property returns the record/suggestion/response property.
func (s Scope) Property() string { return s.property }

// User returns the user a response scope is bound to.
func (s Scope) User() string { return s.user }

// IsZero reports whether s is the zero Scope.
func (s Scope) IsZero() bool { return s.kind == "" }

// Sortable reports whether sorts may use this scope.
func (s Scope) Sortable() bool {
	switch s.kind {
	case KindRecord:
		return s.property == RecordInsertedAt || s.property == RecordUpdatedAt
	case KindMetadata:
		return true
	default:
		return false
	}
}

// Path resolves the scope to its index document path.
func (s Scope) Path() string {
	switch s.kind {
	case KindRecord:
		return s.property
	case KindMetadata:
		return "metadata." + s.name
	case KindSuggestion:
		if s.property == SuggestionValue {
			return s.name + ".suggestion"
		}
		return s.name + ".suggestion." + s.property
	case KindResponse:
		if s.property == ResponseStatus {
			return "responses." + s.user + ".status"
		}
		return "responses." + s.user + ".values." + s.name
	case KindField:
		return "fields." + s.name
	case KindVector:
		return "vectors." + s.name
	default:
		return ""
	}
}

// String implements fmt.Stringer.
func (s Scope) String() string {
	return s.Path()
}
