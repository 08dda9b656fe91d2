package db

import "github.com/kailas-cloud/annosearch/internal/domain/search/scope"

// Query keys of the per-user projections stored under $.search.
const (
	FieldResponseUsers  = "responses.users"
	FieldResponseStatus = "responses.status"
)

// FieldKey returns the index field key a scope is stored under.
// Keys never collide because schema names cannot contain dots.
func FieldKey(s scope.Scope) string {
	switch s.Kind() {
	case scope.KindRecord:
		return s.Property()
	case scope.KindMetadata:
		return "metadata." + s.Name()
	case scope.KindSuggestion:
		if s.Property() == scope.SuggestionValue {
			return "suggestion." + s.Name()
		}
		return "suggestion." + s.Name() + "." + s.Property()
	case scope.KindResponse:
		if s.Property() == scope.ResponseStatus {
			return FieldResponseStatus
		}
		return ResponseValueKey(s.Name())
	case scope.KindField:
		return "fields." + s.Name()
	case scope.KindVector:
		return "vectors." + s.Name()
	default:
		return ""
	}
}

// ResponseValueKey is the key of a question's shared per-user response values.
func ResponseValueKey(question string) string {
	return "responses." + question
}

// TagValue encodes a term the way it is stored for the scope.
// Response tags are shared across users, so each value carries its user.
func TagValue(s scope.Scope, term string) string {
	if s.Kind() == scope.KindResponse {
		return UserTag(s.User(), term)
	}
	return term
}

// UserTag joins a user and a value into one tag.
func UserTag(user, value string) string {
	return user + ":" + value
}

// ExistsKey returns the field key and tag that mark a scope as present.
// Per-user response scopes are present when the user has any response.
func ExistsKey(s scope.Scope) (key, tag string) {
	if s.Kind() == scope.KindResponse {
		return FieldResponseUsers, s.User()
	}
	return FieldKey(s), ""
}
