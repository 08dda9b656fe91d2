package schema

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
)

// RecordStatus is derived from the record's responses and the dataset distribution.
type RecordStatus string

const (
	// RecordPending still needs submitted responses.
	RecordPending RecordStatus = "pending"
	// RecordCompleted reached the distribution's submitted threshold.
	RecordCompleted RecordStatus = "completed"
)

// ResponseStatus is the state of one user's response.
type ResponseStatus string

const (
	// ResponseDraft is saved but not submitted.
	ResponseDraft ResponseStatus = "draft"
	// ResponseSubmitted is final.
	ResponseSubmitted ResponseStatus = "submitted"
	// ResponseDiscarded marks the record as skipped by the user.
	ResponseDiscarded ResponseStatus = "discarded"
)

// ParseResponseStatus validates a response status string.
func ParseResponseStatus(s string) (ResponseStatus, error) {
	switch st := ResponseStatus(s); st {
	case ResponseDraft, ResponseSubmitted, ResponseDiscarded:
		return st, nil
	default:
		return "", fmt.Errorf("invalid response status %q, expected one of [draft, submitted, discarded]", s)
	}
}

// Response is one user's answers for a record.
type Response struct {
	user      string
	status    ResponseStatus
	values    map[string]any
	updatedAt int64
}

// NewResponse validates and creates a Response.
func NewResponse(user string, status ResponseStatus, values map[string]any) (Response, error) {
	if user == "" {
		return Response{}, fmt.Errorf("response user is required")
	}
	if _, err := ParseResponseStatus(string(status)); err != nil {
		return Response{}, err
	}
	if status != ResponseDiscarded && len(values) == 0 {
		return Response{}, fmt.Errorf("%s response must have values", status)
	}
	return Response{user: user, status: status, values: values, updatedAt: time.Now().UnixMilli()}, nil
}

// ReconstructResponse creates a Response without validation (storage hydration).
func ReconstructResponse(user string, status ResponseStatus, values map[string]any, updatedAt int64) Response {
	return Response{user: user, status: status, values: values, updatedAt: updatedAt}
}

// User returns the responding user.
func (r Response) User() string { return r.user }

// Status returns the response status.
func (r Response) Status() ResponseStatus { return r.status }

// Values returns answers keyed by question name.
func (r Response) Values() map[string]any { return r.values }

// UpdatedAt returns the last change time (unix millis).
func (r Response) UpdatedAt() int64 { return r.updatedAt }

// SuggestionType tells who produced a suggestion.
type SuggestionType string

const (
	// SuggestionModel comes from a model.
	SuggestionModel SuggestionType = "model"
	// SuggestionHuman comes from a person.
	SuggestionHuman SuggestionType = "human"
)

// Suggestion is a proposed answer to one question.
type Suggestion struct {
	question string
	value    any
	score    *float64
	agent    string
	kind     SuggestionType
}

// NewSuggestion validates and creates a Suggestion.
func NewSuggestion(question string, value any, score *float64, agent string, kind SuggestionType) (Suggestion, error) {
	if question == "" {
		return Suggestion{}, fmt.Errorf("suggestion question is required")
	}
	if value == nil {
		return Suggestion{}, fmt.Errorf("suggestion value is required")
	}
	switch kind {
	case "", SuggestionModel, SuggestionHuman:
	default:
		return Suggestion{}, fmt.Errorf("invalid suggestion type %q, expected model or human", kind)
	}
	if score != nil && (*score < 0 || *score > 1) {
		return Suggestion{}, fmt.Errorf("suggestion score must be between 0 and 1, got %g", *score)
	}
	return Suggestion{question: question, value: value, score: score, agent: agent, kind: kind}, nil
}

// ReconstructSuggestion creates a Suggestion without validation (storage hydration).
func ReconstructSuggestion(question string, value any, score *float64, agent string, kind SuggestionType) Suggestion {
	return Suggestion{question: question, value: value, score: score, agent: agent, kind: kind}
}

// Question returns the question name.
func (s Suggestion) Question() string { return s.question }

// Value returns the suggested answer.
func (s Suggestion) Value() any { return s.value }

// Score returns the confidence, if any.
func (s Suggestion) Score() *float64 { return s.score }

// Agent returns the producer name.
func (s Suggestion) Agent() string { return s.agent }

// Type returns the producer kind.
func (s Suggestion) Type() SuggestionType { return s.kind }

// Record is one item to annotate (immutable value object).
type Record struct {
	id          string
	externalID  string
	fields      map[string]any
	metadata    map[string]any
	status      RecordStatus
	responses   []Response
	suggestions []Suggestion
	vectors     map[string][]float32
	insertedAt  int64
	updatedAt   int64
}

// NewRecord creates a pending Record. An empty id gets a fresh UUID.
func NewRecord(id, externalID string, fields, metadata map[string]any, vectors map[string][]float32) (Record, error) {
	if len(fields) == 0 {
		return Record{}, fmt.Errorf("record fields are required")
	}
	if id == "" {
		id = uuid.NewString()
	} else if _, err := uuid.Parse(id); err != nil {
		return Record{}, fmt.Errorf("record id %q must be a UUID", id)
	}
	now := time.Now().UnixMilli()
	return Record{
		id:         id,
		externalID: externalID,
		fields:     fields,
		metadata:   metadata,
		status:     RecordPending,
		vectors:    vectors,
		insertedAt: now,
		updatedAt:  now,
	}, nil
}

// RecordState carries every attribute for ReconstructRecord.
type RecordState struct {
	ID          string
	ExternalID  string
	Fields      map[string]any
	Metadata    map[string]any
	Status      RecordStatus
	Responses   []Response
	Suggestions []Suggestion
	Vectors     map[string][]float32
	InsertedAt  int64
	UpdatedAt   int64
}

// ReconstructRecord creates a Record without validation (storage hydration).
func ReconstructRecord(s RecordState) Record {
	status := s.Status
	if status == "" {
		status = RecordPending
	}
	return Record{
		id:          s.ID,
		externalID:  s.ExternalID,
		fields:      s.Fields,
		metadata:    s.Metadata,
		status:      status,
		responses:   s.Responses,
		suggestions: s.Suggestions,
		vectors:     s.Vectors,
		insertedAt:  s.InsertedAt,
		updatedAt:   s.UpdatedAt,
	}
}

// ID returns the record id.
func (r Record) ID() string { return r.id }

// ExternalID returns the caller-supplied id, if any.
func (r Record) ExternalID() string { return r.externalID }

// Fields returns field values keyed by field name.
func (r Record) Fields() map[string]any { return r.fields }

// Metadata returns metadata values keyed by property name.
func (r Record) Metadata() map[string]any { return r.metadata }

// Status returns the derived record status.
func (r Record) Status() RecordStatus { return r.status }

// Responses returns one response per user.
func (r Record) Responses() []Response { return r.responses }

// Suggestions returns one suggestion per question.
func (r Record) Suggestions() []Suggestion { return r.suggestions }

// Vectors returns vectors keyed by vector settings name.
func (r Record) Vectors() map[string][]float32 { return r.vectors }

// InsertedAt returns the creation time (unix millis).
func (r Record) InsertedAt() int64 { return r.insertedAt }

// UpdatedAt returns the last change time (unix millis).
func (r Record) UpdatedAt() int64 { return r.updatedAt }

// Vector returns the vector for the named settings.
func (r Record) Vector(name string) ([]float32, bool) {
	v, ok := r.vectors[name]
	return v, ok && len(v) > 0
}

// ResponseByUser returns the user's response.
func (r Record) ResponseByUser(user string) (Response, bool) {
	i := slices.IndexFunc(r.responses, func(resp Response) bool { return resp.user == user })
	if i < 0 {
		return Response{}, false
	}
	return r.responses[i], true
}

// SuggestionByQuestion returns the suggestion for a question.
func (r Record) SuggestionByQuestion(question string) (Suggestion, bool) {
	i := slices.IndexFunc(r.suggestions, func(s Suggestion) bool { return s.question == question })
	if i < 0 {
		return Suggestion{}, false
	}
	return r.suggestions[i], true
}

// WithContent replaces fields, metadata and vectors, keeping id, responses and suggestions.
func (r Record) WithContent(externalID string, fields, metadata map[string]any, vectors map[string][]float32) Record {
	r.externalID = externalID
	r.fields = fields
	r.metadata = metadata
	r.vectors = vectors
	r.updatedAt = time.Now().UnixMilli()
	return r
}

// WithResponse replaces the user's response and recomputes the status.
func (r Record) WithResponse(resp Response, dist Distribution) Record {
	out := slices.DeleteFunc(slices.Clone(r.responses), func(x Response) bool { return x.user == resp.user })
	r.responses = append(out, resp)
	r.status = ComputeStatus(r.responses, dist)
	r.updatedAt = time.Now().UnixMilli()
	return r
}

// WithoutResponse removes the user's response and recomputes the status.
func (r Record) WithoutResponse(user string, dist Distribution) Record {
	r.responses = slices.DeleteFunc(slices.Clone(r.responses), func(x Response) bool { return x.user == user })
	r.status = ComputeStatus(r.responses, dist)
	r.updatedAt = time.Now().UnixMilli()
	return r
}

// WithSuggestion replaces the question's suggestion.
func (r Record) WithSuggestion(s Suggestion) Record {
	out := slices.DeleteFunc(slices.Clone(r.suggestions), func(x Suggestion) bool { return x.question == s.question })
	r.suggestions = append(out, s)
	r.updatedAt = time.Now().UnixMilli()
	return r
}

// WithVector sets one vector.
func (r Record) WithVector(name string, value []float32) Record {
	vectors := maps.Clone(r.vectors)
	if vectors == nil {
		vectors = make(map[string][]float32, 1)
	}
	vectors[name] = value
	r.vectors = vectors
	r.updatedAt = time.Now().UnixMilli()
	return r
}

// ComputeStatus derives the record status from the submitted response count.
func ComputeStatus(responses []Response, dist Distribution) RecordStatus {
	minSubmitted := dist.MinSubmitted
	if minSubmitted <= 0 {
		minSubmitted = 1
	}
	submitted := 0
	for _, resp := range responses {
		if resp.status == ResponseSubmitted {
			submitted++
		}
	}
	if submitted >= minSubmitted {
		return RecordCompleted
	}
	return RecordPending
}
