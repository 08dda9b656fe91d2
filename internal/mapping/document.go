package mapping

import (
	"maps"
	"slices"

	"github.com/kailas-cloud/annosearch/internal/domain/schema"
	"github.com/kailas-cloud/annosearch/internal/domain/search/scope"
)

// JSON paths of the per-user projections.
const (
	PathResponseUsers  = "$.search.response_users"
	PathResponseStatus = "$.search.response_status"
)

// Document is the stored form of a record: the record itself plus the
// projections the index reads. Response values and statuses are projected
// as "user:value" tags so one index field serves every user.
type Document struct {
	ID          string                   `json:"id"`
	ExternalID  string                   `json:"external_id,omitempty"`
	Status      string                   `json:"status"`
	InsertedAt  int64                    `json:"inserted_at"`
	UpdatedAt   int64                    `json:"updated_at"`
	Fields      map[string]any           `json:"fields"`
	Metadata    map[string]any           `json:"metadata,omitempty"`
	Responses   map[string]ResponseDoc   `json:"responses,omitempty"`
	Suggestions map[string]SuggestionDoc `json:"suggestions,omitempty"`
	Vectors     map[string][]float32     `json:"vectors,omitempty"`
	Search      Projection               `json:"search"`
}

// ResponseDoc is one user's response.
type ResponseDoc struct {
	Status    string         `json:"status"`
	Values    map[string]any `json:"values,omitempty"`
	UpdatedAt int64          `json:"updated_at"`
}

// SuggestionDoc is the suggestion for one question.
type SuggestionDoc struct {
	Value any      `json:"value"`
	Score *float64 `json:"score,omitempty"`
	Agent string   `json:"agent,omitempty"`
	Type  string   `json:"type,omitempty"`
}

// Projection holds keyword-flattened values for filtering.
type Projection struct {
	ResponseUsers  []string            `json:"response_users,omitempty"`
	ResponseStatus []string            `json:"response_status,omitempty"`
	Responses      map[string][]string `json:"responses,omitempty"`
	Suggestions    map[string][]string `json:"suggestions,omitempty"`
}

// JSONPath returns where a scope's indexed values live in a Document.
// Per-user response scopes resolve to the shared projection.
func JSONPath(s scope.Scope) string {
	switch s.Kind() {
	case scope.KindRecord:
		return "$." + s.Property()
	case scope.KindMetadata:
		return "$.metadata." + s.Name()
	case scope.KindSuggestion:
		if s.Property() == scope.SuggestionValue {
			return "$.search.suggestions." + s.Name()
		}
		return "$.suggestions." + s.Name() + "." + s.Property()
	case scope.KindResponse:
		if s.Property() == scope.ResponseStatus {
			return PathResponseStatus
		}
		return ResponseValuePath(s.Name())
	case scope.KindField:
		return "$.fields." + s.Name()
	case scope.KindVector:
		return "$.vectors." + s.Name()
	default:
		return ""
	}
}

// ResponseValuePath is where every user's values for a question are projected.
func ResponseValuePath(question string) string {
	return "$.search.responses." + question
}

// NewDocument builds the stored document of a record.
func NewDocument(r schema.Record) Document {
	doc := Document{
		ID:         r.ID(),
		ExternalID: r.ExternalID(),
		Status:     string(r.Status()),
		InsertedAt: r.InsertedAt(),
		UpdatedAt:  r.UpdatedAt(),
		Fields:     r.Fields(),
		Metadata:   r.Metadata(),
		Vectors:    r.Vectors(),
	}

	if resps := r.Responses(); len(resps) > 0 {
		doc.Responses = make(map[string]ResponseDoc, len(resps))
		doc.Search.Responses = make(map[string][]string)
		for _, resp := range resps {
			doc.Responses[resp.User()] = ResponseDoc{
				Status:    string(resp.Status()),
				Values:    resp.Values(),
				UpdatedAt: resp.UpdatedAt(),
			}
			doc.Search.ResponseUsers = append(doc.Search.ResponseUsers, resp.User())
			doc.Search.ResponseStatus = append(doc.Search.ResponseStatus, userTag(resp.User(), string(resp.Status())))
			for q, v := range resp.Values() {
				for _, term := range schema.KeywordValues(v) {
					doc.Search.Responses[q] = append(doc.Search.Responses[q], userTag(resp.User(), term))
				}
			}
		}
	}

	if suggs := r.Suggestions(); len(suggs) > 0 {
		doc.Suggestions = make(map[string]SuggestionDoc, len(suggs))
		doc.Search.Suggestions = make(map[string][]string, len(suggs))
		for _, s := range suggs {
			doc.Suggestions[s.Question()] = SuggestionDoc{
				Value: s.Value(),
				Score: s.Score(),
				Agent: s.Agent(),
				Type:  string(s.Type()),
			}
			if terms := schema.KeywordValues(s.Value()); len(terms) > 0 {
				doc.Search.Suggestions[s.Question()] = terms
			}
		}
	}

	return doc
}

// Record converts the document back into a record.
func (d Document) Record() schema.Record {
	var responses []schema.Response
	for _, user := range slices.Sorted(maps.Keys(d.Responses)) {
		rd := d.Responses[user]
		responses = append(responses, schema.ReconstructResponse(user, schema.ResponseStatus(rd.Status), rd.Values, rd.UpdatedAt))
	}

	var suggestions []schema.Suggestion
	for _, q := range slices.Sorted(maps.Keys(d.Suggestions)) {
		sd := d.Suggestions[q]
		suggestions = append(suggestions, schema.ReconstructSuggestion(q, sd.Value, sd.Score, sd.Agent, schema.SuggestionType(sd.Type)))
	}

	return schema.ReconstructRecord(schema.RecordState{
		ID:          d.ID,
		ExternalID:  d.ExternalID,
		Fields:      d.Fields,
		Metadata:    d.Metadata,
		Status:      schema.RecordStatus(d.Status),
		Responses:   responses,
		Suggestions: suggestions,
		Vectors:     d.Vectors,
		InsertedAt:  d.InsertedAt,
		UpdatedAt:   d.UpdatedAt,
	})
}

func userTag(user, value string) string {
	return user + ":" + value
}
