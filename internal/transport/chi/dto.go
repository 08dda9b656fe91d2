package chi

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kailas-cloud/annosearch/internal/domain"
	"github.com/kailas-cloud/annosearch/internal/domain/schema"
	"github.com/kailas-cloud/annosearch/internal/domain/search/request"
	"github.com/kailas-cloud/annosearch/internal/domain/search/result"
	healthuc "github.com/kailas-cloud/annosearch/internal/usecase/health"
	recorduc "github.com/kailas-cloud/annosearch/internal/usecase/record"
)

type healthResponse struct {
	Status  string                          `json:"status"`
	Version string                          `json:"version"`
	Checks  map[string]healthuc.CheckResult `json:"checks"`
}

// --- Datasets ---

type distributionDTO struct {
	Strategy     string `json:"strategy"`
	MinSubmitted int    `json:"min_submitted"`
}

type createDatasetRequest struct {
	Name               string           `json:"name"`
	Workspace          string           `json:"workspace"`
	Guidelines         string           `json:"guidelines"`
	AllowExtraMetadata bool             `json:"allow_extra_metadata"`
	Distribution       *distributionDTO `json:"distribution"`
}

type datasetResponse struct {
	ID                 string                `json:"id"`
	Name               string                `json:"name"`
	Workspace          string                `json:"workspace"`
	Guidelines         string                `json:"guidelines,omitempty"`
	Status             string                `json:"status"`
	AllowExtraMetadata bool                  `json:"allow_extra_metadata"`
	Distribution       distributionDTO       `json:"distribution"`
	Fields             []fieldDTO            `json:"fields"`
	Questions          []questionDTO         `json:"questions"`
	MetadataProperties []metadataPropertyDTO `json:"metadata_properties"`
	VectorsSettings    []vectorSettingsDTO   `json:"vectors_settings"`
	InsertedAt         time.Time             `json:"inserted_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
}

type datasetsResponse struct {
	Items []datasetResponse `json:"items"`
}

// Settings payloads carry their variant in "type".
type fieldDTO struct {
	Name     string          `json:"name"`
	Title    string          `json:"title"`
	Required bool            `json:"required"`
	Settings json.RawMessage `json:"settings"`
}

type questionDTO struct {
	Name        string          `json:"name"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Required    bool            `json:"required"`
	Settings    json.RawMessage `json:"settings"`
}

type metadataPropertyDTO struct {
	Name                 string          `json:"name"`
	Title                string          `json:"title"`
	Settings             json.RawMessage `json:"settings"`
	VisibleForAnnotators *bool           `json:"visible_for_annotators,omitempty"`
}

type vectorSettingsDTO struct {
	Name       string `json:"name"`
	Title      string `json:"title"`
	Dimensions int    `json:"dimensions"`
}

type mappingResponse struct {
	Index    string         `json:"index"`
	Mappings map[string]any `json:"mappings"`
}

// settingsType reads the "type" discriminator of a settings payload.
func settingsType(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", domain.Validationf("settings are required")
	}
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return "", domain.Validationf("invalid settings: %v", err)
	}
	if head.Type == "" {
		return "", domain.Validationf("settings type is required")
	}
	return head.Type, nil
}

// withType renders settings with their discriminator.
func withType(settings any, typ string) (json.RawMessage, error) {
	raw, err := json.Marshal(settings)
	if err != nil {
		return nil, err
	}
	m := map[string]any{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	m["type"] = typ
	return json.Marshal(m)
}

func (d fieldDTO) toDomain() (schema.Field, error) {
	typ, err := settingsType(d.Settings)
	if err != nil {
		return schema.Field{}, err
	}
	settings, err := schema.DecodeFieldSettings(schema.FieldType(typ), d.Settings)
	if err != nil {
		return schema.Field{}, domain.Validationf("%v", err)
	}
	f, err := schema.NewField(d.Name, d.Title, d.Required, settings)
	if err != nil {
		return schema.Field{}, domain.Validationf("%v", err)
	}
	return f, nil
}

func (d questionDTO) toDomain() (schema.Question, error) {
	typ, err := settingsType(d.Settings)
	if err != nil {
		return schema.Question{}, err
	}
	settings, err := schema.DecodeQuestionSettings(schema.QuestionType(typ), d.Settings)
	if err != nil {
		return schema.Question{}, domain.Validationf("%v", err)
	}
	q, err := schema.NewQuestion(d.Name, d.Title, d.Description, d.Required, settings)
	if err != nil {
		return schema.Question{}, domain.Validationf("%v", err)
	}
	return q, nil
}

func (d metadataPropertyDTO) toDomain() (schema.MetadataProperty, error) {
	typ, err := settingsType(d.Settings)
	if err != nil {
		return schema.MetadataProperty{}, err
	}
	settings, err := schema.DecodeMetadataSettings(schema.MetadataType(typ), d.Settings)
	if err != nil {
		return schema.MetadataProperty{}, domain.Validationf("%v", err)
	}
	visible := true
	if d.VisibleForAnnotators != nil {
		visible = *d.VisibleForAnnotators
	}
	p, err := schema.NewMetadataProperty(d.Name, d.Title, settings, visible)
	if err != nil {
		return schema.MetadataProperty{}, domain.Validationf("%v", err)
	}
	return p, nil
}

func (d vectorSettingsDTO) toDomain() (schema.VectorSettings, error) {
	v, err := schema.NewVectorSettings(d.Name, d.Title, d.Dimensions)
	if err != nil {
		return schema.VectorSettings{}, domain.Validationf("%v", err)
	}
	return v, nil
}

func datasetToResponse(ds schema.Dataset) (datasetResponse, error) {
	out := datasetResponse{
		ID:                 ds.ID(),
		Name:               ds.Name(),
		Workspace:          ds.Workspace(),
		Guidelines:         ds.Guidelines(),
		Status:             string(ds.Status()),
		AllowExtraMetadata: ds.AllowExtraMetadata(),
		Distribution:       distributionDTO{Strategy: "overlap", MinSubmitted: ds.Distribution().MinSubmitted},
		Fields:             make([]fieldDTO, 0, len(ds.Fields())),
		Questions:          make([]questionDTO, 0, len(ds.Questions())),
		MetadataProperties: make([]metadataPropertyDTO, 0, len(ds.MetadataProperties())),
		VectorsSettings:    make([]vectorSettingsDTO, 0, len(ds.VectorsSettings())),
		InsertedAt:         time.UnixMilli(ds.InsertedAt()).UTC(),
		UpdatedAt:          time.UnixMilli(ds.UpdatedAt()).UTC(),
	}

	for _, f := range ds.Fields() {
		raw, err := withType(f.Settings(), string(f.Type()))
		if err != nil {
			return datasetResponse{}, fmt.Errorf("render field %s: %w", f.Name(), err)
		}
		out.Fields = append(out.Fields, fieldDTO{Name: f.Name(), Title: f.Title(), Required: f.Required(), Settings: raw})
	}
	for _, q := range ds.Questions() {
		raw, err := withType(q.Settings(), string(q.Type()))
		if err != nil {
			return datasetResponse{}, fmt.Errorf("render question %s: %w", q.Name(), err)
		}
		out.Questions = append(out.Questions, questionDTO{
			Name: q.Name(), Title: q.Title(), Description: q.Description(), Required: q.Required(), Settings: raw,
		})
	}
	for _, p := range ds.MetadataProperties() {
		raw, err := withType(p.Settings(), string(p.Type()))
		if err != nil {
			return datasetResponse{}, fmt.Errorf("render metadata property %s: %w", p.Name(), err)
		}
		visible := p.VisibleForAnnotators()
		out.MetadataProperties = append(out.MetadataProperties, metadataPropertyDTO{
			Name: p.Name(), Title: p.Title(), Settings: raw, VisibleForAnnotators: &visible,
		})
	}
	for _, v := range ds.VectorsSettings() {
		out.VectorsSettings = append(out.VectorsSettings, vectorSettingsDTO{
			Name: v.Name(), Title: v.Title(), Dimensions: v.Dimensions(),
		})
	}
	return out, nil
}

// --- Records ---

type valueDTO struct {
	Value any `json:"value"`
}

type suggestionDTO struct {
	Question string   `json:"question_name"`
	Value    any      `json:"value"`
	Score    *float64 `json:"score,omitempty"`
	Agent    string   `json:"agent,omitempty"`
	Type     string   `json:"type,omitempty"`
}

type responseDTO struct {
	User      string              `json:"user"`
	Status    string              `json:"status"`
	Values    map[string]valueDTO `json:"values,omitempty"`
	UpdatedAt time.Time           `json:"updated_at"`
}

type recordDTO struct {
	ID          string               `json:"id"`
	ExternalID  string               `json:"external_id,omitempty"`
	Status      string               `json:"status"`
	Fields      map[string]any       `json:"fields"`
	Metadata    map[string]any       `json:"metadata,omitempty"`
	Responses   []responseDTO        `json:"responses,omitempty"`
	Suggestions []suggestionDTO      `json:"suggestions,omitempty"`
	Vectors     map[string][]float32 `json:"vectors,omitempty"`
	InsertedAt  time.Time            `json:"inserted_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

type recordCreateDTO struct {
	ID          string               `json:"id"`
	ExternalID  string               `json:"external_id"`
	Fields      map[string]any       `json:"fields"`
	Metadata    map[string]any       `json:"metadata"`
	Vectors     map[string][]float32 `json:"vectors"`
	Suggestions []suggestionDTO      `json:"suggestions"`
}

type recordsBulkRequest struct {
	Items []recordCreateDTO `json:"items"`
}

type responseUpsertRequest struct {
	Status string              `json:"status"`
	Values map[string]valueDTO `json:"values"`
}

type recordsResponse struct {
	Items []recordDTO `json:"items"`
	Total int         `json:"total"`
}

type deleteRecordsResponse struct {
	Deleted int `json:"deleted"`
}

type searchItemDTO struct {
	Record     recordDTO `json:"record"`
	QueryScore *float64  `json:"query_score"`
}

type searchRecordsResponse struct {
	Items []searchItemDTO `json:"items"`
	Total int             `json:"total"`
}

func (d recordCreateDTO) toItem() recorduc.Item {
	it := recorduc.Item{
		ID:         d.ID,
		ExternalID: d.ExternalID,
		Fields:     d.Fields,
		Metadata:   d.Metadata,
		Vectors:    d.Vectors,
	}
	for _, s := range d.Suggestions {
		it.Suggestions = append(it.Suggestions, s.toInput())
	}
	return it
}

func (d suggestionDTO) toInput() recorduc.SuggestionInput {
	return recorduc.SuggestionInput{
		Question: d.Question,
		Value:    d.Value,
		Score:    d.Score,
		Agent:    d.Agent,
		Type:     schema.SuggestionType(d.Type),
	}
}

func (d responseUpsertRequest) toInput(user string) (recorduc.ResponseInput, error) {
	status, err := schema.ParseResponseStatus(d.Status)
	if err != nil {
		return recorduc.ResponseInput{}, domain.Validationf("%v", err)
	}
	var values map[string]any
	if len(d.Values) > 0 {
		values = make(map[string]any, len(d.Values))
		for q, v := range d.Values {
			values[q] = v.Value
		}
	}
	return recorduc.ResponseInput{User: user, Status: status, Values: values}, nil
}

func recordToDTO(r schema.Record) recordDTO {
	out := recordDTO{
		ID:         r.ID(),
		ExternalID: r.ExternalID(),
		Status:     string(r.Status()),
		Fields:     r.Fields(),
		Metadata:   r.Metadata(),
		Vectors:    r.Vectors(),
		InsertedAt: time.UnixMilli(r.InsertedAt()).UTC(),
		UpdatedAt:  time.UnixMilli(r.UpdatedAt()).UTC(),
	}
	for _, resp := range r.Responses() {
		dto := responseDTO{
			User:      resp.User(),
			Status:    string(resp.Status()),
			UpdatedAt: time.UnixMilli(resp.UpdatedAt()).UTC(),
		}
		if len(resp.Values()) > 0 {
			dto.Values = make(map[string]valueDTO, len(resp.Values()))
			for q, v := range resp.Values() {
				dto.Values[q] = valueDTO{Value: v}
			}
		}
		out.Responses = append(out.Responses, dto)
	}
	for _, s := range r.Suggestions() {
		out.Suggestions = append(out.Suggestions, suggestionDTO{
			Question: s.Question(),
			Value:    s.Value(),
			Score:    s.Score(),
			Agent:    s.Agent(),
			Type:     string(s.Type()),
		})
	}
	return out
}

// joinHits pairs hits with their records, keeping hit order.
// Hits whose record vanished since the search are dropped.
func joinHits(page result.Page, records []schema.Record) []searchItemDTO {
	byID := make(map[string]schema.Record, len(records))
	for _, r := range records {
		byID[r.ID()] = r
	}
	items := make([]searchItemDTO, 0, len(page.Items))
	for _, hit := range page.Items {
		rec, ok := byID[hit.RecordID()]
		if !ok {
			continue
		}
		items = append(items, searchItemDTO{Record: recordToDTO(rec), QueryScore: hit.Score()})
	}
	return items
}

// --- Search ---

type searchRequest struct {
	Query   *searchQueryDTO `json:"query"`
	Filters *filtersDTO     `json:"filters"`
	Sort    []sortDTO       `json:"sort"`
}

type searchQueryDTO struct {
	Text   *textQueryDTO   `json:"text"`
	Vector *vectorQueryDTO `json:"vector"`
}

type textQueryDTO struct {
	Q     string `json:"q"`
	Field string `json:"field"`
}

type vectorQueryDTO struct {
	Name     string    `json:"name"`
	Value    []float32 `json:"value"`
	RecordID string    `json:"record_id"`
	Order    string    `json:"order"`
}

type filtersDTO struct {
	And []filterDTO `json:"and"`
}

type filterDTO struct {
	Type   string   `json:"type"`
	Scope  scopeDTO `json:"scope"`
	Values []string `json:"values"`
	GE     *float64 `json:"ge"`
	LE     *float64 `json:"le"`
}

type sortDTO struct {
	Scope scopeDTO `json:"scope"`
	Order string   `json:"order"`
}

// scopeDTO names a filterable dimension. Metadata scopes use
// metadata_property, suggestion and response scopes use question.
type scopeDTO struct {
	Entity           string `json:"entity"`
	MetadataProperty string `json:"metadata_property"`
	Question         string `json:"question"`
	Property         string `json:"property"`
}

func (d scopeDTO) toRef() request.ScopeRef {
	ref := request.ScopeRef{Entity: request.Entity(d.Entity), Property: d.Property}
	switch ref.Entity {
	case request.EntityMetadata:
		ref.Name = d.MetadataProperty
	case request.EntitySuggestion, request.EntityResponse:
		ref.Name = d.Question
	}
	return ref
}

// params converts the body into search parameters; pagination and
// response-status filtering come from the query string.
func (d searchRequest) params() request.Params {
	var p request.Params
	if d.Query != nil {
		if t := d.Query.Text; t != nil {
			p.Text = &request.TextQuery{Q: t.Q, Field: t.Field}
		}
		if v := d.Query.Vector; v != nil {
			p.Vector = &request.VectorQuery{
				Name:     v.Name,
				Value:    v.Value,
				RecordID: v.RecordID,
				Order:    request.VectorOrder(v.Order),
			}
		}
	}
	if d.Filters != nil {
		for _, f := range d.Filters.And {
			p.Filters = append(p.Filters, request.Filter{
				Type:   request.FilterType(f.Type),
				Scope:  f.Scope.toRef(),
				Values: f.Values,
				GE:     f.GE,
				LE:     f.LE,
			})
		}
	}
	for _, s := range d.Sort {
		p.Sort = append(p.Sort, request.Sort{Scope: s.Scope.toRef(), Order: request.Order(s.Order)})
	}
	return p
}
