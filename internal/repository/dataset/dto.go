package dataset

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/annosearch/internal/domain/schema"
)

// fieldRow is the JSON-serializable representation of a field for HSET.
type fieldRow struct {
	Name     string          `json:"name"`
	Title    string          `json:"title"`
	Required bool            `json:"required"`
	Type     string          `json:"type"`
	Settings json.RawMessage `json:"settings"`
}

type questionRow struct {
	Name        string          `json:"name"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Required    bool            `json:"required"`
	Type        string          `json:"type"`
	Settings    json.RawMessage `json:"settings"`
}

type metadataRow struct {
	Name                 string          `json:"name"`
	Title                string          `json:"title"`
	Type                 string          `json:"type"`
	Settings             json.RawMessage `json:"settings"`
	VisibleForAnnotators bool            `json:"visible_for_annotators"`
}

type vectorRow struct {
	Name       string `json:"name"`
	Title      string `json:"title"`
	Dimensions int    `json:"dimensions"`
}

// datasetToHash converts a domain Dataset to a map for HSET.
func datasetToHash(ds schema.Dataset) (map[string]string, error) {
	fields := make([]fieldRow, len(ds.Fields()))
	for i, f := range ds.Fields() {
		raw, err := json.Marshal(f.Settings())
		if err != nil {
			return nil, fmt.Errorf("marshal field %s settings: %w", f.Name(), err)
		}
		fields[i] = fieldRow{Name: f.Name(), Title: f.Title(), Required: f.Required(), Type: string(f.Type()), Settings: raw}
	}

	questions := make([]questionRow, len(ds.Questions()))
	for i, q := range ds.Questions() {
		raw, err := json.Marshal(q.Settings())
		if err != nil {
			return nil, fmt.Errorf("marshal question %s settings: %w", q.Name(), err)
		}
		questions[i] = questionRow{
			Name: q.Name(), Title: q.Title(), Description: q.Description(),
			Required: q.Required(), Type: string(q.Type()), Settings: raw,
		}
	}

	metadata := make([]metadataRow, len(ds.MetadataProperties()))
	for i, p := range ds.MetadataProperties() {
		raw, err := json.Marshal(p.Settings())
		if err != nil {
			return nil, fmt.Errorf("marshal metadata property %s settings: %w", p.Name(), err)
		}
		metadata[i] = metadataRow{
			Name: p.Name(), Title: p.Title(), Type: string(p.Type()),
			Settings: raw, VisibleForAnnotators: p.VisibleForAnnotators(),
		}
	}

	vectors := make([]vectorRow, len(ds.VectorsSettings()))
	for i, v := range ds.VectorsSettings() {
		vectors[i] = vectorRow{Name: v.Name(), Title: v.Title(), Dimensions: v.Dimensions()}
	}

	m := map[string]string{
		"id":                   ds.ID(),
		"name":                 ds.Name(),
		"workspace":            ds.Workspace(),
		"guidelines":           ds.Guidelines(),
		"status":               string(ds.Status()),
		"allow_extra_metadata": strconv.FormatBool(ds.AllowExtraMetadata()),
		"min_submitted":        strconv.Itoa(ds.Distribution().MinSubmitted),
		"inserted_at":          strconv.FormatInt(ds.InsertedAt(), 10),
		"updated_at":           strconv.FormatInt(ds.UpdatedAt(), 10),
	}
	for key, rows := range map[string]any{
		"fields_json":    fields,
		"questions_json": questions,
		"metadata_json":  metadata,
		"vectors_json":   vectors,
	} {
		data, err := json.Marshal(rows)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", key, err)
		}
		m[key] = string(data)
	}
	return m, nil
}

// datasetFromHash hydrates a domain Dataset from an HGETALL result map.
func datasetFromHash(m map[string]string) (schema.Dataset, error) {
	insertedAt, err := strconv.ParseInt(m["inserted_at"], 10, 64)
	if err != nil {
		return schema.Dataset{}, fmt.Errorf("invalid inserted_at: %w", err)
	}
	updatedAt, err := strconv.ParseInt(m["updated_at"], 10, 64)
	if err != nil {
		return schema.Dataset{}, fmt.Errorf("invalid updated_at: %w", err)
	}

	dist := schema.DefaultDistribution()
	if v, ok := m["min_submitted"]; ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			dist.MinSubmitted = parsed
		}
	}

	var fieldRows []fieldRow
	var questionRows []questionRow
	var metadataRows []metadataRow
	var vectorRows []vectorRow
	for key, dst := range map[string]any{
		"fields_json":    &fieldRows,
		"questions_json": &questionRows,
		"metadata_json":  &metadataRows,
		"vectors_json":   &vectorRows,
	} {
		if raw := m[key]; raw != "" {
			if err := json.Unmarshal([]byte(raw), dst); err != nil {
				return schema.Dataset{}, fmt.Errorf("unmarshal %s: %w", key, err)
			}
		}
	}

	fields := make([]schema.Field, len(fieldRows))
	for i, r := range fieldRows {
		settings, err := schema.DecodeFieldSettings(schema.FieldType(r.Type), r.Settings)
		if err != nil {
			return schema.Dataset{}, fmt.Errorf("field %s: %w", r.Name, err)
		}
		fields[i] = schema.ReconstructField(r.Name, r.Title, r.Required, settings)
	}

	questions := make([]schema.Question, len(questionRows))
	for i, r := range questionRows {
		settings, err := schema.DecodeQuestionSettings(schema.QuestionType(r.Type), r.Settings)
		if err != nil {
			return schema.Dataset{}, fmt.Errorf("question %s: %w", r.Name, err)
		}
		questions[i] = schema.ReconstructQuestion(r.Name, r.Title, r.Description, r.Required, settings)
	}

	metadata := make([]schema.MetadataProperty, len(metadataRows))
	for i, r := range metadataRows {
		settings, err := schema.DecodeMetadataSettings(schema.MetadataType(r.Type), r.Settings)
		if err != nil {
			return schema.Dataset{}, fmt.Errorf("metadata property %s: %w", r.Name, err)
		}
		metadata[i] = schema.ReconstructMetadataProperty(r.Name, r.Title, settings, r.VisibleForAnnotators)
	}

	vectors := make([]schema.VectorSettings, len(vectorRows))
	for i, r := range vectorRows {
		vectors[i] = schema.ReconstructVectorSettings(r.Name, r.Title, r.Dimensions)
	}

	return schema.ReconstructDataset(schema.DatasetState{
		ID:                 m["id"],
		Name:               m["name"],
		Workspace:          m["workspace"],
		Guidelines:         m["guidelines"],
		Status:             schema.DatasetStatus(m["status"]),
		AllowExtraMetadata: m["allow_extra_metadata"] == "true",
		Distribution:       dist,
		Fields:             fields,
		Questions:          questions,
		Metadata:           metadata,
		Vectors:            vectors,
		InsertedAt:         insertedAt,
		UpdatedAt:          updatedAt,
	}), nil
}
