package mapping

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/annosearch/internal/domain"
	"github.com/kailas-cloud/annosearch/internal/domain/schema"
)

func int64Ptr(v int64) *int64 { return &v }

func option(values ...string) []schema.Option {
	out := make([]schema.Option, len(values))
	for i, v := range values {
		out[i] = schema.Option{Value: v, Text: v}
	}
	return out
}

func testDataset(t *testing.T) schema.Dataset {
	t.Helper()
	ds, err := schema.NewDataset("reviews", "default", "", false, schema.Distribution{})
	if err != nil {
		t.Fatalf("NewDataset: %v", err)
	}

	fields := []schema.Field{
		schema.ReconstructField("text", "Text", true, schema.TextFieldSettings{}),
		schema.ReconstructField("image", "Image", false, schema.ImageFieldSettings{}),
	}
	for _, f := range fields {
		if ds, err = ds.WithField(f); err != nil {
			t.Fatalf("WithField: %v", err)
		}
	}

	questions := []schema.Question{
		schema.ReconstructQuestion("comment", "", "", false, schema.TextQuestionSettings{}),
		schema.ReconstructQuestion("rating", "", "", false, schema.RatingQuestionSettings{
			Options: []schema.RatingOption{{Value: 1}, {Value: 2}},
		}),
		schema.ReconstructQuestion("label", "", "", true, schema.LabelSelectionSettings{Options: option("pos", "neg")}),
		schema.ReconstructQuestion("topics", "", "", false, schema.MultiLabelSelectionSettings{Options: option("a", "b")}),
		schema.ReconstructQuestion("order", "", "", false, schema.RankingSettings{Options: option("x", "y")}),
		schema.ReconstructQuestion("entities", "", "", false, schema.SpanSettings{Field: "text", Options: option("PER")}),
	}
	for _, q := range questions {
		if ds, err = ds.WithQuestion(q); err != nil {
			t.Fatalf("WithQuestion %s: %v", q.Name(), err)
		}
	}

	props := []schema.MetadataProperty{
		schema.ReconstructMetadataProperty("genre", "", schema.TermsMetadataSettings{Values: []string{"a"}}, true),
		schema.ReconstructMetadataProperty("year", "", schema.IntegerMetadataSettings{Min: int64Ptr(1900)}, true),
		schema.ReconstructMetadataProperty("price", "", schema.FloatMetadataSettings{}, true),
	}
	for _, p := range props {
		if ds, err = ds.WithMetadataProperty(p); err != nil {
			t.Fatalf("WithMetadataProperty: %v", err)
		}
	}

	vs := schema.ReconstructVectorSettings("emb", "", 4)
	if ds, err = ds.WithVectorSettings(vs); err != nil {
		t.Fatalf("WithVectorSettings: %v", err)
	}
	return ds
}

func TestBuild_RecordProperties(t *testing.T) {
	spec, err := Build(testDataset(t))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	want := map[string]schema.IndexType{
		"id":          schema.IndexKeyword,
		"external_id": schema.IndexKeyword,
		"status":      schema.IndexKeyword,
		"inserted_at": schema.IndexDate,
		"updated_at":  schema.IndexDate,
		"fields.text": schema.IndexText,
	}
	for path, typ := range want {
		p, ok := spec.Property(path)
		if !ok {
			t.Errorf("missing property %q", path)
			continue
		}
		if p.Type != typ {
			t.Errorf("%s type = %s, want %s", path, p.Type, typ)
		}
	}
	if _, ok := spec.Property("fields.image"); ok {
		t.Error("non-text fields must not be mapped")
	}

	vec, ok := spec.Property("vectors.emb")
	if !ok || vec.Type != schema.IndexDenseVector || vec.Dims != 4 {
		t.Errorf("vectors.emb = %+v", vec)
	}

	status, ok := spec.Template("responses.*.status")
	if !ok || status.Type != schema.IndexKeyword {
		t.Errorf("responses.*.status = %+v", status)
	}
}

func TestBuild_QuestionTemplates(t *testing.T) {
	spec, err := Build(testDataset(t))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	tests := []struct {
		question string
		typ      schema.IndexType
		index    bool
	}{
		{"comment", schema.IndexText, false},
		{"rating", schema.IndexInteger, true},
		{"label", schema.IndexKeyword, true},
		{"topics", schema.IndexKeyword, true},
		{"order", schema.IndexKeyword, true},
		{"entities", schema.IndexKeyword, true},
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			tpl, ok := spec.Template("responses.*.values." + tt.question)
			if !ok {
				t.Fatal("missing response template")
			}
			if tpl.Type != tt.typ || tpl.Index != tt.index {
				t.Errorf("template = %s index=%v, want %s index=%v", tpl.Type, tpl.Index, tt.typ, tt.index)
			}

			sugg, ok := spec.Property(tt.question + ".suggestion")
			if !ok || sugg.Type != tt.typ {
				t.Errorf("suggestion property = %+v", sugg)
			}
			if score, _ := spec.Property(tt.question + ".suggestion.score"); score.Type != schema.IndexFloat {
				t.Errorf("suggestion score type = %s", score.Type)
			}
		})
	}
}

func TestBuild_MetadataTemplates(t *testing.T) {
	spec, err := Build(testDataset(t))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	for name, typ := range map[string]schema.IndexType{
		"genre": schema.IndexKeyword,
		"year":  schema.IndexInteger,
		"price": schema.IndexFloat,
	} {
		matches := 0
		for _, tpl := range spec.DynamicTemplates {
			if tpl.PathMatch == "metadata."+name {
				matches++
				if tpl.Type != typ {
					t.Errorf("metadata.%s type = %s, want %s", name, tpl.Type, typ)
				}
			}
		}
		if matches != 1 {
			t.Errorf("metadata.%s entries = %d, want exactly 1", name, matches)
		}
	}
}

func TestBuild_ConflictingQuestion(t *testing.T) {
	ds := testDataset(t)
	state := schema.DatasetState{
		ID:     ds.ID(),
		Name:   ds.Name(),
		Fields: ds.Fields(),
		Questions: append(ds.Questions(),
			schema.ReconstructQuestion("label", "", "", false, schema.RatingQuestionSettings{
				Options: []schema.RatingOption{{Value: 1}, {Value: 2}},
			})),
	}

	_, err := Build(schema.ReconstructDataset(state))
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("err = %v, want ErrConfiguration", err)
	}
}

func TestBuild_ReservedQuestionName(t *testing.T) {
	state := schema.DatasetState{
		Questions: []schema.Question{
			schema.ReconstructQuestion("metadata", "", "", true, schema.TextQuestionSettings{}),
		},
	}
	if _, err := Build(schema.ReconstructDataset(state)); !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("err = %v, want ErrConfiguration", err)
	}
}

func TestApply_Idempotent(t *testing.T) {
	spec, err := Build(testDataset(t))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	prop := schema.ReconstructMetadataProperty("score", "", schema.FloatMetadataSettings{}, true)
	delta := MetadataPropertyDelta(prop)

	once, err := spec.Apply(delta)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	twice, err := once.Apply(delta)
	if err != nil {
		t.Fatalf("Apply twice: %v", err)
	}

	if len(twice.DynamicTemplates) != len(once.DynamicTemplates) {
		t.Errorf("templates = %d after second apply, want %d", len(twice.DynamicTemplates), len(once.DynamicTemplates))
	}
	if len(once.DynamicTemplates) != len(spec.DynamicTemplates)+1 {
		t.Errorf("templates = %d, want %d", len(once.DynamicTemplates), len(spec.DynamicTemplates)+1)
	}
	if len(spec.DynamicTemplates) == len(once.DynamicTemplates) {
		t.Error("Apply must not mutate the receiver")
	}

	vecDelta := VectorSettingsDelta(schema.ReconstructVectorSettings("emb2", "", 8))
	v1, _ := once.Apply(vecDelta)
	v2, _ := v1.Apply(vecDelta)
	if len(v1.Properties) != len(v2.Properties) {
		t.Errorf("properties = %d vs %d", len(v1.Properties), len(v2.Properties))
	}
}

func TestApply_Conflict(t *testing.T) {
	spec, _ := Build(testDataset(t))
	terms := schema.ReconstructMetadataProperty("year", "", schema.TermsMetadataSettings{}, true)
	if _, err := spec.Apply(MetadataPropertyDelta(terms)); !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("err = %v, want ErrConfiguration", err)
	}

	vec := schema.ReconstructVectorSettings("emb", "", 16)
	if _, err := spec.Apply(VectorSettingsDelta(vec)); !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("err = %v, want ErrConfiguration for changed dims", err)
	}
}

func TestSpec_Document(t *testing.T) {
	spec, _ := Build(testDataset(t))
	doc := spec.Document()

	mappings, ok := doc["mappings"].(map[string]any)
	if !ok {
		t.Fatalf("document = %v", doc)
	}
	props := mappings["properties"].(map[string]any)
	comment := props["comment.suggestion"].(map[string]any)
	if comment["type"] != "text" || comment["index"] != false {
		t.Errorf("comment.suggestion = %v", comment)
	}
	emb := props["vectors.emb"].(map[string]any)
	if emb["dims"] != 4 {
		t.Errorf("vectors.emb = %v", emb)
	}

	templates := mappings["dynamic_templates"].([]map[string]any)
	found := false
	for _, tpl := range templates {
		if body, ok := tpl["metadata_year"].(map[string]any); ok {
			found = true
			if body["path_match"] != "metadata.year" {
				t.Errorf("metadata_year = %v", body)
			}
		}
	}
	if !found {
		t.Error("missing metadata_year template")
	}
}

func TestIndexName(t *testing.T) {
	if got := IndexName("abc"); got != "rg.abc" {
		t.Errorf("IndexName = %q", got)
	}
}
