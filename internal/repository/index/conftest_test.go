package index

import (
	"context"
	"testing"

	"github.com/kailas-cloud/annosearch/internal/db"
	"github.com/kailas-cloud/annosearch/internal/domain/schema"
	"github.com/kailas-cloud/annosearch/internal/mapping"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	createIndexFn func(ctx context.Context, def *db.IndexDefinition) error
	alterIndexFn  func(ctx context.Context, name string, fields []db.IndexField) error
	dropIndexFn   func(ctx context.Context, name string) error
	indexExistsFn func(ctx context.Context, name string) (bool, error)
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) AlterIndex(ctx context.Context, name string, fields []db.IndexField) error {
	if m.alterIndexFn != nil {
		return m.alterIndexFn(ctx, name, fields)
	}
	return nil
}

func (m *mockStore) DropIndex(ctx context.Context, name string) error {
	if m.dropIndexFn != nil {
		return m.dropIndexFn(ctx, name)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return false, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, "test:"), ms
}

func testSpec(t *testing.T) mapping.Spec {
	t.Helper()
	ds := schema.ReconstructDataset(schema.DatasetState{
		ID:        "ds-1",
		Name:      "reviews",
		Workspace: "default",
		Status:    schema.DatasetReady,
		Fields: []schema.Field{
			schema.ReconstructField("text", "", true, schema.TextFieldSettings{}),
			schema.ReconstructField("image", "", false, schema.ImageFieldSettings{}),
		},
		Questions: []schema.Question{
			schema.ReconstructQuestion("comment", "", "", false, schema.TextQuestionSettings{}),
			schema.ReconstructQuestion("rating", "", "", false, schema.RatingQuestionSettings{
				Options: []schema.RatingOption{{Value: 1}, {Value: 2}},
			}),
			schema.ReconstructQuestion("label", "", "", true, schema.LabelSelectionSettings{
				Options: []schema.Option{{Value: "pos"}, {Value: "neg"}},
			}),
		},
		Metadata: []schema.MetadataProperty{
			schema.ReconstructMetadataProperty("genre", "", schema.TermsMetadataSettings{}, true),
			schema.ReconstructMetadataProperty("year", "", schema.IntegerMetadataSettings{}, true),
		},
		Vectors: []schema.VectorSettings{schema.ReconstructVectorSettings("emb", "", 3)},
	})
	spec, err := mapping.Build(ds)
	if err != nil {
		t.Fatalf("mapping.Build: %v", err)
	}
	return spec
}
