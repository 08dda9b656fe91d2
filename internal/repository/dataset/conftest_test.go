package dataset

import (
	"context"
	"testing"

	"github.com/kailas-cloud/annosearch/internal/db"
	"github.com/kailas-cloud/annosearch/internal/domain/schema"
)

const testPrefix = "test:"

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hsetFn         func(ctx context.Context, key string, fields map[string]string) error
	hgetAllFn      func(ctx context.Context, key string) (map[string]string, error)
	hgetAllMultiFn func(ctx context.Context, keys []string) ([]map[string]string, error)
	delFn          func(ctx context.Context, key string) error
	scanFn         func(ctx context.Context, pattern string) ([]string, error)
	setNXFn        func(ctx context.Context, key string, value []byte) (bool, error)
	getFn          func(ctx context.Context, key string) ([]byte, error)
}

func (m *mockStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if m.hsetFn != nil {
		return m.hsetFn(ctx, key, fields)
	}
	return nil
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hgetAllFn != nil {
		return m.hgetAllFn(ctx, key)
	}
	return map[string]string{}, nil
}

func (m *mockStore) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if m.hgetAllMultiFn != nil {
		return m.hgetAllMultiFn(ctx, keys)
	}
	return nil, nil
}

func (m *mockStore) Del(ctx context.Context, key string) error {
	if m.delFn != nil {
		return m.delFn(ctx, key)
	}
	return nil
}

func (m *mockStore) Scan(ctx context.Context, pattern string) ([]string, error) {
	if m.scanFn != nil {
		return m.scanFn(ctx, pattern)
	}
	return nil, nil
}

func (m *mockStore) SetNX(ctx context.Context, key string, value []byte) (bool, error) {
	if m.setNXFn != nil {
		return m.setNXFn(ctx, key, value)
	}
	return true, nil
}

func (m *mockStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, db.ErrKeyNotFound
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, testPrefix), ms
}

func int64Ptr(v int64) *int64 { return &v }

func testDataset(t *testing.T) schema.Dataset {
	t.Helper()
	return schema.ReconstructDataset(schema.DatasetState{
		ID:           "ds-1",
		Name:         "reviews",
		Workspace:    "default",
		Status:       schema.DatasetReady,
		Distribution: schema.Distribution{MinSubmitted: 2},
		Fields: []schema.Field{
			schema.ReconstructField("text", "Text", true, schema.TextFieldSettings{UseMarkdown: true}),
			schema.ReconstructField("image", "Image", false, schema.ImageFieldSettings{}),
		},
		Questions: []schema.Question{
			schema.ReconstructQuestion("label", "Label", "", true, schema.LabelSelectionSettings{
				Options: []schema.Option{{Value: "positive"}, {Value: "negative"}},
			}),
			schema.ReconstructQuestion("rating", "Rating", "how good", false, schema.RatingQuestionSettings{
				Options: []schema.RatingOption{{Value: 1}, {Value: 2}, {Value: 3}},
			}),
		},
		Metadata: []schema.MetadataProperty{
			schema.ReconstructMetadataProperty("genre", "Genre", schema.TermsMetadataSettings{Values: []string{"rock", "pop"}}, true),
			schema.ReconstructMetadataProperty("year", "Year", schema.IntegerMetadataSettings{Min: int64Ptr(1900)}, false),
		},
		Vectors: []schema.VectorSettings{
			schema.ReconstructVectorSettings("emb", "Embedding", 3),
		},
		InsertedAt: 1700000000000,
		UpdatedAt:  1700000001000,
	})
}
