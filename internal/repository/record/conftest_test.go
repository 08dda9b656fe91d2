package record

import (
	"context"
	"testing"

	"github.com/kailas-cloud/annosearch/internal/db"
	"github.com/kailas-cloud/annosearch/internal/domain/schema"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	jsonSetFn      func(ctx context.Context, key, path string, data []byte) error
	jsonSetMultiFn func(ctx context.Context, items []db.JSONSetItem) error
	jsonGetFn      func(ctx context.Context, key string, paths ...string) ([]byte, error)
	jsonGetMultiFn func(ctx context.Context, keys []string) ([][]byte, error)
	delFn          func(ctx context.Context, key string) error
	scanFn         func(ctx context.Context, pattern string) ([]string, error)
}

func (m *mockStore) JSONSet(ctx context.Context, key, path string, data []byte) error {
	if m.jsonSetFn != nil {
		return m.jsonSetFn(ctx, key, path, data)
	}
	return nil
}

func (m *mockStore) JSONSetMulti(ctx context.Context, items []db.JSONSetItem) error {
	if m.jsonSetMultiFn != nil {
		return m.jsonSetMultiFn(ctx, items)
	}
	return nil
}

func (m *mockStore) JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error) {
	if m.jsonGetFn != nil {
		return m.jsonGetFn(ctx, key, paths...)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockStore) JSONGetMulti(ctx context.Context, keys []string) ([][]byte, error) {
	if m.jsonGetMultiFn != nil {
		return m.jsonGetMultiFn(ctx, keys)
	}
	return make([][]byte, len(keys)), nil
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

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, "test:"), ms
}

const (
	recordA = "0b3c6f5e-8f7a-4d2b-9a61-6f1e2d3c4b5a"
	recordB = "1c4d7a6f-9a8b-4e3c-8b72-7a2f3e4d5c6b"
)

func testRecord(t *testing.T, id string) schema.Record {
	t.Helper()
	rec, err := schema.NewRecord(id, "ext-"+id[:4], map[string]any{"text": "my card was declined"},
		map[string]any{"genre": "rock"}, map[string][]float32{"emb": {0.1, 0.2, 0.3}})
	if err != nil {
		t.Fatalf("NewRecord: %v", err)
	}
	resp, err := schema.NewResponse("alice", schema.ResponseSubmitted, map[string]any{"label": "positive"})
	if err != nil {
		t.Fatalf("NewResponse: %v", err)
	}
	return rec.WithResponse(resp, schema.DefaultDistribution())
}
