package record

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/annosearch/internal/db/memory"
	"github.com/kailas-cloud/annosearch/internal/domain"
	"github.com/kailas-cloud/annosearch/internal/domain/schema"
	recordrepo "github.com/kailas-cloud/annosearch/internal/repository/record"
)

// --- Mocks ---

type mockRepo struct {
	records   map[string]schema.Record
	upsertErr error
	batches   int
}

func newMockRepo(records ...schema.Record) *mockRepo {
	m := &mockRepo{records: make(map[string]schema.Record)}
	for _, r := range records {
		m.records[r.ID()] = r
	}
	return m
}

func (m *mockRepo) Upsert(_ context.Context, _ string, rec schema.Record) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.records[rec.ID()] = rec
	return nil
}

func (m *mockRepo) UpsertMany(_ context.Context, _ string, records []schema.Record) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.batches++
	for _, r := range records {
		m.records[r.ID()] = r
	}
	return nil
}

func (m *mockRepo) Get(_ context.Context, _, id string) (schema.Record, error) {
	r, ok := m.records[id]
	if !ok {
		return schema.Record{}, domain.NotFoundf("record with id `%s` not found", id)
	}
	return r, nil
}

func (m *mockRepo) GetMany(_ context.Context, _ string, ids []string) ([]schema.Record, error) {
	var out []schema.Record
	for _, id := range ids {
		if r, ok := m.records[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockRepo) Delete(_ context.Context, _, id string) error {
	delete(m.records, id)
	return nil
}

type mockDatasets struct {
	ds schema.Dataset
}

func (m *mockDatasets) Get(_ context.Context, id string) (schema.Dataset, error) {
	if id != m.ds.ID() {
		return schema.Dataset{}, domain.NotFoundf("dataset with id `%s` not found", id)
	}
	return m.ds, nil
}

func testDataset(t *testing.T, publish bool) schema.Dataset {
	t.Helper()
	ds, err := schema.NewDataset("reviews", "default", "", false, schema.Distribution{})
	if err != nil {
		t.Fatalf("NewDataset: %v", err)
	}
	text, _ := schema.NewField("text", "", true, schema.TextFieldSettings{})
	label, _ := schema.NewQuestion("label", "", "", true,
		schema.LabelSelectionSettings{Options: []schema.Option{{Value: "positive"}, {Value: "negative"}}})
	genre, _ := schema.NewMetadataProperty("genre", "", schema.TermsMetadataSettings{Values: []string{"drama", "comedy"}}, true)
	emb, _ := schema.NewVectorSettings("emb", "", 3)

	for _, step := range []func(schema.Dataset) (schema.Dataset, error){
		func(d schema.Dataset) (schema.Dataset, error) { return d.WithField(text) },
		func(d schema.Dataset) (schema.Dataset, error) { return d.WithQuestion(label) },
		func(d schema.Dataset) (schema.Dataset, error) { return d.WithMetadataProperty(genre) },
		func(d schema.Dataset) (schema.Dataset, error) { return d.WithVectorSettings(emb) },
	} {
		if ds, err = step(ds); err != nil {
			t.Fatalf("build dataset: %v", err)
		}
	}
	if publish {
		if ds, err = ds.Publish(); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	return ds
}

func newTestService(t *testing.T, records ...schema.Record) (*Service, *mockRepo, schema.Dataset) {
	t.Helper()
	ds := testDataset(t, true)
	repo := newMockRepo(records...)
	return New(repo, &mockDatasets{ds: ds}), repo, ds
}

func storedRecord(t *testing.T, text string) schema.Record {
	t.Helper()
	r, err := schema.NewRecord("", "", map[string]any{"text": text}, nil, nil)
	if err != nil {
		t.Fatalf("NewRecord: %v", err)
	}
	return r
}

// --- Upsert ---

func TestUpsert_CreatesAndUpdates(t *testing.T) {
	prev := storedRecord(t, "old")
	resp, _ := schema.NewResponse("alice", schema.ResponseSubmitted, map[string]any{"label": "positive"})
	prev = prev.WithResponse(resp, schema.DefaultDistribution())
	svc, repo, ds := newTestService(t, prev)

	out, err := svc.Upsert(context.Background(), ds.ID(), []Item{
		{Fields: map[string]any{"text": "new"}, Metadata: map[string]any{"genre": "drama"}},
		{ID: prev.ID(), Fields: map[string]any{"text": "updated"}, Vectors: map[string][]float32{"emb": {1, 0, 0}}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 || repo.batches != 1 {
		t.Fatalf("records = %d, batches = %d", len(out), repo.batches)
	}
	if _, err := uuid.Parse(out[0].ID()); err != nil {
		t.Errorf("generated id %q is not a UUID", out[0].ID())
	}

	updated := repo.records[prev.ID()]
	if updated.Fields()["text"] != "updated" {
		t.Errorf("fields = %v", updated.Fields())
	}
	if _, ok := updated.ResponseByUser("alice"); !ok || updated.Status() != schema.RecordCompleted {
		t.Error("update must keep responses and status")
	}
	if updated.InsertedAt() != prev.InsertedAt() {
		t.Error("update must keep inserted_at")
	}
}

func TestUpsert_WithSuggestions(t *testing.T) {
	svc, repo, ds := newTestService(t)
	score := 0.9

	out, err := svc.Upsert(context.Background(), ds.ID(), []Item{{
		Fields:      map[string]any{"text": "hello"},
		Suggestions: []SuggestionInput{{Question: "label", Value: "negative", Score: &score, Agent: "clf-v1"}},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s, ok := repo.records[out[0].ID()].SuggestionByQuestion("label")
	if !ok || s.Value() != "negative" || s.Agent() != "clf-v1" {
		t.Errorf("suggestion = %+v", s)
	}
}

func TestUpsert_Errors(t *testing.T) {
	tests := []struct {
		name  string
		items []Item
		want  error
	}{
		{"empty batch", nil, domain.ErrValidation},
		{"unknown field", []Item{{Fields: map[string]any{"body": "x"}}}, domain.ErrUnprocessable},
		{"missing required field", []Item{{Fields: map[string]any{"text": ""}}}, domain.ErrUnprocessable},
		{"closed metadata value", []Item{{Fields: map[string]any{"text": "x"}, Metadata: map[string]any{"genre": "horror"}}}, domain.ErrUnprocessable},
		{"vector dimensions", []Item{{Fields: map[string]any{"text": "x"}, Vectors: map[string][]float32{"emb": {1}}}}, domain.ErrUnprocessable},
		{"bad suggestion", []Item{{
			Fields:      map[string]any{"text": "x"},
			Suggestions: []SuggestionInput{{Question: "label", Value: "neutral"}},
		}}, domain.ErrUnprocessable},
		{"duplicate ids", []Item{
			{ID: "6f1d2a9e-0c4b-4d2e-9d55-3a1c9b7e8f00", Fields: map[string]any{"text": "a"}},
			{ID: "6f1d2a9e-0c4b-4d2e-9d55-3a1c9b7e8f00", Fields: map[string]any{"text": "b"}},
		}, domain.ErrUnprocessable},
		{"non uuid id", []Item{{ID: "rec-1", Fields: map[string]any{"text": "x"}}}, domain.ErrUnprocessable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, ds := newTestService(t)
			_, err := svc.Upsert(context.Background(), ds.ID(), tt.items)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if repo.batches != 0 {
				t.Error("nothing must be stored when a record is invalid")
			}
		})
	}
}

func TestUpsert_MaxBulk(t *testing.T) {
	svc, repo, ds := newTestService(t)
	svc.WithMaxBulk(1)

	items := []Item{{Fields: map[string]any{"text": "a"}}, {Fields: map[string]any{"text": "b"}}}
	if _, err := svc.Upsert(context.Background(), ds.ID(), items); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if repo.batches != 0 {
		t.Error("nothing must be stored over the limit")
	}
}

func TestUpsert_DraftDataset(t *testing.T) {
	ds := testDataset(t, false)
	svc := New(newMockRepo(), &mockDatasets{ds: ds})

	_, err := svc.Upsert(context.Background(), ds.ID(), []Item{{Fields: map[string]any{"text": "x"}}})
	if !errors.Is(err, domain.ErrUnprocessable) {
		t.Fatalf("err = %v, want ErrUnprocessable", err)
	}
}

// --- Responses ---

func TestUpsertResponse(t *testing.T) {
	rec := storedRecord(t, "hello")
	svc, repo, ds := newTestService(t, rec)

	out, err := svc.UpsertResponse(context.Background(), ds.ID(), rec.ID(), ResponseInput{
		User: "alice", Status: schema.ResponseDraft, Values: map[string]any{"label": "positive"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status() != schema.RecordPending {
		t.Errorf("status = %s, want pending for a draft", out.Status())
	}

	out, err = svc.UpsertResponse(context.Background(), ds.ID(), rec.ID(), ResponseInput{
		User: "alice", Status: schema.ResponseSubmitted, Values: map[string]any{"label": "negative"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status() != schema.RecordCompleted || len(out.Responses()) != 1 {
		t.Errorf("status = %s, responses = %d", out.Status(), len(out.Responses()))
	}
	if repo.records[rec.ID()].Status() != schema.RecordCompleted {
		t.Error("record not saved")
	}
}

func TestUpsertResponse_Errors(t *testing.T) {
	rec := storedRecord(t, "hello")
	tests := []struct {
		name     string
		recordID string
		in       ResponseInput
		want     error
	}{
		{"no user", rec.ID(), ResponseInput{Status: schema.ResponseDraft, Values: map[string]any{"label": "positive"}}, domain.ErrValidation},
		{"unknown record", uuid.NewString(), ResponseInput{User: "alice", Status: schema.ResponseDiscarded}, domain.ErrNotFound},
		{"invalid option", rec.ID(), ResponseInput{User: "alice", Status: schema.ResponseDraft, Values: map[string]any{"label": "neutral"}}, domain.ErrUnprocessable},
		{"unknown question", rec.ID(), ResponseInput{User: "alice", Status: schema.ResponseDraft, Values: map[string]any{"rating": 3}}, domain.ErrUnprocessable},
		{"submitted without required", rec.ID(), ResponseInput{User: "alice", Status: schema.ResponseSubmitted, Values: map[string]any{}}, domain.ErrUnprocessable},
		{"invalid status", rec.ID(), ResponseInput{User: "alice", Status: "pending", Values: map[string]any{"label": "positive"}}, domain.ErrUnprocessable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, ds := newTestService(t, rec)
			if _, err := svc.UpsertResponse(context.Background(), ds.ID(), tt.recordID, tt.in); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDeleteResponse(t *testing.T) {
	rec := storedRecord(t, "hello")
	resp, _ := schema.NewResponse("alice", schema.ResponseSubmitted, map[string]any{"label": "positive"})
	rec = rec.WithResponse(resp, schema.DefaultDistribution())
	svc, _, ds := newTestService(t, rec)

	out, err := svc.DeleteResponse(context.Background(), ds.ID(), rec.ID(), "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status() != schema.RecordPending || len(out.Responses()) != 0 {
		t.Errorf("status = %s, responses = %d", out.Status(), len(out.Responses()))
	}

	if _, err := svc.DeleteResponse(context.Background(), ds.ID(), rec.ID(), "alice"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

// --- Suggestions ---

func TestUpsertSuggestion(t *testing.T) {
	rec := storedRecord(t, "hello")
	svc, repo, ds := newTestService(t, rec)

	_, err := svc.UpsertSuggestion(context.Background(), ds.ID(), rec.ID(), SuggestionInput{Question: "label", Value: "positive"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = svc.UpsertSuggestion(context.Background(), ds.ID(), rec.ID(), SuggestionInput{
		Question: "label", Value: "negative", Type: schema.SuggestionHuman,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	suggs := repo.records[rec.ID()].Suggestions()
	if len(suggs) != 1 || suggs[0].Value() != "negative" {
		t.Errorf("suggestions = %+v", suggs)
	}

	bad := SuggestionInput{Question: "label", Value: "positive", Score: new(float64)}
	*bad.Score = 2
	if _, err := svc.UpsertSuggestion(context.Background(), ds.ID(), rec.ID(), bad); !errors.Is(err, domain.ErrUnprocessable) {
		t.Errorf("err = %v, want ErrUnprocessable", err)
	}
}

// --- Reads ---

func TestList_KeepsOrderAndAppliesInclude(t *testing.T) {
	a, b := storedRecord(t, "a"), storedRecord(t, "b")
	resp, _ := schema.NewResponse("alice", schema.ResponseDraft, map[string]any{"label": "positive"})
	b = b.WithResponse(resp, schema.DefaultDistribution()).WithVector("emb", []float32{1, 0, 0})
	svc, _, ds := newTestService(t, a, b)

	out, err := svc.List(context.Background(), ds.ID(), []string{b.ID(), uuid.NewString(), a.ID()}, Include{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ids := []string{out[0].ID(), out[1].ID()}
	if !slices.Equal(ids, []string{b.ID(), a.ID()}) {
		t.Errorf("ids = %v", ids)
	}
	if len(out[0].Responses()) != 0 || len(out[0].Vectors()) != 0 {
		t.Error("optional parts must be left out by default")
	}

	out, _ = svc.List(context.Background(), ds.ID(), []string{b.ID()}, Include{Responses: true, Vectors: []string{"emb"}})
	if len(out[0].Responses()) != 1 || len(out[0].Vectors()["emb"]) != 3 {
		t.Errorf("record = %+v", out[0])
	}
}

func TestDelete(t *testing.T) {
	a, b := storedRecord(t, "a"), storedRecord(t, "b")
	svc, repo, ds := newTestService(t, a, b)

	n, err := svc.Delete(context.Background(), ds.ID(), []string{a.ID()})
	if err != nil || n != 1 {
		t.Fatalf("n = %d, err = %v", n, err)
	}
	if _, ok := repo.records[a.ID()]; ok {
		t.Error("record not deleted")
	}

	if _, err := svc.Delete(context.Background(), ds.ID(), nil); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
	if _, err := svc.Delete(context.Background(), "missing", []string{b.ID()}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

// --- Concurrency ---

// slowRepo delays every load so that unserialized writes would read the
// same version of a record.
type slowRepo struct {
	Repository
}

func (r slowRepo) Get(ctx context.Context, datasetID, id string) (schema.Record, error) {
	rec, err := r.Repository.Get(ctx, datasetID, id)
	time.Sleep(5 * time.Millisecond)
	return rec, err
}

func (r slowRepo) GetMany(ctx context.Context, datasetID string, ids []string) ([]schema.Record, error) {
	records, err := r.Repository.GetMany(ctx, datasetID, ids)
	time.Sleep(5 * time.Millisecond)
	return records, err
}

func TestAnnotations_ConcurrentWritesToOneRecordAreAllKept(t *testing.T) {
	ctx := context.Background()
	ds := testDataset(t, true)
	repo := recordrepo.New(memory.NewStore(), "test:")
	rec := storedRecord(t, "hello")
	if err := repo.Upsert(ctx, ds.ID(), rec); err != nil {
		t.Fatalf("seed record: %v", err)
	}
	svc := New(slowRepo{repo}, &mockDatasets{ds: ds})

	writes := map[string]func() error{
		"alice": func() error {
			_, err := svc.UpsertResponse(ctx, ds.ID(), rec.ID(), ResponseInput{
				User: "alice", Status: schema.ResponseSubmitted, Values: map[string]any{"label": "positive"},
			})
			return err
		},
		"bob": func() error {
			_, err := svc.UpsertResponse(ctx, ds.ID(), rec.ID(), ResponseInput{
				User: "bob", Status: schema.ResponseDraft, Values: map[string]any{"label": "negative"},
			})
			return err
		},
		"suggestion": func() error {
			_, err := svc.UpsertSuggestion(ctx, ds.ID(), rec.ID(), SuggestionInput{Question: "label", Value: "negative"})
			return err
		},
		"content": func() error {
			_, err := svc.Upsert(ctx, ds.ID(), []Item{{ID: rec.ID(), Fields: map[string]any{"text": "updated"}}})
			return err
		},
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	failed := map[string]error{}
	for name, write := range writes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := write(); err != nil {
				mu.Lock()
				failed[name] = err
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	for name, err := range failed {
		t.Fatalf("%s: %v", name, err)
	}

	got, err := repo.Get(ctx, ds.ID(), rec.ID())
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	for _, user := range []string{"alice", "bob"} {
		if _, ok := got.ResponseByUser(user); !ok {
			t.Errorf("response of %s lost", user)
		}
	}
	if _, ok := got.SuggestionByQuestion("label"); !ok {
		t.Error("suggestion lost")
	}
	if got.Fields()["text"] != "updated" {
		t.Errorf("text = %v, want updated", got.Fields()["text"])
	}
}
