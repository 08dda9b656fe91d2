package dataset

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kailas-cloud/annosearch/internal/domain"
	"github.com/kailas-cloud/annosearch/internal/domain/schema"
	"github.com/kailas-cloud/annosearch/internal/mapping"
)

// --- Mocks ---

type mockRepo struct {
	stored    map[string]schema.Dataset
	createErr error
	updateErr error
	deleted   []string
}

func newMockRepo(datasets ...schema.Dataset) *mockRepo {
	m := &mockRepo{stored: make(map[string]schema.Dataset)}
	for _, ds := range datasets {
		m.stored[ds.ID()] = ds
	}
	return m
}

func (m *mockRepo) Create(_ context.Context, ds schema.Dataset) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.stored[ds.ID()] = ds
	return nil
}

func (m *mockRepo) Get(_ context.Context, id string) (schema.Dataset, error) {
	ds, ok := m.stored[id]
	if !ok {
		return schema.Dataset{}, domain.NotFoundf("dataset with id `%s` not found", id)
	}
	return ds, nil
}

func (m *mockRepo) GetByName(_ context.Context, workspace, name string) (schema.Dataset, error) {
	for _, ds := range m.stored {
		if ds.Workspace() == workspace && ds.Name() == name {
			return ds, nil
		}
	}
	return schema.Dataset{}, domain.NotFoundf("dataset `%s` not found in workspace `%s`", name, workspace)
}

func (m *mockRepo) List(_ context.Context, workspace string) ([]schema.Dataset, error) {
	var out []schema.Dataset
	for _, ds := range m.stored {
		if workspace == "" || ds.Workspace() == workspace {
			out = append(out, ds)
		}
	}
	return out, nil
}

func (m *mockRepo) Update(_ context.Context, ds schema.Dataset) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.stored[ds.ID()] = ds
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	delete(m.stored, id)
	return nil
}

// guardedRepo makes mockRepo safe for concurrent use and widens the gap
// between a load and the save that follows it. overlap is set when a second
// load starts before the first save.
type guardedRepo struct {
	*mockRepo
	mu       sync.Mutex
	inFlight atomic.Int32
	overlap  atomic.Bool
}

func (g *guardedRepo) Get(ctx context.Context, id string) (schema.Dataset, error) {
	if g.inFlight.Add(1) > 1 {
		g.overlap.Store(true)
	}
	g.mu.Lock()
	ds, err := g.mockRepo.Get(ctx, id)
	g.mu.Unlock()
	time.Sleep(5 * time.Millisecond)
	return ds, err
}

func (g *guardedRepo) Update(ctx context.Context, ds schema.Dataset) error {
	defer g.inFlight.Add(-1)
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mockRepo.Update(ctx, ds)
}

func (g *guardedRepo) dataset(id string) schema.Dataset {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mockRepo.stored[id]
}

type mockIndex struct {
	created   *mapping.Spec
	extended  []mapping.Spec
	dropped   int
	createErr error
	extendErr error
	deleteErr error
}

func (m *mockIndex) Create(_ context.Context, _ string, spec mapping.Spec) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = &spec
	return nil
}

func (m *mockIndex) Extend(_ context.Context, _ string, delta mapping.Spec) error {
	if m.extendErr != nil {
		return m.extendErr
	}
	m.extended = append(m.extended, delta)
	return nil
}

func (m *mockIndex) Delete(_ context.Context, _ string) error {
	m.dropped++
	return m.deleteErr
}

type mockRecords struct {
	cleared []string
}

func (m *mockRecords) DeleteAll(_ context.Context, datasetID string) (int, error) {
	m.cleared = append(m.cleared, datasetID)
	return 3, nil
}

func mustField(t *testing.T, name string, required bool, s schema.FieldSettings) schema.Field {
	t.Helper()
	f, err := schema.NewField(name, "", required, s)
	if err != nil {
		t.Fatalf("NewField: %v", err)
	}
	return f
}

func mustQuestion(t *testing.T, name string, required bool, s schema.QuestionSettings) schema.Question {
	t.Helper()
	q, err := schema.NewQuestion(name, "", "", required, s)
	if err != nil {
		t.Fatalf("NewQuestion: %v", err)
	}
	return q
}

func draftDataset(t *testing.T) schema.Dataset {
	t.Helper()
	ds, err := schema.NewDataset("reviews", "default", "", false, schema.Distribution{})
	if err != nil {
		t.Fatalf("NewDataset: %v", err)
	}
	if ds, err = ds.WithField(mustField(t, "text", true, schema.TextFieldSettings{})); err != nil {
		t.Fatalf("WithField: %v", err)
	}
	label := schema.LabelSelectionSettings{Options: []schema.Option{{Value: "positive"}, {Value: "negative"}}}
	if ds, err = ds.WithQuestion(mustQuestion(t, "label", true, label)); err != nil {
		t.Fatalf("WithQuestion: %v", err)
	}
	return ds
}

func publishedDataset(t *testing.T) schema.Dataset {
	t.Helper()
	ds, err := draftDataset(t).Publish()
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	return ds
}

func newTestService(datasets ...schema.Dataset) (*Service, *mockRepo, *mockIndex, *mockRecords) {
	repo, idx, recs := newMockRepo(datasets...), &mockIndex{}, &mockRecords{}
	return New(repo, idx, recs), repo, idx, recs
}

// --- Create ---

func TestCreate(t *testing.T) {
	svc, repo, _, _ := newTestService()

	ds, err := svc.Create(context.Background(), CreateParams{Name: "reviews", Workspace: "default"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ds.IsReady() || ds.Distribution().MinSubmitted != 1 {
		t.Errorf("dataset = %+v", ds)
	}
	if _, ok := repo.stored[ds.ID()]; !ok {
		t.Error("dataset not stored")
	}
}

func TestCreate_Invalid(t *testing.T) {
	svc, _, _, _ := newTestService()
	if _, err := svc.Create(context.Background(), CreateParams{Name: "reviews"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestCreate_Duplicate(t *testing.T) {
	svc, repo, _, _ := newTestService()
	repo.createErr = domain.ErrAlreadyExists
	if _, err := svc.Create(context.Background(), CreateParams{Name: "reviews", Workspace: "default"}); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("err = %v, want ErrAlreadyExists", err)
	}
}

func TestGetByName(t *testing.T) {
	ds := draftDataset(t)
	svc, _, _, _ := newTestService(ds)

	got, err := svc.GetByName(context.Background(), "default", "reviews")
	if err != nil {
		t.Fatalf("GetByName: %v", err)
	}
	if got.ID() != ds.ID() {
		t.Errorf("id = %s, want %s", got.ID(), ds.ID())
	}
	if _, err := svc.GetByName(context.Background(), "other", "reviews"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("other workspace: err = %v, want ErrNotFound", err)
	}
	if _, err := svc.GetByName(context.Background(), "", "reviews"); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("empty workspace: err = %v, want ErrValidation", err)
	}
}

// --- schema changes ---

func TestAddField(t *testing.T) {
	ds := draftDataset(t)
	svc, repo, _, _ := newTestService(ds)

	out, err := svc.AddField(context.Background(), ds.ID(), mustField(t, "image", false, schema.ImageFieldSettings{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := out.FieldByName("image"); !ok {
		t.Error("field not added")
	}
	if _, ok := repo.stored[ds.ID()].FieldByName("image"); !ok {
		t.Error("field not saved")
	}

	_, err = svc.AddField(context.Background(), ds.ID(), mustField(t, "text", false, schema.TextFieldSettings{}))
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Errorf("duplicate: err = %v, want ErrAlreadyExists", err)
	}
}

func TestAddField_Published(t *testing.T) {
	ds := publishedDataset(t)
	svc, _, _, _ := newTestService(ds)

	_, err := svc.AddField(context.Background(), ds.ID(), mustField(t, "image", false, schema.ImageFieldSettings{}))
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestAddQuestion_SpanTargetsTextField(t *testing.T) {
	ds := draftDataset(t)
	svc, _, _, _ := newTestService(ds)

	span := schema.SpanSettings{Field: "missing", Options: []schema.Option{{Value: "PER"}}}
	_, err := svc.AddQuestion(context.Background(), ds.ID(), mustQuestion(t, "entities", false, span))
	if !errors.Is(err, domain.ErrUnprocessable) {
		t.Fatalf("err = %v, want ErrUnprocessable", err)
	}
}

func TestAddMetadataProperty_ExtendsPublishedIndex(t *testing.T) {
	ds := publishedDataset(t)
	svc, repo, idx, _ := newTestService(ds)

	p, err := schema.NewMetadataProperty("genre", "", schema.TermsMetadataSettings{}, true)
	if err != nil {
		t.Fatalf("NewMetadataProperty: %v", err)
	}
	if _, err := svc.AddMetadataProperty(context.Background(), ds.ID(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(idx.extended) != 1 || len(idx.extended[0].DynamicTemplates) != 1 {
		t.Fatalf("extended = %+v", idx.extended)
	}
	if _, ok := repo.stored[ds.ID()].MetadataPropertyByName("genre"); !ok {
		t.Error("property not saved")
	}
}

func TestAddMetadataProperty_DraftSkipsIndex(t *testing.T) {
	ds := draftDataset(t)
	svc, _, idx, _ := newTestService(ds)

	p, _ := schema.NewMetadataProperty("year", "", schema.IntegerMetadataSettings{}, true)
	if _, err := svc.AddMetadataProperty(context.Background(), ds.ID(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(idx.extended) != 0 {
		t.Error("draft datasets have no index to extend")
	}
}

func TestAddVectorSettings_ExtendFailureKeepsSchema(t *testing.T) {
	ds := publishedDataset(t)
	svc, repo, idx, _ := newTestService(ds)
	idx.extendErr = domain.ErrIndexNotFound

	v, err := schema.NewVectorSettings("emb", "", 3)
	if err != nil {
		t.Fatalf("NewVectorSettings: %v", err)
	}
	if _, err := svc.AddVectorSettings(context.Background(), ds.ID(), v); !errors.Is(err, domain.ErrIndexNotFound) {
		t.Fatalf("err = %v, want ErrIndexNotFound", err)
	}
	if _, ok := repo.stored[ds.ID()].VectorSettingsByName("emb"); ok {
		t.Error("schema must not change when the index cannot be extended")
	}
}

// --- Publish ---

func TestPublish(t *testing.T) {
	ds := draftDataset(t)
	svc, repo, idx, _ := newTestService(ds)

	out, err := svc.Publish(context.Background(), ds.ID())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.IsReady() || !repo.stored[ds.ID()].IsReady() {
		t.Error("dataset not published")
	}
	if idx.created == nil {
		t.Fatal("index not created")
	}
	if _, ok := idx.created.Property("fields.text"); !ok {
		t.Error("mapping lacks the text field")
	}
}

func TestPublish_Twice(t *testing.T) {
	ds := publishedDataset(t)
	svc, _, idx, _ := newTestService(ds)

	if _, err := svc.Publish(context.Background(), ds.ID()); !errors.Is(err, domain.ErrUnprocessable) {
		t.Fatalf("err = %v, want ErrUnprocessable", err)
	}
	if idx.created != nil {
		t.Error("index must not be created")
	}
}

func TestPublish_UpdateFailureDropsIndex(t *testing.T) {
	ds := draftDataset(t)
	svc, repo, idx, _ := newTestService(ds)
	storeErr := errors.New("connection reset")
	repo.updateErr = storeErr

	if _, err := svc.Publish(context.Background(), ds.ID()); !errors.Is(err, storeErr) {
		t.Fatalf("err = %v, want store error", err)
	}
	if idx.dropped != 1 {
		t.Errorf("dropped = %d, want 1", idx.dropped)
	}
}

// --- Delete ---

func TestDelete(t *testing.T) {
	ds := publishedDataset(t)
	svc, repo, idx, recs := newTestService(ds)
	idx.deleteErr = domain.ErrIndexNotFound

	if err := svc.Delete(context.Background(), ds.ID()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx.dropped != 1 || len(recs.cleared) != 1 || len(repo.deleted) != 1 {
		t.Errorf("dropped=%d cleared=%v deleted=%v", idx.dropped, recs.cleared, repo.deleted)
	}
}

func TestDelete_NotFound(t *testing.T) {
	svc, _, _, _ := newTestService()
	if err := svc.Delete(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

// --- Mapping ---

func TestMapping(t *testing.T) {
	ds := draftDataset(t)
	svc, _, _, _ := newTestService(ds)

	spec, err := svc.Mapping(context.Background(), ds.ID())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := spec.Property("label.suggestion"); !ok {
		t.Error("mapping lacks the suggestion entry")
	}
}

// --- Concurrency ---

func TestAddMetadataProperty_ConcurrentAddsAllSaved(t *testing.T) {
	ds := publishedDataset(t)
	repo := &guardedRepo{mockRepo: newMockRepo(ds)}
	idx := &mockIndex{}
	svc := New(repo, idx, &mockRecords{})

	names := []string{"year", "score", "pages", "rank"}
	errs := make([]error, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := schema.NewMetadataProperty(name, "", schema.IntegerMetadataSettings{}, true)
			if err != nil {
				errs[i] = err
				return
			}
			_, errs[i] = svc.AddMetadataProperty(context.Background(), ds.ID(), p)
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("add %s: %v", names[i], err)
		}
	}
	if repo.overlap.Load() {
		t.Error("schema changes of one dataset overlapped")
	}
	stored := repo.dataset(ds.ID())
	for _, name := range names {
		if _, ok := stored.MetadataPropertyByName(name); !ok {
			t.Errorf("property %s lost from the stored schema", name)
		}
	}
	if len(idx.extended) != len(names) {
		t.Errorf("index extended %d times, want %d", len(idx.extended), len(names))
	}
}

func TestPublish_ConcurrentWithSchemaChangeStaysReady(t *testing.T) {
	ds := draftDataset(t)
	repo := &guardedRepo{mockRepo: newMockRepo(ds)}
	svc := New(repo, &mockIndex{}, &mockRecords{})

	p, err := schema.NewMetadataProperty("year", "", schema.IntegerMetadataSettings{}, true)
	if err != nil {
		t.Fatalf("NewMetadataProperty: %v", err)
	}

	var publishErr, addErr error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, publishErr = svc.Publish(context.Background(), ds.ID())
	}()
	go func() {
		defer wg.Done()
		_, addErr = svc.AddMetadataProperty(context.Background(), ds.ID(), p)
	}()
	wg.Wait()

	if publishErr != nil || addErr != nil {
		t.Fatalf("publish: %v, add: %v", publishErr, addErr)
	}
	stored := repo.dataset(ds.ID())
	if !stored.IsReady() {
		t.Error("published dataset reverted to draft")
	}
	if _, ok := stored.MetadataPropertyByName("year"); !ok {
		t.Error("property lost from the stored schema")
	}
}
