// Package record handles record ingestion, annotation writes and retrieval.
package record

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/annosearch/internal/domain"
	"github.com/kailas-cloud/annosearch/internal/domain/schema"
	"github.com/kailas-cloud/annosearch/internal/keylock"
	"github.com/kailas-cloud/annosearch/internal/logger"
)

// Request size limits.
const (
	MaxBulkRecords = 1000
	MaxDeleteIDs   = 100
)

// Item is one record of a bulk upsert. A known ID updates the stored record
// and keeps its responses.
type Item struct {
	ID          string
	ExternalID  string
	Fields      map[string]any
	Metadata    map[string]any
	Vectors     map[string][]float32
	Suggestions []SuggestionInput
}

// SuggestionInput is an unvalidated suggestion.
type SuggestionInput struct {
	Question string
	Value    any
	Score    *float64
	Agent    string
	Type     schema.SuggestionType
}

// ResponseInput is an unvalidated response of the calling user.
type ResponseInput struct {
	User   string
	Status schema.ResponseStatus
	Values map[string]any
}

// Service handles record writes and reads. A write that loads a stored
// record holds the record's lock until it is saved, so concurrent writes
// to different responses or suggestions of one record are all kept.
type Service struct {
	repo     Repository
	datasets DatasetReader
	maxBulk  int
	locks    keylock.Map
}

// New creates a record service.
func New(repo Repository, datasets DatasetReader) *Service {
	return &Service{repo: repo, datasets: datasets, maxBulk: MaxBulkRecords}
}

// WithMaxBulk overrides the bulk upsert limit.
func (s *Service) WithMaxBulk(n int) *Service {
	if n > 0 {
		s.maxBulk = n
	}
	return s
}

// Upsert validates and stores a batch of records. Nothing is written unless
// every record is valid. Storage is not transactional: a backend failure
// may leave part of the batch written.
func (s *Service) Upsert(ctx context.Context, datasetID string, items []Item) ([]schema.Record, error) {
	if len(items) == 0 {
		return nil, domain.Validationf("at least one record is required")
	}
	if len(items) > s.maxBulk {
		return nil, domain.Validationf("too many records (max %d)", s.maxBulk)
	}

	ds, err := s.publishedDataset(ctx, datasetID)
	if err != nil {
		return nil, err
	}

	defer s.lockItems(datasetID, items)()

	existing, err := s.existing(ctx, datasetID, items)
	if err != nil {
		return nil, err
	}

	records := make([]schema.Record, len(items))
	updated := 0
	for i, it := range items {
		prev, found := existing[it.ID]
		rec, err := build(it, prev, found)
		if err == nil {
			err = ds.ValidateRecord(rec)
		}
		if err != nil {
			return nil, domain.Unprocessablef("record at position %d is not valid because %v", i, err)
		}
		if found {
			updated++
		}
		records[i] = rec
	}

	if err := s.repo.UpsertMany(ctx, datasetID, records); err != nil {
		return nil, fmt.Errorf("upsert records: %w", err)
	}

	logger.FromContext(ctx).Info("records upserted",
		zap.String("dataset_id", datasetID),
		zap.Int("created", len(records)-updated),
		zap.Int("updated", updated),
	)
	return records, nil
}

// lockItems locks the stored records a batch refers to by id.
func (s *Service) lockItems(datasetID string, items []Item) func() {
	var keys []string
	for _, it := range items {
		if it.ID != "" {
			keys = append(keys, recordLockKey(datasetID, it.ID))
		}
	}
	return s.locks.LockAll(keys)
}

// existing loads the stored records the batch refers to by id.
func (s *Service) existing(ctx context.Context, datasetID string, items []Item) (map[string]schema.Record, error) {
	seen := make(map[string]bool, len(items))
	var ids []string
	for _, it := range items {
		if it.ID == "" {
			continue
		}
		if seen[it.ID] {
			return nil, domain.Unprocessablef("found duplicate records IDs: %s", it.ID)
		}
		seen[it.ID] = true
		ids = append(ids, it.ID)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	stored, err := s.repo.GetMany(ctx, datasetID, ids)
	if err != nil {
		return nil, fmt.Errorf("get records: %w", err)
	}
	out := make(map[string]schema.Record, len(stored))
	for _, rec := range stored {
		out[rec.ID()] = rec
	}
	return out, nil
}

func build(it Item, prev schema.Record, found bool) (schema.Record, error) {
	var rec schema.Record
	if found {
		if len(it.Fields) == 0 {
			return schema.Record{}, fmt.Errorf("record fields are required")
		}
		rec = prev.WithContent(it.ExternalID, it.Fields, it.Metadata, it.Vectors)
	} else {
		var err error
		if rec, err = schema.NewRecord(it.ID, it.ExternalID, it.Fields, it.Metadata, it.Vectors); err != nil {
			return schema.Record{}, err
		}
	}
	for _, in := range it.Suggestions {
		sugg, err := schema.NewSuggestion(in.Question, in.Value, in.Score, in.Agent, in.Type)
		if err != nil {
			return schema.Record{}, err
		}
		rec = rec.WithSuggestion(sugg)
	}
	return rec, nil
}

// Get returns one record with the selected parts.
func (s *Service) Get(ctx context.Context, datasetID, id string, inc Include) (schema.Record, error) {
	rec, err := s.repo.Get(ctx, datasetID, id)
	if err != nil {
		return schema.Record{}, fmt.Errorf("get record: %w", err)
	}
	return inc.Apply(rec), nil
}

// List returns the records with the given ids in the order of ids.
// Search hits are resolved into records through List.
func (s *Service) List(ctx context.Context, datasetID string, ids []string, inc Include) ([]schema.Record, error) {
	records, err := s.repo.GetMany(ctx, datasetID, ids)
	if err != nil {
		return nil, fmt.Errorf("get records: %w", err)
	}
	for i, rec := range records {
		records[i] = inc.Apply(rec)
	}
	return records, nil
}

// Delete removes records by id. Unknown ids are ignored.
func (s *Service) Delete(ctx context.Context, datasetID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, domain.Validationf("at least one record id is required")
	}
	if len(ids) > MaxDeleteIDs {
		return 0, domain.Validationf("too many record ids (max %d)", MaxDeleteIDs)
	}
	if _, err := s.datasets.Get(ctx, datasetID); err != nil {
		return 0, fmt.Errorf("get dataset: %w", err)
	}

	var errs []error
	deleted := 0
	for _, id := range ids {
		if err := s.repo.Delete(ctx, datasetID, id); err != nil {
			errs = append(errs, err)
			continue
		}
		deleted++
	}
	if err := errors.Join(errs...); err != nil {
		return deleted, fmt.Errorf("delete records: %w", err)
	}
	return deleted, nil
}

// UpsertResponse replaces the user's response and recomputes the record status.
func (s *Service) UpsertResponse(ctx context.Context, datasetID, recordID string, in ResponseInput) (schema.Record, error) {
	if in.User == "" {
		return schema.Record{}, domain.Validationf("response user is required")
	}
	defer s.locks.Lock(recordLockKey(datasetID, recordID))()

	ds, rec, err := s.load(ctx, datasetID, recordID)
	if err != nil {
		return schema.Record{}, err
	}

	resp, err := schema.NewResponse(in.User, in.Status, in.Values)
	if err != nil {
		return schema.Record{}, domain.Unprocessablef("%v", err)
	}
	if err := ds.ValidateResponse(rec, resp); err != nil {
		return schema.Record{}, domain.Unprocessablef("%v", err)
	}

	rec = rec.WithResponse(resp, ds.Distribution())
	if err := s.repo.Upsert(ctx, datasetID, rec); err != nil {
		return schema.Record{}, fmt.Errorf("upsert record: %w", err)
	}
	return rec, nil
}

// DeleteResponse removes the user's response.
func (s *Service) DeleteResponse(ctx context.Context, datasetID, recordID, user string) (schema.Record, error) {
	defer s.locks.Lock(recordLockKey(datasetID, recordID))()

	ds, rec, err := s.load(ctx, datasetID, recordID)
	if err != nil {
		return schema.Record{}, err
	}
	if _, ok := rec.ResponseByUser(user); !ok {
		return schema.Record{}, domain.NotFoundf("response of user `%s` for record `%s` not found", user, recordID)
	}

	rec = rec.WithoutResponse(user, ds.Distribution())
	if err := s.repo.Upsert(ctx, datasetID, rec); err != nil {
		return schema.Record{}, fmt.Errorf("upsert record: %w", err)
	}
	return rec, nil
}

// UpsertSuggestion replaces the suggestion of one question.
func (s *Service) UpsertSuggestion(ctx context.Context, datasetID, recordID string, in SuggestionInput) (schema.Record, error) {
	defer s.locks.Lock(recordLockKey(datasetID, recordID))()

	ds, rec, err := s.load(ctx, datasetID, recordID)
	if err != nil {
		return schema.Record{}, err
	}

	sugg, err := schema.NewSuggestion(in.Question, in.Value, in.Score, in.Agent, in.Type)
	if err != nil {
		return schema.Record{}, domain.Unprocessablef("%v", err)
	}
	if err := ds.ValidateSuggestion(rec, sugg); err != nil {
		return schema.Record{}, domain.Unprocessablef("%v", err)
	}

	rec = rec.WithSuggestion(sugg)
	if err := s.repo.Upsert(ctx, datasetID, rec); err != nil {
		return schema.Record{}, fmt.Errorf("upsert record: %w", err)
	}
	return rec, nil
}

func recordLockKey(datasetID, recordID string) string {
	return datasetID + "/" + recordID
}

func (s *Service) load(ctx context.Context, datasetID, recordID string) (schema.Dataset, schema.Record, error) {
	ds, err := s.publishedDataset(ctx, datasetID)
	if err != nil {
		return schema.Dataset{}, schema.Record{}, err
	}
	rec, err := s.repo.Get(ctx, datasetID, recordID)
	if err != nil {
		return schema.Dataset{}, schema.Record{}, fmt.Errorf("get record: %w", err)
	}
	return ds, rec, nil
}

func (s *Service) publishedDataset(ctx context.Context, id string) (schema.Dataset, error) {
	ds, err := s.datasets.Get(ctx, id)
	if err != nil {
		return schema.Dataset{}, fmt.Errorf("get dataset: %w", err)
	}
	if !ds.IsReady() {
		return schema.Dataset{}, domain.Unprocessablef("records cannot be written to a non published dataset")
	}
	return ds, nil
}
