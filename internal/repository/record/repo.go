// Package record stores records as JSON documents under the dataset's index prefix.
package record

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kailas-cloud/annosearch/internal/db"
	"github.com/kailas-cloud/annosearch/internal/domain"
	"github.com/kailas-cloud/annosearch/internal/domain/schema"
	"github.com/kailas-cloud/annosearch/internal/mapping"
)

// store is the consumer interface for record documents (ISP).
type store interface {
	JSONSet(ctx context.Context, key, path string, data []byte) error
	JSONSetMulti(ctx context.Context, items []db.JSONSetItem) error
	JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error)
	JSONGetMulti(ctx context.Context, keys []string) ([][]byte, error)
	Del(ctx context.Context, key string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Repo implements usecase/record.Repository.
type Repo struct {
	store  store
	prefix string
}

// New creates a record repository. Keys are namespaced by prefix.
func New(s store, prefix string) *Repo {
	if prefix == "" {
		prefix = domain.DefaultKeyPrefix
	}
	return &Repo{store: s, prefix: prefix}
}

// Upsert stores one record, replacing any previous version.
func (r *Repo) Upsert(ctx context.Context, datasetID string, rec schema.Record) error {
	key := r.recordKey(datasetID, rec.ID())
	data, err := json.Marshal(mapping.NewDocument(rec))
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", rec.ID(), err)
	}
	if err := r.store.JSONSet(ctx, key, "$", data); err != nil {
		return fmt.Errorf("json.set %s: %w", key, err)
	}
	return nil
}

// UpsertMany stores records in one pipelined round-trip.
func (r *Repo) UpsertMany(ctx context.Context, datasetID string, records []schema.Record) error {
	if len(records) == 0 {
		return nil
	}
	items := make([]db.JSONSetItem, len(records))
	for i, rec := range records {
		data, err := json.Marshal(mapping.NewDocument(rec))
		if err != nil {
			return fmt.Errorf("marshal record %s: %w", rec.ID(), err)
		}
		items[i] = db.JSONSetItem{Key: r.recordKey(datasetID, rec.ID()), Path: "$", Data: data}
	}
	if err := r.store.JSONSetMulti(ctx, items); err != nil {
		return fmt.Errorf("json.set %d records: %w", len(items), err)
	}
	return nil
}

// Get returns a record by id.
func (r *Repo) Get(ctx context.Context, datasetID, id string) (schema.Record, error) {
	key := r.recordKey(datasetID, id)
	raw, err := r.store.JSONGet(ctx, key, "$")
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return schema.Record{}, domain.NotFoundf("record with id `%s` not found", id)
		}
		return schema.Record{}, fmt.Errorf("json.get %s: %w", key, err)
	}
	rec, ok, err := parseRoot(raw)
	if err != nil {
		return schema.Record{}, fmt.Errorf("parse %s: %w", key, err)
	}
	if !ok {
		return schema.Record{}, domain.NotFoundf("record with id `%s` not found", id)
	}
	return rec, nil
}

// GetMany returns the records with the given ids in the order of ids.
// Ids without a stored record are skipped.
func (r *Repo) GetMany(ctx context.Context, datasetID string, ids []string) ([]schema.Record, error) {
	if len(ids) == 0 {
		return []schema.Record{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.recordKey(datasetID, id)
	}

	raws, err := r.store.JSONGetMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("json.get %d records: %w", len(keys), err)
	}

	records := make([]schema.Record, 0, len(raws))
	for i, raw := range raws {
		if raw == nil {
			continue
		}
		rec, ok, err := parseRoot(raw)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", keys[i], err)
		}
		if ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

// Delete removes a record document.
func (r *Repo) Delete(ctx context.Context, datasetID, id string) error {
	key := r.recordKey(datasetID, id)
	if err := r.store.Del(ctx, key); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}

// DeleteAll removes every record document of a dataset.
func (r *Repo) DeleteAll(ctx context.Context, datasetID string) (int, error) {
	pattern := r.recordKey(datasetID, "*")
	keys, err := r.store.Scan(ctx, pattern)
	if err != nil {
		return 0, fmt.Errorf("scan %s: %w", pattern, err)
	}
	var errs []error
	deleted := 0
	for _, key := range keys {
		if err := r.store.Del(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("del %s: %w", key, err))
			continue
		}
		deleted++
	}
	return deleted, errors.Join(errs...)
}

// parseRoot decodes a JSON.GET "$" reply: a one-element array holding the document.
func parseRoot(raw []byte) (schema.Record, bool, error) {
	var docs []mapping.Document
	if err := json.Unmarshal(raw, &docs); err != nil {
		return schema.Record{}, false, fmt.Errorf("unmarshal record: %w", err)
	}
	if len(docs) == 0 {
		return schema.Record{}, false, nil
	}
	return docs[0].Record(), true, nil
}

// Key pattern: {prefix}{dataset}:record:{id}

func (r *Repo) recordKey(datasetID, id string) string {
	return fmt.Sprintf("%s%s:record:%s", r.prefix, datasetID, id)
}
