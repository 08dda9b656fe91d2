// Package index manages the search index backing each dataset.
package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/annosearch/internal/db"
	"github.com/kailas-cloud/annosearch/internal/domain"
	"github.com/kailas-cloud/annosearch/internal/keylock"
	"github.com/kailas-cloud/annosearch/internal/mapping"
	"github.com/kailas-cloud/annosearch/internal/metrics"
)

// Operations reported to metrics.IndexMappingUpdatesTotal.
const (
	opCreate = "create"
	opExtend = "extend"
	opDrop   = "drop"
)

// store is the consumer interface for index lifecycle (ISP).
type store interface {
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	AlterIndex(ctx context.Context, name string, fields []db.IndexField) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Repo implements the index operations of usecase/dataset.
type Repo struct {
	store  store
	prefix string
	hnsw   HNSWConfig
	locks  keylock.Map
}

// New creates an index repository. prefix namespaces record keys.
func New(s store, prefix string) *Repo {
	if prefix == "" {
		prefix = domain.DefaultKeyPrefix
	}
	return &Repo{
		store:  s,
		prefix: prefix,
		hnsw:   HNSWConfig{M: 16, EFConstruct: 200},
	}
}

// WithHNSW configures HNSW index parameters.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	if cfg.M > 0 {
		r.hnsw.M = cfg.M
	}
	if cfg.EFConstruct > 0 {
		r.hnsw.EFConstruct = cfg.EFConstruct
	}
	return r
}

// Create builds the dataset index from its mapping.
// An index that already exists is rejected with ErrAlreadyExists.
func (r *Repo) Create(ctx context.Context, datasetID string, spec mapping.Spec) error {
	def, err := buildIndex(mapping.IndexName(datasetID), recordPrefix(r.prefix, datasetID), spec, r.hnsw)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}

	unlock := r.locks.Lock(datasetID)
	defer unlock()

	err = r.store.CreateIndex(ctx, def)
	observe(opCreate, err)
	if err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return fmt.Errorf("index %s: %w", def.Name, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("create index %s: %w", def.Name, err)
	}
	return nil
}

// Extend adds the fields of a mapping delta to the dataset index.
// Fields the index already has are left as they are.
func (r *Repo) Extend(ctx context.Context, datasetID string, delta mapping.Spec) error {
	fields, err := indexFields(delta, r.hnsw)
	if err != nil {
		return fmt.Errorf("build index fields: %w", err)
	}
	if len(fields) == 0 {
		return nil
	}

	unlock := r.locks.Lock(datasetID)
	defer unlock()

	name := mapping.IndexName(datasetID)
	err = r.store.AlterIndex(ctx, name, fields)
	observe(opExtend, err)
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return fmt.Errorf("index %s: %w", name, domain.ErrIndexNotFound)
		}
		return fmt.Errorf("alter index %s: %w", name, err)
	}
	return nil
}

// Delete drops the dataset index. Record documents are kept.
func (r *Repo) Delete(ctx context.Context, datasetID string) error {
	unlock := r.locks.Lock(datasetID)
	defer unlock()

	name := mapping.IndexName(datasetID)
	err := r.store.DropIndex(ctx, name)
	observe(opDrop, err)
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return fmt.Errorf("index %s: %w", name, domain.ErrIndexNotFound)
		}
		return fmt.Errorf("drop index %s: %w", name, err)
	}
	return nil
}

// Exists reports whether the dataset index exists.
func (r *Repo) Exists(ctx context.Context, datasetID string) (bool, error) {
	ok, err := r.store.IndexExists(ctx, mapping.IndexName(datasetID))
	if err != nil {
		return false, fmt.Errorf("check index exists: %w", err)
	}
	return ok, nil
}

func observe(op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.IndexMappingUpdatesTotal.WithLabelValues(op, status).Inc()
}

// recordPrefix is the key prefix of a dataset's record documents.
// Key pattern: {prefix}{dataset}:record:
func recordPrefix(prefix, datasetID string) string {
	return fmt.Sprintf("%s%s:record:", prefix, datasetID)
}
