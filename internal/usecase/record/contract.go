package record

import (
	"context"

	"github.com/kailas-cloud/annosearch/internal/domain/schema"
)

// Repository defines the storage contract for records.
type Repository interface {
	Upsert(ctx context.Context, datasetID string, rec schema.Record) error
	UpsertMany(ctx context.Context, datasetID string, records []schema.Record) error
	Get(ctx context.Context, datasetID, id string) (schema.Record, error)
	GetMany(ctx context.Context, datasetID string, ids []string) ([]schema.Record, error)
	Delete(ctx context.Context, datasetID, id string) error
}

// DatasetReader reads dataset schemas for validation.
type DatasetReader interface {
	Get(ctx context.Context, id string) (schema.Dataset, error)
}
