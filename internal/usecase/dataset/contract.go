package dataset

import (
	"context"

	"github.com/kailas-cloud/annosearch/internal/domain/schema"
	"github.com/kailas-cloud/annosearch/internal/mapping"
)

// Repository defines the storage contract for dataset schemas.
type Repository interface {
	Create(ctx context.Context, ds schema.Dataset) error
	Get(ctx context.Context, id string) (schema.Dataset, error)
	GetByName(ctx context.Context, workspace, name string) (schema.Dataset, error)
	List(ctx context.Context, workspace string) ([]schema.Dataset, error)
	Update(ctx context.Context, ds schema.Dataset) error
	Delete(ctx context.Context, id string) error
}

// IndexManager owns the search index backing a published dataset.
type IndexManager interface {
	Create(ctx context.Context, datasetID string, spec mapping.Spec) error
	Extend(ctx context.Context, datasetID string, delta mapping.Spec) error
	Delete(ctx context.Context, datasetID string) error
}

// RecordCleaner removes a dataset's records.
type RecordCleaner interface {
	DeleteAll(ctx context.Context, datasetID string) (int, error)
}
