package search

import (
	"context"

	"github.com/kailas-cloud/annosearch/internal/domain/schema"
	"github.com/kailas-cloud/annosearch/internal/domain/search/filter"
	"github.com/kailas-cloud/annosearch/internal/domain/search/query"
	"github.com/kailas-cloud/annosearch/internal/domain/search/result"
)

// Repository defines the storage contract for search operations.
type Repository interface {
	Search(ctx context.Context, datasetID string, q query.Query) (result.Page, error)
	Count(ctx context.Context, datasetID string, expr filter.Expression) (int, error)
}

// DatasetReader reads dataset schemas.
type DatasetReader interface {
	Get(ctx context.Context, id string) (schema.Dataset, error)
}

// RecordReader reads records for seed vectors.
type RecordReader interface {
	Get(ctx context.Context, datasetID, id string) (schema.Record, error)
}
