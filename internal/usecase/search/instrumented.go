package search

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/annosearch/internal/domain"
	"github.com/kailas-cloud/annosearch/internal/domain/search/filter"
	"github.com/kailas-cloud/annosearch/internal/domain/search/query"
	"github.com/kailas-cloud/annosearch/internal/domain/search/result"
	"github.com/kailas-cloud/annosearch/internal/metrics"
)

// Search modes used as metric labels.
const (
	modeList   = "list"
	modeText   = "text"
	modeVector = "vector"
	modeHybrid = "hybrid"
	modeCount  = "count"
)

// InstrumentedRepository wraps Repository with Prometheus metrics and debug logging.
type InstrumentedRepository struct {
	inner  Repository
	logger *zap.Logger
}

// NewInstrumentedRepository wraps a repository with observability.
func NewInstrumentedRepository(inner Repository, logger *zap.Logger) *InstrumentedRepository {
	return &InstrumentedRepository{inner: inner, logger: logger}
}

// Search delegates to the inner repository and records duration, hits and errors.
func (r *InstrumentedRepository) Search(ctx context.Context, datasetID string, q query.Query) (result.Page, error) {
	mode := queryMode(q)
	start := time.Now()

	page, err := r.inner.Search(ctx, datasetID, q)

	duration := time.Since(start)
	metrics.SearchRequestDuration.WithLabelValues(mode).Observe(duration.Seconds())
	if err != nil {
		r.fail(mode, datasetID, duration, err)
		return result.Page{}, err
	}

	metrics.SearchRequestsTotal.WithLabelValues(mode, "ok").Inc()
	metrics.SearchHits.WithLabelValues(mode).Observe(float64(page.Total))
	r.logger.Debug("Search completed",
		zap.String("dataset_id", datasetID),
		zap.String("mode", mode),
		zap.Duration("duration", duration),
		zap.Int("items", len(page.Items)),
		zap.Int("total", page.Total),
	)
	return page, nil
}

// Count delegates to the inner repository and records duration and errors.
func (r *InstrumentedRepository) Count(ctx context.Context, datasetID string, expr filter.Expression) (int, error) {
	start := time.Now()

	n, err := r.inner.Count(ctx, datasetID, expr)

	duration := time.Since(start)
	metrics.SearchRequestDuration.WithLabelValues(modeCount).Observe(duration.Seconds())
	if err != nil {
		r.fail(modeCount, datasetID, duration, err)
		return 0, err
	}
	metrics.SearchRequestsTotal.WithLabelValues(modeCount, "ok").Inc()
	return n, nil
}

func (r *InstrumentedRepository) fail(mode, datasetID string, duration time.Duration, err error) {
	metrics.SearchRequestsTotal.WithLabelValues(mode, "error").Inc()
	metrics.SearchErrorsTotal.WithLabelValues(mode, errorType(err)).Inc()
	r.logger.Error("Search request failed",
		zap.String("dataset_id", datasetID),
		zap.String("mode", mode),
		zap.Duration("duration", duration),
		zap.Error(err),
	)
}

func queryMode(q query.Query) string {
	switch {
	case q.Vector != nil && q.Text != nil:
		return modeHybrid
	case q.Vector != nil:
		return modeVector
	case q.Text != nil:
		return modeText
	default:
		return modeList
	}
}

func errorType(err error) string {
	switch {
	case errors.Is(err, domain.ErrIndexNotFound):
		return "index_not_found"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "engine"
	}
}
