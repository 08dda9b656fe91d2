// Package search compiles record searches against a dataset schema and runs them.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/annosearch/internal/domain"
	"github.com/kailas-cloud/annosearch/internal/domain/schema"
	"github.com/kailas-cloud/annosearch/internal/domain/search/filter"
	"github.com/kailas-cloud/annosearch/internal/domain/search/query"
	"github.com/kailas-cloud/annosearch/internal/domain/search/request"
	"github.com/kailas-cloud/annosearch/internal/domain/search/result"
	"github.com/kailas-cloud/annosearch/internal/domain/search/scope"
)

// defaultConcurrency bounds parallel count queries of the progress helpers.
const defaultConcurrency = 4

// Service handles record search and progress aggregation.
type Service struct {
	repo        Repository
	datasets    DatasetReader
	records     RecordReader
	concurrency int
	timeout     time.Duration
}

// New creates a search service.
func New(repo Repository, datasets DatasetReader, records RecordReader) *Service {
	return &Service{repo: repo, datasets: datasets, records: records, concurrency: defaultConcurrency}
}

// WithConcurrency overrides the progress fan-out limit.
func (s *Service) WithConcurrency(n int) *Service {
	if n > 0 {
		s.concurrency = n
	}
	return s
}

// WithTimeout bounds each backend query. Zero disables the bound.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout == 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Search runs a record search. Items keep the backend order.
func (s *Service) Search(ctx context.Context, datasetID string, req *request.Search) (result.Page, error) {
	return s.search(ctx, datasetID, req, false)
}

// SearchLegacy is Search with the legacy API's sortable record properties.
func (s *Service) SearchLegacy(ctx context.Context, datasetID string, req *request.Search) (result.Page, error) {
	return s.search(ctx, datasetID, req, true)
}

func (s *Service) search(ctx context.Context, datasetID string, req *request.Search, legacy bool) (result.Page, error) {
	ds, err := s.datasets.Get(ctx, datasetID)
	if err != nil {
		return result.Page{}, fmt.Errorf("get dataset: %w", err)
	}
	c := compiler{ds: ds, user: req.User(), legacy: legacy}

	var vector *query.Vector
	if vq := req.Vector(); vq != nil {
		value, err := s.queryVector(ctx, datasetID, *vq)
		if err != nil {
			return result.Page{}, err
		}
		if vector, err = c.vector(*vq, value); err != nil {
			return result.Page{}, err
		}
	}

	q, err := c.compile(req, vector)
	if errors.Is(err, errNoMatch) {
		return result.Page{Items: []result.Item{}}, nil
	}
	if err != nil {
		return result.Page{}, err
	}

	qctx, cancel := s.withTimeout(ctx)
	defer cancel()
	page, err := s.repo.Search(qctx, datasetID, q)
	if err != nil {
		return result.Page{}, fmt.Errorf("search records: %w", err)
	}
	return page, nil
}

// queryVector returns the literal query vector or the seed record's.
func (s *Service) queryVector(ctx context.Context, datasetID string, vq request.VectorQuery) ([]float32, error) {
	if vq.RecordID == "" {
		return vq.Value, nil
	}
	rec, err := s.records.Get(ctx, datasetID, vq.RecordID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.Unprocessablef("record with id `%s` not found", vq.RecordID)
	}
	if err != nil {
		return nil, fmt.Errorf("get seed record: %w", err)
	}
	value, ok := rec.Vector(vq.Name)
	if !ok {
		return nil, domain.Unprocessablef("record `%s` does not have a vector for vector settings `%s`", vq.RecordID, vq.Name)
	}
	return value, nil
}

// Progress counts the dataset's records by completion.
func (s *Service) Progress(ctx context.Context, datasetID string) (result.Progress, error) {
	status := scope.MustRecord(scope.RecordStatus)
	completed, err := filter.NewTerms(status, []string{string(schema.RecordCompleted)})
	if err != nil {
		return result.Progress{}, err
	}

	counts, err := s.countAll(ctx, datasetID, filter.Expression{}, filter.Expression{}.And(completed))
	if err != nil {
		return result.Progress{}, err
	}
	return result.Progress{
		Total:     counts[0],
		Completed: counts[1],
		Pending:   counts[0] - counts[1],
	}, nil
}

// UserProgress counts one user's responses by status.
func (s *Service) UserProgress(ctx context.Context, datasetID, user string) (result.UserProgress, error) {
	if user == "" {
		return result.UserProgress{}, domain.Validationf("user is required")
	}
	sc := scope.ResponseStatusOf(user)
	exprs := []filter.Expression{{}}
	for _, st := range []schema.ResponseStatus{schema.ResponseSubmitted, schema.ResponseDiscarded, schema.ResponseDraft} {
		cond, err := filter.NewTerms(sc, []string{string(st)})
		if err != nil {
			return result.UserProgress{}, err
		}
		exprs = append(exprs, filter.Expression{}.And(cond))
	}

	counts, err := s.countAll(ctx, datasetID, exprs...)
	if err != nil {
		return result.UserProgress{}, err
	}
	p := result.UserProgress{
		Total:     counts[0],
		Submitted: counts[1],
		Discarded: counts[2],
		Draft:     counts[3],
	}
	p.Pending = p.Total - p.Submitted - p.Discarded - p.Draft
	return p, nil
}

// countAll runs one count per expression concurrently. The first error cancels the rest.
func (s *Service) countAll(ctx context.Context, datasetID string, exprs ...filter.Expression) ([]int, error) {
	counts := make([]int, len(exprs))
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, expr := range exprs {
		g.Go(func() error {
			n, err := s.repo.Count(gctx, datasetID, expr)
			if err != nil {
				return err
			}
			counts[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}
	return counts, nil
}
