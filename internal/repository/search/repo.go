// Package search runs compiled queries against a dataset's index.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kailas-cloud/annosearch/internal/db"
	"github.com/kailas-cloud/annosearch/internal/domain"
	"github.com/kailas-cloud/annosearch/internal/domain/search/filter"
	"github.com/kailas-cloud/annosearch/internal/domain/search/query"
	"github.com/kailas-cloud/annosearch/internal/domain/search/result"
	"github.com/kailas-cloud/annosearch/internal/mapping"
)

// store is the consumer interface for search operations (ISP).
type store interface {
	Search(ctx context.Context, q *db.SearchQuery) (*db.SearchResult, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index string, filters filter.Expression) (int, error)
}

// Repo implements usecase/search.Repository.
type Repo struct {
	store  store
	prefix string
}

// New creates a search repository. prefix must match the record repository's.
func New(s store, prefix string) *Repo {
	if prefix == "" {
		prefix = domain.DefaultKeyPrefix
	}
	return &Repo{store: s, prefix: prefix}
}

// Search runs q on the dataset index and returns record ids in engine order.
func (r *Repo) Search(ctx context.Context, datasetID string, q query.Query) (result.Page, error) {
	index := mapping.IndexName(datasetID)

	var (
		sr  *db.SearchResult
		err error
	)
	if q.Vector != nil {
		sr, err = r.store.SearchKNN(ctx, knnQuery(index, q))
	} else {
		sr, err = r.store.Search(ctx, searchQuery(index, q))
	}
	if err != nil {
		return result.Page{}, translate(index, err)
	}

	return r.toPage(datasetID, q, sr), nil
}

// Count returns the number of records matching expr.
func (r *Repo) Count(ctx context.Context, datasetID string, expr filter.Expression) (int, error) {
	index := mapping.IndexName(datasetID)
	n, err := r.store.SearchCount(ctx, index, expr)
	if err != nil {
		return 0, translate(index, err)
	}
	return n, nil
}

func searchQuery(index string, q query.Query) *db.SearchQuery {
	sq := &db.SearchQuery{
		IndexName: index,
		Filters:   q.Filter,
		Offset:    q.Offset,
		Limit:     q.Limit,
	}
	if q.Text != nil {
		sq.Text, sq.TextField = q.Text.Q, q.Text.Field
	}
	for _, s := range q.Sort {
		sq.Sort = append(sq.Sort, db.SortKey{Scope: s.Scope, Desc: s.Desc})
	}
	return sq
}

// knnQuery builds a nearest-neighbour query. The engine only finds nearest
// neighbours, so least-similar searches look for neighbours of the negated vector.
func knnQuery(index string, q query.Query) *db.KNNQuery {
	vector := q.Vector.Value
	if q.Vector.LeastSimilar {
		vector = make([]float32, len(q.Vector.Value))
		for i, v := range q.Vector.Value {
			vector[i] = -v
		}
	}
	kq := &db.KNNQuery{
		IndexName: index,
		Field:     q.Vector.Field,
		Filters:   q.Filter,
		Vector:    vector,
		K:         q.Limit,
	}
	if q.Text != nil {
		kq.Text, kq.TextField = q.Text.Q, q.Text.Field
	}
	return kq
}

func (r *Repo) toPage(datasetID string, q query.Query, sr *db.SearchResult) result.Page {
	if sr == nil {
		return result.Page{Items: []result.Item{}}
	}

	prefix := fmt.Sprintf("%s%s:record:", r.prefix, datasetID)
	page := result.Page{Items: make([]result.Item, 0, len(sr.Entries)), Total: sr.Total}
	for _, e := range sr.Entries {
		id := strings.TrimPrefix(e.Key, prefix)
		switch {
		case q.Vector != nil && q.Vector.LeastSimilar:
			// similarity to the original vector is the negated similarity to its opposite
			page.Items = append(page.Items, result.New(id, -e.Score))
		case q.Scored():
			page.Items = append(page.Items, result.New(id, e.Score))
		default:
			page.Items = append(page.Items, result.Unscored(id))
		}
	}
	return page
}

// translate maps backend errors onto domain sentinels.
func translate(index string, err error) error {
	if errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("index %s: %w", index, domain.ErrIndexNotFound)
	}
	return fmt.Errorf("%w: %w", domain.ErrSearchEngine, err)
}
