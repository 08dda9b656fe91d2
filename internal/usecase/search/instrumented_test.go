package search

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/annosearch/internal/domain"
	"github.com/kailas-cloud/annosearch/internal/domain/search/filter"
	"github.com/kailas-cloud/annosearch/internal/domain/search/query"
	"github.com/kailas-cloud/annosearch/internal/domain/search/result"
	"github.com/kailas-cloud/annosearch/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterSearchMetrics()
	os.Exit(m.Run())
}

func TestInstrumentedRepository_Success(t *testing.T) {
	inner := &mockRepo{searchFn: func(query.Query) (result.Page, error) {
		return result.Page{Items: []result.Item{result.New("r1", 1.5)}, Total: 1}, nil
	}}
	repo := NewInstrumentedRepository(inner, zap.NewNop())
	before := testutil.ToFloat64(metrics.SearchRequestsTotal.WithLabelValues(modeText, "ok"))

	page, err := repo.Search(context.Background(), "ds-1", query.Query{Text: &query.Text{Q: "card"}, Limit: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Total != 1 || len(page.Items) != 1 {
		t.Errorf("page = %+v", page)
	}
	if got := testutil.ToFloat64(metrics.SearchRequestsTotal.WithLabelValues(modeText, "ok")); got != before+1 {
		t.Errorf("search_requests_total = %v, want %v", got, before+1)
	}
}

func TestInstrumentedRepository_Error(t *testing.T) {
	inner := &mockRepo{searchFn: func(query.Query) (result.Page, error) {
		return result.Page{}, fmt.Errorf("index rg.ds-1: %w", domain.ErrIndexNotFound)
	}}
	repo := NewInstrumentedRepository(inner, zap.NewNop())
	before := testutil.ToFloat64(metrics.SearchErrorsTotal.WithLabelValues(modeList, "index_not_found"))

	_, err := repo.Search(context.Background(), "ds-1", query.Query{Limit: 10})
	if !errors.Is(err, domain.ErrIndexNotFound) {
		t.Fatalf("err = %v, want ErrIndexNotFound", err)
	}
	if got := testutil.ToFloat64(metrics.SearchErrorsTotal.WithLabelValues(modeList, "index_not_found")); got != before+1 {
		t.Errorf("search_errors_total = %v, want %v", got, before+1)
	}
}

func TestInstrumentedRepository_Count(t *testing.T) {
	inner := &mockRepo{countFn: func(filter.Expression) (int, error) { return 7, nil }}
	repo := NewInstrumentedRepository(inner, zap.NewNop())

	n, err := repo.Count(context.Background(), "ds-1", filter.Expression{})
	if err != nil || n != 7 {
		t.Fatalf("n = %d, err = %v", n, err)
	}

	inner.countFn = func(filter.Expression) (int, error) { return 0, context.DeadlineExceeded }
	if _, err := repo.Count(context.Background(), "ds-1", filter.Expression{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
}

func TestQueryMode(t *testing.T) {
	text := &query.Text{Q: "x"}
	vec := &query.Vector{Value: []float32{1}}
	tests := []struct {
		q    query.Query
		want string
	}{
		{query.Query{}, modeList},
		{query.Query{Text: text}, modeText},
		{query.Query{Vector: vec}, modeVector},
		{query.Query{Text: text, Vector: vec}, modeHybrid},
	}
	for _, tt := range tests {
		if got := queryMode(tt.q); got != tt.want {
			t.Errorf("queryMode(%+v) = %q, want %q", tt.q, got, tt.want)
		}
	}
}
