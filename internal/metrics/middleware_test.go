package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsMiddleware_LabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/api/v1/datasets/{dataset_id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/api/v1/datasets/{dataset_id}", "200"))
	for _, id := range []string{"a", "b", "c"} {
		req := httptest.NewRequest("GET", "/api/v1/datasets/"+id, http.NoBody)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/api/v1/datasets/{dataset_id}", "200"))
	if got-before != 3 {
		t.Errorf("requests for pattern = %v, want 3", got-before)
	}
	if testutil.CollectAndCount(httpRequestDuration) == 0 {
		t.Error("expected http_request_duration_seconds observations")
	}
}

func TestMetricsMiddleware_StatusCodes(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/ok", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/conflict", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.WriteHeader(http.StatusInternalServerError)
	})

	tests := []struct {
		path   string
		status string
	}{
		{"/ok", "200"},
		{"/conflict", "409"},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", tc.path, http.NoBody))

			if val := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", tc.path, tc.status)); val < 1 {
				t.Errorf("requests_total{%s,%s} = %v, want >= 1", tc.path, tc.status, val)
			}
		})
	}
}

func TestRoutePattern_OutsideRouter(t *testing.T) {
	if got := routePattern(httptest.NewRequest("GET", "/api/v1/datasets/123", http.NoBody)); got != "unknown" {
		t.Errorf("routePattern = %q, want unknown", got)
	}
}

func TestMetricsMiddleware_InFlight(t *testing.T) {
	var during float64
	h := Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		during = testutil.ToFloat64(httpRequestsInFlight)
	}))

	before := testutil.ToFloat64(httpRequestsInFlight)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/x", http.NoBody))

	if during != before+1 {
		t.Errorf("in flight during request = %v, want %v", during, before+1)
	}
	if after := testutil.ToFloat64(httpRequestsInFlight); after != before {
		t.Errorf("in flight after request = %v, want %v", after, before)
	}
}
