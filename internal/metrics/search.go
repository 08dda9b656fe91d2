// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "annosearch"

// Search engine collectors, labelled by query mode.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "search",
		Name:      "requests_total",
		Help:      "Record searches sent to the engine by outcome.",
	}, []string{"mode", "status"})

	SearchRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "search",
		Name:      "request_duration_seconds",
		Help:      "Engine round-trip latency.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2.5, 10),
	}, []string{"mode"})

	SearchHits = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "search",
		Name:      "hits",
		Help:      "Matching records per search.",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
	}, []string{"mode"})

	SearchErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "search",
		Name:      "errors_total",
		Help:      "Engine failures by kind.",
	}, []string{"mode", "error_type"})
)

var registerSearch sync.Once

// RegisterSearchMetrics registers the search collectors with the default
// registry. Later calls do nothing.
func RegisterSearchMetrics() {
	registerSearch.Do(func() {
		prometheus.MustRegister(SearchRequestsTotal, SearchRequestDuration, SearchHits, SearchErrorsTotal)
	})
}
