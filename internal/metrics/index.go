package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// IndexMappingUpdatesTotal counts index schema changes. op is create,
// extend or drop; status is ok or error.
var IndexMappingUpdatesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "index",
	Name:      "mapping_updates_total",
	Help:      "Dataset index schema changes by operation and outcome.",
}, []string{"op", "status"})

var registerIndex sync.Once

// RegisterIndexMetrics registers the index collectors once.
func RegisterIndexMetrics() {
	registerIndex.Do(func() {
		prometheus.MustRegister(IndexMappingUpdatesTotal)
	})
}
