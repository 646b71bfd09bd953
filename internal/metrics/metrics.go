package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Operations counts engine operations by name and result status.
	Operations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mnemo_operations_total",
		Help: "Total number of memory operations by operation and status",
	}, []string{"op", "status"})

	// MaintenanceDuration observes wall-clock time of completed maintenance passes.
	MaintenanceDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mnemo_maintenance_duration_seconds",
		Help:    "Maintenance pass duration in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})

	// MaintenanceFailures counts aborted maintenance passes by failing step.
	MaintenanceFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mnemo_maintenance_failures_total",
		Help: "Total number of aborted maintenance passes by step",
	}, []string{"step"})

	Evicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mnemo_evicted_total",
		Help: "Total number of records removed by eviction",
	})

	Reinforced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mnemo_reinforced_total",
		Help: "Total number of importance scores raised by reinforcement",
	})

	// SearchRows is the row count of the search index after the last rebuild.
	SearchRows = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mnemo_search_index_rows",
		Help: "Number of rows in the full-text search index after the last rebuild",
	})
)

// Observe records one operation outcome.
func Observe(op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	Operations.WithLabelValues(op, status).Inc()
}
