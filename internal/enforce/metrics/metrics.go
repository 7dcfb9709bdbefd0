// Package metrics holds the Prometheus instruments for enforcement runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all enforcement engine metrics.
type Metrics struct {
	RunsTotal   prometheus.Counter
	PairsTotal  *prometheus.CounterVec
	RunDuration prometheus.Histogram
}

// New creates and registers the enforcement metrics on the default
// registerer.
func New() *Metrics {
	return &Metrics{
		RunsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "defender_enforcement_runs_total",
			Help: "Total number of enforcement runs completed",
		}),
		PairsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "defender_enforcement_pairs_total",
			Help: "Enforcement pair outcomes by category",
		}, []string{"outcome"}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "defender_enforcement_run_duration_seconds",
			Help:    "Wall-clock duration of enforcement runs",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// ObservePair records a single pair outcome.
func (m *Metrics) ObservePair(outcome string) {
	if m == nil {
		return
	}
	m.PairsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRun records a completed run.
func (m *Metrics) ObserveRun(seconds float64) {
	if m == nil {
		return
	}
	m.RunsTotal.Inc()
	m.RunDuration.Observe(seconds)
}
