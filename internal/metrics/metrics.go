// Package metrics provides Prometheus metrics for the folio backend.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	SyncsTotal          *prometheus.CounterVec
	SyncDuration        prometheus.Histogram
	StoreMutations      *prometheus.CounterVec
	StoreRollbacks      prometheus.Counter
	GitHubRateRemaining prometheus.Gauge
	ErrorsTotal         *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		SyncsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_syncs_total",
				Help: "Total number of project sync attempts by trigger and status.",
			},
			[]string{"trigger", "status"},
		),
		SyncDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "folio_sync_duration_seconds",
				Help:    "Duration of single-project sync operations.",
				Buckets: prometheus.DefBuckets,
			},
		),
		StoreMutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_tracker_mutations_total",
				Help: "Total tracker store mutations by operation and status.",
			},
			[]string{"op", "status"},
		),
		StoreRollbacks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "folio_tracker_rollbacks_total",
				Help: "Total optimistic mutations rolled back after a failed persistence write.",
			},
		),
		GitHubRateRemaining: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "folio_github_rate_remaining",
				Help: "Remaining GitHub API core-quota requests at last probe.",
			},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_errors_total",
				Help: "Total errors by module and type.",
			},
			[]string{"module", "type"},
		),
		registry: reg,
	}

	reg.MustRegister(m.SyncsTotal)
	reg.MustRegister(m.SyncDuration)
	reg.MustRegister(m.StoreMutations)
	reg.MustRegister(m.StoreRollbacks)
	reg.MustRegister(m.GitHubRateRemaining)
	reg.MustRegister(m.ErrorsTotal)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordSync increments the sync counter.
func (m *Metrics) RecordSync(trigger, status string) {
	m.SyncsTotal.WithLabelValues(trigger, status).Inc()
}

// RecordMutation increments the tracker mutation counter.
func (m *Metrics) RecordMutation(op, status string) {
	m.StoreMutations.WithLabelValues(op, status).Inc()
}

// RecordRollback increments the rollback counter.
func (m *Metrics) RecordRollback() {
	m.StoreRollbacks.Inc()
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(module, errType string) {
	m.ErrorsTotal.WithLabelValues(module, errType).Inc()
}

// SetRateRemaining records the GitHub quota remaining.
func (m *Metrics) SetRateRemaining(remaining float64) {
	m.GitHubRateRemaining.Set(remaining)
}

// ObserveSyncDuration records a single-project sync duration.
func (m *Metrics) ObserveSyncDuration(seconds float64) {
	m.SyncDuration.Observe(seconds)
}
