// Package metrics exposes Prometheus collectors for the link checking pipeline.
//
// Every [Metrics] value owns its own registry so several checkers (or tests)
// can coexist in one process without duplicate registration panics. All
// methods are safe to call on a nil *Metrics, which turns them into no-ops.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "publink"

// Probe result labels.
const (
	ResultReachable   = "reachable"
	ResultUnreachable = "unreachable"
	ResultError       = "error"
)

// Run outcome labels.
const (
	RunPublished  = "published"
	RunUnchanged  = "unchanged"
	RunSuperseded = "superseded"
)

// Metrics groups the collectors used by the prober, sessions and server.
type Metrics struct {
	registry *prometheus.Registry

	probes        *prometheus.CounterVec
	probeDuration prometheus.Histogram
	throttled     prometheus.Counter
	runs          *prometheus.CounterVec
	sessions      prometheus.Gauge
	storeErrors   prometheus.Counter
}

// New creates a [Metrics] with a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		probes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "probes_total",
				Help:      "Reachability probes sent, by result.",
			},
			[]string{"result"},
		),
		probeDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "probe_duration_seconds",
				Help:      "Duration of reachability probes.",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
			},
		),
		throttled: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "probes_throttled_total",
				Help:      "Probes skipped because the URL was checked within the throttle interval.",
			},
		),
		runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pipeline_runs_total",
				Help:      "Pipeline runs, by outcome.",
			},
			[]string{"outcome"},
		),
		sessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_sessions",
				Help:      "Editing sessions currently open.",
			},
		),
		storeErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "throttle_store_errors_total",
				Help:      "Throttle store operations that failed.",
			},
		),
	}
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns an HTTP handler serving the registry in exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveProbe records one completed probe.
func (m *Metrics) ObserveProbe(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.probes.WithLabelValues(result).Inc()
	m.probeDuration.Observe(d.Seconds())
}

// ProbeThrottled records a probe skipped by the throttle.
func (m *Metrics) ProbeThrottled() {
	if m == nil {
		return
	}
	m.throttled.Inc()
}

// RunFinished records the outcome of one pipeline run.
func (m *Metrics) RunFinished(outcome string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
}

// SessionOpened increments the active session gauge.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessions.Inc()
}

// SessionClosed decrements the active session gauge.
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.sessions.Dec()
}

// StoreError records a failed throttle store operation.
func (m *Metrics) StoreError() {
	if m == nil {
		return
	}
	m.storeErrors.Inc()
}
