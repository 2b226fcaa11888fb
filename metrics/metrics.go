// Package metrics exposes Prometheus counters for resumes, reconciliation,
// auto-resume and message dispatch.
//
// Metrics are registered on a private registry so tests can create as many
// collectors as they like. Each Observe method matches the callback
// signature of the component it instruments.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codestate/codestate-core/autoresume"
	"github.com/codestate/codestate-core/failure"
	"github.com/codestate/codestate-core/reconcile"
)

const namespace = "codestate"

// Metrics holds all collectors.
type Metrics struct {
	registry *prometheus.Registry

	// Resume metrics
	ResumesTotal   *prometheus.CounterVec
	ResumeDuration prometheus.Histogram

	// Reconciliation metrics
	ReconcileTransitions *prometheus.CounterVec

	// Auto-resume metrics
	AutoResumeItems *prometheus.CounterVec

	// Protocol metrics
	MessagesTotal *prometheus.CounterVec
	WSConnections prometheus.Gauge
}

// New creates and registers every collector.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		ResumesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resumes_total",
				Help:      "Session resume attempts by outcome (success or error kind)",
			},
			[]string{"outcome"},
		),
		ResumeDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "resume_duration_seconds",
				Help:      "Session resume duration in seconds, including time waiting on prompts",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 300},
			},
		),
		ReconcileTransitions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconcile_transitions_total",
				Help:      "Reconciliation state machine transitions by entered state",
			},
			[]string{"state"},
		),
		AutoResumeItems: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "autoresume_items_total",
				Help:      "Auto-resumed scripts and terminal collections by outcome",
			},
			[]string{"kind", "outcome"},
		),
		MessagesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_total",
				Help:      "Dispatched protocol messages by type",
			},
			[]string{"type"},
		),
		WSConnections: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "ws_connections",
				Help:      "Open WebSocket connections",
			},
		),
	}
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	return string(failure.KindOf(err))
}

// ObserveResume records one resume attempt.
func (m *Metrics) ObserveResume(_ string, err error, elapsed time.Duration) {
	m.ResumesTotal.WithLabelValues(outcome(err)).Inc()
	m.ResumeDuration.Observe(elapsed.Seconds())
}

// ObserveReconcileState records a reconciliation transition.
func (m *Metrics) ObserveReconcileState(_ string, s reconcile.State) {
	m.ReconcileTransitions.WithLabelValues(string(s)).Inc()
}

// ObserveAutoResume records one auto-resume item.
func (m *Metrics) ObserveAutoResume(item autoresume.Item, err error) {
	m.AutoResumeItems.WithLabelValues(item.Kind, outcome(err)).Inc()
}

// ObserveDispatch records a dispatched message. Unclaimed types share one
// label value.
func (m *Metrics) ObserveDispatch(msgType string, handled bool) {
	if !handled {
		msgType = "unknown"
	}
	m.MessagesTotal.WithLabelValues(msgType).Inc()
}
