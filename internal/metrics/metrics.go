// Package metrics holds the Prometheus collectors for dispatch and IPC.
//
// All methods are safe on a nil *Metrics so components can run without
// a collector.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Source outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeEmpty   = "empty"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
	OutcomeStale   = "stale"
)

// Metrics holds all flare collectors on a private registry.
type Metrics struct {
	Dispatches      prometheus.Counter
	SourceResults   *prometheus.CounterVec
	SourceDuration  *prometheus.HistogramVec
	IPCMessages     *prometheus.CounterVec
	CommandsPending prometheus.Gauge

	registry *prometheus.Registry
}

// New creates the collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,

		Dispatches: factory.NewCounter(prometheus.CounterOpts{
			Name: "flare_dispatches_total",
			Help: "Total number of query dispatch rounds",
		}),
		SourceResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flare_source_results_total",
				Help: "Source contributions by outcome",
			},
			[]string{"source", "outcome"},
		),
		SourceDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flare_source_duration_seconds",
				Help:    "Time taken by async sources",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"source"},
		),
		IPCMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flare_ipc_messages_total",
				Help: "Messages received on the control socket by command kind",
			},
			[]string{"kind"},
		),
		CommandsPending: factory.NewGauge(prometheus.GaugeOpts{
			Name: "flare_commands_pending",
			Help: "Commands waiting for a window or results surface",
		}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveDispatch() {
	if m == nil {
		return
	}
	m.Dispatches.Inc()
}

func (m *Metrics) ObserveSource(source, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.SourceResults.WithLabelValues(source, outcome).Inc()
	if took > 0 {
		m.SourceDuration.WithLabelValues(source).Observe(took.Seconds())
	}
}

func (m *Metrics) ObserveMessage(kind string) {
	if m == nil {
		return
	}
	m.IPCMessages.WithLabelValues(kind).Inc()
}

func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.CommandsPending.Set(float64(n))
}
