// Package telemetry exposes Prometheus metrics for the template pipeline.
package telemetry

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcomes recorded for nodes, renders and function calls.
const (
	OutcomeOK     = "ok"
	OutcomeError  = "error"
	OutcomeVetoed = "vetoed"
)

// Config controls metrics collection.
type Config struct {
	// Enabled controls whether metrics are collected at all.
	Enabled bool
	// Namespace prefixes every metric name (default: stencil).
	Namespace string
	// Buckets are the histogram buckets (default: prometheus.DefBuckets).
	Buckets []float64
}

// Metrics holds the pipeline collectors. A disabled Metrics accepts every
// call and records nothing.
type Metrics struct {
	nodes          *prometheus.CounterVec
	phaseDuration  *prometheus.HistogramVec
	renders        *prometheus.CounterVec
	renderDuration *prometheus.HistogramVec
	functionCalls  *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates a metrics collector on its own registry.
func New(cfg Config) *Metrics {
	if !cfg.Enabled {
		return &Metrics{}
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "stencil"
	}
	buckets := cfg.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		nodes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "nodes_processed_total",
				Help:      "Total number of template nodes processed",
			},
			[]string{"kind", "outcome"},
		),
		phaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "phase_duration_seconds",
				Help:      "Duration of action pipeline phases in seconds",
				Buckets:   buckets,
			},
			[]string{"phase"},
		),
		renders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "renders_total",
				Help:      "Total number of template renders",
			},
			[]string{"outcome"},
		),
		renderDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "render_duration_seconds",
				Help:      "Duration of template renders in seconds",
				Buckets:   buckets,
			},
			[]string{"outcome"},
		),
		functionCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "function_calls_total",
				Help:      "Total number of library function calls",
			},
			[]string{"function", "outcome"},
		),
	}

	registry.MustRegister(
		m.nodes,
		m.phaseDuration,
		m.renders,
		m.renderDuration,
		m.functionCalls,
	)

	return m
}

// NewNop returns a disabled Metrics.
func NewNop() *Metrics {
	return &Metrics{}
}

// Enabled reports whether metrics are being collected.
func (m *Metrics) Enabled() bool {
	return m != nil && m.registry != nil
}

// RecordNode counts a processed node.
func (m *Metrics) RecordNode(kind, outcome string) {
	if !m.Enabled() {
		return
	}
	m.nodes.WithLabelValues(kind, outcome).Inc()
}

// ObservePhase records how long a pipeline phase took.
func (m *Metrics) ObservePhase(phase string, d time.Duration) {
	if !m.Enabled() {
		return
	}
	m.phaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// RecordRender counts a render and its duration.
func (m *Metrics) RecordRender(outcome string, d time.Duration) {
	if !m.Enabled() {
		return
	}
	m.renders.WithLabelValues(outcome).Inc()
	m.renderDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// RecordFunctionCall counts a function call.
func (m *Metrics) RecordFunctionCall(function, outcome string) {
	if !m.Enabled() {
		return
	}
	m.functionCalls.WithLabelValues(function, outcome).Inc()
}

// Outcome maps an error to an outcome label.
func Outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeOK
}

// Registry returns the underlying registry, nil when disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if !m.Enabled() {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Serve exposes /metrics on addr in the background. The returned server
// must be shut down by the caller. errc receives the listen error, if any.
func (m *Metrics) Serve(addr string) (srv *http.Server, errc <-chan error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ch := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			ch <- err
		}
		close(ch)
	}()
	return srv, ch
}
