// internal/pkg/metrics/metrics.go
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the service exports.
type Metrics struct {
	registry *prometheus.Registry

	HTTPInFlight        prometheus.Gauge
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	JornadaOps      *prometheus.CounterVec
	Handoffs        *prometheus.CounterVec
	SessionsCleared *prometheus.CounterVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		HTTPInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		JornadaOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledroit_jornada_operations_total",
			Help: "Shift open/close attempts by outcome reason.",
		}, []string{"op", "outcome"}),
		Handoffs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledroit_handoffs_total",
			Help: "Derived-login handoffs sent and received by outcome reason.",
		}, []string{"direction", "outcome"}),
		SessionsCleared: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledroit_sessions_cleared_total",
			Help: "Sessions cleared by reason.",
		}, []string{"reason"}),
	}

	reg.MustRegister(
		m.HTTPInFlight, m.HTTPRequestsTotal, m.HTTPRequestDuration,
		m.JornadaOps, m.Handoffs, m.SessionsCleared,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// JornadaOp counts a shift operation. Nil receivers are ignored.
func (m *Metrics) JornadaOp(op, outcome string) {
	if m == nil {
		return
	}
	m.JornadaOps.WithLabelValues(op, outcome).Inc()
}

// Handoff counts a relay ("sent") or receiver ("received") outcome.
func (m *Metrics) Handoff(direction, outcome string) {
	if m == nil {
		return
	}
	m.Handoffs.WithLabelValues(direction, outcome).Inc()
}

// SessionCleared counts a cleared session.
func (m *Metrics) SessionCleared(reason string) {
	if m == nil {
		return
	}
	m.SessionsCleared.WithLabelValues(reason).Inc()
}
