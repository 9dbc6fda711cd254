// Package metrics exposes Prometheus instrumentation for the HTTP server.
// Labels stay at (method, route, status) to avoid cardinality explosions.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ServerMetrics holds the registry and the HTTP server instruments.
type ServerMetrics struct {
	reg     *prometheus.Registry
	handler http.Handler

	inflight     prometheus.Gauge
	reqTotal     *prometheus.CounterVec
	reqDur       *prometheus.HistogramVec
	respBytes    *prometheus.HistogramVec
	deniedTotal  prometheus.Counter
	droppedTotal prometheus.Counter
}

// New returns a fresh registry with standard collectors plus the HTTP metrics.
func New() *ServerMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &ServerMetrics{
		reg: reg,
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Current number of in-flight HTTP requests",
		}),
		reqTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route, and status",
		}, []string{"method", "route", "status"}),
		reqDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request latency by method and route",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "route"}),
		respBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Response size by method and route",
			Buckets: []float64{256, 1024, 4096, 16384, 65536, 262144, 1048576},
		}, []string{"method", "route"}),
		deniedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ratelimit_denied_total",
			Help: "Requests rejected by the rate limiter",
		}),
		droppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "requestlog_dropped_total",
			Help: "Request log entries dropped because the write queue was full",
		}),
	}

	reg.MustRegister(m.inflight, m.reqTotal, m.reqDur, m.respBytes, m.deniedTotal, m.droppedTotal)

	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *ServerMetrics) Handler() http.Handler {
	return m.handler
}

// RateLimitDenied records one rate-limited request.
func (m *ServerMetrics) RateLimitDenied() {
	if m == nil {
		return
	}
	m.deniedTotal.Inc()
}

// RequestLogDropped records one dropped request-log entry.
func (m *ServerMetrics) RequestLogDropped() {
	if m == nil {
		return
	}
	m.droppedTotal.Inc()
}
