// Package metrics exposes Prometheus instrumentation for the serving
// and connection-lifecycle layers.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/hostwire/internal/http2"
)

// Metrics holds the collectors for a server instance. It implements
// http2.Observer so connection handlers can report lifecycle events
// directly.
type Metrics struct {
	registry *prometheus.Registry

	connectionsActive prometheus.Gauge
	connectionsTotal  prometheus.Counter
	connectionErrors  *prometheus.CounterVec
	goAwaysSent       *prometheus.CounterVec
	requestsRouted    *prometheus.CounterVec
	routingMisses     prometheus.Counter
}

// New creates a Metrics instance backed by its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		connectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hostwire_connections_active",
			Help: "Number of currently open connections.",
		}),
		connectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "hostwire_connections_total",
			Help: "Total number of connections accepted.",
		}),
		connectionErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hostwire_connection_errors_total",
			Help: "Session-fatal connection errors escalated, by error code.",
		}, []string{"code"}),
		goAwaysSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hostwire_goaway_frames_sent_total",
			Help: "GOAWAY frames sent to peers, by error code.",
		}, []string{"code"}),
		requestsRouted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hostwire_requests_routed_total",
			Help: "Requests dispatched to a service, by virtual host.",
		}, []string{"host"}),
		routingMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "hostwire_routing_misses_total",
			Help: "Requests whose path matched no service binding.",
		}),
	}
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ConnOpened records a newly accepted connection.
func (m *Metrics) ConnOpened() {
	m.connectionsTotal.Inc()
	m.connectionsActive.Inc()
}

// ConnectionErrorEscalated implements http2.Observer.
func (m *Metrics) ConnectionErrorEscalated(code http2.ErrorCode) {
	m.connectionErrors.WithLabelValues(code.String()).Inc()
}

// GoAwaySent implements http2.Observer.
func (m *Metrics) GoAwaySent(code http2.ErrorCode) {
	m.goAwaysSent.WithLabelValues(code.String()).Inc()
}

// ConnectionClosed implements http2.Observer.
func (m *Metrics) ConnectionClosed() {
	m.connectionsActive.Dec()
}

// RequestRouted records a successful dispatch to the given host.
func (m *Metrics) RequestRouted(host string) {
	m.requestsRouted.WithLabelValues(host).Inc()
}

// RoutingMiss records a request that matched no binding.
func (m *Metrics) RoutingMiss() {
	m.routingMisses.Inc()
}
