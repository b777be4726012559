package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/hostwire/internal/http2"
)

func TestConnectionLifecycleCounters(t *testing.T) {
	m := New()

	m.ConnOpened()
	m.ConnOpened()
	m.ConnectionClosed()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.connectionsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connectionsActive))
}

func TestErrorAndGoAwayCounters(t *testing.T) {
	m := New()

	m.ConnectionErrorEscalated(http2.ErrCodeProtocolError)
	m.ConnectionErrorEscalated(http2.ErrCodeProtocolError)
	m.GoAwaySent(http2.ErrCodeProtocolError)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.connectionErrors.WithLabelValues("PROTOCOL_ERROR")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.goAwaysSent.WithLabelValues("PROTOCOL_ERROR")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.goAwaysSent.WithLabelValues("INTERNAL_ERROR")))
}

func TestRoutingCounters(t *testing.T) {
	m := New()

	m.RequestRouted("api.example.com")
	m.RequestRouted("api.example.com")
	m.RoutingMiss()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestsRouted.WithLabelValues("api.example.com")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.routingMisses))
}

func TestHandlerServesRegisteredMetrics(t *testing.T) {
	m := New()
	m.ConnOpened()
	m.RequestRouted("example.com")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "hostwire_connections_total 1"), "body: %s", body)
	assert.True(t, strings.Contains(body, `hostwire_requests_routed_total{host="example.com"} 1`), "body: %s", body)
}
