// ABOUTME: Tests for gateway Prometheus metrics.
// ABOUTME: Checks counters, the pending gauge, the handler, and nil safety.

package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCounters(t *testing.T) {
	m := New()
	m.ObserveRequest(OutcomeOK)
	m.ObserveRequest(OutcomeOK)
	m.ObserveRequest(OutcomeTimeout)
	m.ObserveDelivery(true)
	m.ObserveDelivery(false)
	m.ObserveDelivery(false)
	m.ObserveDuration(250 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues(OutcomeTimeout)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deliveries.WithLabelValues(DeliveryResolved)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.deliveries.WithLabelValues(DeliveryStale)))
}

func TestMetricsHandlerExposesPending(t *testing.T) {
	m := New()
	pending := 3
	m.RegisterPending(func() int { return pending })

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "picohost_gateway_pending_requests 3"), body)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveRequest(OutcomeOK)
	m.ObserveDelivery(true)
	m.ObserveDuration(time.Second)
	m.RegisterPending(func() int { return 0 })
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
