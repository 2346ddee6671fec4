package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_CountersAndGauge(t *testing.T) {
	m := New()

	m.MessagesReceivedTotal.Inc()
	m.MessagesReceivedTotal.Inc()
	m.ActionOutcomesTotal.WithLabelValues("CONTINUE", "EXECUTED").Inc()
	m.BreakerState.Set(1)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.MessagesReceivedTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ActionOutcomesTotal.WithLabelValues("CONTINUE", "EXECUTED")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.BreakerState))
}

func TestMetrics_HandlerServesRegistry(t *testing.T) {
	m := New()
	m.ApprovalsEnqueuedTotal.Inc()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "approvals_enqueued_total")
}
