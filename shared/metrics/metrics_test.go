package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.LoginAttempt(OutcomeSuccess)
	m.LoginAttempt(OutcomeSuccess)
	m.LoginAttempt(OutcomeInvalid)
	m.TokenIssued(KindRefresh)
	m.AuthzDecision(true)
	m.AuthzDecision(false)
	m.AuthzDecision(false)
	m.TenantCacheLookup(true)
	m.EventDropped()
	m.SetExpiredTenants(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.LoginAttemptsTotal.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoginAttemptsTotal.WithLabelValues(OutcomeInvalid)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TokensIssuedTotal.WithLabelValues(KindRefresh)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.AuthzDecisionsTotal.WithLabelValues("denied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TenantCacheTotal.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsDroppedTotal))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ExpiredTenantsCurrent))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.LoginAttempt(OutcomeSuccess)
		m.TokenIssued(KindLogin)
		m.AuthzDecision(true)
		m.TenantCacheLookup(false)
		m.EventDropped()
		m.SetExpiredTenants(1)
		m.ObserveHTTP("GET", "/health", 200, 0.01)
	})
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.TokenIssued(KindLogin)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `admin_tokens_issued_total{kind="login"} 1`))
}
