package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Login outcomes
const (
	OutcomeSuccess         = "success"
	OutcomeInvalid         = "invalid_credentials"
	OutcomeTenantInactive  = "tenant_inactive"
	OutcomeUserInactive    = "user_inactive"
	OutcomeSubscriptionEnd = "subscription_expired"
)

// Token kinds
const (
	KindLogin   = "login"
	KindRefresh = "refresh"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	LoginAttemptsTotal    *prometheus.CounterVec
	TokensIssuedTotal     *prometheus.CounterVec
	AuthzDecisionsTotal   *prometheus.CounterVec
	TenantCacheTotal      *prometheus.CounterVec
	EventsDroppedTotal    prometheus.Counter
	ExpiredTenantsCurrent prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New creates and registers all collectors on registry
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "admin_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "admin_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		LoginAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "admin_login_attempts_total",
				Help: "Login attempts by outcome",
			},
			[]string{"outcome"},
		),
		TokensIssuedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "admin_tokens_issued_total",
				Help: "Session tokens issued by kind",
			},
			[]string{"kind"},
		),
		AuthzDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "admin_authorization_decisions_total",
				Help: "Authorization decisions by result",
			},
			[]string{"result"},
		),
		TenantCacheTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "admin_tenant_cache_lookups_total",
				Help: "Tenant cache lookups by result",
			},
			[]string{"result"},
		),
		EventsDroppedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "admin_events_dropped_total",
				Help: "Domain events dropped because the publish queue was full",
			},
		),
		ExpiredTenantsCurrent: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "admin_expired_tenants",
				Help: "Active tenants whose subscription has lapsed, as of the last expiry scan",
			},
		),
		gatherer: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.LoginAttemptsTotal,
		m.TokensIssuedTotal,
		m.AuthzDecisionsTotal,
		m.TenantCacheTotal,
		m.EventsDroppedTotal,
		m.ExpiredTenantsCurrent,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveHTTP(method, path string, status int, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(seconds)
}

func (m *Metrics) LoginAttempt(outcome string) {
	if m == nil {
		return
	}
	m.LoginAttemptsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) TokenIssued(kind string) {
	if m == nil {
		return
	}
	m.TokensIssuedTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) AuthzDecision(allowed bool) {
	if m == nil {
		return
	}
	result := "denied"
	if allowed {
		result = "allowed"
	}
	m.AuthzDecisionsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) TenantCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.TenantCacheTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) EventDropped() {
	if m == nil {
		return
	}
	m.EventsDroppedTotal.Inc()
}

func (m *Metrics) SetExpiredTenants(n int) {
	if m == nil {
		return
	}
	m.ExpiredTenantsCurrent.Set(float64(n))
}
