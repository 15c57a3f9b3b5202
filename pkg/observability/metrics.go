package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. All recording helpers are safe to
// call on a nil *Metrics, so components can be built without metrics in tests.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Authorization
	PermissionChecksTotal *prometheus.CounterVec

	// Sessions
	SessionsCreatedTotal *prometheus.CounterVec
	SessionsSweptTotal   prometheus.Counter
	SessionCacheTotal    *prometheus.CounterVec
	LoginAttemptsTotal   *prometheus.CounterVec

	// Tenants
	TenantProvisioningTotal *prometheus.CounterVec
	TenantPoolsOpen         prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cashpro_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cashpro_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		PermissionChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cashpro_permission_checks_total",
				Help: "Permission checks by decision (allow, deny, error)",
			},
			[]string{"decision"},
		),
		SessionsCreatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cashpro_sessions_created_total",
				Help: "Sessions issued by kind (login, register, impersonation, restore)",
			},
			[]string{"kind"},
		),
		SessionsSweptTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cashpro_sessions_swept_total",
				Help: "Expired sessions removed by the sweep job",
			},
		),
		SessionCacheTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cashpro_session_cache_total",
				Help: "Session cache lookups by result (hit, miss, error)",
			},
			[]string{"result"},
		),
		LoginAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cashpro_login_attempts_total",
				Help: "Login attempts by result",
			},
			[]string{"result"},
		),
		TenantProvisioningTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cashpro_tenant_provisioning_total",
				Help: "Tenant database provisioning runs by result",
			},
			[]string{"result"},
		),
		TenantPoolsOpen: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cashpro_tenant_pools_open",
				Help: "Number of open tenant database pools",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.PermissionChecksTotal,
		m.SessionsCreatedTotal,
		m.SessionsSweptTotal,
		m.SessionCacheTotal,
		m.LoginAttemptsTotal,
		m.TenantProvisioningTotal,
		m.TenantPoolsOpen,
	)

	return m
}

func (m *Metrics) PermissionCheck(decision string) {
	if m == nil {
		return
	}
	m.PermissionChecksTotal.WithLabelValues(decision).Inc()
}

func (m *Metrics) SessionCreated(kind string) {
	if m == nil {
		return
	}
	m.SessionsCreatedTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) SessionsSwept(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.SessionsSweptTotal.Add(float64(n))
}

func (m *Metrics) SessionCache(result string) {
	if m == nil {
		return
	}
	m.SessionCacheTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) LoginAttempt(result string) {
	if m == nil {
		return
	}
	m.LoginAttemptsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) TenantProvisioned(result string) {
	if m == nil {
		return
	}
	m.TenantProvisioningTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) TenantPoolOpened() {
	if m == nil {
		return
	}
	m.TenantPoolsOpen.Inc()
}

func (m *Metrics) TenantPoolClosed() {
	if m == nil {
		return
	}
	m.TenantPoolsOpen.Dec()
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// routeLabel uses the mux path template so ids do not explode label cardinality.
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// HTTPMetricsMiddleware records request counts and latency
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if metrics == nil {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := routeLabel(r)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
