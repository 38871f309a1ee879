package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the back-office.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	decisionsTotal  *prometheus.CounterVec
	sourceErrors    *prometheus.CounterVec
	staleChecks     prometheus.Counter
	cacheBumps      prometheus.Counter
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backoffice_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "backoffice_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backoffice_access_decisions_total",
		Help: "Permission decisions by granting source, query kind and outcome.",
	}, []string{"source", "kind", "outcome"})
	sourceErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backoffice_access_source_errors_total",
		Help: "Permission source failures treated as deny.",
	}, []string{"source"})
	stale := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "backoffice_access_stale_checks_total",
		Help: "Route checks superseded by a newer navigation.",
	})
	bumps := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "backoffice_rbac_cache_bumps_total",
		Help: "Role permission cache invalidations observed.",
	})
	registry.MustRegister(requests, duration, decisions, sourceErrors, stale, bumps)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		decisionsTotal:  decisions,
		sourceErrors:    sourceErrors,
		staleChecks:     stale,
		cacheBumps:      bumps,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveDecision counts one permission decision.
func (m *Metrics) ObserveDecision(source, kind string, allowed bool) {
	if m == nil {
		return
	}
	outcome := "deny"
	if allowed {
		outcome = "allow"
	}
	m.decisionsTotal.WithLabelValues(source, kind, outcome).Inc()
}

// ObserveSourceError counts a permission source failure.
func (m *Metrics) ObserveSourceError(source string) {
	if m == nil {
		return
	}
	m.sourceErrors.WithLabelValues(source).Inc()
}

// ObserveStaleCheck counts a route check discarded because navigation moved on.
func (m *Metrics) ObserveStaleCheck() {
	if m == nil {
		return
	}
	m.staleChecks.Inc()
}

// ObserveCacheBump counts a role permission cache invalidation.
func (m *Metrics) ObserveCacheBump() {
	if m == nil {
		return
	}
	m.cacheBumps.Inc()
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
