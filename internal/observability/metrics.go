package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the service.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	accessDenials   *prometheus.CounterVec
	breakGlassUses  prometheus.Counter
	auditAppends    *prometheus.CounterVec
	chainFailures   prometheus.Counter
	mfaFailures     *prometheus.CounterVec
	detectorSignals *prometheus.CounterVec
}

// NewMetrics initialises the registry and the base metric set.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "halcyon_http_requests_total",
		Help: "HTTP requests partitioned by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "halcyon_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	denials := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "halcyon_access_denials_total",
		Help: "Access decisions of deny partitioned by permission.",
	}, []string{"permission"})
	breakGlass := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "halcyon_break_glass_uses_total",
		Help: "Accesses granted through an elevated break-glass grant.",
	})
	appends := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "halcyon_audit_appends_total",
		Help: "Audit log appends partitioned by event type.",
	}, []string{"event_type"})
	chainFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "halcyon_audit_chain_failures_total",
		Help: "Hash chain verification runs that found a broken link.",
	})
	mfaFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "halcyon_mfa_failures_total",
		Help: "Failed MFA verifications partitioned by reason.",
	}, []string{"reason"})
	signals := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "halcyon_detector_signals_total",
		Help: "Suspicious-activity signals partitioned by kind and severity.",
	}, []string{"kind", "severity"})
	registry.MustRegister(requests, duration, denials, breakGlass, appends, chainFailures, mfaFailures, signals)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		accessDenials:   denials,
		breakGlassUses:  breakGlass,
		auditAppends:    appends,
		chainFailures:   chainFailures,
		mfaFailures:     mfaFailures,
		detectorSignals: signals,
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

// Middleware records request metrics for every HTTP request.
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

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// AccessDenied counts a deny decision for the given permission token.
func (m *Metrics) AccessDenied(permission string) {
	if m == nil {
		return
	}
	m.accessDenials.WithLabelValues(permission).Inc()
}

// BreakGlassUse counts an access allowed through an elevated grant.
func (m *Metrics) BreakGlassUse() {
	if m == nil {
		return
	}
	m.breakGlassUses.Inc()
}

// AuditAppend counts a successful audit log append.
func (m *Metrics) AuditAppend(eventType string) {
	if m == nil {
		return
	}
	m.auditAppends.WithLabelValues(eventType).Inc()
}

// ChainFailure counts a verification run that found a break.
func (m *Metrics) ChainFailure() {
	if m == nil {
		return
	}
	m.chainFailures.Inc()
}

// MFAFailure counts a failed MFA verification.
func (m *Metrics) MFAFailure(reason string) {
	if m == nil {
		return
	}
	m.mfaFailures.WithLabelValues(reason).Inc()
}

// DetectorSignal counts a suspicious-activity signal.
func (m *Metrics) DetectorSignal(kind, severity string) {
	if m == nil {
		return
	}
	m.detectorSignals.WithLabelValues(kind, severity).Inc()
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
