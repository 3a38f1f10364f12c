package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
//
// The Observe*/Record* helpers are safe to call on a nil *Metrics so that
// components can be constructed without instrumentation in tests.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Authentication metrics
	LoginsTotal        *prometheus.CounterVec
	GateDecisionsTotal *prometheus.CounterVec
	TokensIssuedTotal  prometheus.Counter
	RateLimitedTotal   *prometheus.CounterVec

	// Directory metrics
	DirectoryOperationsTotal   *prometheus.CounterVec
	DirectoryOperationDuration *prometheus.HistogramVec
	AdminsGauge                *prometheus.GaugeVec

	// Notification metrics
	NotificationsTotal *prometheus.CounterVec

	otel *OTelMetrics
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitemgmt_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sitemgmt_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitemgmt_logins_total",
				Help: "Completed login callbacks by outcome",
			},
			[]string{"outcome"},
		),
		GateDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitemgmt_auth_gate_decisions_total",
				Help: "Auth gate decisions by reason",
			},
			[]string{"decision"},
		),
		TokensIssuedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sitemgmt_session_tokens_issued_total",
				Help: "Session tokens minted after a successful login",
			},
		),

		RateLimitedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitemgmt_rate_limited_requests_total",
				Help: "Requests rejected by the login rate limiter",
			},
			[]string{"limiter"},
		),

		DirectoryOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitemgmt_directory_operations_total",
				Help: "Admin directory operations by operation and result",
			},
			[]string{"operation", "result"},
		),
		DirectoryOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sitemgmt_directory_operation_duration_seconds",
				Help:    "Admin directory operation duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"operation"},
		),
		AdminsGauge: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sitemgmt_admins",
				Help: "Administrator rows by state, refreshed on a schedule",
			},
			[]string{"state"},
		),

		NotificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitemgmt_notifications_total",
				Help: "Deactivation notifications by publisher and status",
			},
			[]string{"publisher", "status"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.LoginsTotal,
		m.GateDecisionsTotal,
		m.TokensIssuedTotal,
		m.RateLimitedTotal,
		m.DirectoryOperationsTotal,
		m.DirectoryOperationDuration,
		m.AdminsGauge,
		m.NotificationsTotal,
	)

	return m
}

// WithOTel mirrors login and directory metrics to o
func (m *Metrics) WithOTel(o *OTelMetrics) *Metrics {
	m.otel = o
	return m
}

// RecordLogin counts a finished login callback
func (m *Metrics) RecordLogin(outcome string) {
	if m == nil {
		return
	}
	m.LoginsTotal.WithLabelValues(outcome).Inc()
	m.otel.RecordLogin(context.Background(), outcome)
}

// RecordGateDecision counts an auth gate pass or rejection reason
func (m *Metrics) RecordGateDecision(decision string) {
	if m == nil {
		return
	}
	m.GateDecisionsTotal.WithLabelValues(decision).Inc()
}

// RecordTokenIssued counts a minted session token
func (m *Metrics) RecordTokenIssued() {
	if m == nil {
		return
	}
	m.TokensIssuedTotal.Inc()
}

// RecordRateLimited counts a request rejected by a rate limiter
func (m *Metrics) RecordRateLimited(limiter string) {
	if m == nil {
		return
	}
	m.RateLimitedTotal.WithLabelValues(limiter).Inc()
}

// ObserveDirectoryOperation records the result and latency of a directory call
func (m *Metrics) ObserveDirectoryOperation(operation, result string, started time.Time) {
	if m == nil {
		return
	}
	elapsed := time.Since(started)
	m.DirectoryOperationsTotal.WithLabelValues(operation, result).Inc()
	m.DirectoryOperationDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
	m.otel.RecordDirectoryOperation(context.Background(), operation, result, elapsed)
}

// SetAdminCounts publishes the current roster size
func (m *Metrics) SetAdminCounts(active, inactive int) {
	if m == nil {
		return
	}
	m.AdminsGauge.WithLabelValues("active").Set(float64(active))
	m.AdminsGauge.WithLabelValues("inactive").Set(float64(inactive))
}

// RecordNotification counts a notification attempt
func (m *Metrics) RecordNotification(publisher, status string) {
	if m == nil {
		return
	}
	m.NotificationsTotal.WithLabelValues(publisher, status).Inc()
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

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// Requests are labelled with the matched mux route template so that path
// parameters do not explode label cardinality.
func HTTPMetricsMiddleware(metrics *Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			if metrics == nil {
				return
			}
			route := routeTemplate(r)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(router *mux.Router, registry *prometheus.Registry) {
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
}
