// Package observability provides structured logging, Prometheus metrics,
// OpenTelemetry tracing and health probes.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("admin_id", id).Info("Admin deactivated")
//
// Request handlers should use FromContext, which attaches the request id,
// the authenticated admin and the trace id when they are present:
//
//	observability.FromContext(r.Context()).Warn("login rejected")
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.RecordGateDecision("expired")
//
// # Health Checks
//
// HealthChecker exposes /healthz (liveness) and /readyz (readiness). The
// admin database is a hard dependency; Redis only degrades readiness.
package observability
