// Package contextkeys provides centralized context key definitions
//
// All request-scoped values shared between middleware and handlers are keyed
// here so that producers and consumers agree on a single typed key.
//
// USAGE PATTERN:
//
//	ctx = contextkeys.WithClaims(ctx, claims)
//	claims, _ := ctx.Value(contextkeys.ClaimsKey).(*session.Claims)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// ClaimsKey contains the verified session claims
	// Set by: middleware.AuthGate (pkg/middleware/gate.go)
	// Required by: every handler behind the gate
	// Type: *session.Claims
	ClaimsKey Key = "session_claims"

	// RequestIDKey contains request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	// Used by: Logger, distributed tracing
	// Type: string
	RequestIDKey Key = "request_id"

	// AdminIDKey contains the authenticated admin's directory id
	// Set by: middleware.AuthGate after verification
	// Used by: Logger
	// Type: int64
	AdminIDKey Key = "admin_id"

	// LoggerKey contains *observability.Logger
	// Set by: httputil.RequestIDMiddleware
	// Used by: Handlers that need structured logging with request context
	// Type: *observability.Logger
	LoggerKey Key = "logger"
)

// WithClaims adds verified session claims to the context
func WithClaims(ctx context.Context, claims interface{}) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithAdminID adds the authenticated admin id to the context
func WithAdminID(ctx context.Context, adminID int64) context.Context {
	return context.WithValue(ctx, AdminIDKey, adminID)
}

// WithLogger adds logger to the context
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetAdminID retrieves the authenticated admin id from context
func GetAdminID(ctx context.Context) int64 {
	if adminID, ok := ctx.Value(AdminIDKey).(int64); ok {
		return adminID
	}
	return 0
}
