// Package middleware provides the HTTP guards in front of the admin pages.
//
// AuthGate admits a request only when it carries a valid session token,
// either in the "session" cookie or as an "Authorization: Bearer" header.
// Rejected requests get a 401 rendered by a pluggable FailureRenderer with
// one of two messages; an expired token asks the user to log in again.
//
//	gate := middleware.NewAuthGate(tokens, middleware.WithGateMetrics(metrics))
//	router.Handle("/protected_area", gate.Handler(dashboard))
//
// RateLimit throttles the sign-in endpoints per client address using a
// MemoryLimiter or, when instances share Redis, a RedisLimiter.
package middleware
