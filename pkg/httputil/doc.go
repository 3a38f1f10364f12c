// Package httputil provides HTTP utilities for standardized request/response handling.
//
// Response helpers write JSON bodies:
//
//	httputil.WriteJSON(w, http.StatusOK, view)
//	httputil.WriteBadRequest(w, "Invalid email format")
//
// ParseValues accepts both HTML form posts and JSON objects so that the admin
// forms and API clients share one handler:
//
//	values, err := httputil.ParseValues(r)
//	email := values.Get("email")
//
// The middleware attaches a request id and request-scoped logger, logs each
// request and converts handler panics into 500 responses:
//
//	handler = httputil.Chain(
//		httputil.RequestIDMiddleware(logger),
//		httputil.RecoveryMiddleware,
//		httputil.LoggingMiddleware,
//	)(router)
package httputil
