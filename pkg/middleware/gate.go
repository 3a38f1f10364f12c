package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/platinummonkey/sitemgmt/pkg/contextkeys"
	"github.com/platinummonkey/sitemgmt/pkg/httputil"
	"github.com/platinummonkey/sitemgmt/pkg/observability"
	"github.com/platinummonkey/sitemgmt/pkg/session"
)

// SessionCookieName is the cookie holding the session token
const SessionCookieName = "session"

// Messages shown to a rejected caller
const (
	MessageLoginRequired   = "Login is required"
	MessageSessionTimedOut = "Your session has timed out, please log in again"
)

// Gate decisions, used as log and metric labels
const (
	DecisionPass      = "pass"
	DecisionMissing   = "missing"
	DecisionMalformed = "malformed"
	DecisionInvalid   = "invalid"
	DecisionExpired   = "expired"
)

// TokenVerifier verifies session tokens
type TokenVerifier interface {
	Verify(token string) (*session.Claims, error)
}

// FailureRenderer writes the response for a rejected request
type FailureRenderer func(w http.ResponseWriter, r *http.Request, status int, message string)

// AuthGate admits only requests carrying a valid session token
type AuthGate struct {
	verifier     TokenVerifier
	render       FailureRenderer
	metrics      *observability.Metrics
	secureCookie bool
}

// GateOption configures an AuthGate
type GateOption func(*AuthGate)

// WithFailureRenderer replaces the default JSON error view
func WithFailureRenderer(render FailureRenderer) GateOption {
	return func(g *AuthGate) {
		g.render = render
	}
}

// WithGateMetrics counts gate decisions
func WithGateMetrics(metrics *observability.Metrics) GateOption {
	return func(g *AuthGate) {
		g.metrics = metrics
	}
}

// WithSecureCookie marks the cleared session cookie Secure
func WithSecureCookie(secure bool) GateOption {
	return func(g *AuthGate) {
		g.secureCookie = secure
	}
}

// NewAuthGate creates a gate backed by verifier
func NewAuthGate(verifier TokenVerifier, opts ...GateOption) *AuthGate {
	g := &AuthGate{
		verifier: verifier,
		render: func(w http.ResponseWriter, _ *http.Request, status int, message string) {
			httputil.WriteErrorMessage(w, status, message)
		},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Handler wraps next so it only runs for authenticated requests. The
// verified claims are available to next through ClaimsFromContext.
func (g *AuthGate) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, decision := extractToken(r)
		if decision != "" {
			g.reject(w, r, decision, nil)
			return
		}

		claims, err := g.verifier.Verify(token)
		if err != nil {
			if errors.Is(err, session.ErrExpired) {
				g.reject(w, r, DecisionExpired, err)
			} else {
				g.reject(w, r, DecisionInvalid, err)
			}
			return
		}

		g.metrics.RecordGateDecision(DecisionPass)

		ctx := contextkeys.WithClaims(r.Context(), claims)
		ctx = contextkeys.WithAdminID(ctx, claims.AdminID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (g *AuthGate) reject(w http.ResponseWriter, r *http.Request, decision string, err error) {
	g.metrics.RecordGateDecision(decision)

	logger := observability.FromContext(r.Context()).WithFields(map[string]interface{}{
		"decision": decision,
		"path":     r.URL.Path,
	})
	if err != nil {
		logger = logger.WithError(err)
	}
	logger.Info("Request rejected by auth gate")

	// An unusable cookie is dropped so the browser stops presenting it.
	if _, cookieErr := r.Cookie(SessionCookieName); cookieErr == nil {
		ClearSessionCookie(w, g.secureCookie)
	}

	message := MessageLoginRequired
	if decision == DecisionExpired {
		message = MessageSessionTimedOut
	}
	g.render(w, r, http.StatusUnauthorized, message)
}

// extractToken reads the session cookie, falling back to a bearer token. A
// non-empty decision means the request carries no usable credential.
func extractToken(r *http.Request) (string, string) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		if cookie.Value == "" {
			return "", DecisionMalformed
		}
		return cookie.Value, ""
	}

	header := r.Header.Get("Authorization")
	if header == "" {
		return "", DecisionMissing
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", DecisionMalformed
	}
	return strings.TrimSpace(parts[1]), ""
}

// ClaimsFromContext returns the claims stored by AuthGate
func ClaimsFromContext(ctx context.Context) (*session.Claims, bool) {
	claims, ok := ctx.Value(contextkeys.ClaimsKey).(*session.Claims)
	return claims, ok && claims != nil
}

// SetSessionCookie stores token in the session cookie for maxAge seconds
func SetSessionCookie(w http.ResponseWriter, token string, maxAge int, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
