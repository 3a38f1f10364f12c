package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/platinummonkey/sitemgmt/pkg/directory"
	"github.com/platinummonkey/sitemgmt/pkg/httputil"
	"github.com/platinummonkey/sitemgmt/pkg/middleware"
	"github.com/platinummonkey/sitemgmt/pkg/observability"
	"github.com/platinummonkey/sitemgmt/pkg/session"
	"github.com/platinummonkey/sitemgmt/pkg/sso"
)

// Login failure messages
const (
	MessageNotAnAdmin = "User not found in administrators database"
	MessageLoginError = "An error occurred during your login"
)

// stateCookieName holds the OAuth state between /login and /callback
const stateCookieName = "oauth_state"

const stateCookieMaxAge = 600

// Login outcomes, used as metric labels
const (
	loginSuccess       = "success"
	loginStateMismatch = "state_mismatch"
	loginNotAdmin      = "not_admin"
	loginError         = "error"
)

// index handles GET /
func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"login_url": "/login",
	})
}

// login handles GET /login
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	state, err := sso.NewState()
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("Failed to generate OAuth state")
		httputil.WriteInternalError(w, MessageLoginError)
		return
	}

	s.setStateCookie(w, state, stateCookieMaxAge)
	http.Redirect(w, r, s.provider.BeginLogin(state), http.StatusFound)
}

// callback handles GET /callback
func (s *Server) callback(w http.ResponseWriter, r *http.Request) {
	logger := observability.FromContext(r.Context()).WithField("provider", s.provider.Name())
	query := r.URL.Query()

	// The state cookie is single use
	expected := ""
	if cookie, err := r.Cookie(stateCookieName); err == nil {
		expected = cookie.Value
		s.setStateCookie(w, "", -1)
	}
	got := query.Get("state")
	if expected == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(got)) != 1 {
		logger.Warn("Login callback with missing or mismatched state")
		s.loginFailed(w, r, loginStateMismatch, MessageLoginError)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.providerTimeout)
	defer cancel()

	identity, err := s.provider.CompleteLogin(ctx, query)
	if err != nil {
		logger.WithError(err).WithField("kind", sso.KindOf(err).String()).Warn("Identity provider login failed")
		s.loginFailed(w, r, "provider_"+sso.KindOf(err).String(), MessageLoginError)
		return
	}

	admin, err := s.directory.Lookup(r.Context(), identity.Email)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) || errors.Is(err, directory.ErrInactive) {
			logger.WithField("email", identity.Email).WithError(err).Info("Login by non-administrator")
			s.loginFailed(w, r, loginNotAdmin, MessageNotAnAdmin)
			return
		}
		logger.WithError(err).Error("Admin lookup failed during login")
		s.loginFailed(w, r, loginError, MessageLoginError)
		return
	}

	token, _, err := s.tokens.Issue(session.Identity{
		ExternalID:  identity.ExternalID,
		DisplayName: identity.DisplayName,
		Email:       admin.Email,
		AdminID:     admin.ID,
	})
	if err != nil {
		logger.WithError(err).Error("Failed to issue session token")
		s.loginFailed(w, r, loginError, MessageLoginError)
		return
	}

	s.metrics.RecordTokenIssued()
	s.metrics.RecordLogin(loginSuccess)
	logger.WithField("admin_id", admin.ID).Info("Admin logged in")

	middleware.SetSessionCookie(w, token, int(s.tokens.TTL().Seconds()), s.secureCookies)
	http.Redirect(w, r, "/protected_area", http.StatusFound)
}

// loginFailed counts the outcome and renders the error view. Callers log
// the cause.
func (s *Server) loginFailed(w http.ResponseWriter, r *http.Request, outcome, message string) {
	s.metrics.RecordLogin(outcome)
	renderError(w, r, http.StatusUnauthorized, message)
}

func (s *Server) setStateCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// logout handles GET /logout
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	middleware.ClearSessionCookie(w, s.secureCookies)
	http.Redirect(w, r, "/", http.StatusFound)
}

// dashboard handles GET /protected_area
func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"user_name": claims.DisplayName,
		"email":     claims.Email,
		"admin_id":  claims.AdminID,
	})
}
