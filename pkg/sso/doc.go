// Package sso performs the administrator sign-in handshake with an external
// OpenID Connect provider.
//
// # Overview
//
// An IdentityProvider builds the authorization URL the browser is sent to and
// turns the provider's callback into a VerifiedIdentity. OIDCProvider is the
// only implementation; GooglePreset configures it for Google accounts with the
// consent prompt and offline access:
//
//	provider, err := sso.NewOIDCProvider(ctx, sso.GooglePreset(clientID, secret, baseURL+"/callback"))
//	state, _ := sso.NewState()
//	http.Redirect(w, r, provider.BeginLogin(state), http.StatusFound)
//
//	// on /callback
//	identity, err := provider.CompleteLogin(ctx, r.URL.Query())
//
// # Errors
//
// CompleteLogin fails with *ProviderError. Its Kind tells a malformed
// callback, a refused login and an unreachable provider apart. Nothing is
// retried; callers bound the call with a context deadline.
package sso
