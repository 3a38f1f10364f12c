package sso

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// GoogleIssuer is Google's OpenID Connect issuer
const GoogleIssuer = "https://accounts.google.com"

// DefaultHTTPTimeout bounds each call to the provider
const DefaultHTTPTimeout = 10 * time.Second

// OIDCConfig configures an OpenID Connect provider
type OIDCConfig struct {
	Name         string
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	// AuthParams are appended to the authorization URL
	AuthParams  map[string]string
	HTTPTimeout time.Duration
}

// GooglePreset returns the configuration for signing in with Google
func GooglePreset(clientID, clientSecret, redirectURL string) OIDCConfig {
	return OIDCConfig{
		Name:         "google",
		IssuerURL:    GoogleIssuer,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		AuthParams: map[string]string{
			"prompt":      "consent",
			"access_type": "offline",
		},
	}
}

// Validate checks the configuration
func (c *OIDCConfig) Validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("client_id is required")
	}
	if c.ClientSecret == "" {
		return fmt.Errorf("client_secret is required")
	}
	if c.IssuerURL == "" {
		return fmt.Errorf("issuer_url is required")
	}
	if c.RedirectURL == "" {
		return fmt.Errorf("redirect_url is required")
	}
	if len(c.Scopes) == 0 {
		return fmt.Errorf("scopes are required")
	}
	if !hasScope(c.Scopes, oidc.ScopeOpenID) {
		return fmt.Errorf("'openid' scope is required for OIDC")
	}
	return nil
}

// OIDCProvider implements IdentityProvider with the OpenID Connect
// authorization code flow
type OIDCProvider struct {
	name         string
	verifier     *oidc.IDTokenVerifier
	oauth2Config *oauth2.Config
	authOptions  []oauth2.AuthCodeOption
	httpClient   *http.Client
}

// NewOIDCProvider discovers the provider's endpoints and keys from its issuer
func NewOIDCProvider(ctx context.Context, cfg OIDCConfig) (*OIDCProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := newHTTPClient(cfg.HTTPTimeout)
	provider, err := oidc.NewProvider(oidc.ClientContext(ctx, client), cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	verifier := provider.Verifier(&oidc.Config{ClientID: cfg.ClientID})
	return newOIDCProvider(cfg, provider.Endpoint(), verifier, client), nil
}

// NewOIDCProviderWithVerifier builds a provider from explicit endpoints and
// an id_token verifier, skipping discovery
func NewOIDCProviderWithVerifier(cfg OIDCConfig, endpoint oauth2.Endpoint, verifier *oidc.IDTokenVerifier) (*OIDCProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if verifier == nil {
		return nil, fmt.Errorf("verifier is required")
	}
	return newOIDCProvider(cfg, endpoint, verifier, newHTTPClient(cfg.HTTPTimeout)), nil
}

func newOIDCProvider(cfg OIDCConfig, endpoint oauth2.Endpoint, verifier *oidc.IDTokenVerifier, client *http.Client) *OIDCProvider {
	name := cfg.Name
	if name == "" {
		name = "oidc"
	}

	keys := make([]string, 0, len(cfg.AuthParams))
	for k := range cfg.AuthParams {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	opts := make([]oauth2.AuthCodeOption, 0, len(keys))
	for _, k := range keys {
		opts = append(opts, oauth2.SetAuthURLParam(k, cfg.AuthParams[k]))
	}

	return &OIDCProvider{
		name:     name,
		verifier: verifier,
		oauth2Config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       append([]string(nil), cfg.Scopes...),
		},
		authOptions: opts,
		httpClient:  client,
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return &http.Client{Timeout: timeout}
}

// Name implements IdentityProvider
func (p *OIDCProvider) Name() string {
	return p.name
}

// BeginLogin implements IdentityProvider
func (p *OIDCProvider) BeginLogin(state string, scopes ...string) string {
	cfg := p.oauth2Config
	if len(scopes) > 0 {
		c := *p.oauth2Config
		if !hasScope(scopes, oidc.ScopeOpenID) {
			scopes = append([]string{oidc.ScopeOpenID}, scopes...)
		}
		c.Scopes = scopes
		cfg = &c
	}
	return cfg.AuthCodeURL(state, p.authOptions...)
}

type identityClaims struct {
	Email         string `json:"email"`
	EmailVerified *bool  `json:"email_verified"`
	Name          string `json:"name"`
}

// CompleteLogin implements IdentityProvider
func (p *OIDCProvider) CompleteLogin(ctx context.Context, callback url.Values) (*VerifiedIdentity, error) {
	if reason := callback.Get("error"); reason != "" {
		if desc := callback.Get("error_description"); desc != "" {
			reason += ": " + desc
		}
		return nil, newProviderError(KindDenied, "provider returned %s", reason)
	}

	code := callback.Get("code")
	if code == "" {
		return nil, newProviderError(KindMalformedCallback, "missing authorization code")
	}

	ctx = oidc.ClientContext(ctx, p.httpClient)

	token, err := p.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, classifyExchangeError(ctx, err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, newProviderError(KindMalformedCallback, "missing id_token in token response")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &ProviderError{Kind: KindUnavailable, Err: err}
		}
		return nil, newProviderError(KindDenied, "failed to verify ID token: %w", err)
	}

	var claims identityClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, newProviderError(KindMalformedCallback, "failed to parse claims: %w", err)
	}

	if idToken.Subject == "" {
		return nil, newProviderError(KindMalformedCallback, "missing subject in ID token")
	}
	if claims.Email == "" {
		return nil, newProviderError(KindMalformedCallback, "missing email in ID token")
	}
	if claims.EmailVerified != nil && !*claims.EmailVerified {
		return nil, newProviderError(KindDenied, "email %s is not verified", claims.Email)
	}

	return &VerifiedIdentity{
		ExternalID:  idToken.Subject,
		Email:       claims.Email,
		DisplayName: claims.Name,
	}, nil
}

// classifyExchangeError separates refusals of the code from provider outages
func classifyExchangeError(ctx context.Context, err error) *ProviderError {
	if ctx.Err() != nil {
		return &ProviderError{Kind: KindUnavailable, Err: err}
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.Response != nil && retrieveErr.Response.StatusCode >= http.StatusInternalServerError {
			return newProviderError(KindUnavailable, "token endpoint: %w", err)
		}
		return newProviderError(KindDenied, "code exchange rejected: %w", err)
	}

	return newProviderError(KindUnavailable, "token endpoint: %w", err)
}

func hasScope(scopes []string, want string) bool {
	for _, s := range scopes {
		if s == want {
			return true
		}
	}
	return false
}
