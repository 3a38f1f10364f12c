package sso

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
)

// IdentityProvider performs the sign-in handshake with an external identity
// provider
type IdentityProvider interface {
	// Name returns the provider name used in logs and metrics
	Name() string

	// BeginLogin returns the URL the browser is redirected to. Requested
	// scopes replace the configured defaults when given.
	BeginLogin(state string, scopes ...string) string

	// CompleteLogin exchanges the callback parameters for a verified identity.
	// Failures are *ProviderError.
	CompleteLogin(ctx context.Context, callback url.Values) (*VerifiedIdentity, error)
}

// VerifiedIdentity is what the provider vouches for after a successful login
type VerifiedIdentity struct {
	ExternalID  string
	Email       string
	DisplayName string
}

// ErrorKind classifies provider failures
type ErrorKind int

const (
	// KindMalformedCallback means the callback or the id_token lacked required data
	KindMalformedCallback ErrorKind = iota + 1
	// KindDenied means the provider or the token verification refused the login
	KindDenied
	// KindUnavailable means the provider could not be reached in time
	KindUnavailable
)

func (k ErrorKind) String() string {
	switch k {
	case KindMalformedCallback:
		return "malformed_callback"
	case KindDenied:
		return "denied"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// ProviderError is returned by CompleteLogin
type ProviderError struct {
	Kind ErrorKind
	Err  error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("identity provider %s: %v", e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func newProviderError(kind ErrorKind, format string, args ...interface{}) *ProviderError {
	return &ProviderError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of a *ProviderError in err's chain, or 0
func KindOf(err error) ErrorKind {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return 0
}

// NewState returns a random URL-safe value for the OAuth state parameter
func NewState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
