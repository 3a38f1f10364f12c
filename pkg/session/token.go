package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL is the lifetime of a session token
const DefaultTTL = 15 * time.Minute

var (
	// ErrInvalid covers malformed tokens, unexpected algorithms, signature
	// mismatches and claims that do not identify an admin
	ErrInvalid = errors.New("session token invalid")
	// ErrExpired is returned for authentic tokens past their expiry
	ErrExpired = errors.New("session token expired")
)

// Identity is what a session token asserts about its holder
type Identity struct {
	ExternalID  string
	DisplayName string
	Email       string
	AdminID     int64
}

// Claims is the signed payload of a session token
type Claims struct {
	ExternalID  string `json:"google_id"`
	DisplayName string `json:"name"`
	Email       string `json:"email"`
	AdminID     int64  `json:"admin_id"`
	jwt.RegisteredClaims
}

// Identity returns the asserted identity
func (c *Claims) Identity() Identity {
	return Identity{
		ExternalID:  c.ExternalID,
		DisplayName: c.DisplayName,
		Email:       c.Email,
		AdminID:     c.AdminID,
	}
}

// Service mints and verifies HS256 session tokens
type Service struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
	parser *jwt.Parser
}

// Option configures a Service
type Option func(*Service)

// WithTTL overrides DefaultTTL
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithIssuer sets the iss claim written and required by the service
func WithIssuer(issuer string) Option {
	return func(s *Service) {
		s.issuer = issuer
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a token service signing with secret
func NewService(secret []byte, opts ...Option) (*Service, error) {
	if len(secret) == 0 {
		return nil, errors.New("session secret is required")
	}

	s := &Service{
		secret: append([]byte(nil), secret...),
		ttl:    DefaultTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Expiry is checked by Verify against s.now so the clock stays injectable.
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithStrictDecoding(),
		jwt.WithoutClaimsValidation(),
	)
	return s, nil
}

// TTL returns the token lifetime
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for id that expires TTL from now
func (s *Service) Issue(id Identity) (string, time.Time, error) {
	if id.AdminID == 0 {
		return "", time.Time{}, fmt.Errorf("%w: admin id is required", ErrInvalid)
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)

	claims := Claims{
		ExternalID:  id.ExternalID,
		DisplayName: id.DisplayName,
		Email:       id.Email,
		AdminID:     id.AdminID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   id.ExternalID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return token, claims.ExpiresAt.Time, nil
}

// Verify checks the signature first and the expiry second, so a tampered
// expired token reports ErrInvalid.
func (s *Service) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := s.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	if claims.AdminID == 0 {
		return nil, fmt.Errorf("%w: missing admin id", ErrInvalid)
	}
	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrInvalid, claims.Issuer)
	}
	if claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing expiry", ErrInvalid)
	}
	if !s.now().Before(claims.ExpiresAt.Time) {
		return nil, ErrExpired
	}

	return claims, nil
}
