package session

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestService(t *testing.T, opts ...Option) (*Service, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc, err := NewService(testSecret, append([]Option{WithClock(clock.Now)}, opts...)...)
	require.NoError(t, err)
	return svc, clock
}

var alice = Identity{
	ExternalID:  "1098231",
	DisplayName: "Alice Admin",
	Email:       "alice@example.com",
	AdminID:     7,
}

func TestNewService_RequiresSecret(t *testing.T) {
	_, err := NewService(nil)
	assert.Error(t, err)
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	svc, clock := newTestService(t, WithIssuer("sitemgmt"))

	token, expiresAt, err := svc.Issue(alice)
	require.NoError(t, err)
	assert.Equal(t, clock.t.Add(DefaultTTL), expiresAt)

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, alice, claims.Identity())
	assert.Equal(t, "sitemgmt", claims.Issuer)
	assert.True(t, clock.t.Equal(claims.IssuedAt.Time))
}

func TestVerify_Expiry(t *testing.T) {
	svc, clock := newTestService(t, WithTTL(10*time.Minute))

	token, _, err := svc.Issue(alice)
	require.NoError(t, err)

	clock.Advance(10*time.Minute - time.Second)
	_, err = svc.Verify(token)
	require.NoError(t, err)

	clock.Advance(time.Second)
	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestVerify_TamperedExpiredTokenIsInvalid(t *testing.T) {
	svc, clock := newTestService(t)

	token, _, err := svc.Issue(alice)
	require.NoError(t, err)
	clock.Advance(time.Hour)

	_, err = svc.Verify(flip(token, len(token)/2))
	assert.ErrorIs(t, err, ErrInvalid)
	assert.NotErrorIs(t, err, ErrExpired)
}

func TestVerify_AnyAlteredByteIsInvalid(t *testing.T) {
	svc, _ := newTestService(t)

	token, _, err := svc.Issue(alice)
	require.NoError(t, err)

	for i := range token {
		if token[i] == '.' {
			continue
		}
		_, err := svc.Verify(flip(token, i))
		assert.ErrorIs(t, err, ErrInvalid, "position %d", i)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	svc, _ := newTestService(t)
	other, err := NewService([]byte("another-secret-another-secret-xx"), WithClock(func() time.Time {
		return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	}))
	require.NoError(t, err)

	token, _, err := other.Issue(alice)
	require.NoError(t, err)

	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestVerify_Garbage(t *testing.T) {
	svc, _ := newTestService(t)

	for _, token := range []string{"", "not-a-token", "a.b.c", strings.Repeat(".", 5)} {
		_, err := svc.Verify(token)
		assert.ErrorIs(t, err, ErrInvalid, token)
	}
}

func TestVerify_RejectsOtherAlgorithms(t *testing.T) {
	svc, clock := newTestService(t)

	claims := Claims{
		AdminID: 7,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(clock.t.Add(time.Hour)),
		},
	}

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.Verify(none)
	assert.ErrorIs(t, err, ErrInvalid)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(testSecret)
	require.NoError(t, err)
	_, err = svc.Verify(hs512)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestVerify_RequiresAdminIDAndExpiry(t *testing.T) {
	svc, clock := newTestService(t)

	sign := func(c Claims) string {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(testSecret)
		require.NoError(t, err)
		return token
	}

	_, err := svc.Verify(sign(Claims{RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(clock.t.Add(time.Hour)),
	}}))
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = svc.Verify(sign(Claims{AdminID: 7}))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestVerify_IssuerMismatch(t *testing.T) {
	issuing, _ := newTestService(t, WithIssuer("someone-else"))
	verifying, _ := newTestService(t, WithIssuer("sitemgmt"))

	token, _, err := issuing.Issue(alice)
	require.NoError(t, err)

	_, err = verifying.Verify(token)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestIssue_RequiresAdminID(t *testing.T) {
	svc, _ := newTestService(t)

	_, _, err := svc.Issue(Identity{Email: "alice@example.com"})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestClaims_WireNames(t *testing.T) {
	svc, _ := newTestService(t)

	token, _, err := svc.Issue(alice)
	require.NoError(t, err)

	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	require.NoError(t, err)
	m := parsed.Claims.(jwt.MapClaims)

	for _, name := range []string{"google_id", "name", "email", "admin_id", "exp", "iat"} {
		assert.Contains(t, m, name)
	}
}

// flip replaces the character at i with a different base64url character
func flip(token string, i int) string {
	b := []byte(token)
	if b[i] == 'A' {
		b[i] = 'B'
	} else {
		b[i] = 'A'
	}
	return string(b)
}
