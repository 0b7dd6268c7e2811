package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/saaslab/org-management-system/shared/config"
)

func newTestTokenService(t *testing.T, secret string) *TokenService {
	t.Helper()
	ts, err := NewTokenService(config.JWTConfig{
		Secret:        secret,
		Algorithm:     "HS256",
		ExpireMinutes: 30,
	})
	require.NoError(t, err)
	return ts
}

func TestTokenRoundTrip(t *testing.T) {
	ts := newTestTokenService(t, "test-secret")

	token, err := ts.Issue("admin@acme.test", "Acme Corp", 30*time.Minute)
	require.NoError(t, err)

	claims, err := ts.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "admin@acme.test", claims.Subject)
	require.Equal(t, "Acme Corp", claims.OrganizationName)
}

func TestTokenExpired(t *testing.T) {
	ts := newTestTokenService(t, "test-secret")

	token, err := ts.Issue("admin@acme.test", "Acme Corp", -time.Minute)
	require.NoError(t, err)

	_, err = ts.Verify(token)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenTamperedSignature(t *testing.T) {
	ts := newTestTokenService(t, "test-secret")
	other := newTestTokenService(t, "other-secret")

	token, err := other.Issue("admin@acme.test", "Acme Corp", 30*time.Minute)
	require.NoError(t, err)

	_, err = ts.Verify(token)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenExpiredWithBadSignatureIsInvalid(t *testing.T) {
	// A tampered token must never be reported as merely expired.
	ts := newTestTokenService(t, "test-secret")
	other := newTestTokenService(t, "other-secret")

	token, err := other.Issue("admin@acme.test", "Acme Corp", -time.Minute)
	require.NoError(t, err)

	_, err = ts.Verify(token)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenMalformed(t *testing.T) {
	ts := newTestTokenService(t, "test-secret")

	for _, tok := range []string{"", "garbage", "a.b.c"} {
		_, err := ts.Verify(tok)
		require.ErrorIs(t, err, ErrTokenInvalid)
	}
}

func TestTokenMissingClaimsRejected(t *testing.T) {
	ts := newTestTokenService(t, "test-secret")

	// Correctly signed but missing the organization claim.
	raw := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "admin@acme.test",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := raw.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = ts.Verify(signed)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenRejectsForeignAlgorithm(t *testing.T) {
	ts := newTestTokenService(t, "test-secret")

	// Signed with a different HMAC variant than the service is configured
	// for.
	raw := jwt.NewWithClaims(jwt.SigningMethodHS512, AdminClaims{
		OrganizationName: "Acme Corp",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "admin@acme.test",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := raw.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = ts.Verify(signed)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestNewTokenServiceRejectsNonHMAC(t *testing.T) {
	_, err := NewTokenService(config.JWTConfig{Secret: "x", Algorithm: "RS256"})
	require.Error(t, err)
}
