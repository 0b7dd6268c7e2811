package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/saaslab/org-management-system/shared/config"
)

var (
	// ErrTokenInvalid is returned for malformed, unsigned or tampered tokens
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired is returned for correctly signed but stale tokens
	ErrTokenExpired = errors.New("token expired")
)

// AdminClaims are the claims carried by an access token: the admin's email
// as subject and the organization the session is bound to.
type AdminClaims struct {
	OrganizationName string `json:"org"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies signed, organization-bound, time-limited
// access tokens. Tokens are stateless: validity is a function of the
// signature and the expiry claim only, and there is no revocation.
type TokenService struct {
	secret []byte
	method jwt.SigningMethod
}

// NewTokenService builds a TokenService from the JWT configuration. Only
// HMAC algorithms are supported; the tokens are signed with a process-wide
// symmetric secret.
func NewTokenService(cfg config.JWTConfig) (*TokenService, error) {
	if !strings.HasPrefix(cfg.Algorithm, "HS") {
		return nil, fmt.Errorf("unsupported signing algorithm %q", cfg.Algorithm)
	}
	method := jwt.GetSigningMethod(cfg.Algorithm)
	if method == nil {
		return nil, fmt.Errorf("unknown signing algorithm %q", cfg.Algorithm)
	}
	return &TokenService{
		secret: []byte(cfg.Secret),
		method: method,
	}, nil
}

// Issue creates a signed token for the admin, bound to the organization,
// expiring after ttl
func (ts *TokenService) Issue(email, orgName string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := AdminClaims{
		OrganizationName: orgName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(ts.method, claims)
	signed, err := token.SignedString(ts.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the token signature and expiry and returns its claims.
// Signature failures take precedence over expiry so a tampered token is
// never reported as merely expired. Any token missing the subject or
// organization claim is rejected.
func (ts *TokenService) Verify(tokenString string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return ts.secret, nil
	}, jwt.WithValidMethods([]string{ts.method.Alg()}))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, ErrTokenInvalid
		}
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	if !token.Valid || claims.Subject == "" || claims.OrganizationName == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
