package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/saaslab/org-management-system/shared/models"
	"github.com/saaslab/org-management-system/shared/registry"
)

// ErrInvalidCredentials is returned on any failed login. An unknown email
// and a wrong password are deliberately indistinguishable so login attempts
// cannot be used to enumerate accounts.
var ErrInvalidCredentials = errors.New("incorrect email or password")

// Gateway orchestrates the registry, the credential check and the token
// service for login and token-based identity resolution.
type Gateway struct {
	registry *registry.Registry
	tokens   *TokenService
	tokenTTL time.Duration
}

// NewGateway creates an authentication gateway
func NewGateway(reg *registry.Registry, tokens *TokenService, tokenTTL time.Duration) *Gateway {
	return &Gateway{
		registry: reg,
		tokens:   tokens,
		tokenTTL: tokenTTL,
	}
}

// Login authenticates an admin by email and password and returns a token
// bound to the admin's organization
func (g *Gateway) Login(ctx context.Context, email, password string) (string, *models.AdminUser, error) {
	admin, err := g.registry.GetAdminByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, registry.ErrAdminNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}

	if !CheckPassword(password, admin.PasswordHash) {
		return "", nil, ErrInvalidCredentials
	}

	if admin.Organization == nil {
		return "", nil, fmt.Errorf("admin %s has no organization", admin.ID)
	}

	token, err := g.tokens.Issue(admin.Email, admin.Organization.Name, g.tokenTTL)
	if err != nil {
		return "", nil, err
	}
	return token, admin, nil
}

// ResolveIdentity verifies the token and re-fetches the admin from the
// registry. Claims are trusted only for identity and organization binding;
// everything else comes from the current registry row, and a token whose
// account no longer exists or no longer matches its organization is
// rejected.
func (g *Gateway) ResolveIdentity(ctx context.Context, tokenString string) (*models.AdminUser, error) {
	claims, err := g.tokens.Verify(tokenString)
	if err != nil {
		return nil, err
	}

	admin, err := g.registry.GetAdminByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, registry.ErrAdminNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, err
	}

	if admin.Organization == nil || admin.Organization.Name != claims.OrganizationName {
		return nil, ErrTokenInvalid
	}
	return admin, nil
}
