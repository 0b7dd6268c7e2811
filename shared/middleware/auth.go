package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/saaslab/org-management-system/shared/auth"
	"github.com/saaslab/org-management-system/shared/models"
	"github.com/saaslab/org-management-system/shared/utils"
)

const adminContextKey = "admin"

// AuthMiddleware guards routes behind bearer-token authentication
type AuthMiddleware struct {
	gateway *auth.Gateway
}

// NewAuthMiddleware creates an authentication middleware backed by the
// auth gateway
func NewAuthMiddleware(gateway *auth.Gateway) *AuthMiddleware {
	return &AuthMiddleware{gateway: gateway}
}

// RequireAdmin validates the bearer token and resolves the current admin
// from the registry, storing it in the request context
func (am *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			utils.UnauthorizedResponse(c, "Authorization token required")
			c.Abort()
			return
		}

		admin, err := am.gateway.ResolveIdentity(c.Request.Context(), tokenString)
		if err != nil {
			if errors.Is(err, auth.ErrTokenExpired) || errors.Is(err, auth.ErrTokenInvalid) {
				utils.UnauthorizedResponse(c, "Could not validate credentials")
			} else {
				utils.InternalServerErrorResponse(c, "Failed to resolve identity")
			}
			c.Abort()
			return
		}

		c.Set(adminContextKey, admin)
		c.Next()
	}
}

// AdminFromContext returns the admin resolved by RequireAdmin
func AdminFromContext(c *gin.Context) (*models.AdminUser, bool) {
	value, exists := c.Get(adminContextKey)
	if !exists {
		return nil, false
	}
	admin, ok := value.(*models.AdminUser)
	return admin, ok
}

// extractToken pulls the bearer token from the Authorization header
func extractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
