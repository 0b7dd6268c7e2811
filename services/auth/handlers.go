package main

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/saaslab/org-management-system/shared/auth"
	"github.com/saaslab/org-management-system/shared/middleware"
	"github.com/saaslab/org-management-system/shared/models"
	"github.com/saaslab/org-management-system/shared/tenantdb"
	"github.com/saaslab/org-management-system/shared/utils"
)

// storeResolver opens a scoped handle on an organization's isolated
// database
type storeResolver interface {
	Open(ctx context.Context, orgName string) (*gorm.DB, func(), error)
}

// LoginRequest represents the admin login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse represents a successful login
type TokenResponse struct {
	AccessToken      string `json:"accessToken"`
	TokenType        string `json:"tokenType"`
	UserEmail        string `json:"userEmail"`
	OrganizationName string `json:"organizationName"`
}

// CreateOrgUserRequest represents a request to add a user record to the
// caller's organization database
type CreateOrgUserRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
	Role      string `json:"role"`
}

// OrgUserResponse is the wire representation of an organization user
type OrgUserResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	IsActive  bool      `json:"isActive"`
}

func toOrgUserResponse(user *models.OrganizationUser) OrgUserResponse {
	return OrgUserResponse{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
		IsActive:  user.IsActive,
	}
}

// handleLogin authenticates an admin and issues an access token. A missing
// account and a wrong password produce the same response so the endpoint
// leaks nothing about which emails are registered.
func handleLogin(gateway *auth.Gateway, throttle *utils.LoginThrottle) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}

		ctx := c.Request.Context()
		if !throttle.Allow(ctx, req.Email) {
			utils.TooManyRequestsResponse(c, "Too many failed login attempts, try again later")
			return
		}

		token, admin, err := gateway.Login(ctx, req.Email, req.Password)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				throttle.RecordFailure(ctx, req.Email)
				utils.UnauthorizedResponse(c, "Incorrect email or password")
				return
			}
			logrus.Errorf("Login failed: %v", err)
			utils.InternalServerErrorResponse(c, "Login failed")
			return
		}

		throttle.Reset(ctx, req.Email)
		logrus.WithFields(logrus.Fields{
			"email":        admin.Email,
			"organization": admin.Organization.Name,
		}).Info("Admin logged in")

		c.JSON(200, TokenResponse{
			AccessToken:      token,
			TokenType:        "bearer",
			UserEmail:        admin.Email,
			OrganizationName: admin.Organization.Name,
		})
	}
}

// handleMe returns the authenticated admin's current registry record
func handleMe() gin.HandlerFunc {
	return func(c *gin.Context) {
		admin, ok := middleware.AdminFromContext(c)
		if !ok {
			utils.UnauthorizedResponse(c, "Could not validate credentials")
			return
		}

		c.JSON(200, gin.H{
			"id":               admin.ID,
			"email":            admin.Email,
			"organizationId":   admin.OrganizationID,
			"organizationName": admin.Organization.Name,
		})
	}
}

// handleCreateOrgUser creates a user record inside the caller's
// organization database. The store handle is opened for this request only
// and released on every exit path.
func handleCreateOrgUser(resolver storeResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		admin, ok := middleware.AdminFromContext(c)
		if !ok {
			utils.UnauthorizedResponse(c, "Could not validate credentials")
			return
		}

		var req CreateOrgUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}
		if req.Role == "" {
			req.Role = "user"
		}

		passwordHash, err := auth.HashPassword(req.Password)
		if err != nil {
			utils.InternalServerErrorResponse(c, "Failed to process password")
			return
		}

		ctx := c.Request.Context()
		db, release, err := resolver.Open(ctx, admin.Organization.Name)
		if err != nil {
			if errors.Is(err, tenantdb.ErrStoreNotFound) {
				utils.NotFoundResponse(c, "Organization database not found")
				return
			}
			logrus.Errorf("Failed to resolve organization database: %v", err)
			utils.InternalServerErrorResponse(c, "Failed to access organization database")
			return
		}
		defer release()

		user := models.OrganizationUser{
			ID:           uuid.New(),
			Email:        req.Email,
			PasswordHash: passwordHash,
			FirstName:    req.FirstName,
			LastName:     req.LastName,
			Role:         req.Role,
			IsActive:     true,
		}
		if err := db.Create(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				utils.BadRequestResponse(c, "User with this email already exists")
				return
			}
			logrus.Errorf("Failed to create organization user: %v", err)
			utils.InternalServerErrorResponse(c, "Failed to create user")
			return
		}

		c.JSON(201, toOrgUserResponse(&user))
	}
}

// handleGetOrgUser looks up a user record in the caller's organization
// database by email
func handleGetOrgUser(resolver storeResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		admin, ok := middleware.AdminFromContext(c)
		if !ok {
			utils.UnauthorizedResponse(c, "Could not validate credentials")
			return
		}

		email := c.Query("email")
		if email == "" {
			utils.BadRequestResponse(c, "email is required")
			return
		}

		ctx := c.Request.Context()
		db, release, err := resolver.Open(ctx, admin.Organization.Name)
		if err != nil {
			if errors.Is(err, tenantdb.ErrStoreNotFound) {
				utils.NotFoundResponse(c, "Organization database not found")
				return
			}
			logrus.Errorf("Failed to resolve organization database: %v", err)
			utils.InternalServerErrorResponse(c, "Failed to access organization database")
			return
		}
		defer release()

		var user models.OrganizationUser
		if err := db.Where("email = ?", email).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				utils.NotFoundResponse(c, "User not found")
				return
			}
			logrus.Errorf("Failed to fetch organization user: %v", err)
			utils.InternalServerErrorResponse(c, "Failed to fetch user")
			return
		}

		c.JSON(200, toOrgUserResponse(&user))
	}
}
