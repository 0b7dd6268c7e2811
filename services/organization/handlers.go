package main

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/saaslab/org-management-system/shared/auth"
	"github.com/saaslab/org-management-system/shared/events"
	"github.com/saaslab/org-management-system/shared/models"
	"github.com/saaslab/org-management-system/shared/provision"
	"github.com/saaslab/org-management-system/shared/registry"
	"github.com/saaslab/org-management-system/shared/utils"
)

const (
	defaultListLimit = 100
	maxListLimit     = 100

	// compensateTimeout bounds the rollback of a failed signup. The rollback
	// runs on its own context, not the request's.
	compensateTimeout = 30 * time.Second
)

// storeProvisioner creates and removes per-organization databases
type storeProvisioner interface {
	CreateDatabase(ctx context.Context, orgName string) (string, error)
	DropDatabase(ctx context.Context, dbName string) error
}

// CreateOrganizationRequest represents the signup request
type CreateOrganizationRequest struct {
	Email            string `json:"email" binding:"required,email"`
	Password         string `json:"password" binding:"required,min=8"`
	OrganizationName string `json:"organizationName" binding:"required"`
}

// OrganizationResponse is the wire representation of an organization
type OrganizationResponse struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	DatabaseName string    `json:"databaseName"`
	CreatedAt    time.Time `json:"createdAt"`
	IsActive     bool      `json:"isActive"`
}

func toOrganizationResponse(org *models.Organization) OrganizationResponse {
	return OrganizationResponse{
		ID:           org.ID,
		Name:         org.Name,
		Email:        org.Email,
		DatabaseName: org.DatabaseName,
		CreatedAt:    org.CreatedAt,
		IsActive:     org.IsActive,
	}
}

// handleCreateOrganization handles the two-step signup: commit the
// organization and its admin to the registry, then provision the isolated
// database. The steps are not one transaction, so a provisioning failure
// triggers the compensating path: drop whatever was half-created and delete
// the registry rows; if even that fails, the leftover is queued for the
// reconciler so no partial-state organization survives untracked.
func handleCreateOrganization(reg *registry.Registry, prov storeProvisioner, repairs *registry.RepairQueue, publisher events.RepairPublisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateOrganizationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}

		passwordHash, err := auth.HashPassword(req.Password)
		if err != nil {
			utils.InternalServerErrorResponse(c, "Failed to process password")
			return
		}

		ctx := c.Request.Context()
		dbName := provision.DatabaseNameFor(req.OrganizationName)
		if len(dbName) > provision.MaxDatabaseNameLength {
			utils.BadRequestResponse(c, "Organization name is too long")
			return
		}

		org, err := reg.CreateOrganization(ctx, req.OrganizationName, req.Email, passwordHash, dbName)
		if err != nil {
			if errors.Is(err, registry.ErrDuplicateOrganization) {
				utils.BadRequestResponse(c, "Organization with this name or email already exists")
				return
			}
			logrus.Errorf("Failed to create organization: %v", err)
			utils.InternalServerErrorResponse(c, "Failed to create organization")
			return
		}

		if _, provErr := prov.CreateDatabase(ctx, req.OrganizationName); provErr != nil {
			compensateCreate(reg, prov, repairs, publisher, org, provErr)
			utils.InternalServerErrorResponse(c, "Failed to create organization database")
			return
		}

		c.JSON(201, toOrganizationResponse(org))
	}
}

// compensateCreate rolls a failed signup back: best effort inline, durable
// repair queue when the rollback itself fails. It runs on a detached
// context: provisioning often fails exactly when the client has given up
// and canceled the request, and the cleanup must not die with it.
func compensateCreate(reg *registry.Registry, prov storeProvisioner, repairs *registry.RepairQueue, publisher events.RepairPublisher, org *models.Organization, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), compensateTimeout)
	defer cancel()

	log := logrus.WithFields(logrus.Fields{
		"organization":  org.Name,
		"database_name": org.DatabaseName,
	})

	cleanupErr := prov.DropDatabase(ctx, org.DatabaseName)
	if cleanupErr == nil {
		cleanupErr = reg.CompensateCreate(ctx, org.ID)
	}
	if cleanupErr == nil {
		log.Warn("Provisioning failed, signup rolled back")
		return
	}

	log.Errorf("Provisioning failed and rollback incomplete, queueing repair: %v", cleanupErr)

	repair := &models.ProvisionRepair{
		OrganizationID:   org.ID,
		OrganizationName: org.Name,
		DatabaseName:     org.DatabaseName,
		Reason:           cause.Error(),
	}
	if err := repairs.Enqueue(ctx, repair); err != nil {
		// Both the rollback and the queue write failed. Manual
		// reconciliation is the only remaining path, so log everything
		// needed to perform it.
		log.Errorf("Failed to queue repair, manual reconciliation required: %v", err)
		return
	}

	event := events.RepairEvent{
		RepairID:         repair.ID,
		OrganizationID:   org.ID,
		OrganizationName: org.Name,
		DatabaseName:     org.DatabaseName,
		Reason:           cause.Error(),
		FailedAt:         time.Now(),
	}
	if err := publisher.PublishRepair(ctx, event); err != nil {
		// The poller will still pick the row up on its next sweep.
		log.Warnf("Failed to publish repair event: %v", err)
	}
}

// handleGetOrganization handles lookup by exact organization name
func handleGetOrganization(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Query("organization_name")
		if name == "" {
			utils.BadRequestResponse(c, "organization_name is required")
			return
		}

		org, err := reg.GetOrganizationByName(c.Request.Context(), name)
		if err != nil {
			if errors.Is(err, registry.ErrOrganizationNotFound) {
				utils.NotFoundResponse(c, "Organization not found")
			} else {
				logrus.Errorf("Failed to fetch organization: %v", err)
				utils.InternalServerErrorResponse(c, "Failed to fetch organization")
			}
			return
		}

		c.JSON(200, toOrganizationResponse(org))
	}
}

// handleListOrganizations returns a bounded page of organizations in
// insertion order
func handleListOrganizations(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		skip := intQuery(c, "skip", 0)
		limit := intQuery(c, "limit", defaultListLimit)
		if limit > maxListLimit {
			limit = maxListLimit
		}

		orgs, err := reg.ListOrganizations(c.Request.Context(), skip, limit)
		if err != nil {
			logrus.Errorf("Failed to list organizations: %v", err)
			utils.InternalServerErrorResponse(c, "Failed to list organizations")
			return
		}

		responses := make([]OrganizationResponse, 0, len(orgs))
		for i := range orgs {
			responses = append(responses, toOrganizationResponse(&orgs[i]))
		}
		c.JSON(200, responses)
	}
}

// intQuery parses a non-negative integer query parameter
func intQuery(c *gin.Context, name string, defaultValue int) int {
	raw := c.Query(name)
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return defaultValue
	}
	return n
}
