package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/saaslab/org-management-system/shared/models"
)

var (
	// ErrDuplicateOrganization is returned when an organization with the
	// same name, email or database name is already registered
	ErrDuplicateOrganization = errors.New("organization with this name or email already exists")
	// ErrOrganizationNotFound is returned on a lookup miss
	ErrOrganizationNotFound = errors.New("organization not found")
	// ErrAdminNotFound is returned when no admin user matches the email
	ErrAdminNotFound = errors.New("admin user not found")
)

// Registry is the durable catalog of organizations and their admin
// credentials in the master database. Uniqueness of name, email and
// database name is enforced by the database constraints, never by a
// prior existence check, so concurrent signups for the same name resolve
// deterministically: one insert commits, the other sees a duplicate.
type Registry struct {
	db *gorm.DB
}

// New creates a Registry backed by the given master database handle. The
// handle must be opened with TranslateError so constraint violations
// surface as gorm.ErrDuplicatedKey.
func New(db *gorm.DB) *Registry {
	return &Registry{db: db}
}

// CreateOrganization inserts the organization and its bootstrap admin in a
// single transaction: both rows exist afterwards or neither does. A unique
// constraint violation on any of the indexed columns is reported as
// ErrDuplicateOrganization.
func (r *Registry) CreateOrganization(ctx context.Context, name, email, passwordHash, databaseName string) (*models.Organization, error) {
	org := &models.Organization{
		ID:           uuid.New(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		DatabaseName: databaseName,
		IsActive:     true,
	}
	admin := &models.AdminUser{
		ID:             uuid.New(),
		Email:          email,
		PasswordHash:   passwordHash,
		OrganizationID: org.ID,
		IsActive:       true,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(org).Error; err != nil {
			return err
		}
		return tx.Create(admin).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateOrganization
		}
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}

	org.Admin = admin
	return org, nil
}

// GetOrganizationByName returns the organization with the exact name
func (r *Registry) GetOrganizationByName(ctx context.Context, name string) (*models.Organization, error) {
	var org models.Organization
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&org).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("failed to fetch organization: %w", err)
	}
	return &org, nil
}

// GetOrganizationByEmail returns the organization registered under the email
func (r *Registry) GetOrganizationByEmail(ctx context.Context, email string) (*models.Organization, error) {
	var org models.Organization
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&org).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("failed to fetch organization: %w", err)
	}
	return &org, nil
}

// GetAdminByEmail returns the admin user with the email, with its owning
// organization preloaded
func (r *Registry) GetAdminByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	var admin models.AdminUser
	if err := r.db.WithContext(ctx).Preload("Organization").Where("email = ?", email).First(&admin).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAdminNotFound
		}
		return nil, fmt.Errorf("failed to fetch admin user: %w", err)
	}
	return &admin, nil
}

// ListOrganizations returns a bounded page of organizations in insertion
// order
func (r *Registry) ListOrganizations(ctx context.Context, offset, limit int) ([]models.Organization, error) {
	var orgs []models.Organization
	if err := r.db.WithContext(ctx).Order("created_at").Offset(offset).Limit(limit).Find(&orgs).Error; err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	return orgs, nil
}

// CompensateCreate removes the organization and its admin in a single
// transaction. It is the compensating half of the signup saga and is not
// exposed as an API; it runs only when provisioning the organization's
// database has failed.
func (r *Registry) CompensateCreate(ctx context.Context, orgID uuid.UUID) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("organization_id = ?", orgID).Delete(&models.AdminUser{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", orgID).Delete(&models.Organization{}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to roll back organization %s: %w", orgID, err)
	}
	return nil
}
