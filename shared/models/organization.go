package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization represents a registered tenant in the master database
type Organization struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Name         string    `json:"name" gorm:"uniqueIndex;not null"`
	Email        string    `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"not null"`
	DatabaseName string    `json:"database_name" gorm:"uniqueIndex;not null"`
	CreatedAt    time.Time `json:"created_at"`
	IsActive     bool      `json:"is_active" gorm:"default:true"`

	// Relationships
	Admin *AdminUser `json:"admin,omitempty" gorm:"foreignKey:OrganizationID"`
}

// TableName returns the table name for the Organization model
func (Organization) TableName() string {
	return "organizations"
}

// AdminUser represents the bootstrap admin of an organization. Exactly one
// admin exists per organization; the two rows are created in one transaction.
type AdminUser struct {
	ID             uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Email          string    `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash   string    `json:"-" gorm:"not null"`
	OrganizationID uuid.UUID `json:"organization_id" gorm:"type:uuid;not null;index"`
	CreatedAt      time.Time `json:"created_at"`
	IsActive       bool      `json:"is_active" gorm:"default:true"`

	// Relationships
	Organization *Organization `json:"organization,omitempty" gorm:"foreignKey:OrganizationID"`
}

// TableName returns the table name for the AdminUser model
func (AdminUser) TableName() string {
	return "admin_users"
}
