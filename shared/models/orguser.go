package models

import (
	"time"

	"github.com/google/uuid"
)

// OrganizationUser represents a user record inside an organization's
// isolated database. It never appears in the master database; the table is
// created in each organization database at provisioning time.
type OrganizationUser struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Email        string    `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"not null"`
	FirstName    string    `json:"first_name" gorm:"not null"`
	LastName     string    `json:"last_name" gorm:"not null"`
	Role         string    `json:"role" gorm:"default:user"`
	CreatedAt    time.Time `json:"created_at"`
	IsActive     bool      `json:"is_active" gorm:"default:true"`
}

// TableName returns the table name for the OrganizationUser model
func (OrganizationUser) TableName() string {
	return "users"
}
