package models

import (
	"time"

	"github.com/google/uuid"
)

// Repair statuses
const (
	RepairStatusPending  = "pending"
	RepairStatusResolved = "resolved"
	RepairStatusFailed   = "failed"
)

// ProvisionRepair records an organization whose two-step signup was left in
// a partial state: the registry rows exist (or a half-created database does)
// but the compensating cleanup could not complete inline. The reconciler
// works these rows until the organization and its database are both gone.
type ProvisionRepair struct {
	ID               uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	OrganizationID   uuid.UUID  `json:"organization_id" gorm:"type:uuid;not null;index"`
	OrganizationName string     `json:"organization_name" gorm:"not null"`
	DatabaseName     string     `json:"database_name" gorm:"not null"`
	Reason           string     `json:"reason" gorm:"not null"`
	RetryCount       int        `json:"retry_count" gorm:"default:0"`
	Status           string     `json:"status" gorm:"default:'pending';index"`
	NextRetryAt      *time.Time `json:"next_retry_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	ResolvedAt       *time.Time `json:"resolved_at,omitempty"`
}

// TableName returns the table name for the ProvisionRepair model
func (ProvisionRepair) TableName() string {
	return "provision_repairs"
}
