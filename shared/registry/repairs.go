package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/saaslab/org-management-system/shared/models"
)

// RepairQueue is the durable queue of partial-state signups awaiting
// cleanup, stored next to the registry in the master database.
type RepairQueue struct {
	db *gorm.DB
}

// NewRepairQueue creates a RepairQueue backed by the master database
func NewRepairQueue(db *gorm.DB) *RepairQueue {
	return &RepairQueue{db: db}
}

// Enqueue persists a new pending repair, due immediately
func (q *RepairQueue) Enqueue(ctx context.Context, repair *models.ProvisionRepair) error {
	if repair.ID == uuid.Nil {
		repair.ID = uuid.New()
	}
	repair.Status = models.RepairStatusPending
	now := time.Now()
	repair.NextRetryAt = &now

	if err := q.db.WithContext(ctx).Create(repair).Error; err != nil {
		return fmt.Errorf("failed to enqueue provision repair: %w", err)
	}
	return nil
}

// Due returns up to limit pending repairs whose retry time has passed,
// oldest first
func (q *RepairQueue) Due(ctx context.Context, now time.Time, limit int) ([]models.ProvisionRepair, error) {
	var repairs []models.ProvisionRepair
	err := q.db.WithContext(ctx).
		Where("status = ? AND next_retry_at <= ?", models.RepairStatusPending, now).
		Order("next_retry_at").
		Limit(limit).
		Find(&repairs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load due repairs: %w", err)
	}
	return repairs, nil
}

// MarkResolved marks a repair as completed
func (q *RepairQueue) MarkResolved(ctx context.Context, id uuid.UUID) error {
	now := time.Now()
	err := q.db.WithContext(ctx).Model(&models.ProvisionRepair{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      models.RepairStatusResolved,
			"resolved_at": &now,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark repair %s resolved: %w", id, err)
	}
	return nil
}

// MarkFailed marks a repair as permanently failed; it will only be retried
// by manual intervention
func (q *RepairQueue) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	err := q.db.WithContext(ctx).Model(&models.ProvisionRepair{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status": models.RepairStatusFailed,
			"reason": reason,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark repair %s failed: %w", id, err)
	}
	return nil
}

// Reschedule records a failed attempt and sets the next retry time
func (q *RepairQueue) Reschedule(ctx context.Context, id uuid.UUID, retryCount int, nextRetryAt time.Time) error {
	err := q.db.WithContext(ctx).Model(&models.ProvisionRepair{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"retry_count":   retryCount,
			"next_retry_at": &nextRetryAt,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to reschedule repair %s: %w", id, err)
	}
	return nil
}
