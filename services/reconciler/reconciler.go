package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/saaslab/org-management-system/shared/models"
	"github.com/saaslab/org-management-system/shared/registry"
)

// storeDropper removes a per-organization database
type storeDropper interface {
	DropDatabase(ctx context.Context, dbName string) error
}

// Reconciler finishes the cleanup of partial-state signups: it drops the
// organization's database (if any was created) and deletes the registry
// rows, retrying with backoff until both are gone or the retry budget is
// spent.
type Reconciler struct {
	repairs     *registry.RepairQueue
	registry    *registry.Registry
	stores      storeDropper
	maxRetries  int
	baseBackoff time.Duration
	batchSize   int
}

// NewReconciler creates a reconciler over the repair queue
func NewReconciler(repairs *registry.RepairQueue, reg *registry.Registry, stores storeDropper) *Reconciler {
	return &Reconciler{
		repairs:     repairs,
		registry:    reg,
		stores:      stores,
		maxRetries:  8,
		baseBackoff: time.Minute,
		batchSize:   100,
	}
}

// ProcessDue works every pending repair whose retry time has passed
func (rc *Reconciler) ProcessDue(ctx context.Context) {
	repairs, err := rc.repairs.Due(ctx, time.Now(), rc.batchSize)
	if err != nil {
		logrus.Errorf("Failed to load due repairs: %v", err)
		return
	}

	for i := range repairs {
		rc.process(ctx, &repairs[i])
	}
}

// process attempts one repair and updates its queue state
func (rc *Reconciler) process(ctx context.Context, repair *models.ProvisionRepair) {
	log := logrus.WithFields(logrus.Fields{
		"repair_id":     repair.ID,
		"organization":  repair.OrganizationName,
		"database_name": repair.DatabaseName,
	})

	err := rc.repair(ctx, repair)
	if err == nil {
		if markErr := rc.repairs.MarkResolved(ctx, repair.ID); markErr != nil {
			log.Errorf("Repair succeeded but could not be marked resolved: %v", markErr)
			return
		}
		log.Info("Partial-state signup cleaned up")
		return
	}

	retryCount := repair.RetryCount + 1
	if retryCount >= rc.maxRetries {
		log.Errorf("Repair exhausted %d retries, manual reconciliation required: %v", rc.maxRetries, err)
		if markErr := rc.repairs.MarkFailed(ctx, repair.ID, err.Error()); markErr != nil {
			log.Errorf("Failed to mark repair failed: %v", markErr)
		}
		return
	}

	nextRetryAt := time.Now().Add(rc.backoff(retryCount))
	log.Warnf("Repair attempt %d failed, retrying at %s: %v", retryCount, nextRetryAt.Format(time.RFC3339), err)
	if markErr := rc.repairs.Reschedule(ctx, repair.ID, retryCount, nextRetryAt); markErr != nil {
		log.Errorf("Failed to reschedule repair: %v", markErr)
	}
}

// repair drops the database first so the registry rows are only removed
// once no isolated store can be left behind
func (rc *Reconciler) repair(ctx context.Context, repair *models.ProvisionRepair) error {
	if err := rc.stores.DropDatabase(ctx, repair.DatabaseName); err != nil {
		return err
	}
	return rc.registry.CompensateCreate(ctx, repair.OrganizationID)
}

// backoff doubles per attempt starting from baseBackoff
func (rc *Reconciler) backoff(retryCount int) time.Duration {
	d := rc.baseBackoff
	for i := 1; i < retryCount; i++ {
		d *= 2
	}
	return d
}
