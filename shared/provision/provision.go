package provision

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/saaslab/org-management-system/shared/config"
	"github.com/saaslab/org-management-system/shared/models"
	"github.com/saaslab/org-management-system/shared/utils"
)

// ErrProvisionFailed is returned when the organization database could not
// be created
var ErrProvisionFailed = errors.New("failed to provision organization database")

const databaseNamePrefix = "org_"

// MaxDatabaseNameLength is the Postgres identifier limit (NAMEDATALEN-1).
// CREATE DATABASE silently truncates longer names, which would leave the
// registry holding a database_name no actual database matches, so names
// exceeding the limit are rejected at signup instead.
const MaxDatabaseNameLength = 63

// DatabaseNameFor derives the name of an organization's isolated database
// from the organization name. The derivation is a pure function: the
// Resolver recomputes it on every lookup instead of reading a stored copy,
// so the two can never disagree.
func DatabaseNameFor(orgName string) string {
	name := strings.ToLower(orgName)
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "-", "_")
	return databaseNamePrefix + name
}

// Provisioner creates isolated per-organization databases on the storage
// engine by cloning the configured template.
type Provisioner struct {
	cfg     config.OrgDBConfig
	admin   *gorm.DB
	breaker *utils.CircuitBreaker
}

// NewProvisioner connects to the storage engine's maintenance database and
// returns a Provisioner. The connection is long-lived; individual
// provisioning calls are bounded by the configured timeout.
func NewProvisioner(cfg config.OrgDBConfig) (*Provisioner, error) {
	admin, err := gorm.Open(postgres.Open(cfg.DSNFor(cfg.MaintenanceDB)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to storage engine: %w", err)
	}

	return &Provisioner{
		cfg:     cfg,
		admin:   admin,
		breaker: utils.NewCircuitBreaker(5, 30*time.Second),
	}, nil
}

// CreateDatabase creates the organization's database from the template and
// installs the tenant schema in it. It returns the derived database name.
// The call is guarded by a circuit breaker and the configured timeout so a
// dead storage engine surfaces as ErrProvisionFailed instead of blocking
// request handlers indefinitely.
func (p *Provisioner) CreateDatabase(ctx context.Context, orgName string) (string, error) {
	dbName := DatabaseNameFor(orgName)

	ctx, cancel := context.WithTimeout(ctx, p.cfg.ProvisionTimeout)
	defer cancel()

	err := p.breaker.Call(func() error {
		stmt := fmt.Sprintf("CREATE DATABASE %s TEMPLATE %s", quoteIdent(dbName), quoteIdent(p.cfg.Template))
		if err := p.admin.WithContext(ctx).Exec(stmt).Error; err != nil {
			return err
		}
		return p.migrateTenantSchema(ctx, dbName)
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"organization":  orgName,
			"database_name": dbName,
		}).Errorf("Provisioning failed: %v", err)
		return dbName, fmt.Errorf("%w: %v", ErrProvisionFailed, err)
	}

	logrus.WithField("database_name", dbName).Info("Created organization database")
	return dbName, nil
}

// DropDatabase removes an organization database. Used only on the repair
// path when a signup has to be rolled back.
func (p *Provisioner) DropDatabase(ctx context.Context, dbName string) error {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.ProvisionTimeout)
	defer cancel()

	stmt := fmt.Sprintf("DROP DATABASE IF EXISTS %s", quoteIdent(dbName))
	if err := p.admin.WithContext(ctx).Exec(stmt).Error; err != nil {
		return fmt.Errorf("failed to drop database %s: %w", dbName, err)
	}
	return nil
}

// migrateTenantSchema opens the freshly created database and creates the
// tenant-scoped tables in it, then closes the handle.
func (p *Provisioner) migrateTenantSchema(ctx context.Context, dbName string) error {
	db, err := gorm.Open(postgres.Open(p.cfg.DSNFor(dbName)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to new database %s: %w", dbName, err)
	}
	defer func() {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			sqlDB.Close()
		}
	}()

	if err := db.WithContext(ctx).AutoMigrate(&models.OrganizationUser{}); err != nil {
		return fmt.Errorf("failed to migrate schema in %s: %w", dbName, err)
	}
	return nil
}

// quoteIdent quotes a Postgres identifier. CREATE DATABASE does not accept
// bind parameters, so names are interpolated and must be quoted.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
