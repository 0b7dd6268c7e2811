package tenantdb

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/saaslab/org-management-system/shared/config"
	"github.com/saaslab/org-management-system/shared/provision"
)

// ErrStoreNotFound is returned when no database exists for the organization
var ErrStoreNotFound = errors.New("organization database not found")

// invalidCatalogName is the SQLSTATE Postgres reports when connecting to a
// database that does not exist
const invalidCatalogName = "3D000"

// Resolver maps an organization name to a live handle on its isolated
// database. The database name is recomputed from the organization name on
// every call with the same derivation used at provisioning time. Handles
// are not pooled across calls: each Open returns a fresh handle and a
// release func the caller must run on every exit path.
type Resolver struct {
	cfg config.OrgDBConfig
}

// NewResolver creates a Resolver for the configured storage engine
func NewResolver(cfg config.OrgDBConfig) *Resolver {
	return &Resolver{cfg: cfg}
}

// Open connects to the organization's database. The returned release func
// closes the underlying connection; callers should defer it immediately.
func (r *Resolver) Open(ctx context.Context, orgName string) (*gorm.DB, func(), error) {
	dbName := provision.DatabaseNameFor(orgName)

	db, err := gorm.Open(postgres.Open(r.cfg.DSNFor(dbName)), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Error),
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == invalidCatalogName {
			return nil, nil, ErrStoreNotFound
		}
		return nil, nil, fmt.Errorf("failed to connect to organization database %s: %w", dbName, err)
	}

	release := func() {
		sqlDB, dbErr := db.DB()
		if dbErr != nil {
			return
		}
		if closeErr := sqlDB.Close(); closeErr != nil {
			logrus.WithField("database_name", dbName).Warnf("Failed to release store handle: %v", closeErr)
		}
	}

	return db.WithContext(ctx), release, nil
}
