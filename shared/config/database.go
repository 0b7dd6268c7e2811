package config

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ConnectMaster establishes a connection to the master (registry) database
// with pool settings tuned for the small fixed set of services
func ConnectMaster(cfg *Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.MasterDB.GetDSN()), &gorm.Config{
		PrepareStmt:    true,
		TranslateError: true, // surface unique-constraint violations as gorm.ErrDuplicatedKey
		Logger:         logger.Default.LogMode(logger.Error),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to master database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying SQL DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping master database: %w", err)
	}

	return db, nil
}
