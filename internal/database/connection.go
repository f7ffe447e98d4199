// internal/database/connection.go
package database

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/javajoker/licensecore/internal/config"
	"github.com/javajoker/licensecore/internal/models"
)

func Initialize(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var gormConfig *gorm.Config

	// Configure GORM logger
	if cfg.LogLevel == "silent" {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		}
	} else {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Info),
		}
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Printf("Error getting underlying sql.DB: %v", err)
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Printf("Error closing database connection: %v", err)
	}
}

func RunMigrations(db *gorm.DB) error {
	// Enable UUID extension
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS \"uuid-ossp\"").Error; err != nil {
		return fmt.Errorf("failed to create UUID extension: %w", err)
	}

	err := db.AutoMigrate(
		&models.License{},
		&models.StatusTransition{},
		&models.Signature{},
		&models.NotificationRecord{},
		&models.Amendment{},
		&models.RequiredApprover{},
		&models.ApprovalDecision{},
		&models.Extension{},
		&models.RenewalOffer{},
		&models.OwnershipRecord{},
		&models.Asset{},
		&models.Brand{},
		&models.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

func createIndexes(db *gorm.DB) error {
	indexes := []string{
		// Conflict search: non-terminal licenses for an asset in a window
		"CREATE INDEX IF NOT EXISTS idx_licenses_asset_status ON licenses(asset_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_licenses_asset_dates ON licenses(asset_id, start_date, end_date)",
		"CREATE INDEX IF NOT EXISTS idx_licenses_brand_status ON licenses(brand_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_licenses_end_date_status ON licenses(end_date, status)",

		// Sweep scans
		"CREATE INDEX IF NOT EXISTS idx_amendments_status_deadline ON amendments(status, deadline)",
		"CREATE INDEX IF NOT EXISTS idx_extensions_status_deadline ON extensions(status, deadline)",
		"CREATE INDEX IF NOT EXISTS idx_renewal_offers_status_expiry ON renewal_offers(status, expires_at)",

		// History lookups
		"CREATE INDEX IF NOT EXISTS idx_status_transitions_license ON status_transitions(license_id, created_at)",
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_entity ON audit_logs(entity_type, entity_id)",

		// Ownership reads
		"CREATE INDEX IF NOT EXISTS idx_ownership_asset_status ON ownership_records(asset_id, status)",
	}

	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			log.Printf("Warning: Failed to create index: %s, Error: %v", index, err)
			// Continue with other indexes instead of failing completely
		}
	}

	return nil
}

// Transaction helper
func WithTransaction(db *gorm.DB, fn func(*gorm.DB) error) error {
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}
