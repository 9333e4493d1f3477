package db

import (
	"fmt"

	"github.com/lumichat/billing/internal/models"
	"gorm.io/gorm"
)

// Migrate creates or updates the schema for all accounting tables.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}

	tables := []any{
		&models.Message{},
		&models.Attachment{},
		&models.ModelPrice{},
		&models.MessageTokenCost{},
		&models.UsageDay{},
		&models.Setting{},
	}
	if errMigrate := conn.AutoMigrate(tables...); errMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errMigrate)
	}

	return backfillWebSearchColumns(conn)
}

// backfillWebSearchColumns covers deployments created before web-search
// accounting existed; AutoMigrate adds the columns, this seeds sane
// values for rows written by older binaries.
func backfillWebSearchColumns(conn *gorm.DB) error {
	if !conn.Migrator().HasColumn(&models.Message{}, "web_search_results") {
		return nil
	}
	if errExec := conn.Exec(`
		UPDATE messages SET web_search_results = 0
		WHERE web_search_results IS NULL
	`).Error; errExec != nil {
		return fmt.Errorf("db: backfill web_search_results: %w", errExec)
	}
	return nil
}
