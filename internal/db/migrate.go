package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/davenport-labs/conjure/internal/models"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Agent{},
		&models.Instance{},
		&models.UserWallet{},
		&models.GuildWallet{},
	}
}

// AutoMigrate creates or updates all Conjure tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}
