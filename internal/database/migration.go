package database

import (
	"log"

	"gorm.io/gorm"

	"raptor/internal/models"
	"raptor/internal/observability"
)

// AutoMigrateAll creates/updates every table the store owns (spec.md §3, §6). The core
// never migrates the settings-CRUD owned columns beyond what it reads; user/wallet/settings
// rows are created here only so local/integration environments have a schema to seed.
func AutoMigrateAll(db *gorm.DB) error {
	log.Println("[MIGRATE] running auto-migration for raptor schema")

	return db.AutoMigrate(
		&models.User{},
		&models.Wallet{},
		&models.Settings{},
		&models.Strategy{},
		&models.LaunchCandidate{},
		&models.Position{},
		&models.Execution{},
		&models.NotificationOutbox{},
		&models.TradeLock{},
		&models.SystemLog{},
		&observability.ServiceMetric{},
	)
}
