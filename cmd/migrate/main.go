// Command migrate applies the RAPTOR schema (spec.md §3, §6) to the configured Postgres
// database. It is a narrow, single-purpose binary in the teacher's cmd/ style (cmd/migrate,
// cmd/benchmark, cmd/hash_timestamps): one job, no flags beyond environment.
package main

import (
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"raptor/internal/config"
	"raptor/internal/database"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	db, err := gorm.Open(postgres.Open(cfg.DBDSN()), &gorm.Config{})
	if err != nil {
		log.Fatalf("connect to database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("get underlying sql.DB: %v", err)
	}
	defer sqlDB.Close()

	if err := database.AutoMigrateAll(db); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	log.Println("[MIGRATE] raptor schema is up to date")
}
