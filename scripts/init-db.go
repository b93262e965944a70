package main

import (
	"bakery_manager/internal/config"
	"bakery_manager/internal/database"
	"bakery_manager/internal/logging"
	"bakery_manager/internal/migrations"
)

func main() {
	// Load configuration
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	log.Info("Initializing database...")

	// Initialize database
	db, err := database.Initialize(cfg.DatabaseURL, cfg.LogLevel, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}

	// Force recreate all tables and seed the demo account
	err = migrations.RunMigrations(db, log, migrations.SeedOptions{
		Email:    cfg.DemoEmail,
		Password: cfg.DemoPassword,
	})
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize database")
	}

	log.Info("Database initialization completed!")
}
