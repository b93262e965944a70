package database

import (
	"fmt"
	"strings"
	"time"

	"bakery_manager/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func Initialize(databaseURL, logLevel string, log *logrus.Logger) (*gorm.DB, error) {
	// Configure GORM
	config := &gorm.Config{
		Logger: logger.Default.LogMode(gormLogLevel(logLevel)),
		// Orders keep dangling customer/product references after deletes.
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
	}

	// Connect to database
	db, err := gorm.Open(postgres.Open(databaseURL), config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	// Auto migrate all models
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Info("Database connected and migrated successfully")
	return db, nil
}

// Models lists every persisted model in dependency order.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Customer{},
		&models.Product{},
		&models.Order{},
		&models.OrderItem{},
	}
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

func gormLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "debug", "trace":
		return logger.Info
	case "warn", "warning":
		return logger.Warn
	case "error", "fatal", "panic":
		return logger.Error
	default:
		return logger.Warn
	}
}
