package migrations

import (
	"context"
	"errors"
	"fmt"

	"bakery_manager/internal/database"
	"bakery_manager/internal/models"
	"bakery_manager/internal/repository"
	"bakery_manager/pkg/apperrors"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// SeedOptions controls the demo account created after a reset. An empty
// Email skips seeding.
type SeedOptions struct {
	Email    string
	Password string
}

// RunMigrations drops every table, recreates the schema and seeds demo data.
func RunMigrations(db *gorm.DB, log *logrus.Logger, seed SeedOptions) error {
	log.Info("Running database migrations...")

	log.Info("Dropping existing tables...")
	if err := db.Migrator().DropTable(database.Models()...); err != nil {
		log.WithError(err).Warn("Error dropping tables")
	}

	log.Info("Creating tables...")
	if err := database.AutoMigrate(db); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	if seed.Email != "" {
		if err := createDefaultData(context.Background(), db, log, seed); err != nil {
			log.WithError(err).Warn("Failed to create default data")
		}
	}

	log.Info("Database migrations completed successfully!")
	return nil
}

// createDefaultData creates a demo bakery owner with a starter catalog.
func createDefaultData(ctx context.Context, db *gorm.DB, log *logrus.Logger, seed SeedOptions) error {
	log.Info("Creating default data...")

	userRepo := repository.NewUserRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	productRepo := repository.NewProductRepository(db)

	existing, err := userRepo.GetByEmail(ctx, seed.Email)
	if err == nil {
		log.WithField("user_id", existing.ID).Info("Demo user already exists")
		return nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(seed.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	owner := &models.User{Email: seed.Email, PasswordHash: string(hashedPassword)}
	if err := userRepo.Create(ctx, owner); err != nil {
		return fmt.Errorf("failed to create demo user: %w", err)
	}

	for _, c := range defaultCustomers() {
		c.UserID = owner.ID
		if err := customerRepo.Create(ctx, &c); err != nil {
			return fmt.Errorf("failed to create customer %q: %w", c.Name, err)
		}
	}
	for _, p := range defaultProducts() {
		p.UserID = owner.ID
		if err := productRepo.Create(ctx, &p); err != nil {
			return fmt.Errorf("failed to create product %q: %w", p.Name, err)
		}
	}

	log.WithFields(logrus.Fields{
		"user_id": owner.ID,
		"email":   owner.Email,
	}).Info("Demo user created")
	return nil
}

func defaultCustomers() []models.Customer {
	return []models.Customer{
		{Name: "Maria Silva", Email: "maria@example.com", Phone: "(11) 98765-4321", Address: "Rua das Flores, 120"},
		{Name: "Café Central", Email: "pedidos@cafecentral.example", Phone: "(11) 3333-2211"},
	}
}

func defaultProducts() []models.Product {
	return []models.Product{
		{Name: "Bolo de Chocolate", Description: "Massa de chocolate com brigadeiro", Price: decimal.RequireFromString("65.00"), Category: models.CategoryCakes, Stock: 4},
		{Name: "Brigadeiro", Description: "Unidade", Price: decimal.RequireFromString("2.50"), Category: models.CategorySweets, Stock: 200},
		{Name: "Coxinha", Price: decimal.RequireFromString("6.00"), Category: models.CategorySavory, Stock: 50},
		{Name: "Suco de Laranja", Description: "500 ml", Price: decimal.RequireFromString("9.00"), Category: models.CategoryBeverages, Stock: 20},
	}
}
