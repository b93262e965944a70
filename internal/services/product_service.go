package services

import (
	"context"
	"strings"

	"bakery_manager/internal/models"
	"bakery_manager/internal/repository"
	"bakery_manager/pkg/apperrors"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type ProductInput struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Stock       int             `json:"stock"`
}

func (in ProductInput) toModel(p *models.Product) error {
	if strings.TrimSpace(in.Name) == "" {
		return apperrors.NewValidationError("name is required")
	}
	if in.Price.IsNegative() {
		return apperrors.NewValidationError("price must not be negative")
	}
	if in.Stock < 0 {
		return apperrors.NewValidationError("stock must not be negative")
	}
	price, ok := models.RoundMoney(in.Price)
	if !ok {
		return apperrors.NewValidationError("price is too large")
	}
	category, ok := models.ParseProductCategory(in.Category)
	if !ok {
		return apperrors.NewValidationError("invalid product category")
	}

	p.Name = strings.TrimSpace(in.Name)
	p.Description = in.Description
	p.Price = price
	p.Category = category
	p.Stock = in.Stock
	return nil
}

type ProductService interface {
	List(ctx context.Context, ownerID string, sort repository.SortOrder) ([]models.Product, error)
	Get(ctx context.Context, ownerID, id string) (*models.Product, error)
	Create(ctx context.Context, ownerID string, in ProductInput) (*models.Product, error)
	Update(ctx context.Context, ownerID, id string, in ProductInput) (*models.Product, error)
	Delete(ctx context.Context, ownerID, id string, confirmed bool) error
}

type productService struct {
	productRepo repository.ProductRepository
	log         *logrus.Logger
}

func NewProductService(productRepo repository.ProductRepository, log *logrus.Logger) ProductService {
	return &productService{productRepo: productRepo, log: log}
}

func (s *productService) List(ctx context.Context, ownerID string, sort repository.SortOrder) ([]models.Product, error) {
	return s.productRepo.ListByOwner(ctx, ownerID, sort)
}

func (s *productService) Get(ctx context.Context, ownerID, id string) (*models.Product, error) {
	return s.productRepo.GetByID(ctx, ownerID, id)
}

func (s *productService) Create(ctx context.Context, ownerID string, in ProductInput) (*models.Product, error) {
	product := &models.Product{UserID: ownerID}
	if err := in.toModel(product); err != nil {
		return nil, err
	}
	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"user_id": ownerID, "product_id": product.ID}).Info("Product created")
	return product, nil
}

func (s *productService) Update(ctx context.Context, ownerID, id string, in ProductInput) (*models.Product, error) {
	product, err := s.productRepo.GetByID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if err := in.toModel(product); err != nil {
		return nil, err
	}
	if err := s.productRepo.Update(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

func (s *productService) Delete(ctx context.Context, ownerID, id string, confirmed bool) error {
	if !confirmed {
		return apperrors.NewConfirmationRequiredError("deleting a product must be confirmed")
	}
	if err := s.productRepo.Delete(ctx, ownerID, id); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"user_id": ownerID, "product_id": id}).Info("Product deleted")
	return nil
}
