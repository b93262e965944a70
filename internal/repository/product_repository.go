package repository

import (
	"context"

	"bakery_manager/internal/models"
	"bakery_manager/pkg/apperrors"

	"gorm.io/gorm"
)

type ProductRepository interface {
	Create(ctx context.Context, product *models.Product) error
	GetByID(ctx context.Context, ownerID, id string) (*models.Product, error)
	ListByOwner(ctx context.Context, ownerID string, sort SortOrder) ([]models.Product, error)
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, ownerID, id string) error
}

type productRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *productRepository) GetByID(ctx context.Context, ownerID, id string) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, ownerID).First(&product).Error
	if err != nil {
		return nil, notFound(err, "product not found")
	}
	return &product, nil
}

func (r *productRepository) ListByOwner(ctx context.Context, ownerID string, sort SortOrder) ([]models.Product, error) {
	var products []models.Product
	err := r.db.WithContext(ctx).Where("user_id = ?", ownerID).Order(sort.clause()).Find(&products).Error
	return products, err
}

func (r *productRepository) Update(ctx context.Context, product *models.Product) error {
	res := r.db.WithContext(ctx).Model(product).
		Where("user_id = ?", product.UserID).
		Select("name", "description", "price", "category", "stock", "updated_at").
		Updates(product)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.NewNotFoundError("product not found")
	}
	return nil
}

func (r *productRepository) Delete(ctx context.Context, ownerID, id string) error {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, ownerID).Delete(&models.Product{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.NewNotFoundError("product not found")
	}
	return nil
}
