package repository

import (
	"context"

	"bakery_manager/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderItemRepository interface {
	CreateBatch(ctx context.Context, items []models.OrderItem) error
	GetByOrderID(ctx context.Context, orderID string) ([]models.OrderItem, error)
	DeleteByOrderID(ctx context.Context, orderID string) error
}

type orderItemRepository struct {
	db *gorm.DB
}

func NewOrderItemRepository(db *gorm.DB) OrderItemRepository {
	return &orderItemRepository{db: db}
}

func (r *orderItemRepository) CreateBatch(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(&items).Error
}

func (r *orderItemRepository) GetByOrderID(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("position ASC").Find(&items).Error
	return items, err
}

func (r *orderItemRepository) DeleteByOrderID(ctx context.Context, orderID string) error {
	return r.db.WithContext(ctx).Where("order_id = ?", orderID).Delete(&models.OrderItem{}).Error
}
