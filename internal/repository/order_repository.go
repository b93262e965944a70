package repository

import (
	"context"
	"fmt"
	"time"

	"bakery_manager/internal/models"
	"bakery_manager/pkg/apperrors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderRepository interface {
	ListByOwner(ctx context.Context, ownerID string) ([]models.Order, error)
	GetByID(ctx context.Context, ownerID, id string) (*models.Order, error)
	// CreateWithItems inserts the header and all items in one transaction.
	CreateWithItems(ctx context.Context, order *models.Order, items []models.OrderItem) error
	// ReplaceWithItems rewrites the header and swaps the item set in one
	// transaction. The header update only applies when the stored version
	// still equals expectedVersion.
	ReplaceWithItems(ctx context.Context, order *models.Order, items []models.OrderItem, expectedVersion int) error
	Delete(ctx context.Context, ownerID, id string) error
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) withRelations(db *gorm.DB) *gorm.DB {
	return db.Preload("Customer").
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Items.Product")
}

func (r *orderRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Order, error) {
	var orders []models.Order
	err := r.withRelations(r.db.WithContext(ctx)).
		Where("user_id = ?", ownerID).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].ReconcileTotal()
	}
	return orders, nil
}

func (r *orderRepository) GetByID(ctx context.Context, ownerID, id string) (*models.Order, error) {
	var order models.Order
	err := r.withRelations(r.db.WithContext(ctx)).
		Where("id = ? AND user_id = ?", id, ownerID).
		First(&order).Error
	if err != nil {
		return nil, notFound(err, "order not found")
	}
	order.ReconcileTotal()
	return &order, nil
}

func (r *orderRepository) CreateWithItems(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureCustomer(tx, order.UserID, order.CustomerID); err != nil {
			return err
		}

		order.Version = 1
		if err := tx.Omit(clause.Associations).Create(order).Error; err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		prepareItems(order.ID, items)
		if err := NewOrderItemRepository(tx).CreateBatch(ctx, items); err != nil {
			return fmt.Errorf("insert order items: %w", err)
		}
		order.Items = items
		return nil
	})
}

func (r *orderRepository) ReplaceWithItems(ctx context.Context, order *models.Order, items []models.OrderItem, expectedVersion int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureCustomer(tx, order.UserID, order.CustomerID); err != nil {
			return err
		}

		res := tx.Model(&models.Order{}).
			Where("id = ? AND user_id = ? AND version = ?", order.ID, order.UserID, expectedVersion).
			Updates(map[string]interface{}{
				"customer_id":   order.CustomerID,
				"status":        order.Status,
				"total":         order.Total,
				"delivery_date": order.DeliveryDate,
				"notes":         order.Notes,
				"version":       gorm.Expr("version + 1"),
				"updated_at":    time.Now(),
			})
		if res.Error != nil {
			return fmt.Errorf("update order: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.Order{}).Where("id = ? AND user_id = ?", order.ID, order.UserID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return apperrors.NewNotFoundError("order not found")
			}
			return apperrors.NewConflictError("order was modified by another session")
		}
		order.Version = expectedVersion + 1

		itemRepo := NewOrderItemRepository(tx)
		if err := itemRepo.DeleteByOrderID(ctx, order.ID); err != nil {
			return fmt.Errorf("delete order items: %w", err)
		}
		prepareItems(order.ID, items)
		if err := itemRepo.CreateBatch(ctx, items); err != nil {
			return fmt.Errorf("insert order items: %w", err)
		}
		order.Items = items
		return nil
	})
}

func (r *orderRepository) Delete(ctx context.Context, ownerID, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", id, ownerID).Delete(&models.Order{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.NewNotFoundError("order not found")
		}
		return NewOrderItemRepository(tx).DeleteByOrderID(ctx, id)
	})
}

func ensureCustomer(tx *gorm.DB, ownerID, customerID string) error {
	var count int64
	err := tx.Model(&models.Customer{}).Where("id = ? AND user_id = ?", customerID, ownerID).Count(&count).Error
	if err != nil {
		return err
	}
	if count == 0 {
		return apperrors.NewValidationError("customer not found")
	}
	return nil
}

func prepareItems(orderID string, items []models.OrderItem) {
	for i := range items {
		items[i].OrderID = orderID
		items[i].Position = i
	}
}
