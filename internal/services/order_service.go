package services

import (
	"context"

	"bakery_manager/internal/models"
	"bakery_manager/internal/repository"
	"bakery_manager/pkg/apperrors"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// OrderSummary aggregates an order's items.
type OrderSummary struct {
	OrderID       string          `json:"order_id"`
	TotalItems    int             `json:"total_items"`
	TotalQuantity int             `json:"total_quantity"`
	TotalValue    decimal.Decimal `json:"total_value"`
	// MissingProducts counts items whose product has since been deleted.
	MissingProducts int `json:"missing_products"`
}

type OrderService interface {
	List(ctx context.Context, ownerID string) ([]models.Order, error)
	Get(ctx context.Context, ownerID, id string) (*models.Order, error)
	Summary(ctx context.Context, ownerID, id string) (*OrderSummary, error)
	Delete(ctx context.Context, ownerID, id string, confirmed bool) error
}

type orderService struct {
	orderRepo repository.OrderRepository
	log       *logrus.Logger
}

func NewOrderService(orderRepo repository.OrderRepository, log *logrus.Logger) OrderService {
	return &orderService{orderRepo: orderRepo, log: log}
}

func (s *orderService) List(ctx context.Context, ownerID string) ([]models.Order, error) {
	return s.orderRepo.ListByOwner(ctx, ownerID)
}

func (s *orderService) Get(ctx context.Context, ownerID, id string) (*models.Order, error) {
	return s.orderRepo.GetByID(ctx, ownerID, id)
}

func (s *orderService) Summary(ctx context.Context, ownerID, id string) (*OrderSummary, error) {
	order, err := s.orderRepo.GetByID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	summary := &OrderSummary{
		OrderID:    order.ID,
		TotalItems: len(order.Items),
		TotalValue: decimal.Zero,
	}
	for _, item := range order.Items {
		summary.TotalQuantity += item.Quantity
		summary.TotalValue = summary.TotalValue.Add(item.LineTotal())
		if item.Product == nil {
			summary.MissingProducts++
		}
	}
	return summary, nil
}

func (s *orderService) Delete(ctx context.Context, ownerID, id string, confirmed bool) error {
	if !confirmed {
		return apperrors.NewConfirmationRequiredError("deleting an order must be confirmed")
	}
	if err := s.orderRepo.Delete(ctx, ownerID, id); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"user_id": ownerID, "order_id": id}).Info("Order deleted")
	return nil
}
