package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Order struct {
	ID           string          `json:"id" gorm:"type:uuid;primaryKey"`
	UserID       string          `json:"user_id" gorm:"type:uuid;not null;index"`
	CustomerID   string          `json:"customer_id" gorm:"type:uuid;not null;index"`
	Customer     *Customer       `json:"customer,omitempty" gorm:"foreignKey:CustomerID"`
	Status       OrderStatus     `json:"status" gorm:"not null"`
	Total        decimal.Decimal `json:"total" gorm:"type:numeric(12,2);not null"`
	DeliveryDate *time.Time      `json:"delivery_date" gorm:"type:date"`
	Notes        string          `json:"notes" gorm:"type:text"`
	Version      int             `json:"version" gorm:"not null"`
	Items        []OrderItem     `json:"items" gorm:"foreignKey:OrderID"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}

// ReconcileTotal overwrites the stored total with the sum of the loaded items.
// Reads go through it so a stale stored value is never presented.
func (o *Order) ReconcileTotal() {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.LineTotal())
	}
	o.Total = total
}

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderInProgress OrderStatus = "in_progress"
	OrderCompleted  OrderStatus = "completed"
	OrderCancelled  OrderStatus = "cancelled"
)

// ParseOrderStatus accepts one of the fixed statuses. An empty value defaults
// to pending.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch OrderStatus(s) {
	case "":
		return OrderPending, true
	case OrderPending, OrderInProgress, OrderCompleted, OrderCancelled:
		return OrderStatus(s), true
	default:
		return "", false
	}
}
