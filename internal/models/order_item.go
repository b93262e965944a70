package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderItem captures the unit price at the time the order was saved; it does
// not follow later changes to the product's price.
type OrderItem struct {
	ID        string          `json:"id" gorm:"type:uuid;primaryKey"`
	OrderID   string          `json:"order_id" gorm:"type:uuid;not null;index"`
	ProductID string          `json:"product_id" gorm:"type:uuid;not null"`
	Product   *Product        `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	Quantity  int             `json:"quantity" gorm:"not null"`
	Price     decimal.Decimal `json:"price" gorm:"type:numeric(12,2);not null"`
	Position  int             `json:"position" gorm:"not null"`
	CreatedAt time.Time       `json:"created_at"`
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
