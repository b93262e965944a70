package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Product struct {
	ID          string          `json:"id" gorm:"type:uuid;primaryKey"`
	UserID      string          `json:"user_id" gorm:"type:uuid;not null;index"`
	Name        string          `json:"name" gorm:"not null"`
	Description string          `json:"description" gorm:"type:text"`
	Price       decimal.Decimal `json:"price" gorm:"type:numeric(12,2);not null"`
	Category    ProductCategory `json:"category" gorm:"not null"`
	Stock       int             `json:"stock" gorm:"not null"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

type ProductCategory string

const (
	CategoryCakes     ProductCategory = "cakes"
	CategorySweets    ProductCategory = "sweets"
	CategorySavory    ProductCategory = "savory"
	CategoryBeverages ProductCategory = "beverages"
	CategoryOther     ProductCategory = "other"
)

var productCategories = []ProductCategory{
	CategoryCakes,
	CategorySweets,
	CategorySavory,
	CategoryBeverages,
	CategoryOther,
}

// ParseProductCategory accepts one of the fixed categories. An empty value
// defaults to "other".
func ParseProductCategory(s string) (ProductCategory, bool) {
	if s == "" {
		return CategoryOther, true
	}
	for _, c := range productCategories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}
