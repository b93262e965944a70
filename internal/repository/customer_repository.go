package repository

import (
	"context"

	"bakery_manager/internal/models"
	"bakery_manager/pkg/apperrors"

	"gorm.io/gorm"
)

type CustomerRepository interface {
	Create(ctx context.Context, customer *models.Customer) error
	GetByID(ctx context.Context, ownerID, id string) (*models.Customer, error)
	ListByOwner(ctx context.Context, ownerID string, sort SortOrder) ([]models.Customer, error)
	Update(ctx context.Context, customer *models.Customer) error
	Delete(ctx context.Context, ownerID, id string) error
}

type customerRepository struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) CustomerRepository {
	return &customerRepository{db: db}
}

func (r *customerRepository) Create(ctx context.Context, customer *models.Customer) error {
	return r.db.WithContext(ctx).Create(customer).Error
}

func (r *customerRepository) GetByID(ctx context.Context, ownerID, id string) (*models.Customer, error) {
	var customer models.Customer
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, ownerID).First(&customer).Error
	if err != nil {
		return nil, notFound(err, "customer not found")
	}
	return &customer, nil
}

func (r *customerRepository) ListByOwner(ctx context.Context, ownerID string, sort SortOrder) ([]models.Customer, error) {
	var customers []models.Customer
	err := r.db.WithContext(ctx).Where("user_id = ?", ownerID).Order(sort.clause()).Find(&customers).Error
	return customers, err
}

func (r *customerRepository) Update(ctx context.Context, customer *models.Customer) error {
	res := r.db.WithContext(ctx).Model(customer).
		Where("user_id = ?", customer.UserID).
		Select("name", "email", "phone", "address", "updated_at").
		Updates(customer)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.NewNotFoundError("customer not found")
	}
	return nil
}

func (r *customerRepository) Delete(ctx context.Context, ownerID, id string) error {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, ownerID).Delete(&models.Customer{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.NewNotFoundError("customer not found")
	}
	return nil
}
