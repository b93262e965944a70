package services

import (
	"context"
	"strings"

	"bakery_manager/internal/models"
	"bakery_manager/internal/repository"
	"bakery_manager/pkg/apperrors"

	"github.com/sirupsen/logrus"
)

type CustomerInput struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

func (in CustomerInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return apperrors.NewValidationError("name is required")
	}
	return nil
}

type CustomerService interface {
	List(ctx context.Context, ownerID string, sort repository.SortOrder) ([]models.Customer, error)
	Get(ctx context.Context, ownerID, id string) (*models.Customer, error)
	Create(ctx context.Context, ownerID string, in CustomerInput) (*models.Customer, error)
	Update(ctx context.Context, ownerID, id string, in CustomerInput) (*models.Customer, error)
	// Delete removes the customer only when confirmed is true. Orders that
	// reference it keep the dangling id.
	Delete(ctx context.Context, ownerID, id string, confirmed bool) error
}

type customerService struct {
	customerRepo repository.CustomerRepository
	log          *logrus.Logger
}

func NewCustomerService(customerRepo repository.CustomerRepository, log *logrus.Logger) CustomerService {
	return &customerService{customerRepo: customerRepo, log: log}
}

func (s *customerService) List(ctx context.Context, ownerID string, sort repository.SortOrder) ([]models.Customer, error) {
	return s.customerRepo.ListByOwner(ctx, ownerID, sort)
}

func (s *customerService) Get(ctx context.Context, ownerID, id string) (*models.Customer, error) {
	return s.customerRepo.GetByID(ctx, ownerID, id)
}

func (s *customerService) Create(ctx context.Context, ownerID string, in CustomerInput) (*models.Customer, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	customer := &models.Customer{
		UserID:  ownerID,
		Name:    strings.TrimSpace(in.Name),
		Email:   strings.TrimSpace(in.Email),
		Phone:   strings.TrimSpace(in.Phone),
		Address: strings.TrimSpace(in.Address),
	}
	if err := s.customerRepo.Create(ctx, customer); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"user_id": ownerID, "customer_id": customer.ID}).Info("Customer created")
	return customer, nil
}

func (s *customerService) Update(ctx context.Context, ownerID, id string, in CustomerInput) (*models.Customer, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	customer, err := s.customerRepo.GetByID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	customer.Name = strings.TrimSpace(in.Name)
	customer.Email = strings.TrimSpace(in.Email)
	customer.Phone = strings.TrimSpace(in.Phone)
	customer.Address = strings.TrimSpace(in.Address)
	if err := s.customerRepo.Update(ctx, customer); err != nil {
		return nil, err
	}
	return customer, nil
}

func (s *customerService) Delete(ctx context.Context, ownerID, id string, confirmed bool) error {
	if !confirmed {
		return apperrors.NewConfirmationRequiredError("deleting a customer must be confirmed")
	}
	if err := s.customerRepo.Delete(ctx, ownerID, id); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"user_id": ownerID, "customer_id": id}).Info("Customer deleted")
	return nil
}
