package services

import (
	"context"
	"testing"

	"bakery_manager/internal/models"
	"bakery_manager/internal/repository"
	"bakery_manager/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCustomerRepo struct {
	created []models.Customer
	deleted []string
}

func (r *fakeCustomerRepo) Create(ctx context.Context, c *models.Customer) error {
	c.ID = "c-new"
	r.created = append(r.created, *c)
	return nil
}

func (r *fakeCustomerRepo) GetByID(ctx context.Context, ownerID, id string) (*models.Customer, error) {
	for _, c := range r.created {
		if c.ID == id && c.UserID == ownerID {
			c := c
			return &c, nil
		}
	}
	return nil, apperrors.NewNotFoundError("customer not found")
}

func (r *fakeCustomerRepo) ListByOwner(ctx context.Context, ownerID string, sort repository.SortOrder) ([]models.Customer, error) {
	return r.created, nil
}

func (r *fakeCustomerRepo) Update(ctx context.Context, c *models.Customer) error {
	r.created[0] = *c
	return nil
}

func (r *fakeCustomerRepo) Delete(ctx context.Context, ownerID, id string) error {
	r.deleted = append(r.deleted, id)
	return nil
}

func TestCustomerService_CreateRequiresName(t *testing.T) {
	repo := &fakeCustomerRepo{}
	svc := NewCustomerService(repo, quietLogger())

	_, err := svc.Create(context.Background(), "u1", CustomerInput{Name: "   "})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Empty(t, repo.created)

	c, err := svc.Create(context.Background(), "u1", CustomerInput{Name: " Dona Maria ", Phone: "11 9999"})
	require.NoError(t, err)
	assert.Equal(t, "Dona Maria", c.Name)
	assert.Equal(t, "u1", c.UserID)
}

func TestCustomerService_UpdateScopedToOwner(t *testing.T) {
	repo := &fakeCustomerRepo{}
	svc := NewCustomerService(repo, quietLogger())
	_, err := svc.Create(context.Background(), "u1", CustomerInput{Name: "Ana"})
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), "u2", "c-new", CustomerInput{Name: "Hijack"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	updated, err := svc.Update(context.Background(), "u1", "c-new", CustomerInput{Name: "Ana Paula"})
	require.NoError(t, err)
	assert.Equal(t, "Ana Paula", updated.Name)
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	ctx := context.Background()
	customers := &fakeCustomerRepo{}
	products := &fakeProductRepo{}
	orders := newFakeOrderRepo()

	customerSvc := NewCustomerService(customers, quietLogger())
	productSvc := NewProductService(products, quietLogger())
	orderSvc := NewOrderService(orders, quietLogger())

	assert.ErrorIs(t, customerSvc.Delete(ctx, "u1", customerA, false), apperrors.ErrConfirmationRequired)
	assert.ErrorIs(t, productSvc.Delete(ctx, "u1", "p1", false), apperrors.ErrConfirmationRequired)
	assert.ErrorIs(t, orderSvc.Delete(ctx, "u1", "o1", false), apperrors.ErrConfirmationRequired)
	assert.Empty(t, customers.deleted)
	assert.Empty(t, products.deleted)
	assert.Empty(t, orders.deleted)

	require.NoError(t, customerSvc.Delete(ctx, "u1", customerA, true))
	require.NoError(t, productSvc.Delete(ctx, "u1", "p1", true))
	require.NoError(t, orderSvc.Delete(ctx, "u1", "o1", true))
	assert.Equal(t, []string{customerA}, customers.deleted)
	assert.Equal(t, []string{"p1"}, products.deleted)
	assert.Equal(t, []string{"o1"}, orders.deleted)
}

func TestProductService_Validation(t *testing.T) {
	svc := NewProductService(&fakeProductRepo{}, quietLogger())
	ctx := context.Background()

	tests := []struct {
		name  string
		input ProductInput
	}{
		{"missing name", ProductInput{Price: dec("1")}},
		{"negative price", ProductInput{Name: "Bolo", Price: dec("-1")}},
		{"negative stock", ProductInput{Name: "Bolo", Stock: -2}},
		{"unknown category", ProductInput{Name: "Bolo", Category: "pies"}},
		{"price beyond money range", ProductInput{Name: "Bolo", Price: dec("99999999999")}},
		{"huge exponent price", ProductInput{Name: "Bolo", Price: dec("1e20000000")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, "u1", tt.input)
			assert.ErrorIs(t, err, apperrors.ErrValidation)
		})
	}

	p, err := svc.Create(ctx, "u1", ProductInput{Name: "Coxinha", Price: dec("6.499")})
	require.NoError(t, err)
	assert.Equal(t, models.CategoryOther, p.Category)
	assert.True(t, p.Price.Equal(dec("6.50")))
}

func TestOrderService_Summary(t *testing.T) {
	orders := newFakeOrderRepo()
	orders.seed(&models.Order{
		ID: "o1", UserID: "u1", CustomerID: customerA, Version: 1,
		Items: []models.OrderItem{
			{ProductID: "p1", Product: &models.Product{ID: "p1"}, Quantity: 3, Price: dec("2.00")},
			{ProductID: "gone", Quantity: 1, Price: dec("10.00")},
		},
	})
	svc := NewOrderService(orders, quietLogger())

	summary, err := svc.Summary(context.Background(), "u1", "o1")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalItems)
	assert.Equal(t, 4, summary.TotalQuantity)
	assert.True(t, summary.TotalValue.Equal(dec("16")))
	assert.Equal(t, 1, summary.MissingProducts)

	_, err = svc.Summary(context.Background(), "u2", "o1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
