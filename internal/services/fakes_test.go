package services

import (
	"context"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"bakery_manager/internal/models"
	"bakery_manager/internal/redis"
	"bakery_manager/internal/repository"
	"bakery_manager/pkg/apperrors"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

const (
	customerA       = "6f1f6d2e-8a51-4c1e-9a57-1d2b3c4d5e01"
	customerB       = "6f1f6d2e-8a51-4c1e-9a57-1d2b3c4d5e02"
	customerForeign = "6f1f6d2e-8a51-4c1e-9a57-1d2b3c4d5eff"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := redis.Initialize("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client, mr
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*models.User)}
}

func (r *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.Email]; ok {
		return apperrors.NewConflictError("email already registered")
	}
	user.ID = uuid.NewString()
	r.users[user.Email] = user
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, apperrors.NewNotFoundError("user not found")
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[models.NormalizeEmail(email)]; ok {
		return u, nil
	}
	return nil, apperrors.NewNotFoundError("user not found")
}

type fakeProductRepo struct {
	products []models.Product
	deleted  []string
}

func (r *fakeProductRepo) Create(ctx context.Context, p *models.Product) error {
	p.ID = uuid.NewString()
	r.products = append(r.products, *p)
	return nil
}

func (r *fakeProductRepo) GetByID(ctx context.Context, ownerID, id string) (*models.Product, error) {
	for _, p := range r.products {
		if p.ID == id && p.UserID == ownerID {
			p := p
			return &p, nil
		}
	}
	return nil, apperrors.NewNotFoundError("product not found")
}

func (r *fakeProductRepo) ListByOwner(ctx context.Context, ownerID string, order repository.SortOrder) ([]models.Product, error) {
	var out []models.Product
	for _, p := range r.products {
		if p.UserID == ownerID {
			out = append(out, p)
		}
	}
	if order == repository.SortName {
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	}
	return out, nil
}

func (r *fakeProductRepo) Update(ctx context.Context, p *models.Product) error {
	for i := range r.products {
		if r.products[i].ID == p.ID {
			r.products[i] = *p
			return nil
		}
	}
	return apperrors.NewNotFoundError("product not found")
}

func (r *fakeProductRepo) Delete(ctx context.Context, ownerID, id string) error {
	r.deleted = append(r.deleted, id)
	return nil
}

// fakeOrderRepo stores orders in memory and mimics the version check of the
// gorm repository.
type fakeOrderRepo struct {
	mu        sync.Mutex
	orders    map[string]*models.Order
	customers map[string]string // customer id -> owner id
	failNext  error
	block     chan struct{}
	calls     int
	deleted   []string
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[string]*models.Order), customers: make(map[string]string)}
}

func (r *fakeOrderRepo) ListByOwner(ctx context.Context, ownerID string) ([]models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Order
	for _, o := range r.orders {
		if o.UserID == ownerID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (r *fakeOrderRepo) GetByID(ctx context.Context, ownerID, id string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.UserID != ownerID {
		return nil, apperrors.NewNotFoundError("order not found")
	}
	cp := *o
	cp.Items = append([]models.OrderItem(nil), o.Items...)
	cp.ReconcileTotal()
	return &cp, nil
}

func (r *fakeOrderRepo) enter() error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	r.calls++
	err := r.failNext
	r.failNext = nil
	r.mu.Unlock()
	return err
}

func (r *fakeOrderRepo) CreateWithItems(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	if err := r.enter(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.customers[order.CustomerID] != order.UserID {
		return apperrors.NewValidationError("customer not found")
	}
	order.ID = uuid.NewString()
	order.Version = 1
	for i := range items {
		items[i].OrderID = order.ID
		items[i].Position = i
	}
	order.Items = items
	cp := *order
	r.orders[order.ID] = &cp
	return nil
}

func (r *fakeOrderRepo) ReplaceWithItems(ctx context.Context, order *models.Order, items []models.OrderItem, expectedVersion int) error {
	if err := r.enter(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.orders[order.ID]
	if !ok || stored.UserID != order.UserID {
		return apperrors.NewNotFoundError("order not found")
	}
	if stored.Version != expectedVersion {
		return apperrors.NewConflictError("order was modified by another session")
	}
	order.Version = expectedVersion + 1
	for i := range items {
		items[i].OrderID = order.ID
		items[i].Position = i
	}
	order.Items = items
	cp := *order
	r.orders[order.ID] = &cp
	return nil
}

func (r *fakeOrderRepo) Delete(ctx context.Context, ownerID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, id)
	delete(r.orders, id)
	return nil
}

func (r *fakeOrderRepo) seed(order *models.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[order.ID] = order
}

type stubChecker struct {
	mu      sync.Mutex
	calls   []string
	results chan checkResult
}

type checkResult struct {
	active bool
	err    error
}

func newStubChecker() *stubChecker {
	return &stubChecker{results: make(chan checkResult, 8)}
}

func (c *stubChecker) HasActiveSubscription(ctx context.Context, email string) (bool, error) {
	c.mu.Lock()
	c.calls = append(c.calls, email)
	c.mu.Unlock()
	select {
	case r := <-c.results:
		return r.active, r.err
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (c *stubChecker) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func (c *stubChecker) emails() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 10*time.Millisecond)
}
