package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"bakery_manager/internal/billing"
	"bakery_manager/internal/models"
	"bakery_manager/internal/repository"
	"bakery_manager/internal/services"
	"bakery_manager/pkg/apperrors"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

const testCustomerID = "3d0c7a52-5b1e-4f7a-8c2d-9e0f1a2b3c4d"

var testPrincipal = &services.Principal{
	UserID:      "u1",
	Email:       "baker@example.com",
	SessionID:   "s1",
	Entitlement: models.EntitlementEntitled,
}

func withPrincipal(c *gin.Context) {
	c.Set("principal", testPrincipal)
	c.Next()
}

func doJSON(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		buf = bytes.NewBufferString(b)
	default:
		raw, _ := json.Marshal(b)
		buf = bytes.NewBuffer(raw)
	}
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type providerFunc func(ctx context.Context, email string) (bool, error)

func (f providerFunc) HasActiveSubscription(ctx context.Context, email string) (bool, error) {
	return f(ctx, email)
}

func TestCheckSubscription(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		provider providerFunc
		status   int
		want     string
	}{
		{
			name:   "missing email",
			body:   `{}`,
			status: http.StatusBadRequest,
			want:   `{"error":"Email is required"}`,
		},
		{
			name:   "malformed body",
			body:   `not json`,
			status: http.StatusBadRequest,
			want:   `{"error":"Email is required"}`,
		},
		{
			name: "not configured",
			body: `{"email":"a@b.c"}`,
			provider: func(context.Context, string) (bool, error) {
				return false, billing.ErrNotConfigured
			},
			status: http.StatusInternalServerError,
			want:   `{"error":"Stripe secret key not configured"}`,
		},
		{
			name: "provider failure",
			body: `{"email":"a@b.c"}`,
			provider: func(context.Context, string) (bool, error) {
				return false, assert.AnError
			},
			status: http.StatusInternalServerError,
			want:   `{"error":"Internal server error","hasActiveSubscription":false}`,
		},
		{
			name: "active",
			body: `{"email":"a@b.c"}`,
			provider: func(_ context.Context, email string) (bool, error) {
				return email == "a@b.c", nil
			},
			status: http.StatusOK,
			want:   `{"hasActiveSubscription":true}`,
		},
		{
			name: "inactive",
			body: `{"email":"x@b.c"}`,
			provider: func(context.Context, string) (bool, error) {
				return false, nil
			},
			status: http.StatusOK,
			want:   `{"hasActiveSubscription":false}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewSubscriptionHandler(tt.provider, nil, quietLogger())
			r := gin.New()
			r.POST("/api/check-subscription", h.CheckSubscription)

			w := doJSON(r, http.MethodPost, "/api/check-subscription", tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.JSONEq(t, tt.want, w.Body.String())
		})
	}
}

func TestCheckSubscription_MethodNotAllowed(t *testing.T) {
	h := NewSubscriptionHandler(providerFunc(func(context.Context, string) (bool, error) { return true, nil }), nil, quietLogger())
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.POST("/api/check-subscription", h.CheckSubscription)

	w := doJSON(r, http.MethodGet, "/api/check-subscription", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

type stubGate struct {
	refreshed []string
}

func (g *stubGate) State(ctx context.Context, sessionID string) (models.EntitlementState, error) {
	return models.EntitlementEntitled, nil
}

func (g *stubGate) Refresh(ctx context.Context, sessionID string) (models.EntitlementState, error) {
	g.refreshed = append(g.refreshed, sessionID)
	return models.EntitlementLoading, nil
}

func TestSubscriptionRefresh(t *testing.T) {
	gate := &stubGate{}
	h := NewSubscriptionHandler(nil, gate, quietLogger())
	r := gin.New()
	r.POST("/api/subscription/refresh", withPrincipal, h.Refresh)
	r.GET("/api/subscription", withPrincipal, h.Status)

	w := doJSON(r, http.MethodPost, "/api/subscription/refresh", nil)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"entitlement":"loading"}`, w.Body.String())
	assert.Equal(t, []string{"s1"}, gate.refreshed)

	w = doJSON(r, http.MethodGet, "/api/subscription", nil)
	assert.JSONEq(t, `{"entitlement":"entitled"}`, w.Body.String())
}

type stubCustomerService struct {
	services.CustomerService
	sort    repository.SortOrder
	deleted []string
}

func (s *stubCustomerService) List(ctx context.Context, ownerID string, sort repository.SortOrder) ([]models.Customer, error) {
	s.sort = sort
	return []models.Customer{{ID: "c1", UserID: ownerID, Name: "Ana"}}, nil
}

func (s *stubCustomerService) Delete(ctx context.Context, ownerID, id string, confirmed bool) error {
	if !confirmed {
		return apperrors.NewConfirmationRequiredError("deleting a customer must be confirmed")
	}
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *stubCustomerService) Create(ctx context.Context, ownerID string, in services.CustomerInput) (*models.Customer, error) {
	if in.Name == "" {
		return nil, apperrors.NewValidationError("name is required")
	}
	return &models.Customer{ID: "c-new", UserID: ownerID, Name: in.Name}, nil
}

func newCustomerRouter(svc services.CustomerService) *gin.Engine {
	h := NewAPIHandler(svc, nil, nil, quietLogger())
	r := gin.New()
	g := r.Group("/api", withPrincipal)
	g.GET("/customers", h.ListCustomers)
	g.POST("/customers", h.CreateCustomer)
	g.DELETE("/customers/:id", h.DeleteCustomer)
	return r
}

func TestListCustomersSort(t *testing.T) {
	svc := &stubCustomerService{}
	r := newCustomerRouter(svc)

	w := doJSON(r, http.MethodGet, "/api/customers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, repository.SortRecent, svc.sort)

	doJSON(r, http.MethodGet, "/api/customers?sort=name", nil)
	assert.Equal(t, repository.SortName, svc.sort)
}

func TestDeleteCustomerNeedsConfirmation(t *testing.T) {
	svc := &stubCustomerService{}
	r := newCustomerRouter(svc)

	w := doJSON(r, http.MethodDelete, "/api/customers/"+testCustomerID, nil)
	assert.Equal(t, http.StatusPreconditionRequired, w.Code)
	assert.Empty(t, svc.deleted)

	w = doJSON(r, http.MethodDelete, "/api/customers/"+testCustomerID+"?confirm=true", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{testCustomerID}, svc.deleted)
}

func TestMalformedIDIsNotFound(t *testing.T) {
	svc := &stubCustomerService{}
	r := newCustomerRouter(svc)

	w := doJSON(r, http.MethodDelete, "/api/customers/abc?confirm=true", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"customer not found"}`, w.Body.String())
	assert.Empty(t, svc.deleted, "malformed ids never reach the service")
}

func TestCreateCustomer(t *testing.T) {
	r := newCustomerRouter(&stubCustomerService{})

	w := doJSON(r, http.MethodPost, "/api/customers", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Invalid request format"}`, w.Body.String())

	w = doJSON(r, http.MethodPost, "/api/customers", map[string]string{"name": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"name is required"}`, w.Body.String())

	w = doJSON(r, http.MethodPost, "/api/customers", map[string]string{"name": "Ana"})
	assert.Equal(t, http.StatusCreated, w.Code)
}

type stubDraftService struct {
	services.DraftService
	patch services.ItemPatch
	index int
	input services.OrderInput
	err   error
}

func (s *stubDraftService) UpdateItem(ctx context.Context, ownerID, draftID string, index int, patch services.ItemPatch) (*services.OrderDraft, error) {
	s.index, s.patch = index, patch
	d := services.NewOrderDraft(ownerID, nil)
	d.Items = []services.DraftItem{{ProductID: "p1", Quantity: 2, Price: decimal.RequireFromString("1.25")}}
	return d, nil
}

func (s *stubDraftService) Commit(ctx context.Context, ownerID, draftID string) (*models.Order, error) {
	return nil, s.err
}

func (s *stubDraftService) Submit(ctx context.Context, ownerID, orderID string, input services.OrderInput) (*models.Order, error) {
	s.input = input
	return &models.Order{ID: "o1", UserID: ownerID}, nil
}

type stubOrderService struct {
	services.OrderService
}

func (stubOrderService) Get(ctx context.Context, ownerID, id string) (*models.Order, error) {
	return &models.Order{ID: id, UserID: ownerID, Customer: &models.Customer{ID: "c1", Name: "Ana"}}, nil
}

func newDraftRouter(svc services.DraftService) *gin.Engine {
	h := NewDraftHandler(svc, stubOrderService{}, quietLogger())
	r := gin.New()
	g := r.Group("/api", withPrincipal)
	g.POST("/orders", h.CreateOrder)
	g.PATCH("/orders/drafts/:id/items/:index", h.UpdateItem)
	g.POST("/orders/drafts/:id/commit", h.CommitDraft)
	return r
}

func TestUpdateItemAcceptsStringsAndNumbers(t *testing.T) {
	svc := &stubDraftService{}
	r := newDraftRouter(svc)

	w := doJSON(r, http.MethodPatch, "/api/orders/drafts/d1/items/0", `{"quantity":"3","price":2.5}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.patch.Quantity)
	require.NotNil(t, svc.patch.Price)
	assert.Equal(t, "3", *svc.patch.Quantity)
	assert.Equal(t, "2.5", *svc.patch.Price)
	assert.Nil(t, svc.patch.ProductID)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "2.5", body["total"])

	w = doJSON(r, http.MethodPatch, "/api/orders/drafts/d1/items/-1", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCommitDraftErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{apperrors.NewValidationError("customer is required"), http.StatusBadRequest},
		{apperrors.NewConflictError("draft is being committed"), http.StatusConflict},
		{apperrors.NewNotFoundError("draft not found"), http.StatusNotFound},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		r := newDraftRouter(&stubDraftService{err: tt.err})
		w := doJSON(r, http.MethodPost, "/api/orders/drafts/d1/commit", nil)
		assert.Equal(t, tt.status, w.Code, tt.err.Error())
	}
}

func TestCreateOrderOneShot(t *testing.T) {
	svc := &stubDraftService{}
	r := newDraftRouter(svc)

	w := doJSON(r, http.MethodPost, "/api/orders", `{
		"customer_id": "c1",
		"status": "pending",
		"items": [{"product_id": "p1", "quantity": 2}, {"product_id": "p2", "quantity": "1", "price": "4.50"}]
	}`)
	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, svc.input.Header.CustomerID)
	assert.Equal(t, "c1", *svc.input.Header.CustomerID)
	require.Len(t, svc.input.Items, 2)
	assert.Equal(t, "2", svc.input.Items[0].Quantity)
	assert.Equal(t, "", svc.input.Items[0].Price)
	assert.Equal(t, "4.50", svc.input.Items[1].Price)

	var order models.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &order))
	require.NotNil(t, order.Customer, "response is the expanded order")
}

func TestFlexNumber(t *testing.T) {
	var v struct {
		A FlexNumber  `json:"a"`
		B FlexNumber  `json:"b"`
		C *FlexNumber `json:"c"`
		D FlexNumber  `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"7","b":1.50,"d":null}`), &v))
	assert.Equal(t, FlexNumber("7"), v.A)
	assert.Equal(t, FlexNumber("1.50"), v.B)
	assert.Nil(t, v.C)
	assert.Equal(t, FlexNumber(""), v.D)
}

type stubAuthService struct {
	services.AuthService
}

func (stubAuthService) SignIn(ctx context.Context, email, password string) (*services.Session, error) {
	if password != "secret1" {
		return nil, apperrors.NewUnauthorizedError("invalid login credentials")
	}
	return &services.Session{SessionID: "s1", AccessToken: "tok"}, nil
}

func TestSignIn(t *testing.T) {
	h := NewAuthHandler(stubAuthService{}, quietLogger())
	r := gin.New()
	r.POST("/api/auth/signin", h.SignIn)

	w := doJSON(r, http.MethodPost, "/api/auth/signin", map[string]string{"email": "a@b.c"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, "/api/auth/signin", map[string]string{"email": "a@b.c", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"invalid login credentials"}`, w.Body.String())

	w = doJSON(r, http.MethodPost, "/api/auth/signin", map[string]string{"email": "a@b.c", "password": "secret1"})
	assert.Equal(t, http.StatusOK, w.Code)
}
