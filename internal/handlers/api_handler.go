package handlers

import (
	"net/http"

	"bakery_manager/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// APIHandler serves the customer, product and order management endpoints.
type APIHandler struct {
	customerService services.CustomerService
	productService  services.ProductService
	orderService    services.OrderService
	log             *logrus.Logger
}

func NewAPIHandler(
	customerService services.CustomerService,
	productService services.ProductService,
	orderService services.OrderService,
	log *logrus.Logger,
) *APIHandler {
	return &APIHandler{
		customerService: customerService,
		productService:  productService,
		orderService:    orderService,
		log:             log,
	}
}

// Customer endpoints
func (h *APIHandler) ListCustomers(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	customers, err := h.customerService.List(c.Request.Context(), p.UserID, sortOrder(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"customers": customers})
}

func (h *APIHandler) GetCustomer(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "customer")
	if !ok {
		return
	}
	customer, err := h.customerService.Get(c.Request.Context(), p.UserID, id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func (h *APIHandler) CreateCustomer(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req services.CustomerInput
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c)
		return
	}
	customer, err := h.customerService.Create(c.Request.Context(), p.UserID, req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, customer)
}

func (h *APIHandler) UpdateCustomer(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "customer")
	if !ok {
		return
	}
	var req services.CustomerInput
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c)
		return
	}
	customer, err := h.customerService.Update(c.Request.Context(), p.UserID, id, req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func (h *APIHandler) DeleteCustomer(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "customer")
	if !ok {
		return
	}
	if err := h.customerService.Delete(c.Request.Context(), p.UserID, id, isConfirmed(c)); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Product endpoints
func (h *APIHandler) ListProducts(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	products, err := h.productService.List(c.Request.Context(), p.UserID, sortOrder(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (h *APIHandler) GetProduct(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "product")
	if !ok {
		return
	}
	product, err := h.productService.Get(c.Request.Context(), p.UserID, id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *APIHandler) CreateProduct(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req services.ProductInput
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c)
		return
	}
	product, err := h.productService.Create(c.Request.Context(), p.UserID, req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (h *APIHandler) UpdateProduct(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "product")
	if !ok {
		return
	}
	var req services.ProductInput
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c)
		return
	}
	product, err := h.productService.Update(c.Request.Context(), p.UserID, id, req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *APIHandler) DeleteProduct(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "product")
	if !ok {
		return
	}
	if err := h.productService.Delete(c.Request.Context(), p.UserID, id, isConfirmed(c)); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Order endpoints
func (h *APIHandler) ListOrders(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	orders, err := h.orderService.List(c.Request.Context(), p.UserID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *APIHandler) GetOrder(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "order")
	if !ok {
		return
	}
	order, err := h.orderService.Get(c.Request.Context(), p.UserID, id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *APIHandler) GetOrderSummary(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "order")
	if !ok {
		return
	}
	summary, err := h.orderService.Summary(c.Request.Context(), p.UserID, id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *APIHandler) DeleteOrder(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "order")
	if !ok {
		return
	}
	if err := h.orderService.Delete(c.Request.Context(), p.UserID, id, isConfirmed(c)); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}
