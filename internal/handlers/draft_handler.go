package handlers

import (
	"net/http"

	"bakery_manager/internal/models"
	"bakery_manager/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// DraftHandler exposes the order editor: drafts that are built up over
// several requests and then committed, plus one-shot order submission.
type DraftHandler struct {
	draftService services.DraftService
	orderService services.OrderService
	log          *logrus.Logger
}

func NewDraftHandler(draftService services.DraftService, orderService services.OrderService, log *logrus.Logger) *DraftHandler {
	return &DraftHandler{draftService: draftService, orderService: orderService, log: log}
}

type draftResponse struct {
	*services.OrderDraft
	Total decimal.Decimal `json:"total"`
}

func newDraftResponse(d *services.OrderDraft) draftResponse {
	return draftResponse{OrderDraft: d, Total: d.Total()}
}

type itemPatchRequest struct {
	ProductID *string     `json:"product_id"`
	Quantity  *FlexNumber `json:"quantity"`
	Price     *FlexNumber `json:"price"`
}

type orderItemRequest struct {
	ProductID string     `json:"product_id"`
	Quantity  FlexNumber `json:"quantity"`
	Price     FlexNumber `json:"price"`
}

type orderRequest struct {
	services.HeaderPatch
	Version int                `json:"version"`
	Items   []orderItemRequest `json:"items"`
}

func (r orderRequest) input() services.OrderInput {
	in := services.OrderInput{Header: r.HeaderPatch, Version: r.Version}
	if r.Items != nil {
		in.Items = make([]services.OrderItemInput, 0, len(r.Items))
		for _, item := range r.Items {
			in.Items = append(in.Items, services.OrderItemInput{
				ProductID: item.ProductID,
				Quantity:  string(item.Quantity),
				Price:     string(item.Price),
			})
		}
	}
	return in
}

func (h *DraftHandler) CreateDraft(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req struct {
		OrderID string `json:"order_id"`
	}
	if err := bindOptionalJSON(c, &req); err != nil {
		invalidRequest(c)
		return
	}
	if req.OrderID != "" && !isUUID(req.OrderID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	draft, err := h.draftService.Create(c.Request.Context(), p.UserID, req.OrderID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, newDraftResponse(draft))
}

func (h *DraftHandler) GetDraft(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	draft, err := h.draftService.Get(c.Request.Context(), p.UserID, c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, newDraftResponse(draft))
}

func (h *DraftHandler) UpdateDraft(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req services.HeaderPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c)
		return
	}
	draft, err := h.draftService.UpdateHeader(c.Request.Context(), p.UserID, c.Param("id"), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, newDraftResponse(draft))
}

func (h *DraftHandler) AddItem(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	draft, err := h.draftService.AddItem(c.Request.Context(), p.UserID, c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, newDraftResponse(draft))
}

func (h *DraftHandler) UpdateItem(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	index, ok := indexParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid item index"})
		return
	}
	var req itemPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c)
		return
	}
	patch := services.ItemPatch{
		ProductID: req.ProductID,
		Quantity:  req.Quantity.ptr(),
		Price:     req.Price.ptr(),
	}
	draft, err := h.draftService.UpdateItem(c.Request.Context(), p.UserID, c.Param("id"), index, patch)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, newDraftResponse(draft))
}

func (h *DraftHandler) RemoveItem(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	index, ok := indexParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid item index"})
		return
	}
	draft, err := h.draftService.RemoveItem(c.Request.Context(), p.UserID, c.Param("id"), index)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, newDraftResponse(draft))
}

func (h *DraftHandler) CommitDraft(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	order, err := h.draftService.Commit(c.Request.Context(), p.UserID, c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, h.expanded(c, p.UserID, order))
}

func (h *DraftHandler) DiscardDraft(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	if err := h.draftService.Discard(c.Request.Context(), p.UserID, c.Param("id")); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CreateOrder commits a complete order payload in one request.
func (h *DraftHandler) CreateOrder(c *gin.Context) {
	h.submit(c, "", http.StatusCreated)
}

// UpdateOrder replaces an order's header and items in one request.
func (h *DraftHandler) UpdateOrder(c *gin.Context) {
	id, ok := idParam(c, "order")
	if !ok {
		return
	}
	h.submit(c, id, http.StatusOK)
}

func (h *DraftHandler) submit(c *gin.Context, orderID string, status int) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c)
		return
	}
	order, err := h.draftService.Submit(c.Request.Context(), p.UserID, orderID, req.input())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(status, h.expanded(c, p.UserID, order))
}

// expanded reloads the order with its customer and products attached. The
// bare order is returned if the reload fails; the write already succeeded.
func (h *DraftHandler) expanded(c *gin.Context, ownerID string, order *models.Order) *models.Order {
	full, err := h.orderService.Get(c.Request.Context(), ownerID, order.ID)
	if err != nil {
		h.log.WithError(err).WithField("order_id", order.ID).Warn("Failed to reload committed order")
		return order
	}
	return full
}
