package services

import (
	"math"
	"strconv"
	"strings"
	"time"

	"bakery_manager/internal/models"
	"bakery_manager/pkg/apperrors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const deliveryDateLayout = "2006-01-02"

type DraftState string

const (
	DraftEditing    DraftState = "editing"
	DraftCommitting DraftState = "committing"
	DraftCommitted  DraftState = "committed"
	DraftFailed     DraftState = "failed"
)

type DraftHeader struct {
	CustomerID   string             `json:"customer_id"`
	Status       models.OrderStatus `json:"status"`
	DeliveryDate string             `json:"delivery_date"`
	Notes        string             `json:"notes"`
}

type DraftItem struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

func (i DraftItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// HeaderPatch carries the header fields to change; nil fields are left alone.
type HeaderPatch struct {
	CustomerID   *string `json:"customer_id"`
	Status       *string `json:"status"`
	DeliveryDate *string `json:"delivery_date"`
	Notes        *string `json:"notes"`
}

// OrderDraft is an order being assembled. It is edited in place until it is
// committed, after which it is only kept for reference.
type OrderDraft struct {
	ID              string      `json:"id"`
	OwnerID         string      `json:"owner_id"`
	OrderID         string      `json:"order_id,omitempty"`
	ExpectedVersion int         `json:"expected_version,omitempty"`
	Header          DraftHeader `json:"header"`
	Items           []DraftItem `json:"items"`
	State           DraftState  `json:"state"`
	LastError       string      `json:"last_error,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// NewOrderDraft starts a draft for ownerID. With existing nil the draft creates
// a new order; otherwise it copies the order's header and items for editing.
func NewOrderDraft(ownerID string, existing *models.Order) *OrderDraft {
	now := time.Now()
	d := &OrderDraft{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Header:    DraftHeader{Status: models.OrderPending},
		Items:     []DraftItem{},
		State:     DraftEditing,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if existing == nil {
		return d
	}

	d.OrderID = existing.ID
	d.ExpectedVersion = existing.Version
	d.Header = DraftHeader{
		CustomerID: existing.CustomerID,
		Status:     existing.Status,
		Notes:      existing.Notes,
	}
	if d.Header.Status == "" {
		d.Header.Status = models.OrderPending
	}
	if existing.DeliveryDate != nil {
		d.Header.DeliveryDate = existing.DeliveryDate.Format(deliveryDateLayout)
	}
	for _, item := range existing.Items {
		d.Items = append(d.Items, DraftItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}
	return d
}

func (d *OrderDraft) IsEdit() bool {
	return d.OrderID != ""
}

// Mode labels the commit for metrics and logs.
func (d *OrderDraft) Mode() string {
	if d.IsEdit() {
		return "update"
	}
	return "create"
}

func (d *OrderDraft) Total() decimal.Decimal {
	return ComputeTotal(d.Items)
}

// ComputeTotal sums price times quantity over items.
func ComputeTotal(items []DraftItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// AddItem appends the first catalog product with quantity 1. An empty catalog
// leaves the draft unchanged.
func (d *OrderDraft) AddItem(catalog []models.Product) error {
	if err := d.ensureEditable(); err != nil {
		return err
	}
	if len(catalog) == 0 {
		return nil
	}
	first := catalog[0]
	d.Items = append(d.Items, DraftItem{ProductID: first.ID, Quantity: 1, Price: first.Price})
	d.touch()
	return nil
}

// AppendItem adds an item for a specific product. An empty rawPrice takes the
// product's current price.
func (d *OrderDraft) AppendItem(productID, rawQuantity, rawPrice string, catalog []models.Product) error {
	if err := d.ensureEditable(); err != nil {
		return err
	}
	product, ok := findProduct(catalog, productID)
	if !ok {
		return apperrors.NewValidationError("product not found")
	}
	item := DraftItem{ProductID: product.ID, Quantity: ParseQuantity(rawQuantity), Price: product.Price}
	if strings.TrimSpace(rawPrice) != "" {
		item.Price = ParsePrice(rawPrice)
	}
	d.Items = append(d.Items, item)
	d.touch()
	return nil
}

// SetItemProduct points the item at another product and takes over its
// current price. Quantity is kept.
func (d *OrderDraft) SetItemProduct(index int, productID string, catalog []models.Product) error {
	item, err := d.item(index)
	if err != nil {
		return err
	}
	product, ok := findProduct(catalog, productID)
	if !ok {
		return apperrors.NewValidationError("product not found")
	}
	item.ProductID = product.ID
	item.Price = product.Price
	d.touch()
	return nil
}

func (d *OrderDraft) SetItemQuantity(index int, raw string) error {
	item, err := d.item(index)
	if err != nil {
		return err
	}
	item.Quantity = ParseQuantity(raw)
	d.touch()
	return nil
}

func (d *OrderDraft) SetItemPrice(index int, raw string) error {
	item, err := d.item(index)
	if err != nil {
		return err
	}
	item.Price = ParsePrice(raw)
	d.touch()
	return nil
}

func (d *OrderDraft) RemoveItem(index int) error {
	if _, err := d.item(index); err != nil {
		return err
	}
	d.Items = append(d.Items[:index], d.Items[index+1:]...)
	d.touch()
	return nil
}

func (d *OrderDraft) UpdateHeader(patch HeaderPatch) error {
	if err := d.ensureEditable(); err != nil {
		return err
	}

	next := d.Header
	if patch.CustomerID != nil {
		customerID := strings.TrimSpace(*patch.CustomerID)
		if customerID != "" && !isUUID(customerID) {
			return apperrors.NewValidationError("customer not found")
		}
		next.CustomerID = customerID
	}
	if patch.Status != nil {
		status, ok := models.ParseOrderStatus(*patch.Status)
		if !ok {
			return apperrors.NewValidationError("invalid order status")
		}
		next.Status = status
	}
	if patch.DeliveryDate != nil {
		date := strings.TrimSpace(*patch.DeliveryDate)
		if date != "" {
			if _, err := time.Parse(deliveryDateLayout, date); err != nil {
				return apperrors.NewValidationError("delivery_date must be YYYY-MM-DD")
			}
		}
		next.DeliveryDate = date
	}
	if patch.Notes != nil {
		next.Notes = *patch.Notes
	}

	d.Header = next
	d.touch()
	return nil
}

// Validate reports whether the draft can be committed.
func (d *OrderDraft) Validate() error {
	if d.Header.CustomerID == "" {
		return apperrors.NewValidationError("customer is required")
	}
	if !isUUID(d.Header.CustomerID) {
		return apperrors.NewValidationError("customer not found")
	}
	if _, ok := models.RoundMoney(d.Total()); !ok {
		return apperrors.NewValidationError("order total is too large")
	}
	return nil
}

// BeginCommit moves an editable draft into committing.
func (d *OrderDraft) BeginCommit() error {
	if err := d.ensureEditable(); err != nil {
		return err
	}
	d.State = DraftCommitting
	d.LastError = ""
	d.touch()
	return nil
}

// FinishCommit records the outcome of a commit. On success orderID is the
// persisted order; on failure the draft becomes editable again.
func (d *OrderDraft) FinishCommit(orderID string, version int, err error) {
	if err != nil {
		d.State = DraftFailed
		d.LastError = apperrors.PublicMessage(err)
	} else {
		d.State = DraftCommitted
		d.OrderID = orderID
		d.ExpectedVersion = version
		d.LastError = ""
	}
	d.UpdatedAt = time.Now()
}

// Order builds the header row and item rows to persist.
func (d *OrderDraft) Order() (*models.Order, []models.OrderItem) {
	order := &models.Order{
		ID:         d.OrderID,
		UserID:     d.OwnerID,
		CustomerID: d.Header.CustomerID,
		Status:     d.Header.Status,
		Total:      d.Total(),
		Notes:      d.Header.Notes,
	}
	if order.Status == "" {
		order.Status = models.OrderPending
	}
	if d.Header.DeliveryDate != "" {
		if date, err := time.Parse(deliveryDateLayout, d.Header.DeliveryDate); err == nil {
			order.DeliveryDate = &date
		}
	}

	items := make([]models.OrderItem, 0, len(d.Items))
	for _, item := range d.Items {
		items = append(items, models.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}
	return order, items
}

func (d *OrderDraft) ensureEditable() error {
	switch d.State {
	case DraftEditing, DraftFailed:
		return nil
	case DraftCommitting:
		return apperrors.NewConflictError("draft is being committed")
	default:
		return apperrors.NewConflictError("draft has already been committed")
	}
}

func (d *OrderDraft) item(index int) (*DraftItem, error) {
	if err := d.ensureEditable(); err != nil {
		return nil, err
	}
	if index < 0 || index >= len(d.Items) {
		return nil, apperrors.NewNotFoundError("draft item not found")
	}
	return &d.Items[index], nil
}

// touch marks an edit. Editing a failed draft puts it back into editing.
func (d *OrderDraft) touch() {
	if d.State == DraftFailed {
		d.State = DraftEditing
	}
	d.UpdatedAt = time.Now()
}

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

func findProduct(catalog []models.Product, id string) (models.Product, bool) {
	for _, p := range catalog {
		if p.ID == id {
			return p, true
		}
	}
	return models.Product{}, false
}

// ParseQuantity reads the leading whole number of free-form input, so "2abc"
// is 2 and "1e3" is 1. Anything without one, or below 1, becomes 1.
func ParseQuantity(raw string) int {
	s := strings.TrimPrefix(strings.TrimSpace(raw), "+")
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil || n < 1 || n > math.MaxInt32 {
		return 1
	}
	return n
}

// ParsePrice coerces free-form input to a non-negative amount in cents.
// Unparseable, negative and out-of-range input becomes 0.
func ParsePrice(raw string) decimal.Decimal {
	p, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || p.IsNegative() {
		return decimal.Zero
	}
	rounded, ok := models.RoundMoney(p)
	if !ok {
		return decimal.Zero
	}
	return rounded
}
