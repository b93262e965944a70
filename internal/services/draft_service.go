package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bakery_manager/internal/metrics"
	"bakery_manager/internal/models"
	"bakery_manager/internal/redis"
	"bakery_manager/internal/repository"
	"bakery_manager/pkg/apperrors"

	"github.com/sirupsen/logrus"
)

// DraftStore keeps drafts between requests. *redis.Client implements it.
type DraftStore interface {
	SetTempData(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	GetTempData(ctx context.Context, key string, dest interface{}) error
	UpdateTempData(ctx context.Context, key string, ttl time.Duration, dest interface{}, fn func() error) error
	DeleteTempData(ctx context.Context, key string) error
}

// ItemPatch changes one draft item. Quantity and Price are raw user input and
// are coerced rather than rejected.
type ItemPatch struct {
	ProductID *string
	Quantity  *string
	Price     *string
}

// OrderInput is a complete order submitted in a single request.
type OrderInput struct {
	Header  HeaderPatch
	Items   []OrderItemInput
	Version int
}

type OrderItemInput struct {
	ProductID string
	Quantity  string
	Price     string
}

type DraftService interface {
	Create(ctx context.Context, ownerID, orderID string) (*OrderDraft, error)
	Get(ctx context.Context, ownerID, draftID string) (*OrderDraft, error)
	AddItem(ctx context.Context, ownerID, draftID string) (*OrderDraft, error)
	UpdateItem(ctx context.Context, ownerID, draftID string, index int, patch ItemPatch) (*OrderDraft, error)
	RemoveItem(ctx context.Context, ownerID, draftID string, index int) (*OrderDraft, error)
	UpdateHeader(ctx context.Context, ownerID, draftID string, patch HeaderPatch) (*OrderDraft, error)
	Commit(ctx context.Context, ownerID, draftID string) (*models.Order, error)
	Discard(ctx context.Context, ownerID, draftID string) error
	// Submit builds and commits a draft in one call. An empty orderID creates
	// a new order.
	Submit(ctx context.Context, ownerID, orderID string, input OrderInput) (*models.Order, error)
}

type draftService struct {
	store       DraftStore
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	ttl         time.Duration
	log         *logrus.Logger
}

func NewDraftService(store DraftStore, orderRepo repository.OrderRepository, productRepo repository.ProductRepository, ttl time.Duration, log *logrus.Logger) DraftService {
	return &draftService{
		store:       store,
		orderRepo:   orderRepo,
		productRepo: productRepo,
		ttl:         ttl,
		log:         log,
	}
}

func (s *draftService) Create(ctx context.Context, ownerID, orderID string) (*OrderDraft, error) {
	var existing *models.Order
	if orderID != "" {
		order, err := s.orderRepo.GetByID(ctx, ownerID, orderID)
		if err != nil {
			return nil, err
		}
		existing = order
	}

	draft := NewOrderDraft(ownerID, existing)
	if err := s.store.SetTempData(ctx, draftKey(draft.ID), draft, s.ttl); err != nil {
		return nil, fmt.Errorf("failed to store draft: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"user_id":  ownerID,
		"draft_id": draft.ID,
		"mode":     draft.Mode(),
	}).Debug("Order draft created")
	return draft, nil
}

func (s *draftService) Get(ctx context.Context, ownerID, draftID string) (*OrderDraft, error) {
	var draft OrderDraft
	if err := s.store.GetTempData(ctx, draftKey(draftID), &draft); err != nil {
		return nil, draftError(err)
	}
	if draft.OwnerID != ownerID {
		return nil, apperrors.NewNotFoundError("draft not found")
	}
	return &draft, nil
}

func (s *draftService) AddItem(ctx context.Context, ownerID, draftID string) (*OrderDraft, error) {
	catalog, err := s.catalog(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, ownerID, draftID, func(d *OrderDraft) error {
		return d.AddItem(catalog)
	})
}

func (s *draftService) UpdateItem(ctx context.Context, ownerID, draftID string, index int, patch ItemPatch) (*OrderDraft, error) {
	var catalog []models.Product
	if patch.ProductID != nil {
		var err error
		if catalog, err = s.catalog(ctx, ownerID); err != nil {
			return nil, err
		}
	}
	return s.mutate(ctx, ownerID, draftID, func(d *OrderDraft) error {
		if patch.ProductID != nil {
			if err := d.SetItemProduct(index, *patch.ProductID, catalog); err != nil {
				return err
			}
		}
		if patch.Quantity != nil {
			if err := d.SetItemQuantity(index, *patch.Quantity); err != nil {
				return err
			}
		}
		if patch.Price != nil {
			if err := d.SetItemPrice(index, *patch.Price); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *draftService) RemoveItem(ctx context.Context, ownerID, draftID string, index int) (*OrderDraft, error) {
	return s.mutate(ctx, ownerID, draftID, func(d *OrderDraft) error {
		return d.RemoveItem(index)
	})
}

func (s *draftService) UpdateHeader(ctx context.Context, ownerID, draftID string, patch HeaderPatch) (*OrderDraft, error) {
	return s.mutate(ctx, ownerID, draftID, func(d *OrderDraft) error {
		return d.UpdateHeader(patch)
	})
}

func (s *draftService) Commit(ctx context.Context, ownerID, draftID string) (*models.Order, error) {
	mode := "create"
	draft, err := s.mutate(ctx, ownerID, draftID, func(d *OrderDraft) error {
		mode = d.Mode()
		if err := d.Validate(); err != nil {
			return err
		}
		return d.BeginCommit()
	})
	if err != nil {
		// Counted once here; the closure may run again on a CAS retry.
		if errors.Is(err, apperrors.ErrValidation) {
			metrics.RecordOrderCommit(mode, "validation")
		}
		return nil, err
	}

	order, commitErr := s.persist(ctx, draft)

	// The outcome must be recorded even if the caller went away.
	finishCtx := context.WithoutCancel(ctx)
	_, err = s.mutate(finishCtx, ownerID, draftID, func(d *OrderDraft) error {
		if commitErr != nil {
			d.FinishCommit("", 0, commitErr)
		} else {
			d.FinishCommit(order.ID, order.Version, nil)
		}
		return nil
	})
	if err != nil {
		s.log.WithError(err).WithField("draft_id", draftID).Warn("Failed to record draft commit outcome")
	}

	if commitErr != nil {
		return nil, commitErr
	}
	return order, nil
}

func (s *draftService) Discard(ctx context.Context, ownerID, draftID string) error {
	if _, err := s.Get(ctx, ownerID, draftID); err != nil {
		return err
	}
	return s.store.DeleteTempData(ctx, draftKey(draftID))
}

func (s *draftService) Submit(ctx context.Context, ownerID, orderID string, input OrderInput) (*models.Order, error) {
	var existing *models.Order
	if orderID != "" {
		order, err := s.orderRepo.GetByID(ctx, ownerID, orderID)
		if err != nil {
			return nil, err
		}
		existing = order
	}

	draft := NewOrderDraft(ownerID, existing)
	if input.Version != 0 {
		draft.ExpectedVersion = input.Version
	}
	if err := draft.UpdateHeader(input.Header); err != nil {
		return nil, err
	}

	if input.Items != nil {
		catalog, err := s.catalog(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		draft.Items = []DraftItem{}
		for _, item := range input.Items {
			if err := draft.AppendItem(item.ProductID, item.Quantity, item.Price, catalog); err != nil {
				return nil, err
			}
		}
	}

	if err := draft.Validate(); err != nil {
		metrics.RecordOrderCommit(draft.Mode(), "validation")
		return nil, err
	}
	if err := draft.BeginCommit(); err != nil {
		return nil, err
	}
	return s.persist(ctx, draft)
}

// persist writes a draft that is already in the committing state.
func (s *draftService) persist(ctx context.Context, draft *OrderDraft) (*models.Order, error) {
	order, items := draft.Order()
	logger := s.log.WithFields(logrus.Fields{
		"user_id":  draft.OwnerID,
		"draft_id": draft.ID,
		"mode":     draft.Mode(),
	})

	var err error
	if draft.IsEdit() {
		err = s.orderRepo.ReplaceWithItems(ctx, order, items, draft.ExpectedVersion)
	} else {
		err = s.orderRepo.CreateWithItems(ctx, order, items)
	}
	if err != nil {
		result := commitResult(err)
		metrics.RecordOrderCommit(draft.Mode(), result)
		if result == "error" {
			logger.WithError(err).Error("Order commit failed")
		} else {
			logger.WithError(err).Info("Order commit rejected")
		}
		return nil, err
	}

	metrics.RecordOrderCommit(draft.Mode(), "ok")
	logger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"items":    len(items),
		"total":    order.Total.StringFixed(2),
	}).Info("Order committed")
	return order, nil
}

func (s *draftService) mutate(ctx context.Context, ownerID, draftID string, fn func(*OrderDraft) error) (*OrderDraft, error) {
	var draft OrderDraft
	err := s.store.UpdateTempData(ctx, draftKey(draftID), s.ttl, &draft, func() error {
		if draft.OwnerID != ownerID {
			return apperrors.NewNotFoundError("draft not found")
		}
		return fn(&draft)
	})
	if err != nil {
		return nil, draftError(err)
	}
	return &draft, nil
}

// catalog returns the owner's products ordered by name; the first entry is
// what a new item defaults to.
func (s *draftService) catalog(ctx context.Context, ownerID string) ([]models.Product, error) {
	products, err := s.productRepo.ListByOwner(ctx, ownerID, repository.SortName)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	return products, nil
}

func commitResult(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrValidation), errors.Is(err, apperrors.ErrNotFound):
		return "validation"
	case errors.Is(err, apperrors.ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}

func draftError(err error) error {
	switch {
	case errors.Is(err, redis.ErrTempDataNotFound):
		return apperrors.NewNotFoundError("draft not found")
	case errors.Is(err, redis.ErrConcurrentUpdate):
		return apperrors.NewConflictError("draft is being changed by another request")
	default:
		return err
	}
}

func draftKey(id string) string { return "draft:" + id }
