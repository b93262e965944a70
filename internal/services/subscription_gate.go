package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"bakery_manager/internal/metrics"
	"bakery_manager/internal/models"
	"bakery_manager/internal/redis"
	"bakery_manager/pkg/apperrors"

	"github.com/sirupsen/logrus"
)

var errStaleCheck = errors.New("subscription check superseded")

// SubscriptionChecker answers whether an e-mail has a paid subscription.
// *entitlement.Client implements it.
type SubscriptionChecker interface {
	HasActiveSubscription(ctx context.Context, email string) (bool, error)
}

// AuthEventSource is the part of AuthService the gate listens to.
type AuthEventSource interface {
	Subscribe() (<-chan AuthEvent, func())
}

type GateSessionStore interface {
	GetSession(ctx context.Context, sessionID string) (*redis.SessionData, error)
	UpdateSession(ctx context.Context, sessionID string, ttl time.Duration, fn func(*redis.SessionData) error) error
}

// SubscriptionGate keeps each session's entitlement in step with the
// verifier. A lookup runs once per sign-in and once per explicit refresh; a
// result only lands if the session still exists at the generation the lookup
// was started for.
type SubscriptionGate struct {
	checker  SubscriptionChecker
	sessions GateSessionStore
	timeout  time.Duration
	log      *logrus.Logger

	mu          sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
	wg          sync.WaitGroup
}

func NewSubscriptionGate(checker SubscriptionChecker, sessions GateSessionStore, timeout time.Duration, log *logrus.Logger) *SubscriptionGate {
	ctx, cancel := context.WithCancel(context.Background())
	return &SubscriptionGate{
		checker:  checker,
		sessions: sessions,
		timeout:  timeout,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins reacting to auth events. It returns immediately.
func (g *SubscriptionGate) Start(source AuthEventSource) {
	events, unsubscribe := source.Subscribe()

	g.mu.Lock()
	g.unsubscribe = unsubscribe
	g.mu.Unlock()

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		for {
			select {
			case <-g.ctx.Done():
				return
			case event, ok := <-events:
				if !ok {
					return
				}
				g.handle(event)
			}
		}
	}()
}

// Stop cancels in-flight lookups and waits for them to return.
func (g *SubscriptionGate) Stop() {
	g.mu.Lock()
	g.cancel()
	unsubscribe := g.unsubscribe
	g.unsubscribe = nil
	g.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}

	g.wg.Wait()
}

// State reports the entitlement of a session. A missing session is not
// entitled.
func (g *SubscriptionGate) State(ctx context.Context, sessionID string) (models.EntitlementState, error) {
	data, err := g.sessions.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, redis.ErrSessionNotFound) {
			return models.EntitlementNotEntitled, nil
		}
		return "", err
	}
	if data.Entitlement == "" {
		return models.EntitlementLoading, nil
	}
	return data.Entitlement, nil
}

// Refresh supersedes any lookup in flight for the session and starts a new
// one. The session reads as loading until it completes.
func (g *SubscriptionGate) Refresh(ctx context.Context, sessionID string) (models.EntitlementState, error) {
	var (
		email      string
		generation int64
	)
	err := g.sessions.UpdateSession(ctx, sessionID, redis.KeepTTL, func(s *redis.SessionData) error {
		s.Generation++
		s.Entitlement = models.EntitlementLoading
		s.UpdatedAt = time.Now()
		email, generation = s.Email, s.Generation
		return nil
	})
	if err != nil {
		if errors.Is(err, redis.ErrSessionNotFound) {
			return "", apperrors.NewUnauthorizedError("session expired")
		}
		return "", err
	}

	g.spawn(sessionID, email, generation)
	return models.EntitlementLoading, nil
}

// handle starts a lookup straight from the event so the consumer never waits
// on the store; a result for a session that is gone or has moved to a later
// generation is discarded when it lands.
func (g *SubscriptionGate) handle(event AuthEvent) {
	if event.Type != EventSignedIn {
		return
	}
	g.spawn(event.SessionID, event.Email, event.Generation)
}

func (g *SubscriptionGate) spawn(sessionID, email string, generation int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ctx.Err() != nil {
		return
	}

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		g.check(sessionID, email, generation)
	}()
}

func (g *SubscriptionGate) check(sessionID, email string, generation int64) {
	logger := g.log.WithFields(logrus.Fields{
		"session_id": sessionID,
		"generation": generation,
	})

	ctx, cancel := context.WithTimeout(g.ctx, g.timeout)
	active, err := g.checker.HasActiveSubscription(ctx, email)
	cancel()
	if g.ctx.Err() != nil {
		return
	}

	state := models.EntitlementNotEntitled
	result := "inactive"
	switch {
	case err != nil:
		result = "error"
		logger.WithError(err).Warn("Subscription check failed")
	case active:
		state = models.EntitlementEntitled
		result = "active"
	}
	metrics.RecordSubscriptionCheck(result)

	checkedAt := time.Now()
	err = g.sessions.UpdateSession(context.Background(), sessionID, redis.KeepTTL, func(s *redis.SessionData) error {
		if s.Generation != generation {
			return errStaleCheck
		}
		s.Entitlement = state
		s.CheckedAt = &checkedAt
		s.UpdatedAt = checkedAt
		return nil
	})
	switch {
	case err == nil:
		logger.WithField("result", result).Info("Subscription state updated")
	case errors.Is(err, errStaleCheck), errors.Is(err, redis.ErrSessionNotFound):
		logger.WithField("result", result).Debug("Discarded subscription check result")
	default:
		logger.WithError(err).Error("Failed to store subscription state")
	}
}
