package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"bakery_manager/internal/models"
	"bakery_manager/internal/redis"
	"bakery_manager/internal/repository"
	"bakery_manager/pkg/apperrors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

type AuthEventType string

const (
	EventSignedIn       AuthEventType = "signed_in"
	EventSignedOut      AuthEventType = "signed_out"
	EventTokenRefreshed AuthEventType = "token_refreshed"
)

// AuthEvent describes a session change. Generation is the session's
// entitlement generation when the event was raised.
type AuthEvent struct {
	Type       AuthEventType
	SessionID  string
	UserID     string
	Email      string
	Generation int64
	At         time.Time
}

// Session is what a client receives after signing in or refreshing.
type Session struct {
	SessionID    string       `json:"session_id"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresAt    time.Time    `json:"expires_at"`
	User         *models.User `json:"user"`
}

// Principal is the identity behind a valid access token.
type Principal struct {
	UserID      string                  `json:"user_id"`
	Email       string                  `json:"email"`
	SessionID   string                  `json:"session_id"`
	Entitlement models.EntitlementState `json:"entitlement"`
}

// SessionStore is the server-side session state. *redis.Client implements it.
type SessionStore interface {
	SetSession(ctx context.Context, sessionID string, data *redis.SessionData, ttl time.Duration) error
	GetSession(ctx context.Context, sessionID string) (*redis.SessionData, error)
	DeleteSession(ctx context.Context, sessionID string) error
	UpdateSession(ctx context.Context, sessionID string, ttl time.Duration, fn func(*redis.SessionData) error) error
	SetRefreshToken(ctx context.Context, token, sessionID string, ttl time.Duration) error
	GetRefreshToken(ctx context.Context, token string) (string, error)
	DeleteRefreshToken(ctx context.Context, token string) error
}

type AuthService interface {
	SignUp(ctx context.Context, email, password string) (*Session, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context, sessionID string) error
	Refresh(ctx context.Context, refreshToken string) (*Session, error)
	GetSession(ctx context.Context, accessToken string) (*Principal, error)
	// Subscribe delivers auth events until the returned func is called.
	Subscribe() (<-chan AuthEvent, func())
}

type AuthConfig struct {
	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type authService struct {
	userRepo repository.UserRepository
	sessions SessionStore
	cfg      AuthConfig
	broker   *authBroker
	log      *logrus.Logger
}

type accessClaims struct {
	SessionID string `json:"sid"`
	Email     string `json:"email"`
	jwt.RegisteredClaims
}

func NewAuthService(userRepo repository.UserRepository, sessions SessionStore, cfg AuthConfig, log *logrus.Logger) AuthService {
	return &authService{
		userRepo: userRepo,
		sessions: sessions,
		cfg:      cfg,
		broker:   newAuthBroker(log),
		log:      log,
	}
}

func (s *authService) SignUp(ctx context.Context, email, password string) (*Session, error) {
	email = models.NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperrors.NewValidationError("a valid email is required")
	}
	if len(password) < minPasswordLength {
		return nil, apperrors.NewValidationError(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	if _, err := s.userRepo.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflictError("email already registered")
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	// Hash password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{Email: email, PasswordHash: string(hashedPassword)}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	s.log.WithField("user_id", user.ID).Info("User signed up")

	return s.startSession(ctx, user)
}

func (s *authService) SignIn(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NewUnauthorizedError("invalid login credentials")
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperrors.NewUnauthorizedError("invalid login credentials")
	}
	return s.startSession(ctx, user)
}

func (s *authService) SignOut(ctx context.Context, sessionID string) error {
	data, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, redis.ErrSessionNotFound) {
			return nil
		}
		return err
	}

	if err := s.sessions.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if data.RefreshToken != "" {
		if err := s.sessions.DeleteRefreshToken(ctx, data.RefreshToken); err != nil {
			s.log.WithError(err).WithField("session_id", sessionID).Warn("Failed to revoke refresh token")
		}
	}

	s.log.WithFields(logrus.Fields{"user_id": data.UserID, "session_id": sessionID}).Info("User signed out")
	s.broker.publish(AuthEvent{Type: EventSignedOut, SessionID: sessionID, UserID: data.UserID, Email: data.Email, At: time.Now()})
	return nil
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	sessionID, err := s.sessions.GetRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, redis.ErrRefreshTokenNotFound) {
			return nil, apperrors.NewUnauthorizedError("invalid refresh token")
		}
		return nil, err
	}

	next, err := newOpaqueToken()
	if err != nil {
		return nil, err
	}

	var data redis.SessionData
	err = s.sessions.UpdateSession(ctx, sessionID, s.cfg.RefreshTTL, func(sd *redis.SessionData) error {
		if sd.RefreshToken != refreshToken {
			return apperrors.NewUnauthorizedError("invalid refresh token")
		}
		sd.RefreshToken = next
		sd.UpdatedAt = time.Now()
		data = *sd
		return nil
	})
	if err != nil {
		if errors.Is(err, redis.ErrSessionNotFound) {
			return nil, apperrors.NewUnauthorizedError("session expired")
		}
		return nil, err
	}

	if err := s.sessions.DeleteRefreshToken(ctx, refreshToken); err != nil {
		s.log.WithError(err).WithField("session_id", sessionID).Warn("Failed to delete rotated refresh token")
	}
	if err := s.sessions.SetRefreshToken(ctx, next, sessionID, s.cfg.RefreshTTL); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	access, expiresAt, err := s.signAccessToken(data.UserID, data.Email, sessionID)
	if err != nil {
		return nil, err
	}

	s.broker.publish(AuthEvent{Type: EventTokenRefreshed, SessionID: sessionID, UserID: data.UserID, Email: data.Email, Generation: data.Generation, At: time.Now()})
	return &Session{
		SessionID:    sessionID,
		AccessToken:  access,
		RefreshToken: next,
		ExpiresAt:    expiresAt,
		User:         &models.User{ID: data.UserID, Email: data.Email},
	}, nil
}

func (s *authService) GetSession(ctx context.Context, accessToken string) (*Principal, error) {
	claims := &accessClaims{}
	_, err := jwt.ParseWithClaims(accessToken, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, apperrors.NewUnauthorizedError("invalid or expired token")
	}

	data, err := s.sessions.GetSession(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, redis.ErrSessionNotFound) {
			return nil, apperrors.NewUnauthorizedError("session expired")
		}
		return nil, err
	}

	return &Principal{
		UserID:      data.UserID,
		Email:       data.Email,
		SessionID:   data.SessionID,
		Entitlement: data.Entitlement,
	}, nil
}

func (s *authService) Subscribe() (<-chan AuthEvent, func()) {
	return s.broker.subscribe()
}

func (s *authService) startSession(ctx context.Context, user *models.User) (*Session, error) {
	refreshToken, err := newOpaqueToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	data := &redis.SessionData{
		SessionID:    uuid.NewString(),
		UserID:       user.ID,
		Email:        user.Email,
		RefreshToken: refreshToken,
		Entitlement:  models.EntitlementLoading,
		Generation:   1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.sessions.SetSession(ctx, data.SessionID, data, s.cfg.RefreshTTL); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	if err := s.sessions.SetRefreshToken(ctx, refreshToken, data.SessionID, s.cfg.RefreshTTL); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	access, expiresAt, err := s.signAccessToken(user.ID, user.Email, data.SessionID)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"user_id": user.ID, "session_id": data.SessionID}).Info("User signed in")
	s.broker.publish(AuthEvent{
		Type:       EventSignedIn,
		SessionID:  data.SessionID,
		UserID:     user.ID,
		Email:      user.Email,
		Generation: data.Generation,
		At:         now,
	})

	return &Session{
		SessionID:    data.SessionID,
		AccessToken:  access,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
		User:         user,
	}, nil
}

func (s *authService) signAccessToken(userID, email, sessionID string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	claims := accessClaims{
		SessionID: sessionID,
		Email:     email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, expiresAt, nil
}

func newOpaqueToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

const (
	subscriberBuffer = 64

	// How long publish waits on a full subscriber before giving up on a
	// sign-in event.
	signedInDeliveryTimeout = 5 * time.Second
)

type subscriber struct {
	ch   chan AuthEvent
	done chan struct{}
}

type authBroker struct {
	mu   sync.RWMutex
	next int
	subs map[int]*subscriber
	log  *logrus.Logger
}

func newAuthBroker(log *logrus.Logger) *authBroker {
	return &authBroker{subs: make(map[int]*subscriber), log: log}
}

func (b *authBroker) subscribe() (<-chan AuthEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	sub := &subscriber{
		ch:   make(chan AuthEvent, subscriberBuffer),
		done: make(chan struct{}),
	}
	b.subs[id] = sub

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			// Release publishers blocked on this subscriber before taking
			// the write lock.
			close(sub.done)
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			close(sub.ch)
		})
	}
}

// publish hands event to every subscriber. Sign-ins start the entitlement
// lookup, so a full subscriber is waited on for up to
// signedInDeliveryTimeout; other events are dropped when it is full.
func (b *authBroker) publish(event AuthEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		select {
		case sub.ch <- event:
			continue
		default:
		}

		logger := b.log.WithFields(logrus.Fields{
			"event":      event.Type,
			"session_id": event.SessionID,
		})
		if event.Type != EventSignedIn {
			logger.Warn("Auth event dropped, subscriber is full")
			continue
		}

		timer := time.NewTimer(signedInDeliveryTimeout)
		select {
		case sub.ch <- event:
		case <-sub.done:
		case <-timer.C:
			logger.Error("Sign-in event not delivered, subscriber stalled")
		}
		timer.Stop()
	}
}
