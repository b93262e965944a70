package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bakery_manager/internal/models"

	"github.com/go-redis/redis/v8"
)

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrTempDataNotFound     = errors.New("temp data not found")
	ErrConcurrentUpdate     = errors.New("record changed concurrently")
)

const maxCASAttempts = 5

// KeepTTL makes an update keep the record's remaining lifetime.
const KeepTTL = redis.KeepTTL

type Client struct {
	rdb *redis.Client
}

// SessionData is the server-side half of a signed-in session. Access tokens
// are only honoured while this record exists. RefreshToken is the one refresh
// token currently valid for the session.
type SessionData struct {
	SessionID    string                  `json:"session_id"`
	UserID       string                  `json:"user_id"`
	Email        string                  `json:"email"`
	RefreshToken string                  `json:"refresh_token"`
	Entitlement  models.EntitlementState `json:"entitlement"`
	Generation   int64                   `json:"generation"`
	CheckedAt    *time.Time              `json:"checked_at,omitempty"`
	CreatedAt    time.Time               `json:"created_at"`
	UpdatedAt    time.Time               `json:"updated_at"`
}

func Initialize(redisURL string) (*Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	rdb := redis.NewClient(opt)

	// Test connection
	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Session management
func (c *Client) SetSession(ctx context.Context, sessionID string, data *SessionData, ttl time.Duration) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal session data: %w", err)
	}

	return c.rdb.Set(ctx, sessionKey(sessionID), jsonData, ttl).Err()
}

func (c *Client) GetSession(ctx context.Context, sessionID string) (*SessionData, error) {
	val, err := c.rdb.Get(ctx, sessionKey(sessionID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session SessionData
	if err := json.Unmarshal(val, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session data: %w", err)
	}

	return &session, nil
}

func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	return c.rdb.Del(ctx, sessionKey(sessionID)).Err()
}

// UpdateSession applies fn to the stored session atomically. It fails with
// ErrSessionNotFound when the session is gone (signed out or expired), and
// returns fn's error unchanged without writing anything.
func (c *Client) UpdateSession(ctx context.Context, sessionID string, ttl time.Duration, fn func(*SessionData) error) error {
	return c.compareAndSwap(ctx, sessionKey(sessionID), ttl, ErrSessionNotFound, func(raw []byte) ([]byte, error) {
		var session SessionData
		if err := json.Unmarshal(raw, &session); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session data: %w", err)
		}
		if err := fn(&session); err != nil {
			return nil, err
		}
		return json.Marshal(&session)
	})
}

// Refresh tokens map an opaque token to its session.
func (c *Client) SetRefreshToken(ctx context.Context, token, sessionID string, ttl time.Duration) error {
	return c.rdb.Set(ctx, refreshKey(token), sessionID, ttl).Err()
}

func (c *Client) GetRefreshToken(ctx context.Context, token string) (string, error) {
	sessionID, err := c.rdb.Get(ctx, refreshKey(token)).Result()
	if err != nil {
		if err == redis.Nil {
			return "", ErrRefreshTokenNotFound
		}
		return "", fmt.Errorf("failed to get refresh token: %w", err)
	}
	return sessionID, nil
}

func (c *Client) DeleteRefreshToken(ctx context.Context, token string) error {
	return c.rdb.Del(ctx, refreshKey(token)).Err()
}

// Temporary data management
func (c *Client) SetTempData(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	jsonData, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal temp data: %w", err)
	}

	return c.rdb.Set(ctx, tempKey(key), jsonData, ttl).Err()
}

func (c *Client) GetTempData(ctx context.Context, key string, dest interface{}) error {
	val, err := c.rdb.Get(ctx, tempKey(key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return ErrTempDataNotFound
		}
		return fmt.Errorf("failed to get temp data: %w", err)
	}

	return json.Unmarshal(val, dest)
}

func (c *Client) DeleteTempData(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, tempKey(key)).Err()
}

// UpdateTempData decodes the stored value into dest, calls fn and stores dest
// again, all under WATCH. dest must be a pointer.
func (c *Client) UpdateTempData(ctx context.Context, key string, ttl time.Duration, dest interface{}, fn func() error) error {
	return c.compareAndSwap(ctx, tempKey(key), ttl, ErrTempDataNotFound, func(raw []byte) ([]byte, error) {
		if err := json.Unmarshal(raw, dest); err != nil {
			return nil, fmt.Errorf("failed to unmarshal temp data: %w", err)
		}
		if err := fn(); err != nil {
			return nil, err
		}
		return json.Marshal(dest)
	})
}

func (c *Client) compareAndSwap(ctx context.Context, key string, ttl time.Duration, missing error, fn func([]byte) ([]byte, error)) error {
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return missing
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", key, err)
		}

		next, err := fn(raw)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, ttl)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		err := c.rdb.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return ErrConcurrentUpdate
}

// Close Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func sessionKey(id string) string { return "session:" + id }
func refreshKey(token string) string { return "refresh:" + token }
func tempKey(key string) string { return "temp:" + key }
