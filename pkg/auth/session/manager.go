// Package session tracks live logins in Redis so tokens can be revoked
// before they expire.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
)

var errAccessIDRequired = errors.New("session: access id is required")

// Store is the Redis surface sessions need; *redis.Client satisfies it.
type Store interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	AccessSessionKey(accessID string) string
}

// Verifier is what the auth middleware checks each request against.
type Verifier interface {
	Verify(ctx context.Context, accessID string, userID uuid.UUID) (bool, error)
}

// Manager stores <ns>:session:access:<jti> -> user id for every login. The
// entry outlives the access token so a revoke always wins.
type Manager struct {
	store Store
	ttl   time.Duration
}

func NewManager(store Store, cfg config.JWTConfig) (*Manager, error) {
	if store == nil {
		return nil, errors.New("session: store is required")
	}
	ttl := cfg.SessionTTL()
	if ttl <= 0 {
		return nil, errors.New("session: ttl must be positive")
	}
	if access := cfg.AccessTTL(); ttl < access {
		return nil, fmt.Errorf("session: ttl %s is shorter than the access token ttl %s", ttl, access)
	}
	return &Manager{store: store, ttl: ttl}, nil
}

// Open starts a session for userID and returns the access id to embed as jti.
func (m *Manager) Open(ctx context.Context, userID uuid.UUID) (string, error) {
	if userID == uuid.Nil {
		return "", errors.New("session: user id is required")
	}
	accessID := NewAccessID()
	if err := m.store.Set(ctx, m.store.AccessSessionKey(accessID), userID.String(), m.ttl); err != nil {
		return "", fmt.Errorf("session: open: %w", err)
	}
	return accessID, nil
}

// Verify reports whether accessID is live and was opened for userID. A token
// whose jti points at someone else's session is treated as revoked.
func (m *Manager) Verify(ctx context.Context, accessID string, userID uuid.UUID) (bool, error) {
	if strings.TrimSpace(accessID) == "" {
		return false, errAccessIDRequired
	}
	owner, err := m.store.Get(ctx, m.store.AccessSessionKey(accessID))
	switch {
	case errors.Is(err, redislib.Nil):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("session: lookup: %w", err)
	}
	return owner == userID.String(), nil
}

// Revoke deletes the session; revoking twice is harmless.
func (m *Manager) Revoke(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return errAccessIDRequired
	}
	return m.store.Del(ctx, m.store.AccessSessionKey(accessID))
}

// NewAccessID produces the identifier used as JWT jti and Redis key.
func NewAccessID() string {
	return uuid.NewString()
}
