package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mu     sync.Mutex
	data   map[string]string
	ttls   map[string]time.Duration
	getErr error
}

func newMockStore() *mockStore {
	return &mockStore{data: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (m *mockStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = fmt.Sprint(value)
	m.ttls[key] = ttl
	return nil
}

func (m *mockStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", m.getErr
	}
	val, ok := m.data[key]
	if !ok {
		return "", redislib.Nil
	}
	return val, nil
}

func (m *mockStore) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *mockStore) AccessSessionKey(accessID string) string {
	return fmt.Sprintf("sess:%s", accessID)
}

func newTestManager(t *testing.T, store *mockStore) *Manager {
	t.Helper()
	manager, err := NewManager(store, config.JWTConfig{ExpirationMinutes: 60, SessionTTLMinutes: 120})
	require.NoError(t, err)
	return manager
}

func TestOpenVerifyRevoke(t *testing.T) {
	store := newMockStore()
	manager := newTestManager(t, store)
	ctx := context.Background()
	userID := uuid.New()

	accessID, err := manager.Open(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), store.data[store.AccessSessionKey(accessID)])
	assert.Equal(t, 2*time.Hour, store.ttls[store.AccessSessionKey(accessID)])

	ok, err := manager.Verify(ctx, accessID, userID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = manager.Verify(ctx, accessID, uuid.New())
	require.NoError(t, err)
	assert.False(t, ok, "session belongs to another user")

	require.NoError(t, manager.Revoke(ctx, accessID))
	ok, err = manager.Verify(ctx, accessID, userID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, manager.Revoke(ctx, accessID), "second revoke is a no-op")
}

func TestHasSessionPropagatesStoreErrors(t *testing.T) {
	store := newMockStore()
	store.getErr = errors.New("redis down")
	manager := newTestManager(t, store)

	_, err := manager.Verify(context.Background(), "abc", uuid.New())
	assert.Error(t, err)
}

func TestManagerRejectsBadInput(t *testing.T) {
	manager := newTestManager(t, newMockStore())
	_, err := manager.Open(context.Background(), uuid.Nil)
	assert.Error(t, err)
	_, err = manager.Verify(context.Background(), " ", uuid.New())
	assert.Error(t, err)
	assert.Error(t, manager.Revoke(context.Background(), ""))
}

func TestNewManagerValidatesTTL(t *testing.T) {
	store := newMockStore()
	_, err := NewManager(store, config.JWTConfig{ExpirationMinutes: 60, SessionTTLMinutes: 30})
	assert.Error(t, err)
	_, err = NewManager(store, config.JWTConfig{ExpirationMinutes: 60})
	assert.Error(t, err)
	_, err = NewManager(nil, config.JWTConfig{})
	assert.Error(t, err)
}
