package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
)

type fakeStore struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
	err  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = value.(string)
	f.ttls[key] = ttl
	return true, nil
}

func (f *fakeStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value.(string)
	f.ttls[key] = ttl
	return nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func keyedRequest(key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/order", strings.NewReader(body))
	req = req.WithContext(WithUserID(req.Context(), "user-1"))
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	return req
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"Error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Error.Code
}

func TestIdempotentPassesThroughWithoutKey(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotent(store, CriticalIdempotencyTTL, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	for range 2 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, keyedRequest("", `{"contact_id":"c"}`))
		assert.Equal(t, http.StatusCreated, rec.Code)
	}
	assert.Equal(t, 2, calls)
	assert.Empty(t, store.data)
}

func TestIdempotentReplaysCompletedResponse(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotent(store, CriticalIdempotencyTTL, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"Status":true}`))
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, keyedRequest("abc", `{"contact_id":"c"}`))
	require.Equal(t, http.StatusCreated, first.Code)

	key := store.IdempotencyKey("user-1|POST|/api/v1/order", "abc")
	assert.Equal(t, CriticalIdempotencyTTL, store.ttls[key])

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, keyedRequest("abc", `{"contact_id":"c"}`))
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "application/json", second.Header().Get("Content-Type"))
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, `{"Status":true}`, second.Body.String())
	assert.Equal(t, 1, calls)
}

func TestIdempotentRejectsDifferentBody(t *testing.T) {
	store := newFakeStore()
	handler := Idempotent(store, 0, nil)(okHandler())

	handler.ServeHTTP(httptest.NewRecorder(), keyedRequest("xyz", `{"contact_id":"a"}`))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, keyedRequest("xyz", `{"contact_id":"b"}`))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeIdempotency), errorCode(t, rec))
}

func TestIdempotentRejectsConcurrentDuplicate(t *testing.T) {
	store := newFakeStore()
	entered := make(chan struct{})
	release := make(chan struct{})
	handler := Idempotent(store, 0, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		close(entered)
		<-release
		w.WriteHeader(http.StatusCreated)
	}))

	done := make(chan int)
	go func() {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, keyedRequest("same", `{}`))
		done <- rec.Code
	}()
	<-entered

	dup := httptest.NewRecorder()
	handler.ServeHTTP(dup, keyedRequest("same", `{}`))
	assert.Equal(t, http.StatusConflict, dup.Code)
	assert.Contains(t, dup.Body.String(), "in progress")

	close(release)
	assert.Equal(t, http.StatusCreated, <-done)
}

func TestIdempotentReleasesKeyOnServerError(t *testing.T) {
	store := newFakeStore()
	fail := true
	calls := 0
	handler := Idempotent(store, 0, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if fail {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, keyedRequest("k1", `{}`))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Empty(t, store.data)

	fail = false
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, keyedRequest("k1", `{}`))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 2, calls)
}

func TestIdempotentScopesKeysPerUser(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotent(store, 0, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), keyedRequest("shared", `{}`))

	other := keyedRequest("shared", `{}`)
	other = other.WithContext(WithUserID(other.Context(), "user-2"))
	handler.ServeHTTP(httptest.NewRecorder(), other)
	assert.Equal(t, 2, calls)
}

func TestIdempotentStoreFailure(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("redis down")
	rec := httptest.NewRecorder()
	Idempotent(store, 0, nil)(okHandler()).ServeHTTP(rec, keyedRequest("k", `{}`))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
