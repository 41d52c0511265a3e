package idempotency_test

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/pkg/outbox/idempotency"
)

type setOnce map[string]bool

func (s setOnce) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	if s[key] {
		return false, nil
	}
	s[key] = true
	return true, nil
}

func (s setOnce) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(s, k)
	}
	return nil
}

func (setOnce) IdempotencyKey(scope, id string) string { return scope + ":" + id }

func ExampleManager_CheckAndMarkProcessed() {
	manager, _ := idempotency.NewManager(setOnce{}, 7*24*time.Hour)
	eventID := uuid.MustParse("f47ac10b-58cc-4372-a567-0e02b2c3d479")

	for range 2 {
		seen, _ := manager.CheckAndMarkProcessed(context.Background(), "analytics", eventID)
		if seen {
			fmt.Println("duplicate delivery, skipped")
			continue
		}
		fmt.Println("handled")
	}
	// Output:
	// handled
	// duplicate delivery, skipped
}
