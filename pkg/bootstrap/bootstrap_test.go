package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func captureExit(t *testing.T) *int {
	t.Helper()
	code := -1
	prev := exit
	exit = func(c int) { code = c }
	t.Cleanup(func() { exit = prev })
	return &code
}

func TestMustExitsOnlyOnError(t *testing.T) {
	code := captureExit(t)
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf})

	Must(context.Background(), logg, "redis", nil)
	assert.Equal(t, -1, *code)
	assert.Empty(t, buf.String())

	Must(context.Background(), logg, "redis", errors.New("connection refused"))
	assert.Equal(t, 1, *code)
	assert.Contains(t, buf.String(), "resource not working: redis")
	assert.Contains(t, buf.String(), "connection refused")
}

func TestCloseLogsFailure(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	Close(ctx, logg, "pubsub", closerFunc(func() error { return nil }))
	assert.Empty(t, buf.String())

	Close(ctx, logg, "pubsub", closerFunc(func() error { return errors.New("already closed") }))
	assert.Contains(t, buf.String(), "close pubsub")

	require.NotPanics(t, func() { Close(ctx, logg, "nothing", nil) })
}

func TestAutoMigrateOnlyInDev(t *testing.T) {
	cfg := &config.Config{}
	cfg.App.Env = "dev"
	assert.False(t, autoMigrate(cfg))

	cfg.FeatureFlags.AutoMigrate = true
	assert.True(t, autoMigrate(cfg))

	cfg.App.Env = "prod"
	assert.False(t, autoMigrate(cfg))
}
