// Package bootstrap holds the startup steps shared by every binary: loading
// .env and config, building the service logger and failing fast on
// resources that cannot be reached.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/db"
	"github.com/angelmondragon/marketplace-backend/pkg/instance"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/migrate"
)

// exit is swapped in tests.
var exit = os.Exit

// Load reads an optional .env file and the MARKET_* environment, then returns
// the config and a logger configured from it. A bad config exits the process.
func Load(service string) (*config.Config, *logger.Logger) {
	logg := logger.New(logger.Options{ServiceName: service})
	if err := godotenv.Load(); err != nil {
		logg.Debug(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	Must(context.Background(), logg, "config", err)

	return cfg, NewLogger(service, cfg)
}

func NewLogger(service string, cfg *config.Config) *logger.Logger {
	return logger.New(logger.Options{
		ServiceName: service,
		Environment: cfg.App.Env,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
}

// SignalContext is cancelled on SIGINT or SIGTERM and carries the instance id
// for every log line written under it.
func SignalContext(logg *logger.Logger) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return logg.WithField(ctx, "instance", instance.ID()), stop
}

// Must logs err against resource and exits when err is non-nil.
func Must(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, "resource not working: "+resource, err)
	exit(1)
}

// Close is meant for defer: close failures during shutdown are logged only.
func Close(ctx context.Context, logg *logger.Logger, resource string, c io.Closer) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		logg.Error(context.WithoutCancel(ctx), "close "+resource, err)
	}
}

// Database connects to Postgres and, in dev with MARKET_AUTO_MIGRATE set,
// applies the embedded migrations before returning.
func Database(ctx context.Context, cfg *config.Config, logg *logger.Logger) *db.Client {
	client, err := db.New(ctx, cfg.DB, logg)
	Must(ctx, logg, "database", err)
	if autoMigrate(cfg) {
		Must(ctx, logg, "dev migrations", migrateUp(ctx, logg, client))
	}
	return client
}

func autoMigrate(cfg *config.Config) bool {
	return cfg.App.IsDev() && cfg.FeatureFlags.AutoMigrate
}

func migrateUp(ctx context.Context, logg *logger.Logger, client *db.Client) error {
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}
	ctx = logg.WithField(ctx, "source", "embedded")
	logg.Info(ctx, "applying migrations on startup")
	if err := migrate.Run(ctx, sqlDB, "", "up"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}
