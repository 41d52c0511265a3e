package main

import (
	"context"
	"errors"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/marketplace-backend/internal/analytics/router"
	"github.com/angelmondragon/marketplace-backend/internal/analytics/worker"
	"github.com/angelmondragon/marketplace-backend/internal/analytics/writer"
	"github.com/angelmondragon/marketplace-backend/pkg/bigquery"
	"github.com/angelmondragon/marketplace-backend/pkg/bootstrap"
	"github.com/angelmondragon/marketplace-backend/pkg/metrics"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/marketplace-backend/pkg/pubsub"
	"github.com/angelmondragon/marketplace-backend/pkg/redis"
)

func main() {
	cfg, logg := bootstrap.Load("analytics-worker")
	ctx, stop := bootstrap.SignalContext(logg)
	defer stop()

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	bootstrap.Must(ctx, logg, "redis", err)
	defer bootstrap.Close(ctx, logg, "redis", redisClient)

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, pubsub.AnalyticsResources(cfg.PubSub), logg)
	bootstrap.Must(ctx, logg, "pubsub", err)
	defer bootstrap.Close(ctx, logg, "pubsub", pubsubClient)

	bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
	bootstrap.Must(ctx, logg, "bigquery", err)
	defer bootstrap.Close(ctx, logg, "bigquery", bqClient)

	sub := pubsubClient.Subscription(cfg.PubSub.AnalyticsSubscription)
	if sub == nil {
		bootstrap.Must(ctx, logg, "analytics subscription", errors.New("subscription not configured"))
	}

	// a redelivered event is dropped while its processed marker lives
	dedup, err := idempotency.NewManager(redisClient, cfg.Eventing.ConsumerIdempotencyTTL)
	bootstrap.Must(ctx, logg, "idempotency manager", err)

	rows, err := writer.New(bqClient, writer.Config{MarketplaceTable: cfg.BigQuery.MarketplaceEventsTable})
	bootstrap.Must(ctx, logg, "bigquery writer", err)

	handler, err := router.NewRouter(rows, logg, nil)
	bootstrap.Must(ctx, logg, "event router", err)

	reg := prometheus.NewRegistry()
	service, err := worker.NewService(worker.ServiceParams{
		Subscription: sub,
		Handler:      handler,
		Idempotency:  dedup,
		Logger:       logg,
		Metrics:      metrics.NewAnalyticsMetrics(reg),
		Flusher:      rows,
	})
	bootstrap.Must(ctx, logg, "analytics worker", err)

	go metrics.Serve(ctx, logg, ":"+cfg.App.Port, reg)

	logg.Info(ctx, "analytics worker ready")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "analytics worker failed", err)
		os.Exit(1)
	}
}
