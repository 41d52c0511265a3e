package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"os"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/marketplace-backend/pkg/bootstrap"
	"github.com/angelmondragon/marketplace-backend/pkg/metrics"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox/registry"
	"github.com/angelmondragon/marketplace-backend/pkg/pubsub"
)

func main() {
	requeue := flag.String("requeue", "", "hand a dead-lettered event id back to the publisher, then exit")
	deadLetters := flag.Int("dead-letters", 0, "print the N newest dead-lettered events as JSON lines, then exit")
	flag.Parse()

	cfg, logg := bootstrap.Load("outbox-publisher")
	ctx, stop := bootstrap.SignalContext(logg)
	defer stop()

	dbClient := bootstrap.Database(ctx, cfg, logg)
	defer bootstrap.Close(ctx, logg, "database", dbClient)

	dlqRepo := outbox.NewDLQRepository(dbClient.DB())
	if *requeue != "" || *deadLetters > 0 {
		if err := runDLQCommand(ctx, dlqRepo, *requeue, *deadLetters); err != nil {
			logg.Error(ctx, "dead letter command failed", err)
			os.Exit(1)
		}
		return
	}

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, pubsub.PublisherResources(cfg.PubSub), logg)
	bootstrap.Must(ctx, logg, "pubsub", err)
	defer bootstrap.Close(ctx, logg, "pubsub", pubsubClient)

	resolver, err := registry.NewResolver(cfg.PubSub)
	bootstrap.Must(ctx, logg, "event resolver", err)

	promRegistry := prometheus.NewRegistry()
	service, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		PubSub:        pubsubClient,
		Repository:    outbox.NewRepository(dbClient.DB()),
		Registry:      resolver,
		DLQRepository: dlqRepo,
		Metrics:       metrics.NewOutboxMetrics(promRegistry),
	})
	bootstrap.Must(ctx, logg, "outbox publisher", err)

	go metrics.Serve(ctx, logg, ":"+cfg.App.Port, promRegistry)

	logg.Info(ctx, "starting outbox publisher")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox publisher stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "outbox publisher shutting down gracefully")
}

func runDLQCommand(ctx context.Context, repo *outbox.DLQRepository, requeue string, list int) error {
	if requeue != "" {
		id, err := uuid.Parse(requeue)
		if err != nil {
			return err
		}
		return repo.Requeue(ctx, id)
	}
	rows, err := repo.Recent(ctx, list)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return err
		}
	}
	return nil
}
