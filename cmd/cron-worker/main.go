package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/marketplace-backend/internal/cron"
	"github.com/angelmondragon/marketplace-backend/pkg/bootstrap"
	"github.com/angelmondragon/marketplace-backend/pkg/metrics"
	"github.com/angelmondragon/marketplace-backend/pkg/redis"
)

const serviceName = "cron-worker"

func main() {
	once := flag.Bool("once", false, "run a single maintenance cycle and exit")
	flag.Parse()

	cfg, logg := bootstrap.Load(serviceName)
	ctx, stop := bootstrap.SignalContext(logg)
	defer stop()

	dbClient := bootstrap.Database(ctx, cfg, logg)
	defer bootstrap.Close(ctx, logg, "database", dbClient)

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	bootstrap.Must(ctx, logg, "redis", err)
	defer bootstrap.Close(ctx, logg, "redis", redisClient)

	// the lease expires before the next tick so a crashed holder never skips a cycle
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(serviceName, cfg.App.Env), cfg.Maintenance.Interval*9/10)
	bootstrap.Must(ctx, logg, "cron lock", err)

	promRegistry := prometheus.NewRegistry()
	jobMetrics := metrics.NewCronJobMetrics(promRegistry)
	jobs, err := cron.DefaultJobs(logg, dbClient, jobMetrics, cfg.Maintenance.NotificationRetention, cfg.Maintenance.OutboxRetention)
	bootstrap.Must(ctx, logg, "maintenance jobs", err)
	registry, err := cron.NewRegistry(jobs...)
	bootstrap.Must(ctx, logg, "job registry", err)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   registry,
		Lock:       lock,
		Metrics:    jobMetrics,
		Interval:   cfg.Maintenance.Interval,
		JobTimeout: 10 * time.Minute,
	})
	bootstrap.Must(ctx, logg, "cron service", err)

	if *once {
		if _, err := service.RunOnce(ctx); err != nil {
			logg.Error(ctx, "maintenance cycle failed", err)
			os.Exit(1)
		}
		return
	}

	go metrics.Serve(ctx, logg, ":"+cfg.App.Port, promRegistry)

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}
