package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/angelmondragon/marketplace-backend/api/controllers"
	"github.com/angelmondragon/marketplace-backend/api/routes"
	"github.com/angelmondragon/marketplace-backend/internal/auth"
	"github.com/angelmondragon/marketplace-backend/internal/basket"
	"github.com/angelmondragon/marketplace-backend/internal/catalog"
	"github.com/angelmondragon/marketplace-backend/internal/contacts"
	"github.com/angelmondragon/marketplace-backend/internal/notifications"
	"github.com/angelmondragon/marketplace-backend/internal/orders"
	"github.com/angelmondragon/marketplace-backend/internal/partner"
	"github.com/angelmondragon/marketplace-backend/internal/users"
	"github.com/angelmondragon/marketplace-backend/pkg/auth/session"
	"github.com/angelmondragon/marketplace-backend/pkg/bigquery"
	"github.com/angelmondragon/marketplace-backend/pkg/bootstrap"
	"github.com/angelmondragon/marketplace-backend/pkg/metrics"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox"
	"github.com/angelmondragon/marketplace-backend/pkg/pubsub"
	"github.com/angelmondragon/marketplace-backend/pkg/redis"
	"github.com/angelmondragon/marketplace-backend/pkg/storage/gcs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, logg := bootstrap.Load("api")
	ctx, stop := bootstrap.SignalContext(logg)
	defer stop()

	dbClient := bootstrap.Database(ctx, cfg, logg)
	defer bootstrap.Close(ctx, logg, "database", dbClient)

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	bootstrap.Must(ctx, logg, "redis", err)
	defer bootstrap.Close(ctx, logg, "redis", redisClient)

	readiness := map[string]controllers.Pinger{
		"database": dbClient,
		"redis":    redisClient,
	}

	// GCP clients only back the readiness probe here; local runs skip them.
	if cfg.GCP.ProjectID != "" {
		bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
		bootstrap.Must(ctx, logg, "bigquery", err)
		defer bootstrap.Close(ctx, logg, "bigquery", bqClient)
		readiness["bigquery"] = bqClient

		psClient, err := pubsub.NewClient(ctx, cfg.GCP, pubsub.PublisherResources(cfg.PubSub), logg)
		bootstrap.Must(ctx, logg, "pubsub", err)
		defer bootstrap.Close(ctx, logg, "pubsub", psClient)
		readiness["pubsub"] = psClient
	}

	// gs:// price lists are only accepted when a bucket is configured
	var objectFetcher partner.Fetcher
	if cfg.GCS.PriceListBucket != "" {
		gcsClient, err := gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
		bootstrap.Must(ctx, logg, "gcs", err)
		readiness["gcs"] = gcsClient
		objectFetcher = partner.NewObjectFetcher(gcsClient, cfg.Partner)
	}

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	bootstrap.Must(ctx, logg, "session manager", err)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       users.NewRepository(dbClient.DB()),
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	bootstrap.Must(ctx, logg, "auth service", err)

	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		DB:             dbClient,
		Outbox:         outboxService,
		PasswordConfig: cfg.Password,
	})
	bootstrap.Must(ctx, logg, "register service", err)

	usersService, err := users.NewService(users.NewRepository(dbClient.DB()), cfg.Password)
	bootstrap.Must(ctx, logg, "users service", err)

	contactsService, err := contacts.NewService(contacts.NewRepository(dbClient.DB()))
	bootstrap.Must(ctx, logg, "contacts service", err)

	catalogService, err := catalog.NewService(catalog.NewRepository(dbClient.DB()))
	bootstrap.Must(ctx, logg, "catalog service", err)

	partnerService, err := partner.NewService(partner.ServiceParams{
		DB:      dbClient,
		Fetcher: partner.NewSchemeFetcher(partner.NewHTTPFetcher(cfg.Partner), objectFetcher),
		Outbox:  outboxService,
		Metrics: metrics.NewPartnerImportMetrics(registry),
		Logger:  logg,
	})
	bootstrap.Must(ctx, logg, "partner service", err)

	basketService, err := basket.NewService(dbClient)
	bootstrap.Must(ctx, logg, "basket service", err)

	ordersService, err := orders.NewService(orders.ServiceParams{
		DB:      dbClient,
		Outbox:  outboxService,
		Metrics: metrics.NewOrderMetrics(registry),
		Logger:  logg,
	})
	bootstrap.Must(ctx, logg, "orders service", err)

	notificationsService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	bootstrap.Must(ctx, logg, "notifications service", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithField(ctx, "addr", addr)
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Dependencies{
			Sessions:      sessionManager,
			Idempotency:   redisClient,
			RateLimiter:   redisClient,
			Readiness:     readiness,
			Metrics:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
			HTTPMetrics:   metrics.NewHTTPMetrics(registry),
			Auth:          authService,
			Register:      registerService,
			Users:         usersService,
			Contacts:      contactsService,
			Catalog:       catalogService,
			Partner:       partnerService,
			Basket:        basketService,
			Orders:        ordersService,
			Notifications: notificationsService,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server stopped")
}
