package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/fulfillment-backend/api/controllers"
	"github.com/angelmondragon/fulfillment-backend/api/routes"
	"github.com/angelmondragon/fulfillment-backend/internal/activity"
	"github.com/angelmondragon/fulfillment-backend/internal/documents"
	"github.com/angelmondragon/fulfillment-backend/internal/fulfillment"
	"github.com/angelmondragon/fulfillment-backend/internal/notifications"
	"github.com/angelmondragon/fulfillment-backend/internal/picklists"
	"github.com/angelmondragon/fulfillment-backend/internal/stock"
	"github.com/angelmondragon/fulfillment-backend/pkg/carrier"
	"github.com/angelmondragon/fulfillment-backend/pkg/config"
	"github.com/angelmondragon/fulfillment-backend/pkg/db"
	"github.com/angelmondragon/fulfillment-backend/pkg/invoicing"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
	"github.com/angelmondragon/fulfillment-backend/pkg/metrics"
	"github.com/angelmondragon/fulfillment-backend/pkg/migrate"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox"
	"github.com/angelmondragon/fulfillment-backend/pkg/redis"
	"github.com/angelmondragon/fulfillment-backend/pkg/storage/gcs"
)

const shutdownTimeout = 20 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	var storage *gcs.Client
	var renderer *documents.Archiver
	if cfg.FeatureFlags.RenderDocuments {
		storage, err = gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, storage.Close()) }()
		renderer, err = documents.NewArchiver(storage, cfg.GCS.DocumentPrefix)
		if err != nil {
			return err
		}
	}

	invoiceClient, err := invoicing.NewClient(cfg.Invoicing)
	if err != nil {
		return err
	}
	carrierClient, err := carrier.NewClient(cfg.Carrier)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	fulfillmentMetrics := metrics.NewFulfillmentMetrics(registry)

	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	activityLog := activity.NewLogger(dbClient.DB())
	notifier, err := notifications.NewNotifier(dbClient.DB(), outboxSvc, logg)
	if err != nil {
		return err
	}

	codes, err := picklists.NewRedisCodeGenerator(redisClient, cfg.Fulfillment.PickListCodePrefix)
	if err != nil {
		return err
	}
	pickListRepo := picklists.NewRepository(dbClient.DB())
	builder, err := picklists.NewBuilder(picklists.BuilderParams{
		Tx:         dbClient,
		Repo:       pickListRepo,
		Codes:      codes,
		Outbox:     outboxSvc,
		Notifier:   notifier,
		Activity:   activityLog,
		Logger:     logg,
		PickerRole: cfg.Fulfillment.PickerRole,
	})
	if err != nil {
		return err
	}

	pickListParams := picklists.ServiceParams{
		Tx:       dbClient,
		Repo:     pickListRepo,
		Stock:    stock.NewLedger(dbClient.DB()),
		Outbox:   outboxSvc,
		Notifier: notifier,
		Activity: activityLog,
		Metrics:  fulfillmentMetrics,
		Logger:   logg,
		Config: picklists.Config{
			AdminRole:       cfg.Fulfillment.AdminRole,
			RenderDocuments: cfg.FeatureFlags.RenderDocuments,
		},
	}
	// A typed nil would slip past the service's nil check.
	if renderer != nil {
		pickListParams.Documents = renderer
	}
	pickListSvc, err := picklists.NewService(pickListParams)
	if err != nil {
		return err
	}

	batchSvc, err := fulfillment.NewService(fulfillment.ServiceParams{
		Tx:       dbClient,
		Repo:     fulfillment.NewRepository(dbClient.DB()),
		Invoices: invoiceClient,
		Labels:   carrierClient,
		Builder:  builder,
		Outbox:   outboxSvc,
		Activity: activityLog,
		Locks:    redisClient,
		Metrics:  fulfillmentMetrics,
		Logger:   logg,
		Settings: fulfillment.SettingsFromConfig(*cfg),
	})
	if err != nil {
		return err
	}

	notificationSvc, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		return err
	}

	readiness := []controllers.Dependency{
		{Name: "db", Pinger: dbClient},
		{Name: "redis", Pinger: redisClient},
	}
	if storage != nil {
		readiness = append(readiness, controllers.Dependency{Name: "gcs", Pinger: storage})
	}

	addr := ":" + cfg.App.Port
	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Params{
			Config:        cfg,
			Logger:        logg,
			Readiness:     readiness,
			Idempotency:   redisClient,
			Gatherer:      registry,
			Batch:         batchSvc,
			PickLists:     pickListSvc,
			Notifications: notificationSvc,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logCtx := logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "addr": addr})
	logg.Info(logCtx, "starting api server")

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "api server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
