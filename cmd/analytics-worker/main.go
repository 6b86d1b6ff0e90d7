package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/angelmondragon/fulfillment-backend/internal/analytics/router"
	"github.com/angelmondragon/fulfillment-backend/internal/analytics/worker"
	"github.com/angelmondragon/fulfillment-backend/internal/analytics/writer"
	"github.com/angelmondragon/fulfillment-backend/pkg/bigquery"
	"github.com/angelmondragon/fulfillment-backend/pkg/config"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/fulfillment-backend/pkg/pubsub"
	"github.com/angelmondragon/fulfillment-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "analytics-worker"})
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "analytics-worker"

	logg = logger.New(logger.Options{
		ServiceName: "analytics-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	if !cfg.FeatureFlags.AnalyticsEnabled {
		logg.Info(context.Background(), "analytics disabled; set FULFILLMENT_ANALYTICS_ENABLED to run the worker")
		return
	}

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "analytics worker stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "serviceKind": cfg.Service.Kind})

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, pubsubClient.Close()) }()

	bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, bqClient.Close()) }()

	subscription := pubsubClient.AnalyticsSubscription()
	if subscription == nil {
		return errors.New("analytics subscription not configured")
	}

	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	if err != nil {
		return err
	}
	rows, err := writer.New(bqClient, writer.Config{
		BatchTable:    bqClient.BatchResultsTable(),
		PickListTable: bqClient.PickListTable(),
	})
	if err != nil {
		return err
	}
	// Buffered rows are flushed even when shutdown was caused by a signal.
	defer func() { err = multierr.Append(err, rows.Flush(context.WithoutCancel(ctx))) }()

	handler, err := router.NewRouter(rows, logg)
	if err != nil {
		return err
	}
	service, err := worker.NewService(subscription, handler, manager, logg)
	if err != nil {
		return err
	}

	logg.Info(ctx, "analytics worker ready")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logg.Info(ctx, "analytics worker stopped")
	return nil
}
