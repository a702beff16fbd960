package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lotusbook/payments-backend/internal/bookings"
	"github.com/lotusbook/payments-backend/internal/collections"
	"github.com/lotusbook/payments-backend/internal/cron"
	"github.com/lotusbook/payments-backend/pkg/config"
	"github.com/lotusbook/payments-backend/pkg/db"
	"github.com/lotusbook/payments-backend/pkg/logger"
	"github.com/lotusbook/payments-backend/pkg/metrics"
	"github.com/lotusbook/payments-backend/pkg/migrate"
	"github.com/lotusbook/payments-backend/pkg/outbox"
	"github.com/lotusbook/payments-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	locker, err := cron.NewRedisLocker(redisClient, cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron locker", err)
		os.Exit(1)
	}

	registry, err := buildRegistry(cfg, logg, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to build cron jobs", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Locker:   locker,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (*cron.Registry, error) {
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outbox.NewRepository(dbClient.DB()),
		Retention:  cfg.Cron.OutboxRetention,
	})
	if err != nil {
		return nil, err
	}
	gaps, err := cron.NewReconciliationGapsJob(cron.ReconciliationGapsJobParams{
		Logger:    logg,
		Bookings:  bookings.NewRepository(dbClient.DB()),
		Metrics:   metrics.NewReconciliationMetrics(prometheus.DefaultRegisterer),
		Threshold: cfg.Reconciliation.TransferGapThreshold,
	})
	if err != nil {
		return nil, err
	}
	expiry, err := cron.NewPaymentAttemptExpiryJob(cron.PaymentAttemptExpiryJobParams{
		Logger:   logg,
		Attempts: collections.NewAttemptRepository(dbClient.DB()),
		Expiry:   cfg.Reconciliation.AttemptExpiry,
	})
	if err != nil {
		return nil, err
	}

	return cron.NewRegistry(retention, gaps, expiry), nil
}
