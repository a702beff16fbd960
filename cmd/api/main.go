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

	"github.com/lotusbook/payments-backend/api/routes"
	"github.com/lotusbook/payments-backend/internal/bookings"
	"github.com/lotusbook/payments-backend/internal/collections"
	"github.com/lotusbook/payments-backend/internal/disbursement"
	"github.com/lotusbook/payments-backend/internal/ledger"
	"github.com/lotusbook/payments-backend/internal/payouts"
	"github.com/lotusbook/payments-backend/internal/reconciliation"
	"github.com/lotusbook/payments-backend/internal/wallets"
	"github.com/lotusbook/payments-backend/pkg/config"
	"github.com/lotusbook/payments-backend/pkg/db"
	"github.com/lotusbook/payments-backend/pkg/intasend"
	"github.com/lotusbook/payments-backend/pkg/logger"
	"github.com/lotusbook/payments-backend/pkg/metrics"
	"github.com/lotusbook/payments-backend/pkg/migrate"
	"github.com/lotusbook/payments-backend/pkg/outbox"
	"github.com/lotusbook/payments-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

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

	reconMetrics := metrics.NewReconciliationMetrics(prometheus.DefaultRegisterer)
	gateway, err := intasend.NewClient(cfg.IntaSend, intasend.WithMetrics(reconMetrics))
	if err != nil {
		logg.Error(context.Background(), "failed to create intasend client", err)
		os.Exit(1)
	}

	params, err := buildServices(cfg, logg, dbClient, redisClient, gateway, reconMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":         cfg.App.Env,
		"addr":        addr,
		"instance":    id,
		"gateway_env": cfg.IntaSend.Environment(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(params),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-sigCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down gracefully")
}

func buildServices(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	gateway *intasend.Client,
	reconMetrics *metrics.ReconciliationMetrics,
) (routes.Params, error) {
	ledgerRepo := ledger.NewRepository(dbClient.DB())
	bookingRepo := bookings.NewRepository(dbClient.DB())
	attemptRepo := collections.NewAttemptRepository(dbClient.DB())
	events := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	guard, err := ledger.NewGuard(ledger.GuardParams{
		DB:         dbClient,
		Repository: ledgerRepo,
		Logger:     logg,
		Metrics:    reconMetrics,
		Currency:   cfg.Payout.Currency,
	})
	if err != nil {
		return routes.Params{}, err
	}

	disburser, err := disbursement.NewService(disbursement.ServiceParams{
		Wallets:  ledgerRepo,
		Bookings: bookingRepo,
		Guard:    guard,
		Gateway:  gateway,
		DB:       dbClient,
		Outbox:   events,
		Logger:   logg,
		Metrics:  reconMetrics,
		Payout:   cfg.Payout,
		IntaSend: cfg.IntaSend,
	})
	if err != nil {
		return routes.Params{}, err
	}

	reconciler, err := reconciliation.NewService(reconciliation.ServiceParams{
		DB:        dbClient,
		Bookings:  bookingRepo,
		Disburser: disburser,
		Attempts:  attemptRepo,
		Outbox:    events,
		Logger:    logg,
		Metrics:   reconMetrics,
		Payout:    cfg.Payout,
	})
	if err != nil {
		return routes.Params{}, err
	}

	webhookGuard, err := reconciliation.NewIdempotencyGuard(redisClient, cfg.Reconciliation.InFlightTTL, cfg.Reconciliation.DedupeTTL, reconciliation.WebhookScope)
	if err != nil {
		return routes.Params{}, err
	}

	collector, err := collections.NewService(collections.ServiceParams{
		Gateway:  gateway,
		Attempts: attemptRepo,
		Bookings: bookingRepo,
		Logger:   logg,
		IntaSend: cfg.IntaSend,
		Currency: cfg.Payout.Currency,
	})
	if err != nil {
		return routes.Params{}, err
	}

	payer, err := payouts.NewService(payouts.ServiceParams{
		DB:       dbClient,
		Wallets:  ledgerRepo,
		Guard:    guard,
		Gateway:  gateway,
		Outbox:   events,
		Logger:   logg,
		Metrics:  reconMetrics,
		Payout:   cfg.Payout,
		IntaSend: cfg.IntaSend,
	})
	if err != nil {
		return routes.Params{}, err
	}

	walletSvc, err := wallets.NewService(wallets.ServiceParams{
		Wallets:  ledgerRepo,
		Gateway:  gateway,
		Logger:   logg,
		IntaSend: cfg.IntaSend,
	})
	if err != nil {
		return routes.Params{}, err
	}

	return routes.Params{
		Config:         cfg,
		Logger:         logg,
		DB:             dbClient,
		Redis:          redisClient,
		Store:          redisClient,
		Gatherer:       prometheus.DefaultGatherer,
		WebhookGuard:   webhookGuard,
		Reconciliation: reconciler,
		Collections:    collector,
		Payouts:        payer,
		Wallets:        walletSvc,
	}, nil
}
