package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lotusbook/payments-backend/api/controllers"
	webhookcontrollers "github.com/lotusbook/payments-backend/api/controllers/webhooks"
	"github.com/lotusbook/payments-backend/api/middleware"
	"github.com/lotusbook/payments-backend/pkg/config"
	"github.com/lotusbook/payments-backend/pkg/db"
	"github.com/lotusbook/payments-backend/pkg/enums"
	"github.com/lotusbook/payments-backend/pkg/logger"
	"github.com/lotusbook/payments-backend/pkg/redis"
)

// Params carries everything the HTTP surface needs.
type Params struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       db.Pinger
	Redis    redis.Pinger
	Store    redis.IdempotencyStore
	Gatherer prometheus.Gatherer

	WebhookGuard   webhookcontrollers.DeliveryGuard
	Reconciliation webhookcontrollers.WebhookService
	Collections    controllers.CollectionInitiator
	Payouts        controllers.PayoutInitiator
	Wallets        controllers.WalletService
}

func NewRouter(p Params) http.Handler {
	cfg, logg := p.Config, p.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSAllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readinessDeps(p)))
	})

	gatherer := p.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/intasend", webhookcontrollers.IntaSendWebhook(cfg.IntaSend, p.WebhookGuard, p.Reconciliation, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(p.Store, logg))

		r.Get("/ping", controllers.PrivatePing())
		r.Post("/collections", controllers.InitiateCollection(p.Collections, logg))
		r.With(middleware.RequireRole(logg, enums.MemberRoleOwner)).
			Post("/payouts", controllers.InitiatePayout(p.Payouts, logg))

		r.Route("/wallets", func(r chi.Router) {
			r.With(middleware.RequireRole(logg, enums.MemberRoleOwner, enums.MemberRoleOperator)).
				Post("/", controllers.ProvisionWallet(p.Wallets, logg))
			r.Get("/{businessId}/balance", controllers.WalletBalance(p.Wallets, logg))
			r.Get("/{businessId}/transactions", controllers.WalletTransactions(p.Wallets, logg))
		})
	})

	return r
}

func readinessDeps(p Params) map[string]controllers.Pinger {
	deps := map[string]controllers.Pinger{}
	if p.DB != nil {
		deps["db"] = p.DB
	}
	if p.Redis != nil {
		deps["redis"] = p.Redis
	}
	return deps
}
