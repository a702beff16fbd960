package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/lotusbook/payments-backend/api/responses"
	"github.com/lotusbook/payments-backend/internal/reconciliation"
	"github.com/lotusbook/payments-backend/pkg/config"
	pkgerrors "github.com/lotusbook/payments-backend/pkg/errors"
	"github.com/lotusbook/payments-backend/pkg/intasend"
	"github.com/lotusbook/payments-backend/pkg/logger"
	"github.com/lotusbook/payments-backend/pkg/security"
)

const maxWebhookBodyBytes = 1 << 20

type DeliveryGuard interface {
	CheckAndMark(ctx context.Context, deliveryKey string) (bool, error)
	Confirm(ctx context.Context, deliveryKey string) error
	Delete(ctx context.Context, deliveryKey string) error
}

type WebhookService interface {
	HandleWebhook(ctx context.Context, event intasend.WebhookEvent) (*reconciliation.Result, error)
}

// IntaSendWebhook acknowledges collection callbacks. Business outcomes always
// answer 200 so the gateway stops retrying; only malformed or unauthenticated
// deliveries are rejected.
func IntaSendWebhook(cfg config.IntaSendConfig, guard DeliveryGuard, svc WebhookService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unable to read webhook body"))
			return
		}

		if cfg.WebhookSecret != "" && !intasend.VerifySignature(cfg.WebhookSecret, body, r.Header.Get(intasend.SignatureHeader)) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook signature"))
			return
		}

		event, err := intasend.ParseWebhook(body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid webhook payload"))
			return
		}

		if !security.SecretMatches(cfg.WebhookChallenge, event.Challenge) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook challenge"))
			return
		}

		deliveryKey := ""
		if guard != nil && event.HasRequiredFields() {
			deliveryKey = event.DeliveryKey()
			seen, err := guard.CheckAndMark(ctx, deliveryKey)
			if err != nil {
				// The conditional terminal write still protects the booking.
				logError(ctx, logg, "webhook dedupe check failed", err)
				deliveryKey = ""
			} else if seen {
				logInfo(ctx, logg, "duplicate webhook delivery ignored")
				responses.WriteMessage(w, http.StatusOK, reconciliation.OutcomeDuplicate.Message())
				return
			}
		}

		result, err := svc.HandleWebhook(ctx, event)
		switch {
		case err != nil:
			logError(ctx, logg, "webhook processing failed", err)
			if deliveryKey != "" {
				if delErr := guard.Delete(ctx, deliveryKey); delErr != nil {
					logError(ctx, logg, "webhook dedupe release failed", delErr)
				}
			}
		case deliveryKey != "":
			if confirmErr := guard.Confirm(ctx, deliveryKey); confirmErr != nil {
				logError(ctx, logg, "webhook dedupe confirm failed", confirmErr)
			}
		}

		message := reconciliation.OutcomeError.Message()
		if result != nil && result.Message != "" {
			message = result.Message
		}
		responses.WriteMessage(w, http.StatusOK, message)
	}
}

func logInfo(ctx context.Context, logg *logger.Logger, msg string) {
	if logg != nil {
		logg.Info(ctx, msg)
	}
}

func logError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg != nil {
		logg.Error(ctx, msg, err)
	}
}
