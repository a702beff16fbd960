package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lotusbook/payments-backend/api/middleware"
	"github.com/lotusbook/payments-backend/api/responses"
	"github.com/lotusbook/payments-backend/api/validators"
	"github.com/lotusbook/payments-backend/internal/payouts"
	pkgerrors "github.com/lotusbook/payments-backend/pkg/errors"
	"github.com/lotusbook/payments-backend/pkg/logger"
)

type PayoutInitiator interface {
	Initiate(ctx context.Context, req payouts.Request) (*payouts.Result, error)
}

type initiatePayoutRequest struct {
	BusinessID    *uuid.UUID      `json:"business_id"`
	Amount        decimal.Decimal `json:"amount" validate:"required,money"`
	RecipientType string          `json:"recipient_type" validate:"required"`
	Recipient     string          `json:"recipient" validate:"required,max=32"`
	AccountNumber string          `json:"account_number" validate:"omitempty,max=64"`
	Name          string          `json:"name" validate:"required,max=120"`
	Narrative     string          `json:"narrative" validate:"required,max=200"`
}

// InitiatePayout pays out from the caller's wallet. Gateway rejections come back
// as a 200 with success=false and the final payout status.
func InitiatePayout(svc PayoutInitiator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payouts service unavailable"))
			return
		}
		claims := middleware.ClaimsFromContext(ctx)
		if claims == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}

		var req initiatePayoutRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		businessID, ok := middleware.BusinessIDFromContext(ctx)
		if req.BusinessID != nil {
			businessID, ok = *req.BusinessID, true
		}
		if !ok || !claims.CanMoveMoneyFor(businessID) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "payouts are limited to the business owner"))
			return
		}

		result, err := svc.Initiate(ctx, payouts.Request{
			BusinessID:    businessID,
			Amount:        req.Amount,
			RecipientType: req.RecipientType,
			Recipient:     req.Recipient,
			AccountNumber: req.AccountNumber,
			Name:          validators.SanitizeString(req.Name, 120),
			Narrative:     validators.SanitizeString(req.Narrative, 200),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteJSON(w, http.StatusOK, result)
	}
}
