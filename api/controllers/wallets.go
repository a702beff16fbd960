package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/lotusbook/payments-backend/api/middleware"
	"github.com/lotusbook/payments-backend/api/responses"
	"github.com/lotusbook/payments-backend/api/validators"
	"github.com/lotusbook/payments-backend/internal/wallets"
	"github.com/lotusbook/payments-backend/pkg/enums"
	pkgerrors "github.com/lotusbook/payments-backend/pkg/errors"
	"github.com/lotusbook/payments-backend/pkg/logger"
	"github.com/lotusbook/payments-backend/pkg/pagination"
)

type WalletService interface {
	Provision(ctx context.Context, req wallets.ProvisionRequest) (*wallets.ProvisionResult, error)
	Balance(ctx context.Context, businessID uuid.UUID) (*wallets.BalanceResult, error)
	Transactions(ctx context.Context, businessID uuid.UUID, params pagination.Params) (*wallets.TransactionPage, error)
}

type provisionWalletRequest struct {
	BusinessID  *uuid.UUID `json:"business_id"`
	Email       string     `json:"email" validate:"required,email"`
	Currency    string     `json:"currency" validate:"omitempty,len=3"`
	CanDisburse *bool      `json:"can_disburse"`
}

// ProvisionWallet links a gateway wallet to a business. Owners provision their own
// business; operators may provision any.
func ProvisionWallet(svc WalletService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallets service unavailable"))
			return
		}
		claims := middleware.ClaimsFromContext(ctx)
		if claims == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}

		var req provisionWalletRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		businessID, ok := middleware.BusinessIDFromContext(ctx)
		if req.BusinessID != nil {
			businessID, ok = *req.BusinessID, true
		}
		if !ok {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "business_id is required"))
			return
		}
		allowed := claims.Role == enums.MemberRoleOperator || claims.CanMoveMoneyFor(businessID)
		if !allowed {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "wallet provisioning is limited to the business owner"))
			return
		}

		result, err := svc.Provision(ctx, wallets.ProvisionRequest{
			BusinessID:  businessID,
			Email:       req.Email,
			Currency:    req.Currency,
			CanDisburse: req.CanDisburse,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		status := http.StatusOK
		if result.Created {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, result)
	}
}

func WalletBalance(svc WalletService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		businessID, err := authorizedBusiness(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallets service unavailable"))
			return
		}

		result, err := svc.Balance(ctx, businessID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// WalletTransactions pages wallet history newest first via ?limit= and ?cursor=.
func WalletTransactions(svc WalletService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		businessID, err := authorizedBusiness(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallets service unavailable"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		cursor, err := validators.ParseQueryCursor(r, "cursor")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		page, err := svc.Transactions(ctx, businessID, pagination.Params{
			Limit:  limit,
			Cursor: cursor,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func authorizedBusiness(r *http.Request) (uuid.UUID, error) {
	businessID, err := validators.ParseUUIDParam(r, "businessId")
	if err != nil {
		return uuid.Nil, err
	}
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if !claims.CanActFor(businessID) {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "wallet belongs to another business")
	}
	return businessID, nil
}
