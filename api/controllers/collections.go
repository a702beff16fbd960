package controllers

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/lotusbook/payments-backend/api/responses"
	"github.com/lotusbook/payments-backend/api/validators"
	"github.com/lotusbook/payments-backend/internal/collections"
	pkgerrors "github.com/lotusbook/payments-backend/pkg/errors"
	"github.com/lotusbook/payments-backend/pkg/logger"
)

type CollectionInitiator interface {
	Initiate(ctx context.Context, req collections.Request) (*collections.Result, error)
}

type initiateCollectionRequest struct {
	Amount      decimal.Decimal `json:"amount" validate:"required,money"`
	PhoneNumber string          `json:"phone_number" validate:"required,max=20"`
	Reference   string          `json:"reference" validate:"required,max=128"`
	Email       string          `json:"email" validate:"omitempty,email"`
	FirstName   string          `json:"first_name" validate:"omitempty,max=64"`
	LastName    string          `json:"last_name" validate:"omitempty,max=64"`
	Narrative   string          `json:"narrative" validate:"omitempty,max=140"`
}

// InitiateCollection starts an STK push for a booking reference.
func InitiateCollection(svc CollectionInitiator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "collections service unavailable"))
			return
		}

		var req initiateCollectionRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.Initiate(ctx, collections.Request{
			Amount:    req.Amount,
			Phone:     req.PhoneNumber,
			Reference: validators.SanitizeString(req.Reference, 128),
			Email:     req.Email,
			FirstName: validators.SanitizeString(req.FirstName, 64),
			LastName:  validators.SanitizeString(req.LastName, 64),
			Narrative: validators.SanitizeString(req.Narrative, 140),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
