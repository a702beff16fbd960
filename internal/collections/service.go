package collections

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lotusbook/payments-backend/internal/bookings"
	"github.com/lotusbook/payments-backend/pkg/config"
	"github.com/lotusbook/payments-backend/pkg/db/models"
	"github.com/lotusbook/payments-backend/pkg/enums"
	pkgerrors "github.com/lotusbook/payments-backend/pkg/errors"
	"github.com/lotusbook/payments-backend/pkg/intasend"
	"github.com/lotusbook/payments-backend/pkg/logger"
)

var validate = validator.New()

type gateway interface {
	STKPush(ctx context.Context, req intasend.STKPushRequest) (*intasend.STKPushResponse, error)
}

type attemptStore interface {
	Create(ctx context.Context, attempt *models.PaymentAttempt) error
}

type bookingStore interface {
	FindByReference(ctx context.Context, reference string) (*bookings.Target, error)
	UpdateProgress(ctx context.Context, tx *gorm.DB, kind bookings.Kind, id uuid.UUID, status enums.PaymentStatus) (bool, error)
}

// Request starts an STK push for a booking reference.
type Request struct {
	Amount    decimal.Decimal
	Phone     string `validate:"required"`
	Reference string `validate:"required,max=128"`
	Email     string `validate:"omitempty,email"`
	FirstName string `validate:"omitempty,max=64"`
	LastName  string `validate:"omitempty,max=64"`
	Narrative string `validate:"omitempty,max=140"`
}

// Result is what the caller needs to wait on the webhook.
type Result struct {
	AttemptID uuid.UUID `json:"attempt_id"`
	InvoiceID string    `json:"invoice_id"`
	State     string    `json:"state"`
	Reference string    `json:"reference"`
	Phone     string    `json:"phone"`
}

// ServiceParams wires the collections service.
type ServiceParams struct {
	Gateway  gateway
	Attempts attemptStore
	Bookings bookingStore
	Logger   *logger.Logger
	IntaSend config.IntaSendConfig
	Currency string
	Now      func() time.Time
}

// Service initiates M-Pesa collections.
type Service struct {
	gateway  gateway
	attempts attemptStore
	bookings bookingStore
	logg     *logger.Logger
	cfg      config.IntaSendConfig
	currency string
	now      func() time.Time
}

// NewService validates params.
func NewService(params ServiceParams) (*Service, error) {
	if params.Gateway == nil {
		return nil, errors.New("collections gateway required")
	}
	if params.Attempts == nil {
		return nil, errors.New("payment attempt repository required")
	}
	if params.Bookings == nil {
		return nil, errors.New("booking repository required")
	}
	currency := strings.TrimSpace(params.Currency)
	if currency == "" {
		currency = string(enums.CurrencyKES)
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		gateway:  params.Gateway,
		attempts: params.Attempts,
		bookings: params.Bookings,
		logg:     params.Logger,
		cfg:      params.IntaSend,
		currency: currency,
		now:      now,
	}, nil
}

// Initiate sends the STK push, records the attempt and marks the booking pending.
func (s *Service) Initiate(ctx context.Context, req Request) (*Result, error) {
	if err := validate.Struct(req); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid collection request")
	}
	amount := req.Amount.Round(2)
	if !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than zero")
	}
	phone, err := intasend.NormalizePhone(req.Phone)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid phone number")
	}
	reference := strings.TrimSpace(req.Reference)

	if s.logg != nil {
		ctx = s.logg.WithReference(ctx, reference)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout())
	resp, callErr := s.gateway.STKPush(callCtx, intasend.STKPushRequest{
		APIRef:      reference,
		Method:      intasend.MethodMPesa,
		Currency:    s.currency,
		Amount:      amount,
		PhoneNumber: phone,
		Email:       strings.TrimSpace(req.Email),
		FirstName:   strings.TrimSpace(req.FirstName),
		LastName:    strings.TrimSpace(req.LastName),
		Host:        s.cfg.CallbackURL,
		Narrative:   strings.TrimSpace(req.Narrative),
		WalletID:    s.cfg.SourceWalletID,
	})
	cancel()

	attempt := &models.PaymentAttempt{
		ExternalReference: reference,
		Amount:            amount,
		Currency:          s.currency,
		Phone:             phone,
		Email:             strings.TrimSpace(req.Email),
		Status:            enums.CollectionStatusInitiated,
		CreatedAt:         s.now().UTC(),
	}

	var outcomeErr error
	switch {
	case callErr != nil:
		attempt.Status = enums.CollectionStatusFailed
		attempt.FailedReason = ptr(callErr.Error())
		outcomeErr = pkgerrors.Wrap(pkgerrors.CodeGateway, callErr, "stk push failed")
	case !resp.Accepted():
		reason := strings.TrimSpace(resp.Invoice.FailedReason)
		if reason == "" {
			reason = "gateway returned state " + resp.Invoice.State
		}
		attempt.Status = enums.CollectionStatusFailed
		attempt.FailedReason = ptr(reason)
		if resp.Invoice.InvoiceID != "" {
			attempt.InvoiceID = ptr(resp.Invoice.InvoiceID)
		}
		outcomeErr = pkgerrors.New(pkgerrors.CodeGateway, "stk push was not accepted: "+reason)
	default:
		attempt.InvoiceID = ptr(resp.Invoice.InvoiceID)
		if status, err := enums.ParseCollectionStatus(resp.Invoice.State); err == nil {
			attempt.Status = status
		} else {
			attempt.Status = enums.CollectionStatusPending
		}
	}

	if err := s.attempts.Create(ctx, attempt); err != nil {
		if outcomeErr != nil {
			return nil, outcomeErr
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record payment attempt")
	}
	if outcomeErr != nil {
		if s.logg != nil {
			s.logg.Error(ctx, "stk push failed", outcomeErr)
		}
		return nil, outcomeErr
	}

	s.markBookingPending(ctx, reference)

	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "invoice_id", resp.Invoice.InvoiceID), "stk push initiated")
	}
	return &Result{
		AttemptID: attempt.ID,
		InvoiceID: resp.Invoice.InvoiceID,
		State:     strings.ToUpper(resp.Invoice.State),
		Reference: reference,
		Phone:     phone,
	}, nil
}

func (s *Service) markBookingPending(ctx context.Context, reference string) {
	target, err := s.bookings.FindByReference(ctx, reference)
	if err != nil {
		if s.logg != nil && !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			s.logg.Error(ctx, "resolve booking for collection", err)
		}
		return
	}
	if _, err := s.bookings.UpdateProgress(ctx, nil, target.Kind, target.ID, enums.PaymentStatusPending); err != nil && s.logg != nil {
		s.logg.Error(ctx, "mark booking pending", err)
	}
}

func (s *Service) timeout() time.Duration {
	if s.cfg.Timeout > 0 {
		return s.cfg.Timeout
	}
	return 20 * time.Second
}

func ptr(value string) *string {
	return &value
}
