package disbursement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lotusbook/payments-backend/internal/bookings"
	"github.com/lotusbook/payments-backend/internal/ledger"
	"github.com/lotusbook/payments-backend/pkg/config"
	"github.com/lotusbook/payments-backend/pkg/db/models"
	"github.com/lotusbook/payments-backend/pkg/enums"
	pkgerrors "github.com/lotusbook/payments-backend/pkg/errors"
	"github.com/lotusbook/payments-backend/pkg/intasend"
	"github.com/lotusbook/payments-backend/pkg/logger"
	"github.com/lotusbook/payments-backend/pkg/metrics"
	"github.com/lotusbook/payments-backend/pkg/outbox"
	"github.com/lotusbook/payments-backend/pkg/outbox/payloads"
)

// Fixed transfer reasons recorded on the booking.
const (
	ReasonNotMobileMoney     = "not a mobile-money payment"
	ReasonInvalidPrice       = "invalid service price"
	ReasonBusinessNotFound   = "business not found"
	ReasonMissingDestination = "missing destination wallet"
	ReasonNonPositiveNet     = "zero or negative net amount"
	ReasonCreditFailed       = bookings.CreditFailedReason
)

const narrativePrefix = "Disbursement for booking Ref: "

type gateway interface {
	IntraTransfer(ctx context.Context, req intasend.IntraTransferRequest) (*intasend.IntraTransferResponse, error)
}

type walletReader interface {
	FindWallet(ctx context.Context, businessID uuid.UUID) (*models.Wallet, error)
	HasEntry(ctx context.Context, businessID uuid.UUID, kind enums.TransactionKind, reference string) (bool, error)
}

type bookingStore interface {
	FindByReference(ctx context.Context, reference string) (*bookings.Target, error)
	SetTransfer(ctx context.Context, tx *gorm.DB, kind bookings.Kind, id uuid.UUID, update bookings.TransferUpdate) error
}

type balanceGuard interface {
	ApplyBalanceDelta(ctx context.Context, tx *gorm.DB, businessID uuid.UUID, delta decimal.Decimal, entry ledger.Entry) (decimal.Decimal, error)
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Outcome reports what happened to a paid booking's disbursement.
type Outcome struct {
	Status     enums.TransferStatus `json:"status"`
	Reason     string               `json:"reason,omitempty"`
	NetAmount  decimal.Decimal      `json:"net_amount"`
	Balance    decimal.Decimal      `json:"balance"`
	TrackingID string               `json:"tracking_id,omitempty"`
}

// ServiceParams wires the disbursement trigger.
type ServiceParams struct {
	Wallets  walletReader
	Bookings bookingStore
	Guard    balanceGuard
	Gateway  gateway
	DB       txRunner
	Outbox   eventEmitter
	Logger   *logger.Logger
	Metrics  *metrics.ReconciliationMetrics
	Payout   config.PayoutConfig
	IntaSend config.IntaSendConfig
}

// Service credits the business ledger and moves the net amount to the business's gateway wallet.
type Service struct {
	wallets  walletReader
	bookings bookingStore
	guard    balanceGuard
	gateway  gateway
	db       txRunner
	outbox   eventEmitter
	logg     *logger.Logger
	metrics  *metrics.ReconciliationMetrics
	rate     decimal.Decimal
	method   enums.PaymentMethod
	source   string
	timeout  time.Duration
}

// NewService validates params.
func NewService(params ServiceParams) (*Service, error) {
	if params.Wallets == nil || params.Bookings == nil || params.Guard == nil || params.Gateway == nil {
		return nil, errors.New("disbursement requires wallets, bookings, guard and gateway")
	}
	rate := params.Payout.RateDecimal()
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("payout rate %s out of range", rate)
	}
	method := enums.PaymentMethod(strings.TrimSpace(params.Payout.MobileMoneyMethod))
	if method == "" {
		method = enums.PaymentMethodMPesa
	}
	timeout := params.IntaSend.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Service{
		wallets:  params.Wallets,
		bookings: params.Bookings,
		guard:    params.Guard,
		gateway:  params.Gateway,
		db:       params.DB,
		outbox:   params.Outbox,
		logg:     params.Logger,
		metrics:  params.Metrics,
		rate:     rate,
		method:   method,
		source:   strings.TrimSpace(params.IntaSend.SourceWalletID),
		timeout:  timeout,
	}, nil
}

// NetAmount is the business share of amountDue, rounded to cents.
func NetAmount(amountDue, rate decimal.Decimal) decimal.Decimal {
	return amountDue.Mul(rate).Round(2)
}

// Disburse runs after a booking is paid. Business outcomes are recorded on the booking
// and returned; an error means the outcome could not be recorded.
func (s *Service) Disburse(ctx context.Context, target *bookings.Target) (*Outcome, error) {
	if target == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "disbursement target required")
	}
	if s.logg != nil {
		ctx = s.logg.WithBusinessID(ctx, target.BusinessID.String())
		ctx = s.logg.WithReference(ctx, target.ExternalReference)
	}

	if !s.method.Matches(target.PaymentMethod) {
		return s.finish(ctx, target, &Outcome{Status: enums.TransferStatusSkipped, Reason: ReasonNotMobileMoney})
	}
	if !target.AmountDue.IsPositive() {
		return s.finish(ctx, target, &Outcome{Status: enums.TransferStatusSkipped, Reason: ReasonInvalidPrice})
	}

	wallet, err := s.wallets.FindWallet(ctx, target.BusinessID)
	if errors.Is(err, ledger.ErrWalletNotFound) {
		return s.finish(ctx, target, &Outcome{Status: enums.TransferStatusFailed, Reason: ReasonBusinessNotFound})
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load business wallet")
	}
	if !wallet.HasExternalWallet() {
		return s.finish(ctx, target, &Outcome{Status: enums.TransferStatusFailed, Reason: ReasonMissingDestination})
	}

	net := NetAmount(target.AmountDue, s.rate)
	if !net.IsPositive() {
		return s.finish(ctx, target, &Outcome{Status: enums.TransferStatusSkipped, Reason: ReasonNonPositiveNet, NetAmount: net})
	}

	return s.creditAndTransfer(ctx, target, wallet, net)
}

// RetryTransfer re-runs the disbursement of a paid booking whose transfer failed or stalled,
// or whose ledger credit never applied. The ledger is credited only when no deposit was
// logged for the reference.
func (s *Service) RetryTransfer(ctx context.Context, reference string) (*Outcome, error) {
	target, err := s.bookings.FindByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if target.PaymentStatus != enums.PaymentStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "booking is not paid")
	}
	if !retryable(target) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "transfer is not failed or pending").
			WithDetails(map[string]string{"transfer_status": string(target.TransferStatus)})
	}
	if !s.method.Matches(target.PaymentMethod) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, ReasonNotMobileMoney)
	}
	wallet, err := s.wallets.FindWallet(ctx, target.BusinessID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "load business wallet")
	}
	if !wallet.HasExternalWallet() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, ReasonMissingDestination)
	}
	net := NetAmount(target.AmountDue, s.rate)
	if !net.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, ReasonNonPositiveNet)
	}
	if s.logg != nil {
		ctx = s.logg.WithReference(s.logg.WithBusinessID(ctx, target.BusinessID.String()), target.ExternalReference)
	}

	return s.creditAndTransfer(ctx, target, wallet, net)
}

func (s *Service) creditAndTransfer(ctx context.Context, target *bookings.Target, wallet *models.Wallet, net decimal.Decimal) (*Outcome, error) {
	balance, credited, err := s.credit(ctx, target, wallet, net)
	if err != nil {
		return s.creditFailed(ctx, target, net, err)
	}
	outcome := s.transfer(ctx, target, *wallet.ExternalWalletID, net)
	outcome.Balance = balance
	result, err := s.finish(ctx, target, outcome)
	if err != nil {
		return result, err
	}
	if credited {
		s.emitCredited(ctx, target, outcome)
	}
	return result, nil
}

func retryable(target *bookings.Target) bool {
	switch target.TransferStatus {
	case enums.TransferStatusFailed, enums.TransferStatusPending:
		return true
	}
	return target.CreditFailed()
}

// credit applies the net amount once per reference. credited is false when a deposit
// for the reference was already logged.
func (s *Service) credit(ctx context.Context, target *bookings.Target, wallet *models.Wallet, net decimal.Decimal) (decimal.Decimal, bool, error) {
	exists, err := s.wallets.HasEntry(ctx, target.BusinessID, enums.TransactionKindDeposit, target.ExternalReference)
	if err != nil {
		return decimal.Zero, false, err
	}
	if exists {
		return wallet.Balance, false, nil
	}
	balance, err := s.guard.ApplyBalanceDelta(ctx, nil, target.BusinessID, net, ledger.Entry{
		Kind:        enums.TransactionKindDeposit,
		Status:      enums.TransactionStatusCompleted,
		Description: "Booking payment " + target.ExternalReference,
		Reference:   target.ExternalReference,
	})
	if err != nil {
		return decimal.Zero, false, err
	}
	return balance, true, nil
}

// creditFailed records a booking whose ledger credit did not apply. No transfer is attempted
// and the booking stays retryable.
func (s *Service) creditFailed(ctx context.Context, target *bookings.Target, net decimal.Decimal, cause error) (*Outcome, error) {
	if s.logg != nil {
		s.logg.Error(ctx, "ledger credit failed", cause)
	}
	return s.finish(ctx, target, &Outcome{
		Status:    enums.TransferStatusSkipped,
		Reason:    ReasonCreditFailed + ": " + cause.Error(),
		NetAmount: net,
	})
}

func (s *Service) transfer(ctx context.Context, target *bookings.Target, destination string, net decimal.Decimal) *Outcome {
	outcome := &Outcome{NetAmount: net}
	if s.source == "" {
		outcome.Status = enums.TransferStatusFailed
		outcome.Reason = "platform source wallet is not configured"
		s.recordTransferEntry(ctx, target, outcome)
		return outcome
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	resp, err := s.gateway.IntraTransfer(callCtx, intasend.IntraTransferRequest{
		SourceWalletID: s.source,
		WalletID:       destination,
		Amount:         net,
		Narrative:      narrativePrefix + target.ExternalReference,
	})
	cancel()

	if err != nil {
		outcome.Status = enums.TransferStatusFailed
		outcome.Reason = err.Error()
		if s.logg != nil {
			s.logg.Error(ctx, "internal transfer failed", err)
		}
	} else {
		outcome.Status = enums.TransferStatusCompleted
		outcome.TrackingID = resp.TrackingID
	}
	s.recordTransferEntry(ctx, target, outcome)
	return outcome
}

func (s *Service) recordTransferEntry(ctx context.Context, target *bookings.Target, outcome *Outcome) {
	status := enums.TransactionStatusCompleted
	if outcome.Status == enums.TransferStatusFailed {
		status = enums.TransactionStatusFailed
	}
	_, err := s.guard.ApplyBalanceDelta(ctx, nil, target.BusinessID, decimal.Zero, ledger.Entry{
		Kind:            enums.TransactionKindInternalTransfer,
		Status:          status,
		Description:     narrativePrefix + target.ExternalReference,
		Reference:       target.ExternalReference,
		TrackingID:      outcome.TrackingID,
		AttemptedAmount: &outcome.NetAmount,
		Error:           failureText(outcome),
	})
	if err != nil && s.logg != nil {
		s.logg.Error(ctx, "record internal transfer entry", err)
	}
}

func (s *Service) finish(ctx context.Context, target *bookings.Target, outcome *Outcome) (*Outcome, error) {
	update := bookings.TransferUpdate{
		Status:     outcome.Status,
		Reason:     outcome.Reason,
		TrackingID: outcome.TrackingID,
	}
	if err := s.bookings.SetTransfer(ctx, nil, target.Kind, target.ID, update); err != nil {
		return outcome, err
	}
	s.metrics.TransferResult(string(outcome.Status))
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"transfer_status": outcome.Status,
			"transfer_reason": outcome.Reason,
			"tracking_id":     outcome.TrackingID,
			"net_amount":      outcome.NetAmount.StringFixed(2),
		})
		if outcome.Status == enums.TransferStatusFailed {
			s.logg.Warn(logCtx, "disbursement recorded as failed")
		} else {
			s.logg.Info(logCtx, "disbursement recorded")
		}
	}
	return outcome, nil
}

func (s *Service) emitCredited(ctx context.Context, target *bookings.Target, outcome *Outcome) {
	if s.outbox == nil || s.db == nil {
		return
	}
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventWalletCredited,
			AggregateType: enums.AggregateWallet,
			AggregateID:   target.BusinessID,
			Actor:         &outbox.ActorRef{BusinessID: &target.BusinessID, Source: "disbursement"},
			Data: payloads.WalletCreditedEvent{
				BusinessID:        target.BusinessID,
				Amount:            outcome.NetAmount,
				Balance:           outcome.Balance,
				ExternalReference: target.ExternalReference,
				TransferStatus:    string(outcome.Status),
				TrackingID:        outcome.TrackingID,
			},
		})
	})
	if err != nil && s.logg != nil {
		s.logg.Error(ctx, "emit wallet credited event", err)
	}
}

func failureText(outcome *Outcome) string {
	if outcome.Status == enums.TransferStatusFailed {
		return outcome.Reason
	}
	return ""
}
