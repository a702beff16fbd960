package payouts

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

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

const requiresApprovalNo = "NO"

var validate = validator.New()

// errNotDebited rolls back the payout transaction when the gateway did not take the money.
var errNotDebited = errors.New("payout not debited")

type gateway interface {
	InitiatePayout(ctx context.Context, req intasend.PayoutRequest) (*intasend.PayoutResponse, error)
	ApprovePayout(ctx context.Context, initiated *intasend.PayoutResponse) (*intasend.PayoutResponse, error)
}

type walletLocker interface {
	LockWallet(ctx context.Context, tx *gorm.DB, businessID uuid.UUID) (*models.Wallet, error)
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

// Request asks for money to leave a business wallet.
type Request struct {
	BusinessID    uuid.UUID `validate:"required"`
	Amount        decimal.Decimal
	RecipientType string `validate:"required"`
	Recipient     string `validate:"required,max=32"`
	AccountNumber string `validate:"omitempty,max=64"`
	Name          string `validate:"required,max=120"`
	Narrative     string `validate:"required,max=200"`
}

// Result is the outcome of a payout. Gateway rejections are reported with Success false.
type Result struct {
	Success         bool
	FinalStatus     enums.PayoutStatus
	TrackingID      string
	Message         string
	SourceWalletID  string
	Balance         decimal.Decimal
	GatewayResponse *intasend.PayoutResponse
}

type resultDetails struct {
	Status          enums.PayoutStatus       `json:"status"`
	TrackingID      *string                  `json:"tracking_id"`
	GatewayResponse *intasend.PayoutResponse `json:"intasend_response"`
	SourceWalletID  string                   `json:"source_wallet_id_used"`
}

func (r Result) MarshalJSON() ([]byte, error) {
	var tracking *string
	if r.TrackingID != "" {
		tracking = &r.TrackingID
	}
	return json.Marshal(struct {
		Success bool          `json:"success"`
		Message string        `json:"message"`
		Details resultDetails `json:"details"`
	}{
		Success: r.Success,
		Message: r.Message,
		Details: resultDetails{
			Status:          r.FinalStatus,
			TrackingID:      tracking,
			GatewayResponse: r.GatewayResponse,
			SourceWalletID:  r.SourceWalletID,
		},
	})
}

// ServiceParams wires the payout state machine.
type ServiceParams struct {
	DB       txRunner
	Wallets  walletLocker
	Guard    balanceGuard
	Gateway  gateway
	Outbox   eventEmitter
	Logger   *logger.Logger
	Metrics  *metrics.ReconciliationMetrics
	Payout   config.PayoutConfig
	IntaSend config.IntaSendConfig
}

// Service moves money from a business wallet to an M-Pesa recipient.
type Service struct {
	db       txRunner
	wallets  walletLocker
	guard    balanceGuard
	gateway  gateway
	outbox   eventEmitter
	logg     *logger.Logger
	metrics  *metrics.ReconciliationMetrics
	currency string
	timeout  time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, errors.New("payouts require a transaction runner")
	}
	if params.Wallets == nil || params.Guard == nil {
		return nil, errors.New("payouts require a wallet repository and ledger guard")
	}
	if params.Gateway == nil {
		return nil, errors.New("payouts require a gateway")
	}
	currency := strings.TrimSpace(params.Payout.Currency)
	if currency == "" {
		currency = string(enums.CurrencyKES)
	}
	timeout := params.IntaSend.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Service{
		db:       params.DB,
		wallets:  params.Wallets,
		guard:    params.Guard,
		gateway:  params.Gateway,
		outbox:   params.Outbox,
		logg:     params.Logger,
		metrics:  params.Metrics,
		currency: currency,
		timeout:  timeout,
	}, nil
}

// Initiate locks the wallet, asks the gateway to pay out, approves once when the gateway
// asks for it, and debits the wallet only when the gateway accepted the payout.
func (s *Service) Initiate(ctx context.Context, req Request) (*Result, error) {
	if err := validate.Struct(req); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payout request")
	}
	amount := req.Amount.Round(2)
	if !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than zero")
	}
	recipient, err := ResolveRecipient(req.RecipientType, req.Recipient, req.AccountNumber)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	narrative := strings.TrimSpace(req.Narrative)

	if s.logg != nil {
		ctx = s.logg.WithFields(s.logg.WithBusinessID(ctx, req.BusinessID.String()), map[string]any{
			"recipient_type": recipient.Type,
			"amount":         amount.StringFixed(2),
		})
	}

	result := &Result{}
	entry := ledger.Entry{
		Kind:                enums.TransactionKindPayout,
		Name:                "Payout to " + name,
		Description:         narrative,
		RecipientType:       recipient.Type,
		RecipientIdentifier: recipient.Account,
	}

	accepted := false
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		wallet, err := s.wallets.LockWallet(ctx, tx, req.BusinessID)
		if errors.Is(err, ledger.ErrWalletNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock wallet")
		}
		if !wallet.HasExternalWallet() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "business wallet is not provisioned")
		}
		if wallet.Balance.LessThan(amount) {
			return pkgerrors.New(pkgerrors.CodeInsufficientBalance, "insufficient balance").
				WithDetails(map[string]string{"available": wallet.Balance.StringFixed(2)})
		}
		result.SourceWalletID = *wallet.ExternalWalletID

		initiated, err := s.initiate(ctx, intasend.PayoutRequest{
			Provider:         recipient.Provider,
			Currency:         s.currency,
			Transactions:     []intasend.PayoutTransaction{recipient.Transaction(name, narrative, amount)},
			WalletID:         result.SourceWalletID,
			RequiresApproval: requiresApprovalNo,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeGateway, err, "payout initiation failed")
		}
		result.TrackingID = initiated.TrackingID
		s.resolve(ctx, initiated, result)

		entry.TrackingID = result.TrackingID
		entry.Status = result.FinalStatus.TransactionStatus()
		if !result.FinalStatus.Debited() {
			return errNotDebited
		}

		accepted = true
		balance, err := s.guard.ApplyBalanceDelta(ctx, tx, req.BusinessID, amount.Neg(), entry)
		if err != nil {
			return err
		}
		result.Balance = balance
		result.Success = true
		return nil
	})

	if errors.Is(err, errNotDebited) {
		s.recordAudit(ctx, req.BusinessID, amount, entry, result)
		s.metrics.PayoutResult(string(result.FinalStatus))
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "payout_status", result.FinalStatus), "payout not accepted by gateway")
		}
		return result, nil
	}
	if err != nil && accepted {
		return nil, s.debitFailed(ctx, req.BusinessID, amount, entry, result, err)
	}
	if err != nil {
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "payout transaction failed")
		}
		s.metrics.PayoutResult(metricOutcome(err))
		if s.logg != nil {
			s.logg.Error(s.logg.WithField(ctx, "tracking_id", result.TrackingID), "payout failed", err)
		}
		return nil, err
	}

	s.emitSubmitted(ctx, req.BusinessID, amount, recipient, result)
	s.metrics.PayoutResult(string(result.FinalStatus))
	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"tracking_id":   result.TrackingID,
			"payout_status": result.FinalStatus,
		}), "payout debited")
	}
	return result, nil
}

// debitFailed handles a payout the gateway accepted but the ledger could not debit.
// The money has left the source wallet, so a failed audit entry carrying the tracking id
// is written outside the rolled back transaction.
func (s *Service) debitFailed(ctx context.Context, businessID uuid.UUID, amount decimal.Decimal, entry ledger.Entry, result *Result, cause error) error {
	result.Success = false
	result.Message = "ledger debit failed: " + describe(cause)
	entry.Status = enums.TransactionStatusFailed
	s.recordAudit(ctx, businessID, amount, entry, result)

	err := pkgerrors.Wrap(pkgerrors.CodeInternal, cause, "payout accepted but ledger debit failed").
		WithDetails(map[string]string{"tracking_id": result.TrackingID})
	s.metrics.PayoutResult(metricOutcome(err))
	if s.logg != nil {
		s.logg.Error(s.logg.WithFields(ctx, map[string]any{
			"tracking_id":   result.TrackingID,
			"payout_status": result.FinalStatus,
		}), "payout accepted but not debited", err)
	}
	return err
}

func (s *Service) initiate(ctx context.Context, req intasend.PayoutRequest) (*intasend.PayoutResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	resp, err := s.gateway.InitiatePayout(callCtx, req)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, errors.New("empty payout response")
	}
	return resp, nil
}

// resolve runs the status machine over the initiate response, approving at most once.
func (s *Service) resolve(ctx context.Context, initiated *intasend.PayoutResponse, result *Result) {
	switch EvaluateInitial(initiated.Status) {
	case DecisionDebit:
		result.GatewayResponse = initiated
		result.FinalStatus = SettledStatus(initiated.Status)
		result.Message = messageOr(initiated.Message, "Payout initiated, awaiting final confirmation.")
	case DecisionApprove:
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		approved, err := s.gateway.ApprovePayout(callCtx, initiated)
		cancel()
		if err != nil {
			result.FinalStatus = enums.PayoutStatusApprovalError
			result.Message = messageOr(err.Error(), "Error during payout approval.")
			return
		}
		if approved == nil {
			result.FinalStatus = enums.PayoutStatusApprovalFailed
			result.Message = "Auto-approval failed."
			return
		}
		result.GatewayResponse = approved
		if approved.TrackingID != "" {
			result.TrackingID = approved.TrackingID
		}
		if EvaluateApproval(approved.Status) == DecisionDebit {
			result.FinalStatus = SettledStatus(approved.Status)
			result.Message = messageOr(approved.Message, "Payout approved, awaiting final confirmation.")
			return
		}
		result.FinalStatus = enums.PayoutStatusApprovalFailed
		result.Message = messageOr(approved.Message, "Auto-approval failed.")
	default:
		result.GatewayResponse = initiated
		result.FinalStatus = enums.PayoutStatusFailed
		reason := messageOr(initiated.Message, "unexpected payout status "+strings.TrimSpace(initiated.Status))
		result.Message = "Payment gateway failed: " + reason
	}
}

// recordAudit logs a payout the gateway refused, without moving the balance.
func (s *Service) recordAudit(ctx context.Context, businessID uuid.UUID, amount decimal.Decimal, entry ledger.Entry, result *Result) {
	attempted := amount.Neg()
	entry.AttemptedAmount = &attempted
	entry.Error = result.Message
	balance, err := s.guard.ApplyBalanceDelta(ctx, nil, businessID, decimal.Zero, entry)
	if err != nil {
		if s.logg != nil {
			s.logg.Error(ctx, "record payout audit entry", err)
		}
		return
	}
	result.Balance = balance
}

// emitSubmitted publishes payout.submitted after the debit committed. A failure is logged
// and never undoes a debit the gateway already settled.
func (s *Service) emitSubmitted(ctx context.Context, businessID uuid.UUID, amount decimal.Decimal, recipient Recipient, result *Result) {
	if s.outbox == nil {
		return
	}
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPayoutSubmitted,
			AggregateType: enums.AggregateWallet,
			AggregateID:   businessID,
			Actor:         &outbox.ActorRef{BusinessID: &businessID, Source: "payouts"},
			Data: payloads.PayoutSubmittedEvent{
				BusinessID:    businessID,
				Amount:        amount,
				Balance:       result.Balance,
				Status:        string(result.FinalStatus),
				TrackingID:    result.TrackingID,
				RecipientType: string(recipient.Type),
			},
		})
	})
	if err != nil && s.logg != nil {
		s.logg.Error(s.logg.WithField(ctx, "tracking_id", result.TrackingID), "emit payout submitted event", err)
	}
}

func metricOutcome(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		return strings.ToLower(string(typed.Code()))
	}
	return "error"
}

// describe keeps the cause text that a typed error hides behind its message.
func describe(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		if cause := typed.Unwrap(); cause != nil {
			return typed.Message() + ": " + cause.Error()
		}
		return typed.Message()
	}
	return err.Error()
}

func messageOr(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}
