package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lotusbook/payments-backend/pkg/db/models"
	"github.com/lotusbook/payments-backend/pkg/enums"
	pkgerrors "github.com/lotusbook/payments-backend/pkg/errors"
	"github.com/lotusbook/payments-backend/pkg/logger"
	"github.com/lotusbook/payments-backend/pkg/metrics"
)

const defaultCurrency = "KES"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Entry describes the log line written alongside a balance change.
type Entry struct {
	Kind                enums.TransactionKind
	Status              enums.TransactionStatus
	Name                string
	Description         string
	Reference           string
	TrackingID          string
	RecipientType       enums.RecipientType
	RecipientIdentifier string
	AttemptedAmount     *decimal.Decimal
	Error               string
}

// GuardParams wires the ledger guard.
type GuardParams struct {
	DB         txRunner
	Repository *Repository
	Logger     *logger.Logger
	Metrics    *metrics.ReconciliationMetrics
	Currency   string
	Now        func() time.Time
}

// Guard is the only writer of wallet balances.
type Guard struct {
	db       txRunner
	repo     *Repository
	logg     *logger.Logger
	metrics  *metrics.ReconciliationMetrics
	currency string
	now      func() time.Time
}

// NewGuard validates params and returns a Guard.
func NewGuard(params GuardParams) (*Guard, error) {
	if params.DB == nil {
		return nil, errors.New("ledger guard requires a transaction runner")
	}
	if params.Repository == nil {
		return nil, errors.New("ledger guard requires a wallet repository")
	}
	currency := strings.TrimSpace(params.Currency)
	if currency == "" {
		currency = defaultCurrency
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Guard{
		db:       params.DB,
		repo:     params.Repository,
		logg:     params.Logger,
		metrics:  params.Metrics,
		currency: currency,
		now:      now,
	}, nil
}

// ApplyBalanceDelta locks the wallet, applies delta and appends entry, all in one transaction.
// When tx is nil a transaction is opened. A positive delta creates a missing wallet;
// a debit that would leave the balance negative fails with INSUFFICIENT_BALANCE.
// The new balance is returned.
func (g *Guard) ApplyBalanceDelta(ctx context.Context, tx *gorm.DB, businessID uuid.UUID, delta decimal.Decimal, entry Entry) (decimal.Decimal, error) {
	if tx != nil {
		return g.apply(ctx, tx, businessID, delta, entry)
	}
	var balance decimal.Decimal
	err := g.db.WithTx(ctx, func(tx *gorm.DB) error {
		var applyErr error
		balance, applyErr = g.apply(ctx, tx, businessID, delta, entry)
		return applyErr
	})
	if err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

func (g *Guard) apply(ctx context.Context, tx *gorm.DB, businessID uuid.UUID, delta decimal.Decimal, entry Entry) (decimal.Decimal, error) {
	if businessID == uuid.Nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "business id is required")
	}
	if !entry.Kind.IsValid() {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "invalid transaction kind")
	}
	if !entry.Status.IsValid() {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "invalid transaction status")
	}
	delta = delta.Round(2)

	wallet, err := g.repo.LockWallet(ctx, tx, businessID)
	if errors.Is(err, ErrWalletNotFound) && delta.IsPositive() {
		if err := g.repo.EnsureWallet(ctx, tx, businessID, g.currency); err != nil {
			return decimal.Zero, g.fail(entry, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create wallet"))
		}
		wallet, err = g.repo.LockWallet(ctx, tx, businessID)
	}
	if errors.Is(err, ErrWalletNotFound) {
		return decimal.Zero, g.reject(entry, pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found"))
	}
	if err != nil {
		return decimal.Zero, g.fail(entry, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock wallet"))
	}

	next := wallet.Balance.Add(delta)
	if next.IsNegative() {
		insufficient := pkgerrors.New(pkgerrors.CodeInsufficientBalance, "insufficient balance").
			WithDetails(map[string]string{"available": wallet.Balance.StringFixed(2)})
		if g.logg != nil {
			logCtx := g.logg.WithBusinessID(ctx, businessID.String())
			logCtx = g.logg.WithFields(logCtx, map[string]any{
				"available": wallet.Balance.StringFixed(2),
				"requested": delta.Neg().StringFixed(2),
			})
			g.logg.Warn(logCtx, "ledger debit rejected")
		}
		return decimal.Zero, g.reject(entry, insufficient)
	}

	if !delta.IsZero() {
		if err := g.repo.SetBalance(ctx, tx, businessID, next); err != nil {
			return decimal.Zero, g.fail(entry, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write wallet balance"))
		}
	}

	row := entry.model(businessID, delta, g.now().UTC())
	if err := g.repo.AppendEntry(ctx, tx, row); err != nil {
		return decimal.Zero, g.fail(entry, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "append wallet transaction"))
	}

	g.metrics.LedgerMutation(string(entry.Kind), "applied")
	return next, nil
}

func (g *Guard) reject(entry Entry, err error) error {
	g.metrics.LedgerMutation(string(entry.Kind), "rejected")
	return err
}

func (g *Guard) fail(entry Entry, err error) error {
	g.metrics.LedgerMutation(string(entry.Kind), "error")
	return err
}

func (e Entry) model(businessID uuid.UUID, amount decimal.Decimal, at time.Time) *models.WalletTransaction {
	row := &models.WalletTransaction{
		BusinessID:      businessID,
		Amount:          amount,
		Kind:            e.Kind,
		Status:          e.Status,
		Name:            e.Name,
		Description:     e.Description,
		Reference:       optional(e.Reference),
		TrackingID:      optional(e.TrackingID),
		AttemptedAmount: e.AttemptedAmount,
		Error:           optional(e.Error),
		CreatedAt:       at,
	}
	if e.RecipientType != "" {
		recipientType := e.RecipientType
		row.RecipientType = &recipientType
	}
	row.RecipientIdentifier = optional(e.RecipientIdentifier)
	return row
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
