package wallets

import (
	"context"
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
	"github.com/lotusbook/payments-backend/pkg/pagination"
)

var validate = validator.New()

type gateway interface {
	CreateWallet(ctx context.Context, req intasend.CreateWalletRequest) (*intasend.Wallet, error)
	WalletDetails(ctx context.Context, walletID string) (*intasend.Wallet, error)
}

type walletStore interface {
	FindWallet(ctx context.Context, businessID uuid.UUID) (*models.Wallet, error)
	AttachExternalWallet(ctx context.Context, tx *gorm.DB, wallet models.Wallet) error
	ListEntries(ctx context.Context, businessID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.WalletTransaction, *pagination.Cursor, error)
}

// ProvisionRequest creates the gateway wallet for a business.
type ProvisionRequest struct {
	BusinessID  uuid.UUID `validate:"required"`
	Email       string    `validate:"required,email"`
	Currency    string    `validate:"omitempty,len=3"`
	CanDisburse *bool
}

// ProvisionResult reports the linked gateway wallet.
type ProvisionResult struct {
	Success  bool   `json:"success"`
	WalletID string `json:"wallet_id"`
	Message  string `json:"message"`
	Created  bool   `json:"-"`
}

// BalanceResult combines the in-app ledger figure with the gateway's view when available.
type BalanceResult struct {
	BusinessID       uuid.UUID        `json:"business_id"`
	Balance          decimal.Decimal  `json:"balance"`
	Currency         string           `json:"currency"`
	ExternalWalletID *string          `json:"external_wallet_id,omitempty"`
	GatewayAvailable *decimal.Decimal `json:"gateway_available_balance,omitempty"`
	GatewayCurrency  string           `json:"gateway_currency,omitempty"`
}

// TransactionView is one wallet log entry as returned to callers.
type TransactionView struct {
	ID                  uuid.UUID               `json:"id"`
	Amount              decimal.Decimal         `json:"amount"`
	Kind                enums.TransactionKind   `json:"kind"`
	Status              enums.TransactionStatus `json:"status"`
	Name                string                  `json:"name,omitempty"`
	Description         string                  `json:"description,omitempty"`
	Reference           *string                 `json:"reference,omitempty"`
	TrackingID          *string                 `json:"tracking_id,omitempty"`
	RecipientType       *enums.RecipientType    `json:"recipient_type,omitempty"`
	RecipientIdentifier *string                 `json:"recipient_identifier,omitempty"`
	AttemptedAmount     *decimal.Decimal        `json:"attempted_amount,omitempty"`
	Error               *string                 `json:"error,omitempty"`
	CreatedAt           time.Time               `json:"created_at"`
}

// TransactionPage is a cursor page of wallet history.
type TransactionPage struct {
	Items      []TransactionView `json:"items"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

// ServiceParams wires the wallets service.
type ServiceParams struct {
	Wallets  walletStore
	Gateway  gateway
	Logger   *logger.Logger
	IntaSend config.IntaSendConfig
}

// Service provisions gateway wallets and reports balances and history.
type Service struct {
	wallets walletStore
	gateway gateway
	logg    *logger.Logger
	timeout time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Wallets == nil {
		return nil, errors.New("wallets service requires a wallet repository")
	}
	if params.Gateway == nil {
		return nil, errors.New("wallets service requires a gateway")
	}
	timeout := params.IntaSend.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Service{
		wallets: params.Wallets,
		gateway: params.Gateway,
		logg:    params.Logger,
		timeout: timeout,
	}, nil
}

// Provision creates a WORKING gateway wallet labelled with the business id, unless one is already linked.
func (s *Service) Provision(ctx context.Context, req ProvisionRequest) (*ProvisionResult, error) {
	if err := validate.Struct(req); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid wallet request")
	}
	currency, err := enums.ParseCurrency(req.Currency)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported currency")
	}
	canDisburse := true
	if req.CanDisburse != nil {
		canDisburse = *req.CanDisburse
	}
	if s.logg != nil {
		ctx = s.logg.WithBusinessID(ctx, req.BusinessID.String())
	}

	existing, err := s.wallets.FindWallet(ctx, req.BusinessID)
	if err != nil && !errors.Is(err, ledger.ErrWalletNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load wallet")
	}
	if existing != nil && existing.HasExternalWallet() {
		return &ProvisionResult{Success: true, WalletID: *existing.ExternalWalletID, Message: "Wallet already exists."}, nil
	}

	label := req.BusinessID.String()
	email := strings.TrimSpace(req.Email)
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	created, err := s.gateway.CreateWallet(callCtx, intasend.CreateWalletRequest{
		Currency:    string(currency),
		Label:       label,
		WalletType:  intasend.WalletTypeWorking,
		CanDisburse: canDisburse,
		Email:       email,
	})
	cancel()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "create gateway wallet")
	}
	if created == nil || strings.TrimSpace(created.WalletID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeGateway, "gateway returned no wallet id")
	}

	walletID := strings.TrimSpace(created.WalletID)
	row := models.Wallet{
		BusinessID:       req.BusinessID,
		Balance:          decimal.Zero,
		Currency:         string(currency),
		ExternalWalletID: &walletID,
		Label:            &label,
		Email:            &email,
		CanDisburse:      canDisburse,
		UpdatedAt:        time.Now().UTC(),
	}
	if err := s.wallets.AttachExternalWallet(ctx, nil, row); err != nil {
		if s.logg != nil {
			s.logg.Error(s.logg.WithField(ctx, "wallet_id", walletID), "gateway wallet created but not linked", err)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "link gateway wallet")
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "wallet_id", walletID), "gateway wallet provisioned")
	}
	return &ProvisionResult{Success: true, WalletID: walletID, Message: "Wallet created and linked.", Created: true}, nil
}

// Balance returns the ledger balance, plus the gateway's available balance when the
// wallet is provisioned. A gateway failure only drops the gateway figure.
func (s *Service) Balance(ctx context.Context, businessID uuid.UUID) (*BalanceResult, error) {
	wallet, err := s.wallets.FindWallet(ctx, businessID)
	if errors.Is(err, ledger.ErrWalletNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load wallet")
	}
	result := &BalanceResult{
		BusinessID:       wallet.BusinessID,
		Balance:          wallet.Balance,
		Currency:         wallet.Currency,
		ExternalWalletID: wallet.ExternalWalletID,
	}
	if !wallet.HasExternalWallet() {
		return result, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	details, err := s.gateway.WalletDetails(callCtx, *wallet.ExternalWalletID)
	cancel()
	if err != nil || details == nil {
		if s.logg != nil {
			logCtx := s.logg.WithFields(s.logg.WithBusinessID(ctx, businessID.String()), map[string]any{
				"wallet_id": *wallet.ExternalWalletID,
				"error":     errorText(err),
			})
			s.logg.Warn(logCtx, "gateway balance unavailable")
		}
		return result, nil
	}
	available := details.AvailableBalance
	result.GatewayAvailable = &available
	result.GatewayCurrency = details.Currency
	return result, nil
}

// Transactions returns wallet history newest first.
func (s *Service) Transactions(ctx context.Context, businessID uuid.UUID, params pagination.Params) (*TransactionPage, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	entries, next, err := s.wallets.ListEntries(ctx, businessID, cursor, params.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list wallet transactions")
	}
	page := &TransactionPage{Items: make([]TransactionView, 0, len(entries))}
	for _, entry := range entries {
		page.Items = append(page.Items, TransactionView{
			ID:                  entry.ID,
			Amount:              entry.Amount,
			Kind:                entry.Kind,
			Status:              entry.Status,
			Name:                entry.Name,
			Description:         entry.Description,
			Reference:           entry.Reference,
			TrackingID:          entry.TrackingID,
			RecipientType:       entry.RecipientType,
			RecipientIdentifier: entry.RecipientIdentifier,
			AttemptedAmount:     entry.AttemptedAmount,
			Error:               entry.Error,
			CreatedAt:           entry.CreatedAt,
		})
	}
	if next != nil {
		page.NextCursor = pagination.EncodeCursor(*next)
	}
	return page, nil
}

func errorText(err error) string {
	if err == nil {
		return "empty response"
	}
	return err.Error()
}
