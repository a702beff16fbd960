package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lotusbook/payments-backend/internal/repo"
	"github.com/lotusbook/payments-backend/pkg/db/models"
	"github.com/lotusbook/payments-backend/pkg/enums"
	"github.com/lotusbook/payments-backend/pkg/pagination"
)

// ErrWalletNotFound is returned when no wallet row exists for the business.
var ErrWalletNotFound = errors.New("wallet not found")

// Repository persists wallets and their transaction log.
type Repository struct {
	base repo.Base
}

// NewRepository returns a wallet repository bound to the provided database.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(db)}
}

// FindWallet reads a wallet without locking.
func (r *Repository) FindWallet(ctx context.Context, businessID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.base.DB(ctx).Where("business_id = ?", businessID).Take(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// LockWallet reads the wallet row FOR UPDATE inside tx.
func (r *Repository) LockWallet(ctx context.Context, tx *gorm.DB, businessID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.base.Conn(ctx, tx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ?", businessID).
		Take(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// EnsureWallet inserts an empty wallet unless one already exists.
func (r *Repository) EnsureWallet(ctx context.Context, tx *gorm.DB, businessID uuid.UUID, currency string) error {
	wallet := models.Wallet{
		BusinessID: businessID,
		Balance:    decimal.Zero,
		Currency:   currency,
	}
	return r.base.Conn(ctx, tx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "business_id"}}, DoNothing: true}).
		Create(&wallet).Error
}

// SetBalance overwrites the balance column. Only the guard calls this.
func (r *Repository) SetBalance(ctx context.Context, tx *gorm.DB, businessID uuid.UUID, balance decimal.Decimal) error {
	return r.base.Conn(ctx, tx).
		Model(&models.Wallet{}).
		Where("business_id = ?", businessID).
		Updates(map[string]any{
			"balance":    balance,
			"updated_at": time.Now().UTC(),
		}).Error
}

// AttachExternalWallet records the gateway wallet id and its provisioning details.
func (r *Repository) AttachExternalWallet(ctx context.Context, tx *gorm.DB, wallet models.Wallet) error {
	return r.base.Conn(ctx, tx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "business_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"external_wallet_id", "label", "email", "can_disburse", "currency", "updated_at"}),
		}).
		Create(&wallet).Error
}

// AppendEntry adds a log entry.
func (r *Repository) AppendEntry(ctx context.Context, tx *gorm.DB, entry *models.WalletTransaction) error {
	return r.base.Conn(ctx, tx).Create(entry).Error
}

// UpdateEntryStatus settles a pending entry. Amount and kind never change.
func (r *Repository) UpdateEntryStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status enums.TransactionStatus, trackingID string) (bool, error) {
	values := map[string]any{"status": status}
	if trackingID != "" {
		values["tracking_id"] = trackingID
	}
	res := r.base.Conn(ctx, tx).
		Model(&models.WalletTransaction{}).
		Where("id = ?", id).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListEntries pages through a wallet's log, newest first.
func (r *Repository) ListEntries(ctx context.Context, businessID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.WalletTransaction, *pagination.Cursor, error) {
	query := r.base.DB(ctx).
		Model(&models.WalletTransaction{}).
		Where("business_id = ?", businessID)
	if cursor != nil {
		at := cursor.CreatedAt.UTC()
		query = query.Where("(created_at < ? OR (created_at = ? AND id < ?))", at, at, cursor.ID)
	}

	var entries []models.WalletTransaction
	if err := query.Order("created_at DESC, id DESC").Limit(pagination.LimitWithBuffer(limit)).Find(&entries).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Page(entries, limit, func(e models.WalletTransaction) pagination.Cursor {
		return pagination.Cursor{CreatedAt: e.CreatedAt, ID: e.ID}
	})
	return page, next, nil
}

// CountEntries returns how many entries exist for a business, optionally filtered by kind.
func (r *Repository) CountEntries(ctx context.Context, businessID uuid.UUID, kind enums.TransactionKind) (int64, error) {
	query := r.base.DB(ctx).Model(&models.WalletTransaction{}).Where("business_id = ?", businessID)
	if kind != "" {
		query = query.Where("kind = ?", kind)
	}
	var total int64
	err := query.Count(&total).Error
	return total, err
}

// HasEntry reports whether a completed entry of kind was logged for reference.
func (r *Repository) HasEntry(ctx context.Context, businessID uuid.UUID, kind enums.TransactionKind, reference string) (bool, error) {
	var total int64
	err := r.base.DB(ctx).
		Model(&models.WalletTransaction{}).
		Where("business_id = ? AND kind = ? AND reference = ? AND status = ?", businessID, kind, reference, enums.TransactionStatusCompleted).
		Count(&total).Error
	return total > 0, err
}
