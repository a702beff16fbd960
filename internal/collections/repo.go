package collections

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/lotusbook/payments-backend/internal/repo"
	"github.com/lotusbook/payments-backend/pkg/db/models"
	"github.com/lotusbook/payments-backend/pkg/enums"
)

var finalAttemptStatuses = []enums.CollectionStatus{
	enums.CollectionStatusComplete,
	enums.CollectionStatusFailed,
	enums.CollectionStatusExpired,
}

// AttemptRepository persists payment_attempts rows.
type AttemptRepository struct {
	base repo.Base
}

// NewAttemptRepository binds the repository to db.
func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{base: repo.NewBase(db)}
}

// Create inserts a new attempt.
func (r *AttemptRepository) Create(ctx context.Context, attempt *models.PaymentAttempt) error {
	return r.base.DB(ctx).Create(attempt).Error
}

// RecordStatus moves the attempts for reference to status, filling the invoice id when known.
// Attempts already complete, failed or expired are left alone. It returns the rows touched.
func (r *AttemptRepository) RecordStatus(ctx context.Context, reference, invoiceID string, status enums.CollectionStatus, failedReason string) (int64, error) {
	values := map[string]any{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}
	if failedReason != "" {
		values["failed_reason"] = failedReason
	}
	query := r.base.DB(ctx).
		Model(&models.PaymentAttempt{}).
		Where("external_reference = ?", reference).
		Where("status NOT IN ?", finalAttemptStatuses)
	if invoiceID != "" {
		values["invoice_id"] = invoiceID
		query = query.Where("(invoice_id IS NULL OR invoice_id = ?)", invoiceID)
	}
	res := query.Updates(values)
	return res.RowsAffected, res.Error
}

// ExpireStale marks attempts still waiting on the handset since before cutoff as expired.
func (r *AttemptRepository) ExpireStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.base.DB(ctx).
		Model(&models.PaymentAttempt{}).
		Where("status IN ?", []enums.CollectionStatus{enums.CollectionStatusInitiated, enums.CollectionStatusPending}).
		Where("created_at < ?", cutoff.UTC()).
		Updates(map[string]any{
			"status":     enums.CollectionStatusExpired,
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

// ListByReference returns attempts for reference, newest first.
func (r *AttemptRepository) ListByReference(ctx context.Context, reference string) ([]models.PaymentAttempt, error) {
	var attempts []models.PaymentAttempt
	err := r.base.DB(ctx).
		Where("external_reference = ?", reference).
		Order("created_at DESC").
		Find(&attempts).Error
	return attempts, err
}
