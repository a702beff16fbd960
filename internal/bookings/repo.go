package bookings

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lotusbook/payments-backend/internal/repo"
	"github.com/lotusbook/payments-backend/pkg/db/models"
	"github.com/lotusbook/payments-backend/pkg/enums"
	pkgerrors "github.com/lotusbook/payments-backend/pkg/errors"
)

var terminalStatuses = []string{
	string(enums.PaymentStatusPaid),
	string(enums.PaymentStatusFailed),
}

// Repository reads and conditionally updates bookings and group bookings.
type Repository struct {
	base repo.Base
}

// NewRepository binds the repository to db.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(db)}
}

// FindByReference resolves an external reference against bookings, then group bookings.
func (r *Repository) FindByReference(ctx context.Context, reference string) (*Target, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference is required")
	}

	var booking models.Booking
	err := r.base.DB(ctx).Where("external_reference = ?", reference).Take(&booking).Error
	if err == nil {
		return targetFromBooking(booking), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup booking by reference")
	}

	var group models.GroupBooking
	err = r.base.DB(ctx).Where("external_reference = ?", reference).Take(&group).Error
	if err == nil {
		return targetFromGroup(group), nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup group booking by reference")
}

// FindBooking loads a single booking by id.
func (r *Repository) FindBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	if err := r.base.DB(ctx).Where("id = ?", id).Take(&booking).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load booking")
	}
	return &booking, nil
}

// MarkTerminal writes paid or failed only while the row is still non-terminal.
// It returns false when another delivery got there first.
func (r *Repository) MarkTerminal(ctx context.Context, tx *gorm.DB, kind Kind, id uuid.UUID, update TerminalUpdate) (bool, error) {
	if !update.Status.IsTerminal() {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "terminal update requires paid or failed")
	}
	at := update.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	values := map[string]any{
		"payment_status": update.Status,
		"updated_at":     at,
	}
	if update.InvoiceID != "" {
		values["external_invoice_id"] = update.InvoiceID
	}
	switch update.Status {
	case enums.PaymentStatusPaid:
		values["paid_at"] = at
		if update.AmountPaid != nil {
			values["amount_paid"] = *update.AmountPaid
		}
	case enums.PaymentStatusFailed:
		if update.FailedReason != "" {
			values["failed_reason"] = update.FailedReason
		}
		if update.FailedCode != "" {
			values["failed_code"] = update.FailedCode
		}
	}
	if update.BookingStatus != "" {
		values["status"] = update.BookingStatus
	}
	if update.TransferStatus != "" {
		if !update.TransferStatus.IsValid() {
			return false, pkgerrors.New(pkgerrors.CodeValidation, "invalid transfer status")
		}
		values["transfer_status"] = update.TransferStatus
		values["transfer_reason"] = nil
	}

	res := r.base.Conn(ctx, tx).
		Table(kind.table()).
		Where("id = ? AND payment_status NOT IN ?", id, terminalStatuses).
		Updates(values)
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "write terminal payment status")
	}
	return res.RowsAffected == 1, nil
}

// UpdateProgress moves a non-terminal booking to pending or processing.
// It returns false when the row is terminal or already in that status.
func (r *Repository) UpdateProgress(ctx context.Context, tx *gorm.DB, kind Kind, id uuid.UUID, status enums.PaymentStatus) (bool, error) {
	if status != enums.PaymentStatusPending && status != enums.PaymentStatusProcessing {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "progress update requires pending or processing")
	}
	res := r.base.Conn(ctx, tx).
		Table(kind.table()).
		Where("id = ? AND payment_status NOT IN ? AND payment_status <> ?", id, terminalStatuses, status).
		Updates(map[string]any{
			"payment_status": status,
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "write payment progress")
	}
	return res.RowsAffected == 1, nil
}

// SetTransfer records the disbursement state of a paid booking.
func (r *Repository) SetTransfer(ctx context.Context, tx *gorm.DB, kind Kind, id uuid.UUID, update TransferUpdate) error {
	if !update.Status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid transfer status")
	}
	values := map[string]any{
		"transfer_status": update.Status,
		"updated_at":      time.Now().UTC(),
	}
	if update.Reason != "" {
		values["transfer_reason"] = update.Reason
	} else {
		values["transfer_reason"] = nil
	}
	if update.TrackingID != "" {
		values["transfer_tracking_id"] = update.TrackingID
	}
	res := r.base.Conn(ctx, tx).Table(kind.table()).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "write transfer status")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
	}
	return nil
}

// ListTransferGaps returns paid bookings whose transfer failed, whose ledger credit failed,
// or whose transfer has been pending since before cutoff.
func (r *Repository) ListTransferGaps(ctx context.Context, cutoff time.Time, limit int) ([]TransferGap, error) {
	if limit <= 0 {
		limit = 100
	}
	gaps := make([]TransferGap, 0)
	for _, kind := range []Kind{KindSingle, KindGroup} {
		var rows []struct {
			ID                uuid.UUID
			BusinessID        uuid.UUID
			ExternalReference string
			TransferStatus    enums.TransferStatus
			TransferReason    *string
			AmountDue         decimal.Decimal
			UpdatedAt         time.Time
		}
		err := r.gapQuery(ctx, kind, cutoff).
			Select("id, business_id, external_reference, transfer_status, transfer_reason, amount_due, updated_at").
			Order("updated_at ASC").
			Limit(limit).
			Scan(&rows).Error
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list transfer gaps")
		}
		for _, row := range rows {
			gap := TransferGap{
				Kind:              kind,
				ID:                row.ID,
				BusinessID:        row.BusinessID,
				ExternalReference: row.ExternalReference,
				TransferStatus:    row.TransferStatus,
				TransferReason:    row.TransferReason,
				AmountDue:         row.AmountDue,
				UpdatedAt:         row.UpdatedAt,
			}
			gaps = append(gaps, gap)
		}
	}
	if len(gaps) > limit {
		gaps = gaps[:limit]
	}
	return gaps, nil
}

// CountTransferGaps counts gaps per transfer status across both tables.
func (r *Repository) CountTransferGaps(ctx context.Context, cutoff time.Time) (map[enums.TransferStatus]int64, error) {
	counts := map[enums.TransferStatus]int64{
		enums.TransferStatusFailed:  0,
		enums.TransferStatusPending: 0,
		enums.TransferStatusSkipped: 0,
	}
	for _, kind := range []Kind{KindSingle, KindGroup} {
		var rows []struct {
			TransferStatus enums.TransferStatus
			Total          int64
		}
		err := r.gapQuery(ctx, kind, cutoff).
			Select("transfer_status, COUNT(*) AS total").
			Group("transfer_status").
			Scan(&rows).Error
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count transfer gaps")
		}
		for _, row := range rows {
			counts[row.TransferStatus] += row.Total
		}
	}
	return counts, nil
}

func (r *Repository) gapQuery(ctx context.Context, kind Kind, cutoff time.Time) *gorm.DB {
	return r.base.DB(ctx).
		Table(kind.table()).
		Where("payment_status = ?", enums.PaymentStatusPaid).
		Where("(transfer_status = ? OR (transfer_status = ? AND updated_at < ?) OR (transfer_status = ? AND transfer_reason LIKE ?))",
			enums.TransferStatusFailed,
			enums.TransferStatusPending, cutoff.UTC(),
			enums.TransferStatusSkipped, CreditFailedReason+"%")
}
