package bookings

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lotusbook/payments-backend/pkg/db/dbtest"
	"github.com/lotusbook/payments-backend/pkg/db/models"
	dbtypes "github.com/lotusbook/payments-backend/pkg/db/types"
	"github.com/lotusbook/payments-backend/pkg/enums"
	pkgerrors "github.com/lotusbook/payments-backend/pkg/errors"
)

func seedBooking(t *testing.T, repo *Repository, ref string) models.Booking {
	t.Helper()
	booking := models.Booking{
		BusinessID:        uuid.New(),
		CustomerID:        uuid.New(),
		ScheduledAt:       time.Now().Add(24 * time.Hour),
		Status:            enums.BookingStatusPending,
		PaymentMethod:     "M-PESA",
		PaymentStatus:     enums.PaymentStatusPending,
		TransferStatus:    enums.TransferStatusNone,
		ExternalReference: ref,
		AmountDue:         decimal.NewFromInt(1000),
		Currency:          "KES",
	}
	require.NoError(t, repo.base.DB(context.Background()).Create(&booking).Error)
	return booking
}

func TestFindByReferencePrefersBookingsThenGroups(t *testing.T) {
	client := dbtest.Open(t, t.Name())
	repo := NewRepository(client.DB())
	ctx := context.Background()

	single := seedBooking(t, repo, "BOOK123")
	child := seedBooking(t, repo, "CHILD-1")
	group := models.GroupBooking{
		BusinessID:        uuid.New(),
		CustomerID:        uuid.New(),
		ChildBookingIDs:   dbtypes.UUIDArray{child.ID},
		PaymentMethod:     "M-PESA",
		PaymentStatus:     enums.PaymentStatusPending,
		TransferStatus:    enums.TransferStatusNone,
		ExternalReference: "GROUP-9",
		AmountDue:         decimal.NewFromInt(3000),
		Currency:          "KES",
	}
	require.NoError(t, client.DB().Create(&group).Error)

	target, err := repo.FindByReference(ctx, "BOOK123")
	require.NoError(t, err)
	assert.Equal(t, KindSingle, target.Kind)
	assert.Equal(t, single.ID, target.ID)
	assert.Equal(t, enums.AggregateBooking, target.AggregateType())

	target, err = repo.FindByReference(ctx, "GROUP-9")
	require.NoError(t, err)
	assert.True(t, target.IsGroup())
	assert.Equal(t, []uuid.UUID{child.ID}, target.ChildIDs)
	assert.True(t, target.AmountDue.Equal(decimal.NewFromInt(3000)))

	_, err = repo.FindByReference(ctx, single.ID.String())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "primary key must not resolve a reference")

	_, err = repo.FindByReference(ctx, "  ")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestMarkTerminalWritesOnce(t *testing.T) {
	client := dbtest.Open(t, t.Name())
	repo := NewRepository(client.DB())
	ctx := context.Background()
	booking := seedBooking(t, repo, "BOOK123")

	paid := decimal.NewFromInt(1000)
	applied, err := repo.MarkTerminal(ctx, nil, KindSingle, booking.ID, TerminalUpdate{
		Status:        enums.PaymentStatusPaid,
		InvoiceID:     "INV1",
		AmountPaid:    &paid,
		BookingStatus: enums.BookingStatusConfirmed,
	})
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = repo.MarkTerminal(ctx, nil, KindSingle, booking.ID, TerminalUpdate{
		Status:       enums.PaymentStatusFailed,
		FailedReason: "late failure",
	})
	require.NoError(t, err)
	assert.False(t, applied, "terminal status must be immutable")

	stored, err := repo.FindBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPaid, stored.PaymentStatus)
	assert.Equal(t, enums.BookingStatusConfirmed, stored.Status)
	require.NotNil(t, stored.ExternalInvoiceID)
	assert.Equal(t, "INV1", *stored.ExternalInvoiceID)
	require.NotNil(t, stored.AmountPaid)
	assert.True(t, stored.AmountPaid.Equal(paid))
	assert.NotNil(t, stored.PaidAt)
	assert.Nil(t, stored.FailedReason)

	_, err = repo.MarkTerminal(ctx, nil, KindSingle, booking.ID, TerminalUpdate{Status: enums.PaymentStatusProcessing})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestUpdateProgressSkipsSameAndTerminal(t *testing.T) {
	client := dbtest.Open(t, t.Name())
	repo := NewRepository(client.DB())
	ctx := context.Background()
	booking := seedBooking(t, repo, "BOOK123")

	applied, err := repo.UpdateProgress(ctx, nil, KindSingle, booking.ID, enums.PaymentStatusPending)
	require.NoError(t, err)
	assert.False(t, applied, "already pending")

	applied, err = repo.UpdateProgress(ctx, nil, KindSingle, booking.ID, enums.PaymentStatusProcessing)
	require.NoError(t, err)
	assert.True(t, applied)

	_, err = repo.MarkTerminal(ctx, nil, KindSingle, booking.ID, TerminalUpdate{Status: enums.PaymentStatusFailed})
	require.NoError(t, err)

	applied, err = repo.UpdateProgress(ctx, nil, KindSingle, booking.ID, enums.PaymentStatusPending)
	require.NoError(t, err)
	assert.False(t, applied, "terminal rows never regress")
}

func TestSetTransferAndGaps(t *testing.T) {
	client := dbtest.Open(t, t.Name())
	repo := NewRepository(client.DB())
	ctx := context.Background()

	failed := seedBooking(t, repo, "FAILED-1")
	pending := seedBooking(t, repo, "PENDING-1")
	done := seedBooking(t, repo, "DONE-1")
	uncredited := seedBooking(t, repo, "UNCREDITED-1")
	card := seedBooking(t, repo, "CARD-1")
	for _, b := range []models.Booking{failed, pending, done, uncredited, card} {
		_, err := repo.MarkTerminal(ctx, nil, KindSingle, b.ID, TerminalUpdate{Status: enums.PaymentStatusPaid})
		require.NoError(t, err)
	}

	require.NoError(t, repo.SetTransfer(ctx, nil, KindSingle, failed.ID, TransferUpdate{
		Status: enums.TransferStatusFailed,
		Reason: "gateway timeout",
	}))
	require.NoError(t, repo.SetTransfer(ctx, nil, KindSingle, pending.ID, TransferUpdate{Status: enums.TransferStatusPending}))
	require.NoError(t, repo.SetTransfer(ctx, nil, KindSingle, done.ID, TransferUpdate{
		Status:     enums.TransferStatusCompleted,
		TrackingID: "TR-1",
	}))

	require.NoError(t, repo.SetTransfer(ctx, nil, KindSingle, uncredited.ID, TransferUpdate{
		Status: enums.TransferStatusSkipped,
		Reason: CreditFailedReason + ": db blip",
	}))
	require.NoError(t, repo.SetTransfer(ctx, nil, KindSingle, card.ID, TransferUpdate{
		Status: enums.TransferStatusSkipped,
		Reason: "not a mobile-money payment",
	}))

	err := repo.SetTransfer(ctx, nil, KindSingle, uuid.New(), TransferUpdate{Status: enums.TransferStatusFailed})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	gaps, err := repo.ListTransferGaps(ctx, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, gaps, 2, "fresh pending transfers are not gaps yet")
	byRef := map[string]TransferGap{}
	for _, gap := range gaps {
		byRef[gap.ExternalReference] = gap
	}
	require.Contains(t, byRef, "FAILED-1")
	require.NotNil(t, byRef["FAILED-1"].TransferReason)
	assert.Equal(t, "gateway timeout", *byRef["FAILED-1"].TransferReason)
	require.Contains(t, byRef, "UNCREDITED-1")
	assert.Equal(t, enums.TransferStatusSkipped, byRef["UNCREDITED-1"].TransferStatus)
	assert.NotContains(t, byRef, "CARD-1")

	counts, err := repo.CountTransferGaps(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[enums.TransferStatusFailed])
	assert.Equal(t, int64(1), counts[enums.TransferStatusPending])
	assert.Equal(t, int64(1), counts[enums.TransferStatusSkipped])

	target, err := repo.FindByReference(ctx, "UNCREDITED-1")
	require.NoError(t, err)
	assert.True(t, target.CreditFailed())
	target, err = repo.FindByReference(ctx, "CARD-1")
	require.NoError(t, err)
	assert.False(t, target.CreditFailed())

	stored, err := repo.FindBooking(ctx, done.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.TransferTrackingID)
	assert.Equal(t, "TR-1", *stored.TransferTrackingID)
}

func TestMarkTerminalWritesPendingTransferAtomically(t *testing.T) {
	client := dbtest.Open(t, t.Name())
	repo := NewRepository(client.DB())
	ctx := context.Background()
	booking := seedBooking(t, repo, "BOOK-PT")

	applied, err := repo.MarkTerminal(ctx, nil, KindSingle, booking.ID, TerminalUpdate{
		Status:         enums.PaymentStatusPaid,
		TransferStatus: enums.TransferStatusPending,
		At:             time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)
	require.True(t, applied)

	stored, err := repo.FindBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPaid, stored.PaymentStatus)
	assert.Equal(t, enums.TransferStatusPending, stored.TransferStatus)

	gaps, err := repo.ListTransferGaps(ctx, time.Now().Add(-time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, gaps, 1, "a paid booking left pending by a crashed disbursement is a gap")
	assert.Equal(t, "BOOK-PT", gaps[0].ExternalReference)

	other := seedBooking(t, repo, "BOOK-BAD")
	_, err = repo.MarkTerminal(ctx, nil, KindSingle, other.ID, TerminalUpdate{
		Status:         enums.PaymentStatusPaid,
		TransferStatus: enums.TransferStatus("bogus"),
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
