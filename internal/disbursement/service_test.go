package disbursement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/lotusbook/payments-backend/internal/bookings"
	"github.com/lotusbook/payments-backend/internal/ledger"
	"github.com/lotusbook/payments-backend/pkg/config"
	"github.com/lotusbook/payments-backend/pkg/db"
	"github.com/lotusbook/payments-backend/pkg/db/dbtest"
	"github.com/lotusbook/payments-backend/pkg/db/models"
	"github.com/lotusbook/payments-backend/pkg/enums"
	pkgerrors "github.com/lotusbook/payments-backend/pkg/errors"
	"github.com/lotusbook/payments-backend/pkg/intasend"
	"github.com/lotusbook/payments-backend/pkg/outbox"
)

type fakeGateway struct {
	calls    []intasend.IntraTransferRequest
	tracking string
	err      error
}

func (f *fakeGateway) IntraTransfer(ctx context.Context, req intasend.IntraTransferRequest) (*intasend.IntraTransferResponse, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	return &intasend.IntraTransferResponse{TrackingID: f.tracking}, nil
}

type fixture struct {
	client   *db.Client
	svc      *Service
	gateway  *fakeGateway
	bookings *bookings.Repository
	wallets  *ledger.Repository
}

// flakyGuard fails the first failCredits positive deltas, then passes through.
type flakyGuard struct {
	next        balanceGuard
	failCredits int
	err         error
}

func (g *flakyGuard) ApplyBalanceDelta(ctx context.Context, tx *gorm.DB, businessID uuid.UUID, delta decimal.Decimal, entry ledger.Entry) (decimal.Decimal, error) {
	if delta.IsPositive() && g.failCredits > 0 {
		g.failCredits--
		return decimal.Zero, g.err
	}
	return g.next.ApplyBalanceDelta(ctx, tx, businessID, delta, entry)
}

func newFixture(t *testing.T) fixture {
	return newFixtureWith(t, nil)
}

func newFixtureWith(t *testing.T, override func(*ServiceParams)) fixture {
	t.Helper()
	client := dbtest.Open(t, t.Name())
	walletRepo := ledger.NewRepository(client.DB())
	guard, err := ledger.NewGuard(ledger.GuardParams{DB: client, Repository: walletRepo})
	require.NoError(t, err)
	bookingRepo := bookings.NewRepository(client.DB())
	gw := &fakeGateway{tracking: "TR-1"}
	params := ServiceParams{
		Wallets:  walletRepo,
		Bookings: bookingRepo,
		Guard:    guard,
		Gateway:  gw,
		DB:       client,
		Outbox:   outbox.NewService(outbox.NewRepository(client.DB()), nil),
		Payout:   config.PayoutConfig{Rate: "0.92", MobileMoneyMethod: "M-PESA"},
		IntaSend: config.IntaSendConfig{SourceWalletID: "PLATFORM", Timeout: time.Second},
	}
	if override != nil {
		override(&params)
	}
	svc, err := NewService(params)
	require.NoError(t, err)
	return fixture{client: client, svc: svc, gateway: gw, bookings: bookingRepo, wallets: walletRepo}
}

func (f fixture) seedWallet(t *testing.T, businessID uuid.UUID, external string) {
	t.Helper()
	wallet := models.Wallet{BusinessID: businessID, Balance: decimal.Zero, Currency: "KES"}
	if external != "" {
		wallet.ExternalWalletID = &external
	}
	require.NoError(t, f.client.DB().Create(&wallet).Error)
}

func (f fixture) seedPaidBooking(t *testing.T, businessID uuid.UUID, ref, method string, amount decimal.Decimal) *bookings.Target {
	t.Helper()
	booking := models.Booking{
		BusinessID:        businessID,
		CustomerID:        uuid.New(),
		ScheduledAt:       time.Now(),
		Status:            enums.BookingStatusConfirmed,
		PaymentMethod:     method,
		PaymentStatus:     enums.PaymentStatusPaid,
		TransferStatus:    enums.TransferStatusNone,
		ExternalReference: ref,
		AmountDue:         amount,
		Currency:          "KES",
	}
	require.NoError(t, f.client.DB().Create(&booking).Error)
	target, err := f.bookings.FindByReference(context.Background(), ref)
	require.NoError(t, err)
	return target
}

func TestNetAmount(t *testing.T) {
	cases := []struct {
		due, rate, want string
	}{
		{due: "1000", rate: "0.92", want: "920.00"},
		{due: "333.33", rate: "0.92", want: "306.66"},
		{due: "0.01", rate: "0.92", want: "0.01"},
		{due: "0.005", rate: "0.92", want: "0.00"},
		{due: "1500", rate: "1", want: "1500.00"},
	}
	for _, tc := range cases {
		got := NetAmount(decimal.RequireFromString(tc.due), decimal.RequireFromString(tc.rate))
		assert.Equal(t, tc.want, got.StringFixed(2), "due=%s rate=%s", tc.due, tc.rate)
	}
}

func TestDisburseSkipAndFailReasons(t *testing.T) {
	cases := []struct {
		name       string
		method     string
		amount     string
		wallet     bool
		external   string
		wantStatus enums.TransferStatus
		wantReason string
	}{
		{name: "card payment", method: "CARD", amount: "1000", wallet: true, external: "W1", wantStatus: enums.TransferStatusSkipped, wantReason: ReasonNotMobileMoney},
		{name: "zero price", method: "m-pesa", amount: "0", wallet: true, external: "W1", wantStatus: enums.TransferStatusSkipped, wantReason: ReasonInvalidPrice},
		{name: "no business wallet row", method: "M-PESA", amount: "1000", wantStatus: enums.TransferStatusFailed, wantReason: ReasonBusinessNotFound},
		{name: "not provisioned", method: "M-PESA", amount: "1000", wallet: true, wantStatus: enums.TransferStatusFailed, wantReason: ReasonMissingDestination},
		{name: "net rounds to zero", method: "M-PESA", amount: "0.004", wallet: true, external: "W1", wantStatus: enums.TransferStatusSkipped, wantReason: ReasonNonPositiveNet},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			businessID := uuid.New()
			if tc.wallet {
				f.seedWallet(t, businessID, tc.external)
			}
			target := f.seedPaidBooking(t, businessID, "REF-"+uuid.NewString()[:8], tc.method, decimal.RequireFromString(tc.amount))

			outcome, err := f.svc.Disburse(context.Background(), target)
			require.NoError(t, err)
			assert.Equal(t, tc.wantStatus, outcome.Status)
			assert.Equal(t, tc.wantReason, outcome.Reason)
			assert.Empty(t, f.gateway.calls)

			stored, err := f.bookings.FindBooking(context.Background(), target.ID)
			require.NoError(t, err)
			assert.Equal(t, tc.wantStatus, stored.TransferStatus)
			require.NotNil(t, stored.TransferReason)
			assert.Equal(t, tc.wantReason, *stored.TransferReason)

			if tc.wallet {
				wallet, err := f.wallets.FindWallet(context.Background(), businessID)
				require.NoError(t, err)
				assert.True(t, wallet.Balance.IsZero(), "ledger must not be credited")
			}
		})
	}
}

func TestDisburseSuccessCreditsAndTransfers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	businessID := uuid.New()
	f.seedWallet(t, businessID, "BIZ-W")
	target := f.seedPaidBooking(t, businessID, "BOOK123", "M-PESA", decimal.NewFromInt(1000))

	outcome, err := f.svc.Disburse(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, enums.TransferStatusCompleted, outcome.Status)
	assert.Equal(t, "TR-1", outcome.TrackingID)
	assert.Equal(t, "920.00", outcome.NetAmount.StringFixed(2))

	require.Len(t, f.gateway.calls, 1)
	call := f.gateway.calls[0]
	assert.Equal(t, "PLATFORM", call.SourceWalletID)
	assert.Equal(t, "BIZ-W", call.WalletID)
	assert.Equal(t, "Disbursement for booking Ref: BOOK123", call.Narrative)
	assert.True(t, call.Amount.Equal(decimal.NewFromInt(920)))

	wallet, err := f.wallets.FindWallet(ctx, businessID)
	require.NoError(t, err)
	assert.True(t, wallet.Balance.Equal(decimal.NewFromInt(920)))

	entries, _, err := f.wallets.ListEntries(ctx, businessID, nil, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	kinds := map[enums.TransactionKind]models.WalletTransaction{}
	for _, e := range entries {
		kinds[e.Kind] = e
	}
	assert.True(t, kinds[enums.TransactionKindDeposit].Amount.Equal(decimal.NewFromInt(920)))
	assert.Equal(t, enums.TransactionStatusCompleted, kinds[enums.TransactionKindDeposit].Status)
	transferEntry := kinds[enums.TransactionKindInternalTransfer]
	assert.True(t, transferEntry.Amount.IsZero())
	require.NotNil(t, transferEntry.TrackingID)
	assert.Equal(t, "TR-1", *transferEntry.TrackingID)

	stored, err := f.bookings.FindBooking(ctx, target.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.TransferStatusCompleted, stored.TransferStatus)
	require.NotNil(t, stored.TransferTrackingID)
	assert.Equal(t, "TR-1", *stored.TransferTrackingID)

	var events int64
	require.NoError(t, f.client.DB().Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventWalletCredited).Count(&events).Error)
	assert.Equal(t, int64(1), events)
}

func TestDisburseTransferFailureKeepsCredit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	businessID := uuid.New()
	f.seedWallet(t, businessID, "BIZ-W")
	target := f.seedPaidBooking(t, businessID, "BOOK-F", "M-PESA", decimal.NewFromInt(500))
	f.gateway.err = errors.New("wallet frozen")

	outcome, err := f.svc.Disburse(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, enums.TransferStatusFailed, outcome.Status)
	assert.Equal(t, "wallet frozen", outcome.Reason)

	wallet, err := f.wallets.FindWallet(ctx, businessID)
	require.NoError(t, err)
	assert.True(t, wallet.Balance.Equal(decimal.NewFromInt(460)), "credit is not reversed")

	failedEntries, err := f.wallets.CountEntries(ctx, businessID, enums.TransactionKindInternalTransfer)
	require.NoError(t, err)
	assert.Equal(t, int64(1), failedEntries)

	// The operator retry re-issues only the transfer.
	f.gateway.err = nil
	f.gateway.tracking = "TR-RETRY"
	retried, err := f.svc.RetryTransfer(ctx, "BOOK-F")
	require.NoError(t, err)
	assert.Equal(t, enums.TransferStatusCompleted, retried.Status)
	assert.Equal(t, "TR-RETRY", retried.TrackingID)

	wallet, err = f.wallets.FindWallet(ctx, businessID)
	require.NoError(t, err)
	assert.True(t, wallet.Balance.Equal(decimal.NewFromInt(460)))
	deposits, err := f.wallets.CountEntries(ctx, businessID, enums.TransactionKindDeposit)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deposits)

	_, err = f.svc.RetryTransfer(ctx, "BOOK-F")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "completed transfers cannot be retried")
}

func TestDisburseMissingSourceWallet(t *testing.T) {
	f := newFixture(t)
	f.svc.source = ""
	businessID := uuid.New()
	f.seedWallet(t, businessID, "BIZ-W")
	target := f.seedPaidBooking(t, businessID, "BOOK-S", "M-PESA", decimal.NewFromInt(100))

	outcome, err := f.svc.Disburse(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, enums.TransferStatusFailed, outcome.Status)
	assert.Empty(t, f.gateway.calls)
}

func TestDisburseCreditFailureIsRetryable(t *testing.T) {
	f := newFixtureWith(t, func(p *ServiceParams) {
		p.Guard = &flakyGuard{next: p.Guard, failCredits: 1, err: errors.New("db blip")}
	})
	ctx := context.Background()
	businessID := uuid.New()
	f.seedWallet(t, businessID, "BIZ-W")
	target := f.seedPaidBooking(t, businessID, "BOOK1", "M-PESA", decimal.NewFromInt(1000))

	outcome, err := f.svc.Disburse(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, enums.TransferStatusSkipped, outcome.Status)
	assert.Equal(t, "ledger credit failed: db blip", outcome.Reason)
	assert.Empty(t, f.gateway.calls, "no transfer without a credit")

	stored, err := f.bookings.FindBooking(ctx, target.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.TransferStatusSkipped, stored.TransferStatus)

	gaps, err := f.bookings.ListTransferGaps(ctx, time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, gaps, 1)
	assert.Equal(t, "BOOK1", gaps[0].ExternalReference)

	retried, err := f.svc.RetryTransfer(ctx, "BOOK1")
	require.NoError(t, err)
	assert.Equal(t, enums.TransferStatusCompleted, retried.Status)
	assert.Equal(t, "920.00", retried.Balance.StringFixed(2))
	require.Len(t, f.gateway.calls, 1)

	wallet, err := f.wallets.FindWallet(ctx, businessID)
	require.NoError(t, err)
	assert.Equal(t, "920.00", wallet.Balance.StringFixed(2))
	deposits, err := f.wallets.CountEntries(ctx, businessID, enums.TransactionKindDeposit)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deposits)

	var events int64
	require.NoError(t, f.client.DB().Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventWalletCredited).Count(&events).Error)
	assert.Equal(t, int64(1), events)
}

func TestRetryTransferFromStalledPendingCreditsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	businessID := uuid.New()
	f.seedWallet(t, businessID, "BIZ-W")
	target := f.seedPaidBooking(t, businessID, "BOOK-P", "M-PESA", decimal.NewFromInt(500))
	require.NoError(t, f.bookings.SetTransfer(ctx, nil, target.Kind, target.ID, bookings.TransferUpdate{Status: enums.TransferStatusPending}))

	retried, err := f.svc.RetryTransfer(ctx, "BOOK-P")
	require.NoError(t, err)
	assert.Equal(t, enums.TransferStatusCompleted, retried.Status)

	wallet, err := f.wallets.FindWallet(ctx, businessID)
	require.NoError(t, err)
	assert.Equal(t, "460.00", wallet.Balance.StringFixed(2))
}

func TestRetryTransferRejectsSettledOutcomes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	businessID := uuid.New()
	f.seedWallet(t, businessID, "BIZ-W")

	card := f.seedPaidBooking(t, businessID, "BOOK-CARD", "CARD", decimal.NewFromInt(500))
	_, err := f.svc.Disburse(ctx, card)
	require.NoError(t, err)
	_, err = f.svc.RetryTransfer(ctx, "BOOK-CARD")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "a skipped non-mobile payment is not retryable")

	untouched := f.seedPaidBooking(t, businessID, "BOOK-NONE", "M-PESA", decimal.NewFromInt(500))
	_, err = f.svc.RetryTransfer(ctx, untouched.ExternalReference)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	assert.Empty(t, f.gateway.calls)
}
