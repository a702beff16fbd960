package bookings

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lotusbook/payments-backend/pkg/db/models"
	"github.com/lotusbook/payments-backend/pkg/enums"
)

// CreditFailedReason prefixes the transfer reason of a paid booking whose ledger credit
// never applied. Such bookings are recorded as skipped and stay visible as gaps.
const CreditFailedReason = "ledger credit failed"

// Kind distinguishes single bookings from group bookings.
type Kind string

const (
	KindSingle Kind = "booking"
	KindGroup  Kind = "group_booking"
)

func (k Kind) table() string {
	if k == KindGroup {
		return "group_bookings"
	}
	return "bookings"
}

// Target is a booking or group booking resolved from a gateway reference.
type Target struct {
	Kind              Kind
	ID                uuid.UUID
	BusinessID        uuid.UUID
	CustomerID        uuid.UUID
	ExternalReference string
	PaymentMethod     string
	PaymentStatus     enums.PaymentStatus
	TransferStatus    enums.TransferStatus
	TransferReason    *string
	AmountDue         decimal.Decimal
	AmountPaid        *decimal.Decimal
	Currency          string
	ChildIDs          []uuid.UUID
}

// IsGroup reports whether the target pays for several child bookings.
func (t Target) IsGroup() bool {
	return t.Kind == KindGroup
}

// AggregateType maps the target onto its outbox aggregate.
func (t Target) AggregateType() enums.OutboxAggregateType {
	if t.IsGroup() {
		return enums.AggregateGroupBooking
	}
	return enums.AggregateBooking
}

func targetFromBooking(b models.Booking) *Target {
	return &Target{
		Kind:              KindSingle,
		ID:                b.ID,
		BusinessID:        b.BusinessID,
		CustomerID:        b.CustomerID,
		ExternalReference: b.ExternalReference,
		PaymentMethod:     b.PaymentMethod,
		PaymentStatus:     b.PaymentStatus,
		TransferStatus:    b.TransferStatus,
		TransferReason:    b.TransferReason,
		AmountDue:         b.AmountDue,
		AmountPaid:        b.AmountPaid,
		Currency:          b.Currency,
	}
}

func targetFromGroup(g models.GroupBooking) *Target {
	children := make([]uuid.UUID, len(g.ChildBookingIDs))
	copy(children, g.ChildBookingIDs)
	return &Target{
		Kind:              KindGroup,
		ID:                g.ID,
		BusinessID:        g.BusinessID,
		CustomerID:        g.CustomerID,
		ExternalReference: g.ExternalReference,
		PaymentMethod:     g.PaymentMethod,
		PaymentStatus:     g.PaymentStatus,
		TransferStatus:    g.TransferStatus,
		TransferReason:    g.TransferReason,
		AmountDue:         g.AmountDue,
		AmountPaid:        g.AmountPaid,
		Currency:          g.Currency,
		ChildIDs:          children,
	}
}

// TerminalUpdate is the single write that moves a booking to paid or failed.
// A non-empty TransferStatus is written in the same statement.
type TerminalUpdate struct {
	Status         enums.PaymentStatus
	InvoiceID      string
	AmountPaid     *decimal.Decimal
	FailedReason   string
	FailedCode     string
	BookingStatus  enums.BookingStatus
	TransferStatus enums.TransferStatus
	At             time.Time
}

// TransferUpdate records the outcome of the post-payment disbursement.
type TransferUpdate struct {
	Status     enums.TransferStatus
	Reason     string
	TrackingID string
}

// CreditFailed reports whether the booking was paid but its ledger credit never applied.
func (t Target) CreditFailed() bool {
	return t.TransferStatus == enums.TransferStatusSkipped &&
		t.TransferReason != nil && strings.HasPrefix(*t.TransferReason, CreditFailedReason)
}

// TransferGap is a paid booking whose disbursement never completed.
type TransferGap struct {
	Kind              Kind                 `json:"kind" yaml:"kind"`
	ID                uuid.UUID            `json:"id" yaml:"id"`
	BusinessID        uuid.UUID            `json:"business_id" yaml:"business_id"`
	ExternalReference string               `json:"external_reference" yaml:"external_reference"`
	TransferStatus    enums.TransferStatus `json:"transfer_status" yaml:"transfer_status"`
	TransferReason    *string              `json:"transfer_reason,omitempty" yaml:"transfer_reason,omitempty"`
	AmountDue         decimal.Decimal      `json:"amount_due" yaml:"amount_due"`
	UpdatedAt         time.Time            `json:"updated_at" yaml:"updated_at"`
}
