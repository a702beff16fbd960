package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbtypes "github.com/lotusbook/payments-backend/pkg/db/types"
	"github.com/lotusbook/payments-backend/pkg/enums"
)

// GroupBooking is a parent record paying for several child bookings at once.
// ChildBookingIDs keeps the order the children were booked in.
type GroupBooking struct {
	ID                 uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	BusinessID         uuid.UUID            `gorm:"column:business_id;type:uuid;not null;index"`
	CustomerID         uuid.UUID            `gorm:"column:customer_id;type:uuid;not null"`
	ChildBookingIDs    dbtypes.UUIDArray    `gorm:"column:child_booking_ids;not null"`
	Status             enums.BookingStatus  `gorm:"column:status;type:booking_status;not null;default:'pending'"`
	PaymentMethod      string               `gorm:"column:payment_method;not null;default:''"`
	PaymentStatus      enums.PaymentStatus  `gorm:"column:payment_status;type:payment_status;not null;default:'none'"`
	TransferStatus     enums.TransferStatus `gorm:"column:transfer_status;type:transfer_status;not null;default:'none'"`
	TransferReason     *string              `gorm:"column:transfer_reason"`
	TransferTrackingID *string              `gorm:"column:transfer_tracking_id"`
	ExternalReference  string               `gorm:"column:external_reference;not null;uniqueIndex:ux_group_bookings_external_reference"`
	ExternalInvoiceID  *string              `gorm:"column:external_invoice_id"`
	AmountDue          decimal.Decimal      `gorm:"column:amount_due;type:numeric(12,2);not null"`
	AmountPaid         *decimal.Decimal     `gorm:"column:amount_paid;type:numeric(12,2)"`
	Currency           string               `gorm:"column:currency;not null;default:'KES'"`
	FailedReason       *string              `gorm:"column:failed_reason"`
	FailedCode         *string              `gorm:"column:failed_code"`
	PaidAt             *time.Time           `gorm:"column:paid_at"`
	CreatedAt          time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (GroupBooking) TableName() string { return "group_bookings" }

func (g *GroupBooking) BeforeCreate(*gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}
