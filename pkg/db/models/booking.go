package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lotusbook/payments-backend/pkg/enums"
)

// Booking is a single appointment between a customer and a business.
type Booking struct {
	ID                 uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	BusinessID         uuid.UUID            `gorm:"column:business_id;type:uuid;not null;index"`
	CustomerID         uuid.UUID            `gorm:"column:customer_id;type:uuid;not null"`
	GroupBookingID     *uuid.UUID           `gorm:"column:group_booking_id;type:uuid"`
	ScheduledAt        time.Time            `gorm:"column:scheduled_at;not null"`
	Status             enums.BookingStatus  `gorm:"column:status;type:booking_status;not null;default:'pending'"`
	PaymentMethod      string               `gorm:"column:payment_method;not null;default:''"`
	PaymentStatus      enums.PaymentStatus  `gorm:"column:payment_status;type:payment_status;not null;default:'none'"`
	TransferStatus     enums.TransferStatus `gorm:"column:transfer_status;type:transfer_status;not null;default:'none'"`
	TransferReason     *string              `gorm:"column:transfer_reason"`
	TransferTrackingID *string              `gorm:"column:transfer_tracking_id"`
	ExternalReference  string               `gorm:"column:external_reference;not null;uniqueIndex:ux_bookings_external_reference"`
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

func (Booking) TableName() string { return "bookings" }

func (b *Booking) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
