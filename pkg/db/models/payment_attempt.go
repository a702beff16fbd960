package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lotusbook/payments-backend/pkg/enums"
)

// PaymentAttempt records one STK push collection request and its status history.
type PaymentAttempt struct {
	ID                uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	ExternalReference string                 `gorm:"column:external_reference;not null;index"`
	InvoiceID         *string                `gorm:"column:invoice_id"`
	Amount            decimal.Decimal        `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency          string                 `gorm:"column:currency;not null;default:'KES'"`
	Phone             string                 `gorm:"column:phone;not null"`
	Email             string                 `gorm:"column:email;not null;default:''"`
	Status            enums.CollectionStatus `gorm:"column:status;type:collection_status;not null"`
	FailedReason      *string                `gorm:"column:failed_reason"`
	CreatedAt         time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (PaymentAttempt) TableName() string { return "payment_attempts" }

func (p *PaymentAttempt) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
