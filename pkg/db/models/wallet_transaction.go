package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lotusbook/payments-backend/pkg/enums"
)

// WalletTransaction is an append-only log entry for a wallet.
// Amount is signed: credits positive, debits negative.
type WalletTransaction struct {
	ID                  uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	BusinessID          uuid.UUID               `gorm:"column:business_id;type:uuid;not null;index"`
	Amount              decimal.Decimal         `gorm:"column:amount;type:numeric(14,2);not null"`
	Kind                enums.TransactionKind   `gorm:"column:kind;type:transaction_kind;not null"`
	Status              enums.TransactionStatus `gorm:"column:status;type:transaction_status;not null"`
	Name                string                  `gorm:"column:name;not null;default:''"`
	Description         string                  `gorm:"column:description;not null;default:''"`
	Reference           *string                 `gorm:"column:reference"`
	TrackingID          *string                 `gorm:"column:tracking_id"`
	RecipientType       *enums.RecipientType    `gorm:"column:recipient_type"`
	RecipientIdentifier *string                 `gorm:"column:recipient_identifier"`
	AttemptedAmount     *decimal.Decimal        `gorm:"column:attempted_amount;type:numeric(14,2)"`
	Error               *string                 `gorm:"column:error"`
	CreatedAt           time.Time               `gorm:"column:created_at;autoCreateTime"`
}

func (WalletTransaction) TableName() string { return "wallet_transactions" }

func (t *WalletTransaction) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
