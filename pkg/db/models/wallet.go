package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet holds a business's in-app balance. Balance is only written by the ledger guard.
type Wallet struct {
	BusinessID       uuid.UUID       `gorm:"column:business_id;type:uuid;primaryKey"`
	Balance          decimal.Decimal `gorm:"column:balance;type:numeric(14,2);not null;default:0"`
	Currency         string          `gorm:"column:currency;not null;default:'KES'"`
	ExternalWalletID *string         `gorm:"column:external_wallet_id"`
	Label            *string         `gorm:"column:label"`
	Email            *string         `gorm:"column:email"`
	CanDisburse      bool            `gorm:"column:can_disburse;not null;default:false"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Wallet) TableName() string { return "wallets" }

// HasExternalWallet reports whether the wallet was provisioned at the gateway.
func (w Wallet) HasExternalWallet() bool {
	return w.ExternalWalletID != nil && *w.ExternalWalletID != ""
}
