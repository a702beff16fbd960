package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// NotificationType tells the notification consumer which template to render.
type NotificationType string

const (
	NotificationPaymentSuccess NotificationType = "payment_success"
	NotificationPaymentFailed  NotificationType = "payment_failed"
)

// PaymentSucceededEvent is emitted once a booking or group booking reaches paid.
type PaymentSucceededEvent struct {
	Type              NotificationType `json:"type"`
	BookingID         uuid.UUID        `json:"booking_id"`
	IsGroup           bool             `json:"is_group"`
	BusinessID        uuid.UUID        `json:"business_id"`
	CustomerID        uuid.UUID        `json:"customer_id"`
	ExternalReference string           `json:"external_reference"`
	InvoiceID         string           `json:"invoice_id,omitempty"`
	AmountPaid        decimal.Decimal  `json:"amount_paid"`
	Currency          string           `json:"currency"`
	PaidAt            time.Time        `json:"paid_at"`
}

// PaymentFailedEvent is emitted once a booking or group booking reaches failed.
type PaymentFailedEvent struct {
	Type              NotificationType `json:"type"`
	BookingID         uuid.UUID        `json:"booking_id"`
	IsGroup           bool             `json:"is_group"`
	BusinessID        uuid.UUID        `json:"business_id"`
	CustomerID        uuid.UUID        `json:"customer_id"`
	ExternalReference string           `json:"external_reference"`
	FailedReason      string           `json:"failed_reason,omitempty"`
	FailedCode        string           `json:"failed_code,omitempty"`
}

// WalletCreditedEvent records a disbursement credit to a business wallet.
type WalletCreditedEvent struct {
	BusinessID        uuid.UUID       `json:"business_id"`
	Amount            decimal.Decimal `json:"amount"`
	Balance           decimal.Decimal `json:"balance"`
	ExternalReference string          `json:"external_reference"`
	TransferStatus    string          `json:"transfer_status"`
	TrackingID        string          `json:"tracking_id,omitempty"`
}

// PayoutSubmittedEvent records a payout that debited the wallet.
type PayoutSubmittedEvent struct {
	BusinessID    uuid.UUID       `json:"business_id"`
	Amount        decimal.Decimal `json:"amount"`
	Balance       decimal.Decimal `json:"balance"`
	Status        string          `json:"status"`
	TrackingID    string          `json:"tracking_id,omitempty"`
	RecipientType string          `json:"recipient_type"`
}
