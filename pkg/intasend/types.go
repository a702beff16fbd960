package intasend

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Payout statuses reported by send-money initiate and approve.
const (
	StatusPreviewAndApprove = "Preview and approve"
	StatusSuccess           = "Success"
	StatusQueued            = "Queued"
	StatusProcessing        = "Processing"
	StatusConfirmingBalance = "Confirming balance"
	StatusFailed            = "Failed"
)

// Invoice states reported by STK push and collection webhooks.
const (
	StatePending    = "PENDING"
	StateProcessing = "PROCESSING"
	StateComplete   = "COMPLETE"
	StateSuccess    = "SUCCESS"
	StateFailed     = "FAILED"
)

// Payout providers.
const (
	ProviderMPesaB2C = "MPESA-B2C"
	ProviderMPesaB2B = "MPESA-B2B"
)

// B2B account types.
const (
	AccountTypeTillNumber = "TillNumber"
	AccountTypePayBill    = "PayBill"
)

const (
	MethodMPesa       = "M-PESA"
	WalletTypeWorking = "WORKING"
)

// STKPushRequest asks the gateway to prompt a handset for payment.
type STKPushRequest struct {
	PublicKey   string          `json:"public_key,omitempty"`
	APIRef      string          `json:"api_ref"`
	Method      string          `json:"method"`
	Currency    string          `json:"currency"`
	Amount      decimal.Decimal `json:"amount"`
	PhoneNumber string          `json:"phone_number"`
	Email       string          `json:"email,omitempty"`
	FirstName   string          `json:"first_name,omitempty"`
	LastName    string          `json:"last_name,omitempty"`
	Host        string          `json:"host,omitempty"`
	Narrative   string          `json:"narrative,omitempty"`
	WalletID    string          `json:"wallet_id,omitempty"`
}

// STKPushResponse carries the invoice the gateway created for the push.
type STKPushResponse struct {
	Invoice Invoice `json:"invoice"`
}

// Invoice is a collection request tracked by the gateway.
type Invoice struct {
	InvoiceID    string `json:"invoice_id"`
	State        string `json:"state"`
	FailedReason string `json:"failed_reason,omitempty"`
	APIRef       string `json:"api_ref,omitempty"`
}

// Accepted reports whether the push was queued on the customer's handset.
func (r *STKPushResponse) Accepted() bool {
	if r == nil || strings.TrimSpace(r.Invoice.InvoiceID) == "" {
		return false
	}
	state := strings.ToUpper(strings.TrimSpace(r.Invoice.State))
	return state == StatePending || state == StateProcessing
}

// PayoutRequest initiates a send-money batch.
type PayoutRequest struct {
	Provider         string              `json:"provider"`
	Currency         string              `json:"currency"`
	Transactions     []PayoutTransaction `json:"transactions"`
	WalletID         string              `json:"wallet_id,omitempty"`
	RequiresApproval string              `json:"requires_approval"`
}

// PayoutTransaction is one recipient within a batch.
type PayoutTransaction struct {
	Name             string          `json:"name,omitempty"`
	Account          string          `json:"account"`
	Amount           decimal.Decimal `json:"amount"`
	Narrative        string          `json:"narrative,omitempty"`
	AccountType      string          `json:"account_type,omitempty"`
	AccountReference string          `json:"account_reference,omitempty"`
}

// PayoutResponse is returned by both initiate and approve.
// Raw holds the body verbatim so approve can echo it back.
type PayoutResponse struct {
	TrackingID string          `json:"tracking_id"`
	Status     string          `json:"status"`
	Nonce      string          `json:"nonce,omitempty"`
	Message    string          `json:"message,omitempty"`
	WalletID   string          `json:"wallet_id,omitempty"`
	Raw        json.RawMessage `json:"-"`
}

// MarshalJSON prefers the verbatim gateway body when present.
func (r PayoutResponse) MarshalJSON() ([]byte, error) {
	if len(r.Raw) > 0 {
		return r.Raw, nil
	}
	type plain PayoutResponse
	return json.Marshal(plain(r))
}

// IntraTransferRequest moves funds from SourceWalletID to WalletID.
type IntraTransferRequest struct {
	SourceWalletID string          `json:"-"`
	WalletID       string          `json:"wallet_id"`
	Amount         decimal.Decimal `json:"amount"`
	Narrative      string          `json:"narrative"`
}

// IntraTransferResponse is the gateway acknowledgement of a wallet transfer.
type IntraTransferResponse struct {
	TrackingID string `json:"tracking_id"`
	Status     string `json:"status,omitempty"`
}

// CreateWalletRequest provisions a sub-wallet.
type CreateWalletRequest struct {
	Currency    string `json:"currency"`
	Label       string `json:"label"`
	WalletType  string `json:"wallet_type"`
	CanDisburse bool   `json:"can_disburse"`
	Email       string `json:"email,omitempty"`
}

// Wallet is a gateway-side wallet with its balances.
type Wallet struct {
	WalletID         string          `json:"wallet_id"`
	Label            string          `json:"label,omitempty"`
	Currency         string          `json:"currency"`
	WalletType       string          `json:"wallet_type,omitempty"`
	CanDisburse      bool            `json:"can_disburse"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	CurrentBalance   decimal.Decimal `json:"current_balance"`
}

// IsPayoutAccepted reports whether a payout status means the gateway took the money.
func IsPayoutAccepted(status string) bool {
	switch status {
	case StatusSuccess, StatusQueued, StatusProcessing:
		return true
	default:
		return false
	}
}

// IsApprovalAccepted is IsPayoutAccepted plus the balance confirmation state approve can return.
func IsApprovalAccepted(status string) bool {
	return IsPayoutAccepted(status) || status == StatusConfirmingBalance
}
