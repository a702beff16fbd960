package enums

import (
	"fmt"
	"strings"
)

// PayoutStatus is the final state of a payout attempt.
type PayoutStatus string

const (
	PayoutStatusCompleted           PayoutStatus = "completed"
	PayoutStatusPendingConfirmation PayoutStatus = "pending_confirmation"
	PayoutStatusFailed              PayoutStatus = "failed"
	PayoutStatusApprovalFailed      PayoutStatus = "approval_failed"
	PayoutStatusApprovalError       PayoutStatus = "approval_error"
)

var validPayoutStatuses = []PayoutStatus{
	PayoutStatusCompleted,
	PayoutStatusPendingConfirmation,
	PayoutStatusFailed,
	PayoutStatusApprovalFailed,
	PayoutStatusApprovalError,
}

// IsValid reports whether the value is a known PayoutStatus.
func (p PayoutStatus) IsValid() bool {
	for _, candidate := range validPayoutStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// Debited reports whether the wallet was charged for this outcome.
func (p PayoutStatus) Debited() bool {
	return p == PayoutStatusCompleted || p == PayoutStatusPendingConfirmation
}

// TransactionStatus maps the payout outcome onto its log entry status.
func (p PayoutStatus) TransactionStatus() TransactionStatus {
	return TransactionStatus(p)
}

// RecipientType selects the gateway payout rail.
type RecipientType string

const (
	RecipientPhone   RecipientType = "phone"
	RecipientTill    RecipientType = "till"
	RecipientPaybill RecipientType = "paybill"
)

var validRecipientTypes = []RecipientType{
	RecipientPhone,
	RecipientTill,
	RecipientPaybill,
}

// IsValid reports whether the value is a known RecipientType.
func (r RecipientType) IsValid() bool {
	for _, candidate := range validRecipientTypes {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRecipientType converts raw input into a RecipientType (case-insensitive).
func ParseRecipientType(value string) (RecipientType, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validRecipientTypes {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid recipient type %q", value)
}
