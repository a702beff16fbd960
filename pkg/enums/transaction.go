package enums

import "fmt"

// TransactionKind classifies a wallet transaction log entry.
type TransactionKind string

const (
	TransactionKindDeposit          TransactionKind = "deposit"
	TransactionKindInternalTransfer TransactionKind = "internal_transfer"
	TransactionKindPayout           TransactionKind = "payout"
)

var validTransactionKinds = []TransactionKind{
	TransactionKindDeposit,
	TransactionKindInternalTransfer,
	TransactionKindPayout,
}

// IsValid reports whether the value is a known TransactionKind.
func (k TransactionKind) IsValid() bool {
	for _, candidate := range validTransactionKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseTransactionKind converts raw input into a TransactionKind.
func ParseTransactionKind(value string) (TransactionKind, error) {
	for _, candidate := range validTransactionKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction kind %q", value)
}

// TransactionStatus is the settlement state of a log entry.
type TransactionStatus string

const (
	TransactionStatusPending             TransactionStatus = "pending"
	TransactionStatusPendingConfirmation TransactionStatus = "pending_confirmation"
	TransactionStatusCompleted           TransactionStatus = "completed"
	TransactionStatusFailed              TransactionStatus = "failed"
	TransactionStatusSkipped             TransactionStatus = "skipped"
	TransactionStatusApprovalFailed      TransactionStatus = "approval_failed"
	TransactionStatusApprovalError       TransactionStatus = "approval_error"
)

var validTransactionStatuses = []TransactionStatus{
	TransactionStatusPending,
	TransactionStatusPendingConfirmation,
	TransactionStatusCompleted,
	TransactionStatusFailed,
	TransactionStatusSkipped,
	TransactionStatusApprovalFailed,
	TransactionStatusApprovalError,
}

// IsValid reports whether the value is a known TransactionStatus.
func (s TransactionStatus) IsValid() bool {
	for _, candidate := range validTransactionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseTransactionStatus converts raw input into a TransactionStatus.
func ParseTransactionStatus(value string) (TransactionStatus, error) {
	for _, candidate := range validTransactionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction status %q", value)
}
