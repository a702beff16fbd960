package enums

import "fmt"

// TransferStatus tracks the gateway internal transfer that follows a paid booking.
// It moves independently of PaymentStatus.
type TransferStatus string

const (
	TransferStatusNone      TransferStatus = "none"
	TransferStatusPending   TransferStatus = "pending"
	TransferStatusCompleted TransferStatus = "completed"
	TransferStatusFailed    TransferStatus = "failed"
	TransferStatusSkipped   TransferStatus = "skipped"
)

var validTransferStatuses = []TransferStatus{
	TransferStatusNone,
	TransferStatusPending,
	TransferStatusCompleted,
	TransferStatusFailed,
	TransferStatusSkipped,
}

func (t TransferStatus) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TransferStatus.
func (t TransferStatus) IsValid() bool {
	for _, candidate := range validTransferStatuses {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTransferStatus converts raw input into a TransferStatus.
func ParseTransferStatus(value string) (TransferStatus, error) {
	for _, candidate := range validTransferStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transfer status %q", value)
}
