package enums

import "fmt"

// PaymentStatus tracks a booking's collection lifecycle as reported by the gateway.
type PaymentStatus string

const (
	PaymentStatusNone       PaymentStatus = "none"
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusPaid       PaymentStatus = "paid"
	PaymentStatusFailed     PaymentStatus = "failed"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusNone,
	PaymentStatusPending,
	PaymentStatusProcessing,
	PaymentStatusPaid,
	PaymentStatusFailed,
}

// TerminalPaymentStatuses are written at most once per booking.
var TerminalPaymentStatuses = []PaymentStatus{
	PaymentStatusPaid,
	PaymentStatusFailed,
}

// String implements fmt.Stringer.
func (p PaymentStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentStatus.
func (p PaymentStatus) IsValid() bool {
	for _, candidate := range validPaymentStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status can no longer change.
func (p PaymentStatus) IsTerminal() bool {
	for _, candidate := range TerminalPaymentStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentStatus converts raw input into a PaymentStatus.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	for _, candidate := range validPaymentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment status %q", value)
}
