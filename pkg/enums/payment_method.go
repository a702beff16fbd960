package enums

import "strings"

// PaymentMethod is the rail a customer paid with, as recorded on the booking.
type PaymentMethod string

const (
	PaymentMethodMPesa PaymentMethod = "M-PESA"
	PaymentMethodCard  PaymentMethod = "CARD"
	PaymentMethodCash  PaymentMethod = "CASH"
)

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// Matches compares methods ignoring case and surrounding whitespace.
func (p PaymentMethod) Matches(other string) bool {
	return strings.EqualFold(strings.TrimSpace(string(p)), strings.TrimSpace(other))
}
