package enums

import "fmt"

// OutboxAggregateType identifies the entity an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateBooking      OutboxAggregateType = "booking"
	AggregateGroupBooking OutboxAggregateType = "group_booking"
	AggregateWallet       OutboxAggregateType = "wallet"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateBooking,
	AggregateGroupBooking,
	AggregateWallet,
}

// IsValid reports whether the value is a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType names an event published through the outbox.
type OutboxEventType string

const (
	EventPaymentSucceeded OutboxEventType = "payment_succeeded"
	EventPaymentFailed    OutboxEventType = "payment_failed"
	EventWalletCredited   OutboxEventType = "wallet_credited"
	EventPayoutSubmitted  OutboxEventType = "payout_submitted"
)

var validEventTypes = []OutboxEventType{
	EventPaymentSucceeded,
	EventPaymentFailed,
	EventWalletCredited,
	EventPayoutSubmitted,
}

// IsValid reports whether the value is a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
