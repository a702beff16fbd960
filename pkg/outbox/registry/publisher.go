package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/lotusbook/payments-backend/pkg/config"
	"github.com/lotusbook/payments-backend/pkg/db/models"
	"github.com/lotusbook/payments-backend/pkg/enums"
	"github.com/lotusbook/payments-backend/pkg/outbox"
	"github.com/lotusbook/payments-backend/pkg/outbox/payloads"
)

// EventDescriptor links an event type to its aggregate/topic/payload schema.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateTypes []enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() interface{}
}

func (d EventDescriptor) acceptsAggregate(aggregate enums.OutboxAggregateType) bool {
	for _, candidate := range d.AggregateTypes {
		if candidate == aggregate {
			return true
		}
	}
	return false
}

// ResolvedEvent is the result of decoding an outbox row.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    interface{}
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// ErrUnroutable reports an event type with no registered topic.
var ErrUnroutable = errors.New("no topic registered for event type")

// NonRetryableError signals the dispatcher should stop retrying a row.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewNonRetryableError wraps an error to signal no retries.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

// NewEventRegistry builds the registry with the configured topic names.
// Payment outcomes go to the notification topic; wallet movements go to the ledger topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.NotificationTopic == "" {
		return nil, fmt.Errorf("notification topic is required")
	}
	if cfg.LedgerTopic == "" {
		return nil, fmt.Errorf("ledger topic is required")
	}

	bookingAggregates := []enums.OutboxAggregateType{enums.AggregateBooking, enums.AggregateGroupBooking}
	walletAggregates := []enums.OutboxAggregateType{enums.AggregateWallet}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}
	for _, desc := range []EventDescriptor{
		{
			EventType:      enums.EventPaymentSucceeded,
			AggregateTypes: bookingAggregates,
			Topic:          cfg.NotificationTopic,
			PayloadFactory: func() interface{} { return &payloads.PaymentSucceededEvent{} },
		},
		{
			EventType:      enums.EventPaymentFailed,
			AggregateTypes: bookingAggregates,
			Topic:          cfg.NotificationTopic,
			PayloadFactory: func() interface{} { return &payloads.PaymentFailedEvent{} },
		},
		{
			EventType:      enums.EventWalletCredited,
			AggregateTypes: walletAggregates,
			Topic:          cfg.LedgerTopic,
			PayloadFactory: func() interface{} { return &payloads.WalletCreditedEvent{} },
		},
		{
			EventType:      enums.EventPayoutSubmitted,
			AggregateTypes: walletAggregates,
			Topic:          cfg.LedgerTopic,
			PayloadFactory: func() interface{} { return &payloads.PayoutSubmittedEvent{} },
		},
	} {
		reg.register(desc)
	}
	return reg, nil
}

func (r *EventRegistry) register(desc EventDescriptor) {
	if desc.PayloadFactory == nil {
		return
	}
	r.entries[desc.EventType] = desc
}

// Topics lists every distinct destination topic.
func (r *EventRegistry) Topics() []string {
	seen := map[string]struct{}{}
	var topics []string
	for _, desc := range r.entries {
		if _, ok := seen[desc.Topic]; ok {
			continue
		}
		seen[desc.Topic] = struct{}{}
		topics = append(topics, desc.Topic)
	}
	return topics
}

// Resolve validates the row and decodes its typed payload.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("%w: %s", ErrUnroutable, event.EventType))
	}
	if !desc.acceptsAggregate(event.AggregateType) {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: %s not valid for %s", event.AggregateType, event.EventType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(fmt.Errorf("missing aggregate_id"))
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}

	trimmed := bytes.TrimSpace(envelope.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", event.EventType))
	}

	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}

	return &ResolvedEvent{
		Descriptor: desc,
		Envelope:   envelope,
		Payload:    payload,
	}, nil
}
