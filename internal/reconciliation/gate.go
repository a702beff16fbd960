package reconciliation

import (
	"context"
	"errors"
	"strings"

	"github.com/lotusbook/payments-backend/internal/bookings"
	pkgerrors "github.com/lotusbook/payments-backend/pkg/errors"
)

// Outcome classifies how a webhook delivery was handled.
type Outcome string

const (
	OutcomeMissingFields   Outcome = "missing_fields"
	OutcomeBookingNotFound Outcome = "booking_not_found"
	OutcomeDuplicate       Outcome = "duplicate"
	OutcomeApplied         Outcome = "applied"
	OutcomeNoop            Outcome = "noop"
	OutcomeIgnored         Outcome = "ignored"
	OutcomeError           Outcome = "error"
)

// Message is the acknowledgement body returned to the gateway.
func (o Outcome) Message() string {
	switch o {
	case OutcomeMissingFields:
		return "Accepted: missing required fields"
	case OutcomeBookingNotFound:
		return "Webhook received, booking not found"
	case OutcomeDuplicate:
		return "Webhook received, already processed"
	case OutcomeError:
		return "Accepted: processing error"
	default:
		return "Webhook received successfully"
	}
}

type targetFinder interface {
	FindByReference(ctx context.Context, reference string) (*bookings.Target, error)
}

// Gate resolves a gateway reference and drops deliveries that can no longer change state.
type Gate struct {
	bookings targetFinder
}

func NewGate(finder targetFinder) (*Gate, error) {
	if finder == nil {
		return nil, errors.New("gate requires a booking finder")
	}
	return &Gate{bookings: finder}, nil
}

// Resolve finds the booking or group booking carrying externalReference.
func (g *Gate) Resolve(ctx context.Context, externalReference string) (*bookings.Target, error) {
	return g.bookings.FindByReference(ctx, strings.TrimSpace(externalReference))
}

// Admit returns the target and an empty outcome when the delivery may proceed.
// Missing targets and terminal targets are reported as outcomes, not errors.
func (g *Gate) Admit(ctx context.Context, externalReference string) (*bookings.Target, Outcome, error) {
	target, err := g.Resolve(ctx, externalReference)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, OutcomeBookingNotFound, nil
		}
		return nil, OutcomeError, err
	}
	if target.PaymentStatus.IsTerminal() {
		return target, OutcomeDuplicate, nil
	}
	return target, "", nil
}
