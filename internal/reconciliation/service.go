package reconciliation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/lotusbook/payments-backend/internal/bookings"
	"github.com/lotusbook/payments-backend/internal/disbursement"
	"github.com/lotusbook/payments-backend/pkg/config"
	"github.com/lotusbook/payments-backend/pkg/enums"
	pkgerrors "github.com/lotusbook/payments-backend/pkg/errors"
	"github.com/lotusbook/payments-backend/pkg/intasend"
	"github.com/lotusbook/payments-backend/pkg/logger"
	"github.com/lotusbook/payments-backend/pkg/metrics"
	"github.com/lotusbook/payments-backend/pkg/outbox"
	"github.com/lotusbook/payments-backend/pkg/outbox/payloads"
)

const unknownFailure = "Unknown"

var errLostRace = errors.New("terminal status already written")

type bookingStore interface {
	targetFinder
	MarkTerminal(ctx context.Context, tx *gorm.DB, kind bookings.Kind, id uuid.UUID, update bookings.TerminalUpdate) (bool, error)
	UpdateProgress(ctx context.Context, tx *gorm.DB, kind bookings.Kind, id uuid.UUID, status enums.PaymentStatus) (bool, error)
}

type disburser interface {
	Disburse(ctx context.Context, target *bookings.Target) (*disbursement.Outcome, error)
}

type attemptRecorder interface {
	RecordStatus(ctx context.Context, reference, invoiceID string, status enums.CollectionStatus, failedReason string) (int64, error)
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams wires the payment state machine.
type ServiceParams struct {
	DB        txRunner
	Bookings  bookingStore
	Disburser disburser
	Attempts  attemptRecorder
	Outbox    eventEmitter
	Logger    *logger.Logger
	Metrics   *metrics.ReconciliationMetrics
	Payout    config.PayoutConfig
	Now       func() time.Time
}

// Service applies gateway collection callbacks to bookings exactly once.
type Service struct {
	db        txRunner
	gate      *Gate
	bookings  bookingStore
	disburser disburser
	attempts  attemptRecorder
	outbox    eventEmitter
	logg      *logger.Logger
	metrics   *metrics.ReconciliationMetrics
	fanOut    bool
	now       func() time.Time
}

// Result is what the webhook controller acknowledges with.
type Result struct {
	Outcome    Outcome               `json:"outcome"`
	Message    string                `json:"message"`
	Target     *bookings.Target      `json:"-"`
	Transition Transition            `json:"-"`
	Transfer   *disbursement.Outcome `json:"transfer,omitempty"`
}

func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Bookings == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "booking store required")
	}
	if params.Disburser == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "disburser required")
	}
	gate, err := NewGate(params.Bookings)
	if err != nil {
		return nil, err
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		db:        params.DB,
		gate:      gate,
		bookings:  params.Bookings,
		disburser: params.Disburser,
		attempts:  params.Attempts,
		outbox:    params.Outbox,
		logg:      params.Logger,
		metrics:   params.Metrics,
		fanOut:    params.Payout.GroupFanOut,
		now:       now,
	}, nil
}

// HandleWebhook applies one delivery. Business outcomes are reported in the Result;
// an error means infrastructure failed and the delivery should be retried.
func (s *Service) HandleWebhook(ctx context.Context, event intasend.WebhookEvent) (*Result, error) {
	result, err := s.handle(ctx, event)
	if err != nil {
		result = &Result{Outcome: OutcomeError}
	}
	result.Message = result.Outcome.Message()
	s.metrics.WebhookEvent(string(result.Outcome))
	return result, err
}

func (s *Service) handle(ctx context.Context, event intasend.WebhookEvent) (*Result, error) {
	if !event.HasRequiredFields() {
		s.warn(ctx, "webhook missing required fields")
		return &Result{Outcome: OutcomeMissingFields}, nil
	}

	reference := strings.TrimSpace(event.APIRef)
	if s.logg != nil {
		ctx = s.logg.WithFields(s.logg.WithReference(ctx, reference), map[string]any{
			"invoice_id": event.InvoiceID,
			"state":      event.NormalizedState(),
		})
	}

	target, outcome, err := s.gate.Admit(ctx, reference)
	if err != nil {
		return nil, err
	}
	switch outcome {
	case OutcomeBookingNotFound:
		s.warn(ctx, "webhook reference has no booking")
		return &Result{Outcome: outcome}, nil
	case OutcomeDuplicate:
		s.info(ctx, "webhook for settled booking ignored")
		return &Result{Outcome: outcome, Target: target}, nil
	}
	if s.logg != nil {
		ctx = s.logg.WithBusinessID(ctx, target.BusinessID.String())
	}

	transition := PaymentTransition(target.PaymentStatus, event.State)
	result := &Result{Target: target, Transition: transition}

	switch transition.Action {
	case ActionIgnore:
		s.info(ctx, "webhook state not handled")
		result.Outcome = OutcomeIgnored
		return result, nil
	case ActionDuplicate:
		result.Outcome = OutcomeDuplicate
		return result, nil
	case ActionNoop:
		result.Outcome = OutcomeNoop
		s.recordAttempt(ctx, event, transition)
		return result, nil
	case ActionProgress:
		updated, err := s.bookings.UpdateProgress(ctx, nil, target.Kind, target.ID, transition.Target)
		if err != nil {
			return nil, err
		}
		result.Outcome = OutcomeNoop
		if updated {
			result.Outcome = OutcomeApplied
		}
		s.recordAttempt(ctx, event, transition)
		return result, nil
	}

	return s.applyTerminal(ctx, event, target, result)
}

func (s *Service) applyTerminal(ctx context.Context, event intasend.WebhookEvent, target *bookings.Target, result *Result) (*Result, error) {
	update := s.terminalUpdate(event, target, result.Transition)

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		written, err := s.bookings.MarkTerminal(ctx, tx, target.Kind, target.ID, update)
		if err != nil {
			return err
		}
		if !written {
			return errLostRace
		}
		return nil
	})
	if errors.Is(err, errLostRace) {
		s.info(ctx, "terminal status written by a concurrent delivery")
		result.Outcome = OutcomeDuplicate
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	target.PaymentStatus = update.Status
	if update.AmountPaid != nil {
		paid := *update.AmountPaid
		target.AmountPaid = &paid
	}
	result.Outcome = OutcomeApplied

	if target.IsGroup() && s.fanOut {
		if fanErr := s.fanOutChildren(ctx, target, update); fanErr != nil && s.logg != nil {
			s.logg.Error(ctx, "group child updates failed", fanErr)
		}
	}
	s.recordAttempt(ctx, event, result.Transition)
	s.emitPaymentEvent(ctx, target, update)

	if update.Status == enums.PaymentStatusPaid {
		transfer, err := s.disburser.Disburse(ctx, target)
		if err != nil && s.logg != nil {
			s.logg.Error(ctx, "disbursement could not be recorded", err)
		}
		result.Transfer = transfer
	}

	s.info(ctx, "payment status applied")
	return result, nil
}

func (s *Service) terminalUpdate(event intasend.WebhookEvent, target *bookings.Target, transition Transition) bookings.TerminalUpdate {
	update := bookings.TerminalUpdate{
		Status:    transition.Target,
		InvoiceID: strings.TrimSpace(event.InvoiceID),
		At:        s.now().UTC(),
	}
	if transition.Action == ActionMarkPaid {
		amount := target.AmountDue
		if event.Value.Valid && event.Value.Value.IsPositive() {
			amount = event.Value.Value
		}
		amount = amount.Round(2)
		update.AmountPaid = &amount
		update.BookingStatus = enums.BookingStatusConfirmed
		update.TransferStatus = enums.TransferStatusPending
		return update
	}
	update.FailedReason = strings.TrimSpace(event.FailedReason)
	if update.FailedReason == "" {
		update.FailedReason = unknownFailure
	}
	update.FailedCode = strings.TrimSpace(event.FailedCode)
	return update
}

// fanOutChildren applies the parent's terminal status to every child independently.
func (s *Service) fanOutChildren(ctx context.Context, target *bookings.Target, update bookings.TerminalUpdate) error {
	childUpdate := update
	childUpdate.AmountPaid = nil
	childUpdate.TransferStatus = ""
	var errs error
	for _, childID := range target.ChildIDs {
		if _, err := s.bookings.MarkTerminal(ctx, nil, bookings.KindSingle, childID, childUpdate); err != nil {
			errs = multierr.Append(errs, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "child booking "+childID.String()))
		}
	}
	return errs
}

func (s *Service) recordAttempt(ctx context.Context, event intasend.WebhookEvent, transition Transition) {
	if s.attempts == nil || transition.Collection == "" {
		return
	}
	reason := ""
	if transition.Collection == enums.CollectionStatusFailed {
		reason = strings.TrimSpace(event.FailedReason)
	}
	if _, err := s.attempts.RecordStatus(ctx, strings.TrimSpace(event.APIRef), strings.TrimSpace(event.InvoiceID), transition.Collection, reason); err != nil && s.logg != nil {
		s.logg.Error(ctx, "update payment attempt", err)
	}
}

func (s *Service) emitPaymentEvent(ctx context.Context, target *bookings.Target, update bookings.TerminalUpdate) {
	if s.outbox == nil {
		return
	}
	event := outbox.DomainEvent{
		AggregateType: target.AggregateType(),
		AggregateID:   target.ID,
		Actor:         &outbox.ActorRef{BusinessID: &target.BusinessID, Source: "intasend_webhook"},
		OccurredAt:    update.At,
	}
	if update.Status == enums.PaymentStatusPaid {
		amount := decimal.Zero
		if update.AmountPaid != nil {
			amount = *update.AmountPaid
		}
		event.EventType = enums.EventPaymentSucceeded
		event.Data = payloads.PaymentSucceededEvent{
			Type:              payloads.NotificationPaymentSuccess,
			BookingID:         target.ID,
			IsGroup:           target.IsGroup(),
			BusinessID:        target.BusinessID,
			CustomerID:        target.CustomerID,
			ExternalReference: target.ExternalReference,
			InvoiceID:         update.InvoiceID,
			AmountPaid:        amount,
			Currency:          target.Currency,
			PaidAt:            update.At,
		}
	} else {
		event.EventType = enums.EventPaymentFailed
		event.Data = payloads.PaymentFailedEvent{
			Type:              payloads.NotificationPaymentFailed,
			BookingID:         target.ID,
			IsGroup:           target.IsGroup(),
			BusinessID:        target.BusinessID,
			CustomerID:        target.CustomerID,
			ExternalReference: target.ExternalReference,
			FailedReason:      update.FailedReason,
			FailedCode:        update.FailedCode,
		}
	}
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil && s.logg != nil {
		s.logg.Error(ctx, "emit payment notification event", err)
	}
}

func (s *Service) info(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Info(ctx, msg)
	}
}

func (s *Service) warn(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Warn(ctx, msg)
	}
}
