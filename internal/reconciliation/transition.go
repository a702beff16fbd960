package reconciliation

import (
	"strings"

	"github.com/lotusbook/payments-backend/pkg/enums"
	"github.com/lotusbook/payments-backend/pkg/intasend"
)

// Action is what the state machine does with a gateway state.
type Action string

const (
	ActionMarkPaid   Action = "mark_paid"
	ActionMarkFailed Action = "mark_failed"
	ActionProgress   Action = "progress"
	ActionNoop       Action = "noop"
	ActionDuplicate  Action = "duplicate"
	ActionIgnore     Action = "ignore"
)

// Transition is the result of mapping a gateway state onto a booking.
type Transition struct {
	Action     Action
	Target     enums.PaymentStatus
	Collection enums.CollectionStatus
}

// Terminal reports whether the transition writes paid or failed.
func (t Transition) Terminal() bool {
	return t.Action == ActionMarkPaid || t.Action == ActionMarkFailed
}

type stateRule struct {
	target     enums.PaymentStatus
	collection enums.CollectionStatus
}

var stateRules = map[string]stateRule{
	intasend.StateComplete:   {target: enums.PaymentStatusPaid, collection: enums.CollectionStatusComplete},
	intasend.StateSuccess:    {target: enums.PaymentStatusPaid, collection: enums.CollectionStatusComplete},
	intasend.StateFailed:     {target: enums.PaymentStatusFailed, collection: enums.CollectionStatusFailed},
	intasend.StateProcessing: {target: enums.PaymentStatusProcessing, collection: enums.CollectionStatusProcessing},
	intasend.StatePending:    {target: enums.PaymentStatusPending, collection: enums.CollectionStatusPending},
}

// PaymentTransition maps the booking's current payment status and the gateway state
// onto the next step. It performs no I/O.
func PaymentTransition(current enums.PaymentStatus, externalState string) Transition {
	rule, ok := stateRules[strings.ToUpper(strings.TrimSpace(externalState))]
	if !ok {
		return Transition{Action: ActionIgnore}
	}
	if current.IsTerminal() {
		return Transition{Action: ActionDuplicate, Target: current, Collection: rule.collection}
	}

	transition := Transition{Target: rule.target, Collection: rule.collection}
	switch rule.target {
	case enums.PaymentStatusPaid:
		transition.Action = ActionMarkPaid
	case enums.PaymentStatusFailed:
		transition.Action = ActionMarkFailed
	default:
		if current == rule.target {
			transition.Action = ActionNoop
		} else {
			transition.Action = ActionProgress
		}
	}
	return transition
}
