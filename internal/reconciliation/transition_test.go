package reconciliation

import (
	"testing"

	"github.com/lotusbook/payments-backend/pkg/enums"
)

func TestPaymentTransition(t *testing.T) {
	cases := []struct {
		name       string
		current    enums.PaymentStatus
		state      string
		wantAction Action
		wantTarget enums.PaymentStatus
	}{
		{name: "complete pays", current: enums.PaymentStatusPending, state: "COMPLETE", wantAction: ActionMarkPaid, wantTarget: enums.PaymentStatusPaid},
		{name: "success pays", current: enums.PaymentStatusNone, state: "success", wantAction: ActionMarkPaid, wantTarget: enums.PaymentStatusPaid},
		{name: "failed", current: enums.PaymentStatusProcessing, state: "FAILED", wantAction: ActionMarkFailed, wantTarget: enums.PaymentStatusFailed},
		{name: "processing moves", current: enums.PaymentStatusPending, state: "PROCESSING", wantAction: ActionProgress, wantTarget: enums.PaymentStatusProcessing},
		{name: "processing repeated", current: enums.PaymentStatusProcessing, state: "PROCESSING", wantAction: ActionNoop, wantTarget: enums.PaymentStatusProcessing},
		{name: "pending repeated", current: enums.PaymentStatusPending, state: " pending ", wantAction: ActionNoop, wantTarget: enums.PaymentStatusPending},
		{name: "pending from none", current: enums.PaymentStatusNone, state: "PENDING", wantAction: ActionProgress, wantTarget: enums.PaymentStatusPending},
		{name: "already paid", current: enums.PaymentStatusPaid, state: "COMPLETE", wantAction: ActionDuplicate, wantTarget: enums.PaymentStatusPaid},
		{name: "failed cannot become paid", current: enums.PaymentStatusFailed, state: "COMPLETE", wantAction: ActionDuplicate, wantTarget: enums.PaymentStatusFailed},
		{name: "paid cannot regress", current: enums.PaymentStatusPaid, state: "PENDING", wantAction: ActionDuplicate, wantTarget: enums.PaymentStatusPaid},
		{name: "unknown state", current: enums.PaymentStatusPending, state: "RETRY", wantAction: ActionIgnore},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := PaymentTransition(tc.current, tc.state)
			if got.Action != tc.wantAction {
				t.Fatalf("action = %q, want %q", got.Action, tc.wantAction)
			}
			if got.Target != tc.wantTarget {
				t.Fatalf("target = %q, want %q", got.Target, tc.wantTarget)
			}
		})
	}
}

func TestTransitionCollectionStatus(t *testing.T) {
	if got := PaymentTransition(enums.PaymentStatusPending, "COMPLETE").Collection; got != enums.CollectionStatusComplete {
		t.Fatalf("expected complete attempt, got %q", got)
	}
	if got := PaymentTransition(enums.PaymentStatusPending, "FAILED").Collection; got != enums.CollectionStatusFailed {
		t.Fatalf("expected failed attempt, got %q", got)
	}
	if got := PaymentTransition(enums.PaymentStatusPending, "UNKNOWN").Collection; got != "" {
		t.Fatalf("expected no attempt status for unknown state, got %q", got)
	}
}
