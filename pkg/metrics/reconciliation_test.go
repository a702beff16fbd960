package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestReconciliationMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewReconciliationMetrics(reg)

	m.WebhookEvent("processed")
	m.WebhookEvent("processed")
	m.WebhookEvent("duplicate")
	m.LedgerMutation("payout", "insufficient_balance")
	m.TransferResult("failed")
	m.PayoutResult("completed")
	m.SetGaps("transfer_failed", 4)
	m.SetGaps("transfer_failed", 2)
	m.ObserveGateway("payout_initiate", 0.2, errors.New("timeout"))

	if got := testutil.ToFloat64(m.webhookEvents.WithLabelValues("processed")); got != 2 {
		t.Fatalf("expected 2 processed webhooks, got %f", got)
	}
	if got := testutil.ToFloat64(m.ledgerMutations.WithLabelValues("payout", "insufficient_balance")); got != 1 {
		t.Fatalf("expected 1 rejected payout mutation, got %f", got)
	}
	if got := testutil.ToFloat64(m.reconcileGaps.WithLabelValues("transfer_failed")); got != 2 {
		t.Fatalf("expected gauge to be overwritten to 2, got %f", got)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if sum, err := fetchHistogramSum(mfs, "lotus_gateway_request_duration_seconds", "result", "error"); err != nil || sum != 0.2 {
		t.Fatalf("expected gateway histogram sum 0.2, got %f err=%v", sum, err)
	}
}

func TestReconciliationMetricsNilSafe(t *testing.T) {
	m := NewReconciliationMetrics(nil)
	if m != nil {
		t.Fatalf("expected nil metrics without registerer")
	}
	m.WebhookEvent("processed")
	m.PayoutResult("failed")
	m.SetGaps("transfer_failed", 1)
	m.ObserveGateway("x", 1, nil)
}
