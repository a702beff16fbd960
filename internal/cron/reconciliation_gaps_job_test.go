package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/lotusbook/payments-backend/pkg/enums"
	"github.com/lotusbook/payments-backend/pkg/logger"
	"github.com/lotusbook/payments-backend/pkg/metrics"
)

type fakeGapCounter struct {
	counts map[enums.TransferStatus]int64
	cutoff time.Time
	err    error
}

func (f *fakeGapCounter) CountTransferGaps(_ context.Context, cutoff time.Time) (map[enums.TransferStatus]int64, error) {
	f.cutoff = cutoff
	if f.err != nil {
		return nil, f.err
	}
	return f.counts, nil
}

func TestReconciliationGapsJobSetsGauges(t *testing.T) {
	now := time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC)
	reg := prometheus.NewRegistry()
	counter := &fakeGapCounter{counts: map[enums.TransferStatus]int64{
		enums.TransferStatusFailed:  3,
		enums.TransferStatusPending: 1,
		enums.TransferStatusSkipped: 2,
	}}
	jobIface, err := NewReconciliationGapsJob(ReconciliationGapsJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "test"}),
		Bookings:  counter,
		Metrics:   metrics.NewReconciliationMetrics(reg),
		Threshold: 10 * time.Minute,
	})
	if err != nil {
		t.Fatalf("NewReconciliationGapsJob: %v", err)
	}
	job := jobIface.(*reconciliationGapsJob)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := now.Add(-10 * time.Minute); !counter.cutoff.Equal(want) {
		t.Fatalf("expected cutoff %s, got %s", want, counter.cutoff)
	}
	if got := gaugeValue(t, reg, "lotus_reconciliation_gaps", "failed"); got != 3 {
		t.Fatalf("expected 3 failed gaps, got %v", got)
	}
	if got := gaugeValue(t, reg, "lotus_reconciliation_gaps", "pending"); got != 1 {
		t.Fatalf("expected 1 pending gap, got %v", got)
	}
	if got := gaugeValue(t, reg, "lotus_reconciliation_gaps", "skipped"); got != 2 {
		t.Fatalf("expected 2 uncredited gaps, got %v", got)
	}

	counter.counts = map[enums.TransferStatus]int64{}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := gaugeValue(t, reg, "lotus_reconciliation_gaps", "failed"); got != 0 {
		t.Fatalf("expected gauge reset to 0, got %v", got)
	}
}

func TestReconciliationGapsJobPropagatesError(t *testing.T) {
	jobIface, err := NewReconciliationGapsJob(ReconciliationGapsJobParams{
		Logger:   logger.New(logger.Options{ServiceName: "test"}),
		Bookings: &fakeGapCounter{err: errors.New("db gone")},
	})
	if err != nil {
		t.Fatalf("NewReconciliationGapsJob: %v", err)
	}
	if err := jobIface.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func gaugeValue(t *testing.T, reg *prometheus.Registry, name, kind string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			if hasLabel(metric, "kind", kind) {
				return metric.GetGauge().GetValue()
			}
		}
	}
	t.Fatalf("metric %s{kind=%q} not found", name, kind)
	return 0
}

func hasLabel(metric *dto.Metric, name, value string) bool {
	for _, label := range metric.GetLabel() {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
