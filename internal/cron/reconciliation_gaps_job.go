package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/lotusbook/payments-backend/pkg/enums"
	"github.com/lotusbook/payments-backend/pkg/logger"
	"github.com/lotusbook/payments-backend/pkg/metrics"
)

const defaultGapThreshold = 15 * time.Minute

type gapCounter interface {
	CountTransferGaps(ctx context.Context, cutoff time.Time) (map[enums.TransferStatus]int64, error)
}

type ReconciliationGapsJobParams struct {
	Logger    *logger.Logger
	Bookings  gapCounter
	Metrics   *metrics.ReconciliationMetrics
	Threshold time.Duration
}

// NewReconciliationGapsJob reports paid bookings whose internal transfer failed
// or is still pending past the threshold. Gaps are surfaced, never repaired.
func NewReconciliationGapsJob(params ReconciliationGapsJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Bookings == nil {
		return nil, fmt.Errorf("booking repository required")
	}
	threshold := params.Threshold
	if threshold <= 0 {
		threshold = defaultGapThreshold
	}
	return &reconciliationGapsJob{
		logg:      params.Logger,
		bookings:  params.Bookings,
		metrics:   params.Metrics,
		threshold: threshold,
		now:       time.Now,
	}, nil
}

type reconciliationGapsJob struct {
	logg      *logger.Logger
	bookings  gapCounter
	metrics   *metrics.ReconciliationMetrics
	threshold time.Duration
	now       func() time.Time
}

func (j *reconciliationGapsJob) Name() string { return JobReconciliationGaps }

func (j *reconciliationGapsJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.threshold)
	counts, err := j.bookings.CountTransferGaps(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("count transfer gaps: %w", err)
	}

	var total int64
	for _, status := range []enums.TransferStatus{enums.TransferStatusFailed, enums.TransferStatusPending, enums.TransferStatusSkipped} {
		j.metrics.SetGaps(status.String(), counts[status])
		total += counts[status]
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":        cutoff,
		"failed":        counts[enums.TransferStatusFailed],
		"pending":       counts[enums.TransferStatusPending],
		"credit_failed": counts[enums.TransferStatusSkipped],
	})
	if total > 0 {
		j.logg.Warn(logCtx, "credited bookings without a completed transfer")
		return nil
	}
	j.logg.Info(logCtx, "no reconciliation gaps")
	return nil
}
