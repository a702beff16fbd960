package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/lotusbook/payments-backend/pkg/logger"
)

const defaultAttemptExpiry = 30 * time.Minute

type attemptExpirer interface {
	ExpireStale(ctx context.Context, cutoff time.Time) (int64, error)
}

type PaymentAttemptExpiryJobParams struct {
	Logger   *logger.Logger
	Attempts attemptExpirer
	Expiry   time.Duration
}

// NewPaymentAttemptExpiryJob expires STK pushes the customer never completed.
func NewPaymentAttemptExpiryJob(params PaymentAttemptExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Attempts == nil {
		return nil, fmt.Errorf("attempt repository required")
	}
	expiry := params.Expiry
	if expiry <= 0 {
		expiry = defaultAttemptExpiry
	}
	return &paymentAttemptExpiryJob{
		logg:     params.Logger,
		attempts: params.Attempts,
		expiry:   expiry,
		now:      time.Now,
	}, nil
}

type paymentAttemptExpiryJob struct {
	logg     *logger.Logger
	attempts attemptExpirer
	expiry   time.Duration
	now      func() time.Time
}

func (j *paymentAttemptExpiryJob) Name() string { return JobPaymentAttemptExpiry }

func (j *paymentAttemptExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.expiry)
	expired, err := j.attempts.ExpireStale(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("expire payment attempts: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"expired": expired,
	}), "stale payment attempts expired")
	return nil
}
