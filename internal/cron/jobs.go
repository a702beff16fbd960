package cron

import (
	"context"

	"gorm.io/gorm"
)

const (
	JobOutboxRetention      = "outbox_retention"
	JobReconciliationGaps   = "reconciliation_gaps"
	JobPaymentAttemptExpiry = "payment_attempt_expiry"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}
