package enums

import (
	"fmt"
	"strings"
)

// CollectionStatus tracks a PaymentAttempt created by an STK push.
type CollectionStatus string

const (
	CollectionStatusInitiated  CollectionStatus = "initiated"
	CollectionStatusPending    CollectionStatus = "pending"
	CollectionStatusProcessing CollectionStatus = "processing"
	CollectionStatusComplete   CollectionStatus = "complete"
	CollectionStatusFailed     CollectionStatus = "failed"
	CollectionStatusExpired    CollectionStatus = "expired"
)

var validCollectionStatuses = []CollectionStatus{
	CollectionStatusInitiated,
	CollectionStatusPending,
	CollectionStatusProcessing,
	CollectionStatusComplete,
	CollectionStatusFailed,
	CollectionStatusExpired,
}

// IsValid reports whether the value is a known CollectionStatus.
func (c CollectionStatus) IsValid() bool {
	for _, candidate := range validCollectionStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCollectionStatus converts raw input (any case) into a CollectionStatus.
func ParseCollectionStatus(value string) (CollectionStatus, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validCollectionStatuses {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid collection status %q", value)
}
