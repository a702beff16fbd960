package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lotusbook/payments-backend/pkg/redis"
)

// WebhookScope namespaces webhook dedupe keys in Redis.
const WebhookScope = "intasend_webhook"

// IdempotencyGuard short-circuits exact webhook redeliveries before they reach the database.
// A delivery is marked with the short in-flight TTL and kept for the full TTL only once
// it was processed, so a crash mid-delivery blocks redeliveries for minutes, not days.
type IdempotencyGuard struct {
	store    redis.IdempotencyStore
	inFlight time.Duration
	ttl      time.Duration
	scope    string
}

func NewIdempotencyGuard(store redis.IdempotencyStore, inFlight, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if inFlight <= 0 {
		return nil, errors.New("in-flight ttl must be positive")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if ttl > 0 && inFlight > ttl {
		return nil, errors.New("in-flight ttl must not exceed ttl")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &IdempotencyGuard{
		store:    store,
		inFlight: inFlight,
		ttl:      ttl,
		scope:    scope,
	}, nil
}

// CheckAndMark returns true when deliveryKey was already seen or is being processed.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, deliveryKey string) (bool, error) {
	if deliveryKey == "" {
		return false, errors.New("delivery key is required")
	}
	key := g.store.IdempotencyKey(g.scope, deliveryKey)
	set, err := g.store.SetNX(ctx, key, "1", g.inFlight)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

// Confirm keeps deliveryKey for the full TTL after the delivery was processed.
func (g *IdempotencyGuard) Confirm(ctx context.Context, deliveryKey string) error {
	if deliveryKey == "" {
		return errors.New("delivery key is required")
	}
	key := g.store.IdempotencyKey(g.scope, deliveryKey)
	if err := g.store.Set(ctx, key, "1", g.ttl); err != nil {
		return fmt.Errorf("extend idempotency key: %w", err)
	}
	return nil
}

// Delete releases deliveryKey so a redelivery is processed again.
func (g *IdempotencyGuard) Delete(ctx context.Context, deliveryKey string) error {
	if deliveryKey == "" {
		return errors.New("delivery key is required")
	}
	key := g.store.IdempotencyKey(g.scope, deliveryKey)
	return g.store.Del(ctx, key)
}
