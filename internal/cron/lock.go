package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultLockTTL = 4 * time.Minute

// Locker hands out per-job leases so only one worker runs a job at a time.
type Locker interface {
	TryLock(ctx context.Context, job string) (Lease, bool, error)
}

// Lease is a held job lock.
type Lease interface {
	Release(ctx context.Context) error
}

type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	LockKey(name string) string
}

// RedisLocker implements Locker with SETNX and a TTL. The TTL bounds a job's
// runtime so a crashed worker never holds a job forever.
type RedisLocker struct {
	client redisStore
	ttl    time.Duration
}

func NewRedisLocker(client redisStore, ttl time.Duration) (*RedisLocker, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLocker{client: client, ttl: ttl}, nil
}

// TTL reports how long a lease stays valid.
func (l *RedisLocker) TTL() time.Duration { return l.ttl }

// TryLock returns ok=false when another worker holds the job.
func (l *RedisLocker) TryLock(ctx context.Context, job string) (Lease, bool, error) {
	if job == "" {
		return nil, false, errors.New("job name is required")
	}
	key := l.client.LockKey("cron:" + job)
	owner := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, owner, l.ttl)
	if err != nil {
		return nil, false, fmt.Errorf("setnx %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return &redisLease{client: l.client, key: key, owner: owner}, true, nil
}

type redisLease struct {
	client redisStore
	key    string
	owner  string
}

// Release deletes the key only while this lease still owns it.
func (l *redisLease) Release(ctx context.Context) error {
	if l.owner == "" {
		return nil
	}
	value, err := l.client.Get(ctx, l.key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			l.owner = ""
			return nil
		}
		return fmt.Errorf("read lock owner: %w", err)
	}
	if value != l.owner {
		l.owner = ""
		return nil
	}
	if err := l.client.Del(ctx, l.key); err != nil {
		return fmt.Errorf("delete lock: %w", err)
	}
	l.owner = ""
	return nil
}
