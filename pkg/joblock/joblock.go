// Package joblock enforces the at-most-one-job-per-closure discipline with a
// Redis-backed distributed lock. The task queue is expected to provide the
// same guarantee; this is the engine's own defense in depth.
package joblock

import (
	"context"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/castrometro/SGM-sub005/pkg/config"
	"github.com/castrometro/SGM-sub005/pkg/errors"
	"github.com/castrometro/SGM-sub005/pkg/logger"
)

// Locker hands out per-closure job locks
type Locker struct {
	client *redislock.Client
	ttl    time.Duration
	logger *logger.Logger
}

// New creates a Locker backed by the given Redis instance
func New(cfg *config.RedisConfig, ttl time.Duration, log *logger.Logger) *Locker {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &Locker{
		client: redislock.New(rdb),
		ttl:    ttl,
		logger: log,
	}
}

// NewWithClient wraps an existing Redis client. Used by tests.
func NewWithClient(rdb redislock.RedisClient, ttl time.Duration, log *logger.Logger) *Locker {
	return &Locker{
		client: redislock.New(rdb),
		ttl:    ttl,
		logger: log,
	}
}

// Lock is a held per-closure lock
type Lock struct {
	inner *redislock.Lock
}

// Release releases the lock. Safe to call after expiry.
func (l *Lock) Release(ctx context.Context) {
	if l == nil || l.inner == nil {
		return
	}
	_ = l.inner.Release(ctx)
}

// Acquire obtains the job lock for a closure. Returns ConcurrentJobConflict
// when another job already holds it; the caller decides whether to requeue
// or surface the conflict.
func (l *Locker) Acquire(ctx context.Context, closureID string) (*Lock, error) {
	key := fmt.Sprintf("payroll:closure-job:%s", closureID)

	lock, err := l.client.Obtain(ctx, key, l.ttl, nil)
	if err == redislock.ErrNotObtained {
		l.logger.Warn().
			Str("closure_id", closureID).
			Msg("closure job lock already held")
		return nil, errors.ConcurrentJobConflict(closureID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to obtain closure job lock: %w", err)
	}

	return &Lock{inner: lock}, nil
}
