package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redsync/redsync/v4"
	goredis "github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

// Unlocker releases a reservation.
type Unlocker func(ctx context.Context) error

// Locker reserves a cache key across processes for the duration of one
// dispatch.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: Lock must return promptly when ctx is done.
// - Errors: contention returns an error matching ErrLockNotAcquired; other
//   errors mean the lock service failed.
type Locker interface {
	Lock(ctx context.Context, key string) (Unlocker, error)
}

const lockKeyPrefix = "lock:"

// RedisLockerConfig configures a RedisLocker.
type RedisLockerConfig struct {
	// Expiry bounds how long a crashed holder blocks the key.
	// Default: 30s
	Expiry time.Duration

	// Tries is the number of acquisition attempts.
	// Default: 10
	Tries int

	// RetryDelay is the pause between attempts.
	// Default: 200ms
	RetryDelay time.Duration
}

// DefaultRedisLockerConfig returns the default locker configuration.
func DefaultRedisLockerConfig() RedisLockerConfig {
	return RedisLockerConfig{
		Expiry:     30 * time.Second,
		Tries:      10,
		RetryDelay: 200 * time.Millisecond,
	}
}

// RedisLocker is a Locker on redsync mutexes.
type RedisLocker struct {
	rs  *redsync.Redsync
	cfg RedisLockerConfig
}

// NewRedisLocker creates a Locker using client. Zero config fields use the
// defaults.
func NewRedisLocker(client redis.UniversalClient, cfg RedisLockerConfig) (*RedisLocker, error) {
	if client == nil {
		return nil, ErrNilBackend
	}

	def := DefaultRedisLockerConfig()
	if cfg.Expiry <= 0 {
		cfg.Expiry = def.Expiry
	}
	if cfg.Tries <= 0 {
		cfg.Tries = def.Tries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}

	return &RedisLocker{
		rs:  redsync.New(goredis.NewPool(client)),
		cfg: cfg,
	}, nil
}

// Lock acquires the reservation for key.
func (l *RedisLocker) Lock(ctx context.Context, key string) (Unlocker, error) {
	if key == "" {
		return nil, ErrInvalidLockerKey
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mutex := l.rs.NewMutex(lockKeyPrefix+key,
		redsync.WithExpiry(l.cfg.Expiry),
		redsync.WithTries(l.cfg.Tries),
		redsync.WithRetryDelay(l.cfg.RetryDelay),
	)

	if err := mutex.LockContext(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if isContention(err) {
			return nil, fmt.Errorf("%w: %s", ErrLockNotAcquired, key)
		}
		return nil, fmt.Errorf("idempotency: lock %s: %w", key, err)
	}

	return func(ctx context.Context) error {
		if _, err := mutex.UnlockContext(ctx); err != nil {
			if isContention(err) {
				// Expired and possibly taken by another holder.
				return nil
			}
			return fmt.Errorf("idempotency: unlock %s: %w", key, err)
		}
		return nil
	}, nil
}

// isContention reports whether err means another holder owns the lock.
func isContention(err error) bool {
	if errors.Is(err, redsync.ErrFailed) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "lock already taken") ||
		strings.Contains(msg, "failed to acquire lock") ||
		strings.Contains(msg, "already expired")
}

var _ Locker = (*RedisLocker)(nil)
