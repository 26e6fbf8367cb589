// Package lock provides Redis-backed mutual exclusion across worker processes.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Options tunes lock acquisition.
type Options struct {
	Expiry     time.Duration
	Tries      int
	RetryDelay time.Duration
}

// DefaultOptions suits short posting commits.
func DefaultOptions() Options {
	return Options{Expiry: 10 * time.Second, Tries: 32, RetryDelay: 50 * time.Millisecond}
}

// RedisLocker implements posting.Locker with redsync.
type RedisLocker struct {
	rs     *redsync.Redsync
	opts   Options
	logger *slog.Logger
}

// NewRedisLocker builds a locker over client.
func NewRedisLocker(client *redis.Client, opts Options, logger *slog.Logger) (*RedisLocker, error) {
	if client == nil {
		return nil, errors.New("lock: redis client required")
	}
	def := DefaultOptions()
	if opts.Expiry <= 0 {
		opts.Expiry = def.Expiry
	}
	if opts.Tries <= 0 {
		opts.Tries = def.Tries
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = def.RetryDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisLocker{rs: redsync.New(goredis.NewPool(client)), opts: opts, logger: logger}, nil
}

// WithLock runs fn while holding key. Contention past the configured tries
// returns shared.ErrLockNotAcquired.
func (l *RedisLocker) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	mutex := l.rs.NewMutex(key,
		redsync.WithExpiry(l.opts.Expiry),
		redsync.WithTries(l.opts.Tries),
		redsync.WithRetryDelay(l.opts.RetryDelay),
	)
	if err := mutex.LockContext(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("lock: acquire %s: %w", key, ctxErr)
		}
		return fmt.Errorf("%w: %s: %v", shared.ErrLockNotAcquired, key, err)
	}
	defer func() {
		if ok, err := mutex.UnlockContext(context.WithoutCancel(ctx)); !ok || err != nil {
			l.logger.Warn("lock release failed", slog.String("key", key), slog.Bool("ok", ok), slog.Any("error", err))
		}
	}()
	return fn(ctx)
}
