// Package lock provides per-key mutual exclusion on top of a token-guarded store.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrLockTimeout is returned when the lock could not be acquired before ctx ended.
var ErrLockTimeout = errors.New("lock: acquire timed out")

// store is the consumer interface for locking (ISP).
type store interface {
	SetNX(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	CompareAndDelete(ctx context.Context, key, token string) (bool, error)
}

// Locker hands out exclusive ownership of a key. Each holder gets a random token
// so an expired holder can never release a lock taken over by someone else.
type Locker struct {
	store  store
	prefix string
	ttl    time.Duration
	retry  time.Duration
	logger *zap.Logger
}

// New creates a Locker. ttl bounds how long a crashed holder blocks others.
func New(s store, prefix string, ttl time.Duration, logger *zap.Logger) *Locker {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Locker{store: s, prefix: prefix, ttl: ttl, retry: 10 * time.Millisecond, logger: logger}
}

// Acquire blocks until the lock on key is held or ctx is done.
// The returned release func is safe to call more than once.
func (l *Locker) Acquire(ctx context.Context, key string) (func(), error) {
	full := l.prefix + "lock:" + key
	token := uuid.NewString()

	for {
		ok, err := l.store.SetNX(ctx, full, token, l.ttl)
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %w", ErrLockTimeout, key, ctx.Err())
		case <-time.After(l.retry):
		}
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		// Release must succeed even if the caller's ctx is already cancelled.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		ok, err := l.store.CompareAndDelete(rctx, full, token)
		if err != nil {
			l.logger.Warn("Failed to release lock", zap.String("key", key), zap.Error(err))
			return
		}
		if !ok {
			l.logger.Warn("Lock expired before release", zap.String("key", key))
		}
	}, nil
}
