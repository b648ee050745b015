package reconcile

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/redis"
)

// KeyLocker serialises work on one sync key. The returned func releases the lock.
type KeyLocker interface {
	// TryLock fails with ErrKeyBusy when the key is held.
	TryLock(ctx context.Context, key string) (func(), error)
	// Lock waits until the key is free or ctx is done.
	Lock(ctx context.Context, key string) (func(), error)
}

// LocalLocker locks keys within one process.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]chan struct{})}
}

func (l *LocalLocker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = make(chan struct{}, 1)
		l.slots[key] = s
	}
	return s
}

func (l *LocalLocker) TryLock(_ context.Context, key string) (func(), error) {
	s := l.slot(key)
	select {
	case s <- struct{}{}:
		return func() { <-s }, nil
	default:
		return nil, ErrKeyBusy
	}
}

func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	s := l.slot(key)
	select {
	case s <- struct{}{}:
		return func() { <-s }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// RedisLocker locks keys across replicas. Locks expire after ttl so a crashed holder
// cannot block a key for longer than that.
type RedisLocker struct {
	locker *redis.Locker
	ttl    time.Duration
	wait   time.Duration
	logger ectologger.Logger
}

// NewRedisLocker creates a locker whose Lock waits at most wait.
func NewRedisLocker(locker *redis.Locker, ttl, wait time.Duration, logger ectologger.Logger) *RedisLocker {
	return &RedisLocker{locker: locker, ttl: ttl, wait: wait, logger: logger}
}

func lockName(key string) string {
	return "reconcile:" + key
}

func (l *RedisLocker) release(lock *redis.Lock, key string) func() {
	return func() {
		if err := lock.Release(context.Background()); err != nil {
			l.logger.WithError(err).WithField("sync_key", key).Warn("Failed to release reconcile lock")
		}
	}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string) (func(), error) {
	lock, err := l.locker.Acquire(ctx, lockName(key), l.ttl)
	if errors.Is(err, redis.ErrLockNotAcquired) {
		return nil, ErrKeyBusy
	}
	if err != nil {
		return nil, err
	}
	return l.release(lock, key), nil
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	lock, err := l.locker.TryAcquire(ctx, lockName(key), l.ttl, l.wait)
	if errors.Is(err, redis.ErrLockNotAcquired) {
		return nil, ErrKeyBusy
	}
	if err != nil {
		return nil, err
	}
	return l.release(lock, key), nil
}
