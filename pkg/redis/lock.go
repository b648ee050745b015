package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("lock not acquired")
	ErrLockNotHeld     = errors.New("lock not held")
)

var (
	releaseScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`)

	extendScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("pexpire", KEYS[1], ARGV[2])
		else
			return 0
		end
	`)
)

// Lock is held by exactly one owner value until released or expired.
type Lock struct {
	client *Client
	key    string
	value  string
	ttl    time.Duration
}

type Locker struct {
	client    *Client
	keyPrefix string
}

func NewLocker(client *Client, keyPrefix string) *Locker {
	if keyPrefix == "" {
		keyPrefix = "clover:lock:"
	}
	return &Locker{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Acquire makes a single SET NX attempt.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	lockKey := l.keyPrefix + key
	lockValue := uuid.New().String()

	ok, err := l.client.rdb.SetNX(ctx, lockKey, lockValue, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}

	l.client.logger.WithContext(ctx).Debugf("Acquired lock: %s", key)

	return &Lock{
		client: l.client,
		key:    lockKey,
		value:  lockValue,
		ttl:    ttl,
	}, nil
}

// TryAcquire retries Acquire with capped exponential backoff until timeout or ctx is done.
func (l *Locker) TryAcquire(ctx context.Context, key string, ttl, timeout time.Duration) (*Lock, error) {
	deadline := time.Now().Add(timeout)
	backoff := 10 * time.Millisecond

	for {
		lock, err := l.Acquire(ctx, key, ttl)
		if err == nil {
			return lock, nil
		}
		if !errors.Is(err, ErrLockNotAcquired) {
			return nil, err
		}
		if !time.Now().Add(backoff).Before(deadline) {
			return nil, ErrLockNotAcquired
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
			if backoff > 500*time.Millisecond {
				backoff = 500 * time.Millisecond
			}
		}
	}
}

func (lock *Lock) Release(ctx context.Context) error {
	result, err := releaseScript.Run(ctx, lock.client.rdb, []string{lock.key}, lock.value).Int64()
	if err != nil {
		return err
	}
	if result == 0 {
		return ErrLockNotHeld
	}

	lock.client.logger.WithContext(ctx).Debugf("Released lock: %s", lock.key)
	return nil
}

func (lock *Lock) Extend(ctx context.Context, ttl time.Duration) error {
	result, err := extendScript.Run(ctx, lock.client.rdb, []string{lock.key}, lock.value, ttl.Milliseconds()).Int64()
	if err != nil {
		return err
	}
	if result == 0 {
		return ErrLockNotHeld
	}

	lock.ttl = ttl
	return nil
}
