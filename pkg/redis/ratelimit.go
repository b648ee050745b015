package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type RateLimitResult struct {
	Allowed   bool
	Remaining int64
	ResetAt   time.Time
	RetryIn   time.Duration
}

// slidingWindowScript keeps one sorted-set member per admitted request.
var slidingWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])
	local member = ARGV[5]

	redis.call("zremrangebyscore", key, "-inf", window_start)
	local current = redis.call("zcard", key)

	if current < limit then
		redis.call("zadd", key, now, member)
		redis.call("pexpire", key, window_ms)
		return {1, limit - current - 1}
	end

	local oldest = redis.call("zrange", key, 0, 0, "WITHSCORES")
	if #oldest > 0 then
		return {0, 0, oldest[2]}
	end
	return {0, 0, 0}
`)

// RateLimiter is a sliding window limiter shared by all replicas.
type RateLimiter struct {
	client    *Client
	keyPrefix string
	now       func() time.Time
}

func NewRateLimiter(client *Client, keyPrefix string) *RateLimiter {
	if keyPrefix == "" {
		keyPrefix = "clover:ratelimit:"
	}
	return &RateLimiter{
		client:    client,
		keyPrefix: keyPrefix,
		now:       time.Now,
	}
}

// Allow admits one request for key when fewer than limit were admitted within window.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error) {
	now := r.now()
	windowStart := now.Add(-window)

	result, err := slidingWindowScript.Run(ctx, r.client.rdb, []string{r.keyPrefix + key},
		now.UnixMilli(),
		windowStart.UnixMilli(),
		limit,
		window.Milliseconds(),
		fmt.Sprintf("%d-%s", now.UnixMilli(), uuid.New().String()),
	).Slice()
	if err != nil {
		return nil, err
	}

	allowedFlag, err := toInt64(result[0])
	if err != nil {
		return nil, err
	}
	remaining, err := toInt64(result[1])
	if err != nil {
		return nil, err
	}

	res := &RateLimitResult{
		Allowed:   allowedFlag == 1,
		Remaining: remaining,
		ResetAt:   now.Add(window),
	}

	if !res.Allowed && len(result) > 2 {
		oldestMs, err := toInt64(result[2])
		if err != nil {
			return nil, err
		}
		if oldestMs > 0 {
			res.RetryIn = time.UnixMilli(oldestMs).Add(window).Sub(now)
			res.ResetAt = now.Add(res.RetryIn)
		}
	}

	return res, nil
}

func (r *RateLimiter) Reset(ctx context.Context, key string) error {
	return r.client.rdb.Del(ctx, r.keyPrefix+key).Err()
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case string:
		// zrange WITHSCORES returns scores as strings
		parsed, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			f, ferr := strconv.ParseFloat(n, 64)
			if ferr != nil {
				return 0, err
			}
			return int64(f), nil
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("unexpected numeric type %T", v)
	}
}
