// Package ratelimit implements the fast-store atomic counters §5 and §9
// call for: "rate limiters ... are token buckets persisted in the fast
// store with atomic decrement" and "daily caps and diversity counters are
// expressed as atomic counters in the fast store keyed by (entity,
// window)". Backed by Redis (go-redis), which the teacher's config
// reserved a RedisURL field for but never wired to anything.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Bucket is a Redis-backed token bucket: capacity tokens refilled at
// rate per window, decremented atomically via a Lua script so concurrent
// pipeline workers never over-spend it.
type Bucket struct {
	rdb      *redis.Client
	key      string
	capacity int64
	window   time.Duration
}

func NewBucket(rdb *redis.Client, key string, capacity int64, window time.Duration) *Bucket {
	return &Bucket{rdb: rdb, key: key, capacity: capacity, window: window}
}

// tokenBucketScript implements a fixed-window approximation of a token
// bucket: INCR the window counter, set expiry on first increment, and
// report whether the caller is within budget.
var tokenBucketScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[1])
end
if current > tonumber(ARGV[2]) then
	return 0
end
return 1
`)

// Acquire attempts to consume one token, returning ok=false if the
// bucket is exhausted for the current window.
func (b *Bucket) Acquire(ctx context.Context) (ok bool, err error) {
	res, err := tokenBucketScript.Run(ctx, b.rdb, []string{b.key}, int(b.window.Seconds()), b.capacity).Int()
	if err != nil {
		return false, fmt.Errorf("token bucket acquire %s: %w", b.key, err)
	}
	return res == 1, nil
}

// Remaining reports the current count of unused tokens in the window,
// for the channel_bucket_tokens_remaining gauge.
func (b *Bucket) Remaining(ctx context.Context) (int64, error) {
	v, err := b.rdb.Get(ctx, b.key).Int64()
	if err == redis.Nil {
		return b.capacity, nil
	}
	if err != nil {
		return 0, err
	}
	used := v
	if used > b.capacity {
		used = b.capacity
	}
	return b.capacity - used, nil
}

// Counter is a simple windowed atomic counter used for diversity caps
// and per-user daily caps — same shape as Bucket but without the
// capacity-check short-circuit, since callers compare against a
// plan-dependent limit themselves.
type Counter struct {
	rdb *redis.Client
}

func NewCounter(rdb *redis.Client) *Counter {
	return &Counter{rdb: rdb}
}

// Increment bumps the counter at key, resetting its ttl on every call,
// and returns the new value.
func (c *Counter) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := c.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, ttl)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("counter increment %s: %w", key, err)
	}
	return incr.Val(), nil
}

// Get returns the current counter value, or 0 if unset.
func (c *Counter) Get(ctx context.Context, key string) (int64, error) {
	v, err := c.rdb.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return v, nil
}

// DailyCapKey builds the (entity, window) key for a per-UTC-day cap,
// e.g. "alert_cap:<user_id>:2026-07-30".
func DailyCapKey(entity, id string, day time.Time) string {
	return fmt.Sprintf("%s:%s:%s", entity, id, day.UTC().Format("2006-01-02"))
}

// DiversityKey builds the (entity, window) key for a rolling-window
// diversity cap, e.g. "diversity:tg-main:bmw:x5:<bucket>".
func DiversityKey(channel, brandID, modelID string, bucket int64) string {
	return fmt.Sprintf("diversity:%s:%s:%s:%d", channel, brandID, modelID, bucket)
}
