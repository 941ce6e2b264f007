// Package ratelimit implements per-tenant submission throttling and a
// short-lived distributed lock over idempotency keys, both backed by
// Redis.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var submissionScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  ttl = tonumber(ARGV[1])
end
return {current, ttl}
`)

// Limiter implements distributed submission throttling: N receipts or
// redeem requests per (tenant, scope) per rolling window.
type Limiter struct {
	client redis.UniversalClient
	prefix string
}

func NewLimiter(client redis.UniversalClient, prefix string) *Limiter {
	trimmed := strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if trimmed == "" {
		trimmed = "ledgerd:rate_limit"
	}
	return &Limiter{client: client, prefix: trimmed}
}

// Consume increments the counter for (scope, subject) and reports the
// current count and seconds until the window resets. A zero limit or
// window disables limiting (returns 0, 0, nil) — callers interpret that
// as "always allowed".
func (l *Limiter) Consume(ctx context.Context, scope, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error) {
	if l == nil || l.client == nil || limit <= 0 || window <= 0 {
		return 0, 0, nil
	}
	scope = strings.TrimSpace(scope)
	subject = strings.TrimSpace(subject)
	if scope == "" || subject == "" {
		return 0, 0, nil
	}

	windowMs := window.Milliseconds()
	if windowMs < 1000 {
		windowMs = 1000
	}

	key := fmt.Sprintf("%s:%s:%s", l.prefix, scope, subject)
	raw, err := submissionScript.Run(ctx, l.client, []string{key}, windowMs).Result()
	if err != nil {
		return 0, 0, err
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) != 2 {
		return 0, 0, fmt.Errorf("unexpected rate limiter response shape: %T", raw)
	}
	currentCount, ok := values[0].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("unexpected rate limiter count type: %T", values[0])
	}
	ttlMs, ok := values[1].(int64)
	if !ok {
		return int(currentCount), 0, fmt.Errorf("unexpected rate limiter ttl type: %T", values[1])
	}
	if ttlMs < 0 {
		ttlMs = windowMs
	}

	retryAfter := int(math.Ceil(float64(ttlMs) / 1000.0))
	if retryAfter < 1 {
		retryAfter = 1
	}
	return int(currentCount), retryAfter, nil
}

// IdempotencyLock is a short-lived distributed lock over a (tenant,
// idempotency_key) pair, held for the duration of one ingress request so
// two concurrent submissions of the same key can't both race past the
// store's duplicate check before either has committed its insert.
type IdempotencyLock struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewIdempotencyLock(client redis.UniversalClient, prefix string, ttl time.Duration) *IdempotencyLock {
	trimmed := strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if trimmed == "" {
		trimmed = "ledgerd:idem_lock"
	}
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &IdempotencyLock{client: client, prefix: trimmed, ttl: ttl}
}

// Acquire attempts to take the lock for (tenant, key), returning false if
// another in-flight request already holds it.
func (l *IdempotencyLock) Acquire(ctx context.Context, tenant, key string) (bool, error) {
	redisKey := fmt.Sprintf("%s:%s:%s", l.prefix, tenant, key)
	ok, err := l.client.SetNX(ctx, redisKey, "1", l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire idempotency lock: %w", err)
	}
	return ok, nil
}

// Release drops the lock early, once the store-level duplicate check and
// insert have committed.
func (l *IdempotencyLock) Release(ctx context.Context, tenant, key string) error {
	redisKey := fmt.Sprintf("%s:%s:%s", l.prefix, tenant, key)
	return l.client.Del(ctx, redisKey).Err()
}
