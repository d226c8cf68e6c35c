package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// admitScript purges, counts and conditionally records a request in one
// atomic round trip. KEYS[1] is the window key; ARGV: now-micros,
// window-micros, max requests. Returns {allowed, count, oldest-micros}.
var admitScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max = tonumber(ARGV[3])
local cutoff = now - window

redis.call('ZREMRANGEBYSCORE', key, '-inf', cutoff)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < max then
    redis.call('ZADD', key, now, tostring(now))
    allowed = 1
    count = count + 1
end
redis.call('PEXPIRE', key, math.ceil(window / 1000))
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
return {allowed, count, oldest[2]}
`)

// RedisStore is a WindowStore backed by a shared Redis instance, for
// multi-instance deployments where per-process limiting is not acceptable.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed window store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "ratelimit:"}
}

// Admit implements WindowStore.
func (s *RedisStore) Admit(ctx context.Context, identifier string, now time.Time, window time.Duration, maxRequests int) (Result, error) {
	key := s.prefix + identifier
	res, err := admitScript.Run(ctx, s.client, []string{key},
		now.UnixMicro(), window.Microseconds(), maxRequests).Slice()
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit admit script: %w", err)
	}
	if len(res) != 3 {
		return Result{}, fmt.Errorf("ratelimit admit script: unexpected reply %v", res)
	}

	allowed := res[0].(int64) == 1
	count := int(res[1].(int64))
	oldest := now
	if raw, ok := res[2].(string); ok {
		if micros, err := strconv.ParseInt(raw, 10, 64); err == nil {
			oldest = time.UnixMicro(micros)
		}
	}
	resetAt := oldest.Add(window)

	result := Result{
		Allowed:   allowed,
		Remaining: maxRequests - count,
		ResetAt:   resetAt,
	}
	if !allowed {
		result.Remaining = 0
		result.RetryAfter = resetAt.Sub(now)
		if result.RetryAfter <= 0 {
			result.RetryAfter = time.Millisecond
		}
	}
	return result, nil
}

// Reset implements WindowStore.
func (s *RedisStore) Reset(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("ratelimit reset: %w", err)
		}
	}
	return iter.Err()
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
