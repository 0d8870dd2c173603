package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const limiterKeyPrefix = "ratelimit:"

// Counting and recording must be one atomic step, otherwise two gateway
// instances could both admit the request that crosses the ceiling.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
if redis.call('ZCARD', key) >= max then
	return 0
end

redis.call('ZADD', key, now, now .. '-' .. math.random(1000000))
redis.call('PEXPIRE', key, window)
return 1
`)

// RedisLimiter is the shared sliding-window limiter: a sorted set of
// request timestamps per client key, trimmed and counted in a Lua script.
type RedisLimiter struct {
	client      *redis.Client
	maxRequests int
	window      time.Duration
}

func NewRedisLimiter(client *redis.Client, maxRequests int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, maxRequests: maxRequests, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	result, err := slidingWindowScript.Run(ctx, l.client,
		[]string{limiterKeyPrefix + key},
		time.Now().UnixMilli(), l.window.Milliseconds(), l.maxRequests,
	).Int()
	if err != nil {
		return false, fmt.Errorf("rate limiter: %w", err)
	}
	return result == 1, nil
}
