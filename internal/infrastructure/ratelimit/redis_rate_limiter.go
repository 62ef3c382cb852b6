package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/dashgate/internal/domain/models"
	"github.com/turtacn/dashgate/pkg/errors"
	"github.com/turtacn/dashgate/pkg/logger"
)

// RedisRateLimiter implements a distributed fixed-window limiter on Redis so
// that several gate instances share one set of buckets.
type RedisRateLimiter struct {
	client redis.UniversalClient
	logger logger.Logger
	name   string
	prefix string
	limit  int
	window time.Duration
	clock  Clock
}

// RedisRateLimiterConfig holds rate limiter configuration.
type RedisRateLimiterConfig struct {
	// Name is the pool name, used in the key.
	Name string
	// KeyPrefix is the Redis key prefix
	KeyPrefix string
	// Limit is the per-window quota
	Limit int
	// Window is the fixed window length
	Window time.Duration
}

// Lua script for an atomic fixed-window consume.
// Returns {allowed, points_left, pttl_ms}. A denied call never increments.
var fixedWindowScript = redis.NewScript(`
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local current = tonumber(redis.call('GET', KEYS[1]) or '0')

if current >= limit then
  local ttl = redis.call('PTTL', KEYS[1])
  if ttl < 0 then
    redis.call('PEXPIRE', KEYS[1], window)
    ttl = window
  end
  return {0, 0, ttl}
end

current = redis.call('INCR', KEYS[1])
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], window)
  ttl = window
end
return {1, limit - current, ttl}
`)

// NewRedisRateLimiter creates a new Redis-based rate limiter.
func NewRedisRateLimiter(client redis.UniversalClient, cfg RedisRateLimiterConfig, log logger.Logger) (*RedisRateLimiter, error) {
	if client == nil {
		return nil, errors.ErrInvalidRequest("redis client is required")
	}
	if cfg.Limit <= 0 || cfg.Window <= 0 {
		return nil, errors.ErrInvalidConfig.WithDetail("rate limit quota and window must be positive")
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "ratelimit"
	}

	rl := &RedisRateLimiter{
		client: client,
		logger: log,
		name:   cfg.Name,
		prefix: cfg.KeyPrefix,
		limit:  cfg.Limit,
		window: cfg.Window,
		clock:  time.Now,
	}

	log.Info(context.Background(), "Redis rate limiter initialized",
		logger.String("pool", cfg.Name),
		logger.Int("limit", cfg.Limit),
		logger.Duration("window", cfg.Window),
	)

	return rl, nil
}

// Consume takes one point from the bucket for key.
func (rl *RedisRateLimiter) Consume(ctx context.Context, key string) (models.RateDecision, error) {
	redisKey := rl.buildKey(key)
	now := rl.clock()

	res, err := fixedWindowScript.Run(ctx, rl.client, []string{redisKey}, rl.limit, rl.window.Milliseconds()).Int64Slice()
	if err != nil {
		return models.RateDecision{}, errors.ErrCache.WithError(err)
	}
	if len(res) < 3 {
		return models.RateDecision{}, errors.ErrCache.WithError(fmt.Errorf("invalid Lua script result: %v", res))
	}

	ttl := time.Duration(res[2]) * time.Millisecond
	resetAt := now.Add(ttl)
	if res[0] == 1 {
		return models.Allow(rl.limit, int(res[1]), resetAt), nil
	}
	return models.Deny(rl.limit, resetAt, ttl), nil
}

// Reset deletes the bucket for key.
func (rl *RedisRateLimiter) Reset(ctx context.Context, key string) error {
	redisKey := rl.buildKey(key)
	if err := rl.client.Del(ctx, redisKey).Err(); err != nil && err != redis.Nil {
		return errors.ErrCache.WithError(err)
	}

	rl.logger.Debug(ctx, "Rate limit reset",
		logger.String("pool", rl.name),
		logger.String("bucket_key", key),
	)
	return nil
}

// Usage reads the bucket for key without consuming.
func (rl *RedisRateLimiter) Usage(ctx context.Context, key string) (*models.BucketUsage, error) {
	redisKey := rl.buildKey(key)
	now := rl.clock()

	pipe := rl.client.Pipeline()
	getCmd := pipe.Get(ctx, redisKey)
	ttlCmd := pipe.PTTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, errors.ErrCache.WithError(err)
	}

	used, err := getCmd.Int()
	if err != nil && err != redis.Nil {
		return nil, errors.ErrCache.WithError(err)
	}

	resetAt := now.Add(rl.window)
	if ttl := ttlCmd.Val(); ttl > 0 {
		resetAt = now.Add(ttl)
	}
	return newBucketUsage(key, rl.limit, rl.limit-used, resetAt), nil
}

// Limit returns the per-window quota.
func (rl *RedisRateLimiter) Limit() int { return rl.limit }

// Window returns the window length.
func (rl *RedisRateLimiter) Window() time.Duration { return rl.window }

// buildKey builds a Redis key for rate limiting.
func (rl *RedisRateLimiter) buildKey(key string) string {
	return fmt.Sprintf("%s:%s:%s", rl.prefix, rl.name, key)
}
