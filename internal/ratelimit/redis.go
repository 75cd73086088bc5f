package ratelimit

import (
	"context"
	"fmt"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisLimiter shares fixed-window counters across processes. INCR is atomic
// in Redis, so concurrent callers on one key observe a single order.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

func NewRedisLimiter(client *redis.Client, logger *zap.Logger) *RedisLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLimiter{
		client: client,
		prefix: "guildgate:ratelimit:",
		logger: logger,
	}
}

// Allow implements Limiter. Redis errors are returned, never treated as an allow.
func (l *RedisLimiter) Allow(ctx context.Context, key string, rule Rule) (Decision, error) {
	if rule.Limit <= 0 || rule.Window <= 0 {
		return Decision{}, fmt.Errorf("invalid rate limit rule %+v", rule)
	}
	redisKey := l.prefix + key

	pipe := l.client.TxPipeline()
	incrCmd := pipe.Incr(ctx, redisKey)
	// NX keeps the window anchored at the first call.
	pipe.ExpireNX(ctx, redisKey, rule.Window)
	ttlCmd := pipe.PTTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		l.logger.Error("rate limit check failed", zap.String("key", redisKey), zap.Error(err))
		return Decision{}, fmt.Errorf("rate limit check failed: %w", err)
	}

	count := incrCmd.Val()
	ttl := ttlCmd.Val()
	if ttl < 0 {
		ttl = rule.Window
	}

	if count > int64(rule.Limit) {
		l.logger.Debug("rate limit exceeded",
			zap.String("key", key),
			zap.Int64("count", count),
			zap.Int("limit", rule.Limit),
			zap.Duration("retry_after", ttl),
		)
		return Decision{Allowed: false, RetryAfter: ttl}, nil
	}

	return Decision{Allowed: true, Remaining: rule.Limit - int(count)}, nil
}

// Reset deletes the counter for key.
func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, l.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to reset rate limit for key %s: %w", key, err)
	}
	return nil
}

// Ping checks connectivity.
func (l *RedisLimiter) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

var (
	_ Limiter = (*Memory)(nil)
	_ Limiter = (*RedisLimiter)(nil)
)
