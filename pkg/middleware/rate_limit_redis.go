package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a fixed-window counter shared by every replica: each key gets
// floor(rps*window)+burst requests per window.
type RedisLimiter struct {
	client  *redis.Client
	allowed int64
	window  time.Duration
	now     func() time.Time
}

func NewRedisLimiter(client *redis.Client, rps float64, burst int, window time.Duration) *RedisLimiter {
	if window < time.Second {
		window = time.Second
	}
	return &RedisLimiter{
		client:  client,
		allowed: int64(rps*window.Seconds()) + int64(burst),
		window:  window,
		now:     time.Now,
	}
}

func (r *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	secs := int64(r.window / time.Second)
	bucket := r.now().Unix() / secs
	redisKey := fmt.Sprintf("rl:%s:%d", key, bucket)

	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, redisKey)
		p.Expire(ctx, redisKey, r.window+time.Second)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("rate limit check: %w", err)
	}
	return incr.Val() <= r.allowed, nil
}

func (r *RedisLimiter) Name() string { return "redis" }

func (r *RedisLimiter) RetryAfter() time.Duration { return r.window }
