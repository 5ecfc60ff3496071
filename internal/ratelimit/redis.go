package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "riskwatch:ratelimit:"
	redisWindow    = time.Minute
)

// RedisLimiter counts requests per key in one-minute windows shared by all
// replicas. A key may make PerMinute+Burst requests per window.
type RedisLimiter struct {
	client redis.Cmdable
	limit  int64
	now    func() time.Time
}

// NewRedis creates a Redis-backed limiter. Zero fields in cfg take their
// defaults; IdleTTL is unused since windows expire on their own.
func NewRedis(client redis.Cmdable, cfg Config) *RedisLimiter {
	def := DefaultConfig()
	if cfg.PerMinute <= 0 {
		cfg.PerMinute = def.PerMinute
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	return &RedisLimiter{
		client: client,
		limit:  int64(cfg.PerMinute + cfg.Burst),
		now:    time.Now,
	}
}

func (r *RedisLimiter) windowKey(key string) string {
	window := r.now().Unix() / int64(redisWindow/time.Second)
	return redisKeyPrefix + key + ":" + strconv.FormatInt(window, 10)
}

// Take implements Backend.
func (r *RedisLimiter) Take(ctx context.Context, key string) (bool, error) {
	k := r.windowKey(key)
	n, err := r.client.Incr(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("ratelimit incr: %w", err)
	}
	if n == 1 {
		if err := r.client.Expire(ctx, k, redisWindow).Err(); err != nil {
			return false, fmt.Errorf("ratelimit expire: %w", err)
		}
	}
	return n <= r.limit, nil
}
