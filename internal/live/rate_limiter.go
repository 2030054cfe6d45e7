package live

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RateLimitConfig caps how many hand raises one user can make per window
type RateLimitConfig struct {
	MaxRaises int
	Window    time.Duration
}

// DefaultRateLimitConfig returns default rate limit configuration
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxRaises: 3,
		Window:    30 * time.Second,
	}
}

// RateLimiter is a fixed-window counter per (committee, user)
type RateLimiter struct {
	rdb    redis.Cmdable
	config RateLimitConfig
}

func NewRateLimiter(rdb redis.Cmdable, config RateLimitConfig) *RateLimiter {
	defaults := DefaultRateLimitConfig()
	if config.MaxRaises <= 0 {
		config.MaxRaises = defaults.MaxRaises
	}
	if config.Window <= 0 {
		config.Window = defaults.Window
	}
	return &RateLimiter{rdb: rdb, config: config}
}

func handRaiseKey(committeeID, userID primitive.ObjectID) string {
	return fmt.Sprintf("rate:hand:%s:%s", committeeID.Hex(), userID.Hex())
}

// Allow counts the attempt and reports whether it is within the limit.
func (rl *RateLimiter) Allow(ctx context.Context, committeeID, userID primitive.ObjectID) (bool, error) {
	if rl == nil || rl.rdb == nil {
		return false, fmt.Errorf("redis client not available")
	}
	key := handRaiseKey(committeeID, userID)

	pipe := rl.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, rl.config.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to count hand raise: %w", err)
	}
	return incr.Val() <= int64(rl.config.MaxRaises), nil
}
