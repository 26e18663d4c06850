package auth

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/feedfuse/feedfuse/internal/config"
)

// RateLimitInfo is returned per check for response headers.
type RateLimitInfo struct {
	Limit     int
	Remaining int
	ResetTime int64
}

// RateLimiter enforces a sliding-window per-user limit in Redis. When Redis
// is unreachable it fails open: a degraded limiter must not take the API
// down with it.
type RateLimiter struct {
	cfg    *config.RateLimitConfig
	redis  *redis.Client
	logger *logrus.Logger
}

func NewRateLimiter(cfg *config.RateLimitConfig, redisClient *redis.Client, logger *logrus.Logger) *RateLimiter {
	return &RateLimiter{
		cfg:    cfg,
		redis:  redisClient,
		logger: logger,
	}
}

func (rl *RateLimiter) Allow(userID string) (bool, *RateLimitInfo) {
	limit := rl.cfg.Limit
	window := rl.cfg.Window

	now := time.Now()
	permissive := &RateLimitInfo{
		Limit:     limit,
		Remaining: limit - 1,
		ResetTime: now.Add(window).Unix(),
	}
	if !rl.cfg.Enabled || rl.redis == nil {
		return true, permissive
	}

	key := fmt.Sprintf("rate_limit:user:%s", userID)
	windowStart := now.Add(-window)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pipe := rl.redis.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart.Unix(), 10))
	countCmd := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.Unix()),
		Member: fmt.Sprintf("%d", now.UnixNano()),
	})
	pipe.Expire(ctx, key, window)

	if _, err := pipe.Exec(ctx); err != nil {
		rl.logger.WithError(err).Error("Failed to execute rate limit pipeline")
		return true, permissive
	}

	remaining := limit - int(countCmd.Val()) - 1
	if remaining < 0 {
		remaining = 0
	}

	info := &RateLimitInfo{
		Limit:     limit,
		Remaining: remaining,
		ResetTime: now.Add(window).Unix(),
	}
	return int(countCmd.Val()) < limit, info
}
