package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/memberrequest/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyAction = "member_request:action:%s"

// ActionLimiter throttles action API calls per user. A nil or disabled
// limiter allows everything.
type ActionLimiter struct {
	log    *zap.Logger
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewActionLimiter(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*ActionLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.ActionRate <= 0 || limitCfg.ActionBurst <= 0 {
		return nil, errors.New("action rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})

	return newActionLimiter(log, client, limitCfg.ActionRate, limitCfg.ActionBurst), nil
}

func newActionLimiter(log *zap.Logger, client redis.Scripter, rate float64, burst int) *ActionLimiter {
	return &ActionLimiter{
		log:    log.Named("ratelimit.action"),
		bucket: NewTokenBucket(client),
		rate:   rate,
		burst:  burst,
	}
}

func (l *ActionLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// Allow takes a token for userID. Redis failures fail open and are logged.
func (l *ActionLimiter) Allow(ctx context.Context, userID string) *Result {
	if !l.Enabled() {
		return &Result{Allowed: true}
	}
	res, err := l.bucket.Allow(ctx, fmt.Sprintf(keyAction, strings.TrimSpace(userID)), l.rate, l.burst)
	if err != nil {
		l.log.Warn("rate limiter unavailable", zap.Error(err))
		return &Result{Allowed: true, Limit: l.burst}
	}
	return res
}
