package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/meseboard/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyUpload = "meseboard:upload:%s"

// UploadLimiter throttles uploads per client. A nil limiter allows
// everything.
type UploadLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewUploadLimiter(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*UploadLimiter, error) {
	if !cfg.Upload.RateLimitEnabled {
		return nil, nil
	}
	addr := strings.TrimSpace(cfg.Redis.Addr)
	if addr == "" {
		return nil, errors.New("upload rate limit requires REDIS_ADDR")
	}
	if cfg.Upload.RateLimitRate <= 0 || cfg.Upload.RateLimitBurst <= 0 {
		return nil, errors.New("upload rate limit rate and burst must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.Redis.Password),
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})

	log.Named("ratelimit").Info("upload rate limit enabled",
		zap.String("redis_addr", addr),
		zap.Float64("rate", cfg.Upload.RateLimitRate),
		zap.Int("burst", cfg.Upload.RateLimitBurst),
	)
	return NewUploadLimiterWithBucket(NewTokenBucket(client), cfg.Upload.RateLimitRate, cfg.Upload.RateLimitBurst), nil
}

func NewUploadLimiterWithBucket(bucket *TokenBucket, rate float64, burst int) *UploadLimiter {
	return &UploadLimiter{bucket: bucket, rate: rate, burst: burst}
}

func (l *UploadLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *UploadLimiter) Allow(ctx context.Context, client string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	client = strings.TrimSpace(client)
	if client == "" {
		client = "anonymous"
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyUpload, client), l.rate, l.burst)
}
