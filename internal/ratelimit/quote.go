package ratelimit

import (
	"context"

	"github.com/smallbiznis/catalyser/internal/config"
	"go.uber.org/zap"
)

const quoteKeyPrefix = "catalyser:ratelimit:quote:"

// QuoteLimiter throttles priced views per user before any credit is spent.
type QuoteLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
	log    *zap.Logger
}

func NewQuoteLimiter(cfg config.Config, bucket *TokenBucket, log *zap.Logger) *QuoteLimiter {
	if !cfg.RateLimit.Enabled || bucket == nil {
		return nil
	}
	if cfg.RateLimit.QuoteRate <= 0 || cfg.RateLimit.QuoteBurst <= 0 {
		log.Warn("quote rate limit disabled, rate and burst must be positive",
			zap.Float64("rate", cfg.RateLimit.QuoteRate),
			zap.Int("burst", cfg.RateLimit.QuoteBurst),
		)
		return nil
	}
	return &QuoteLimiter{
		bucket: bucket,
		rate:   cfg.RateLimit.QuoteRate,
		burst:  cfg.RateLimit.QuoteBurst,
		log:    log.Named("ratelimit.quote"),
	}
}

// Allow fails open when Redis errors so a cache outage does not block pricing.
func (q *QuoteLimiter) Allow(ctx context.Context, userID string) *RateLimitResult {
	if q == nil {
		return &RateLimitResult{Allowed: true}
	}
	res, err := q.bucket.Allow(ctx, quoteKeyPrefix+userID, q.rate, q.burst)
	if err != nil {
		q.log.Warn("quote rate limit check failed", zap.String("user_id", userID), zap.Error(err))
		return &RateLimitResult{Allowed: true, Limit: q.burst}
	}
	return res
}
