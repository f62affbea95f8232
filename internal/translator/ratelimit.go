package translator

import (
	"context"
	"errors"
	"math"
	"time"

	"golang.org/x/time/rate"

	"github.com/MimeLyc/batch-sub-translator/pkg/log"
)

// RateLimitConfig controls spacing and 429 retries.
type RateLimitConfig struct {
	MinInterval   time.Duration
	MaxRetries    int
	BackoffFactor float64
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MinInterval:   2 * time.Second,
		MaxRetries:    3,
		BackoffFactor: 2,
	}
}

// RateLimited spaces calls to next by at least MinInterval and retries
// calls rejected with ErrRateLimited, waiting MinInterval*factor^attempt
// between attempts.
type RateLimited struct {
	next    Gateway
	limiter *rate.Limiter
	cfg     RateLimitConfig
}

func NewRateLimited(next Gateway, cfg RateLimitConfig) *RateLimited {
	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}
	if cfg.BackoffFactor < 1 {
		cfg.BackoffFactor = 1
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(limit, 1),
		cfg:     cfg,
	}
}

func (r *RateLimited) Translate(ctx context.Context, req Request) ([]Result, error) {
	for attempt := 0; ; attempt++ {
		if err := r.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, err
		}

		results, err := r.next.Translate(ctx, req)
		if err == nil || !errors.Is(err, ErrRateLimited) || attempt >= r.cfg.MaxRetries {
			return results, err
		}

		delay := r.backoff(attempt)
		log.Warn("rate limit hit, retrying in %v (retry %d/%d)", delay, attempt+1, r.cfg.MaxRetries)
		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

func (r *RateLimited) backoff(attempt int) time.Duration {
	return time.Duration(float64(r.cfg.MinInterval) * math.Pow(r.cfg.BackoffFactor, float64(attempt)))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
