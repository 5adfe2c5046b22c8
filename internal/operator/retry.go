package operator

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryConfig controls WithRetry. MaxAttempts counts the first try; 1 disables retries,
// which is the default behavior of the pipeline.
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64

	// JitterFraction adds ±fraction of the computed delay.
	JitterFraction float64

	// ShouldRetry overrides the default check (everything except context errors).
	ShouldRetry func(err error) bool
}

func (c RetryConfig) withDefaults() RetryConfig {
	out := c
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = 1
	}
	if out.InitialBackoff <= 0 {
		out.InitialBackoff = 50 * time.Millisecond
	}
	if out.MaxBackoff <= 0 {
		out.MaxBackoff = time.Second
	}
	if out.Multiplier <= 0 {
		out.Multiplier = 2.0
	}
	if out.JitterFraction < 0 {
		out.JitterFraction = 0
	}
	if out.ShouldRetry == nil {
		out.ShouldRetry = retryable
	}
	return out
}

// WithRetry wraps next with exponential backoff. With MaxAttempts <= 1 it returns next unchanged.
func WithRetry(next Lookup, cfg RetryConfig) Lookup {
	cfg = cfg.withDefaults()
	if cfg.MaxAttempts <= 1 {
		return next
	}
	return &retrying{next: next, cfg: cfg}
}

type retrying struct {
	next Lookup
	cfg  RetryConfig
}

func (r *retrying) Lookup(ctx context.Context, number, dateKey string) (Info, error) {
	var lastErr error
	for attempt := 0; attempt < r.cfg.MaxAttempts; attempt++ {
		info, err := r.next.Lookup(ctx, number, dateKey)
		if err == nil {
			return info, nil
		}
		lastErr = err

		if ctx.Err() != nil || !r.cfg.ShouldRetry(err) || attempt >= r.cfg.MaxAttempts-1 {
			break
		}

		zap.L().Debug("retrying operator lookup",
			zap.String("number", number),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)

		timer := time.NewTimer(backoff(attempt, r.cfg))
		select {
		case <-ctx.Done():
			timer.Stop()
			return Info{}, lastErr
		case <-timer.C:
		}
	}
	return Info{}, lastErr
}

func retryable(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func backoff(attempt int, cfg RetryConfig) time.Duration {
	delay := float64(cfg.InitialBackoff) * math.Pow(cfg.Multiplier, float64(attempt))
	if delay > float64(cfg.MaxBackoff) {
		delay = float64(cfg.MaxBackoff)
	}
	if cfg.JitterFraction > 0 {
		delay += (rand.Float64()*2 - 1) * delay * cfg.JitterFraction
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}
