package operator

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// RateLimited caps outbound lookups across all batches sharing this instance.
// Waiting for a token counts toward the caller's context deadline.
type RateLimited struct {
	next    Lookup
	limiter *rate.Limiter
}

// WithRateLimit wraps next with a token bucket of perSecond requests and the given burst.
// perSecond <= 0 leaves next unlimited.
func WithRateLimit(next Lookup, perSecond float64, burst int) Lookup {
	if perSecond <= 0 {
		return next
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (r *RateLimited) Lookup(ctx context.Context, number, dateKey string) (Info, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return Info{}, eris.Wrap(err, "operator: rate limit wait")
	}
	return r.next.Lookup(ctx, number, dateKey)
}
