package operator

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrConcurrencyCap is returned when the shared in-flight cap is exhausted. The lookup is
// not queued; the record is persisted degraded like any other lookup failure.
var ErrConcurrencyCap = errors.New("operator: lookup concurrency cap reached")

// Semaphore is a possibly distributed counter of in-flight lookups.
type Semaphore interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type Capped struct {
	next Lookup
	sem  Semaphore
	log  *zap.Logger
}

// WithConcurrencyCap wraps next so each lookup holds a slot of sem. A nil sem leaves next
// uncapped.
func WithConcurrencyCap(next Lookup, sem Semaphore) Lookup {
	if sem == nil {
		return next
	}
	return &Capped{next: next, sem: sem, log: zap.L()}
}

func (c *Capped) Lookup(ctx context.Context, number, dateKey string) (Info, error) {
	ok, err := c.sem.Acquire(ctx)
	if err != nil {
		return Info{}, eris.Wrap(err, "operator: acquire concurrency slot")
	}
	if !ok {
		return Info{}, ErrConcurrencyCap
	}
	defer func() {
		// Release even when the caller's context is already done.
		if err := c.sem.Release(context.WithoutCancel(ctx)); err != nil {
			c.log.Warn("operator concurrency slot release failed", zap.Error(err))
		}
	}()
	return c.next.Lookup(ctx, number, dateKey)
}
