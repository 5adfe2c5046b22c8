package operator

import (
	"context"
	"time"
)

// Info is the metadata returned by the operator lookup service for one number.
type Info struct {
	Operator               string  `json:"operator"`
	Country                string  `json:"country"`
	EstimatedCostPerMinute float64 `json:"estimatedCostPerMinute"`
}

// Lookup resolves operator metadata for an E.164 number on a given call date.
//
// Implementations may be slow and may fail; callers treat every error as
// "metadata unavailable" for that number only.
type Lookup interface {
	Lookup(ctx context.Context, number, dateKey string) (Info, error)
}

// LookupFunc adapts a plain function to Lookup.
type LookupFunc func(ctx context.Context, number, dateKey string) (Info, error)

func (f LookupFunc) Lookup(ctx context.Context, number, dateKey string) (Info, error) {
	return f(ctx, number, dateKey)
}

// DateKeyLayout is the yy-MM-dd format the lookup service expects.
const DateKeyLayout = "06-01-02"

// DateKey formats the UTC calendar day of t for the lookup service, e.g. "26-01-21".
func DateKey(t time.Time) string {
	return t.UTC().Format(DateKeyLayout)
}
