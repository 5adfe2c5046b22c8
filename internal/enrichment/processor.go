// Package enrichment enriches validated call records with operator metadata and writes
// the result to both persistence sinks.
package enrichment

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cdr-enrichment/internal/cdr"
	"cdr-enrichment/internal/operator"
	"cdr-enrichment/internal/storage"
)

// Outcome is the result of one record's enrichment attempt.
// Err is set only when persistence failed (or the attempt panicked); lookup failures
// show up as Degraded.
type Outcome struct {
	RecordID string
	Degraded bool
	Err      error
}

// Summary aggregates the outcomes of one batch.
type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Degraded  int `json:"degraded"`
}

func Summarize(outcomes []Outcome) Summary {
	s := Summary{Total: len(outcomes)}
	for _, o := range outcomes {
		if o.Err != nil {
			s.Failed++
		} else {
			s.Succeeded++
		}
		if o.Degraded {
			s.Degraded++
		}
	}
	return s
}

// Processor runs the enrichment pipeline. Collaborators are injected so tests can use
// in-memory sinks and scripted lookups.
type Processor struct {
	store   storage.Store
	index   storage.SearchIndex
	lookup  operator.Lookup
	metrics *Metrics
	log     *zap.Logger
}

type Option func(*Processor)

func WithMetrics(m *Metrics) Option { return func(p *Processor) { p.metrics = m } }

func WithLogger(l *zap.Logger) Option { return func(p *Processor) { p.log = l } }

func NewProcessor(store storage.Store, index storage.SearchIndex, lookup operator.Lookup, opts ...Option) *Processor {
	p := &Processor{store: store, index: index, lookup: lookup}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = zap.L()
	}
	return p
}

// ProcessBatch attempts every record concurrently and returns once all attempts finished.
// One record's failure never cancels or delays its siblings; outcomes are returned in
// input order.
func (p *Processor) ProcessBatch(ctx context.Context, records []cdr.CallRecord) []Outcome {
	start := time.Now()
	outcomes := make([]Outcome, len(records))

	var g errgroup.Group
	for i, rec := range records {
		g.Go(func() error {
			outcomes[i] = p.process(ctx, rec)
			return nil
		})
	}
	_ = g.Wait()

	summary := Summarize(outcomes)
	p.metrics.observeBatch(summary, time.Since(start).Seconds())
	p.log.Info("enrichment batch complete",
		zap.Int("total", summary.Total),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("degraded", summary.Degraded),
		zap.Duration("elapsed", time.Since(start)),
	)
	return outcomes
}

func (p *Processor) process(ctx context.Context, rec cdr.CallRecord) Outcome {
	out := Outcome{RecordID: rec.ID}

	err := safely(func() error {
		enriched, err := p.Enrich(ctx, rec)
		if err != nil {
			return err
		}
		out.Degraded = enriched.Degraded()
		return p.persist(ctx, enriched)
	})
	if err != nil {
		out.Err = err
		p.log.Error("record enrichment failed", zap.String("record_id", rec.ID), zap.Error(err))
	}
	return out
}

// ErrInvalidInstants is returned for a record whose start and end cannot be resolved to an
// ordered pair of instants. Such a record is neither looked up nor persisted.
var ErrInvalidInstants = errors.New("enrichment: call start/end unresolvable")

// Enrich derives duration and date key, runs both operator lookups concurrently and
// builds the enriched record. A failed lookup only leaves its own fields absent.
// Records not produced by the parser get their instants from the textual timestamps.
func (p *Processor) Enrich(ctx context.Context, rec cdr.CallRecord) (cdr.EnrichedCallRecord, error) {
	if err := resolveInstants(&rec); err != nil {
		return cdr.EnrichedCallRecord{}, err
	}
	dateKey := operator.DateKey(rec.StartedAt)

	var from, to *operator.Info
	var g errgroup.Group
	g.Go(func() error {
		from = p.lookupSide(ctx, rec.ID, "from", rec.FromNumber, dateKey)
		return nil
	})
	g.Go(func() error {
		to = p.lookupSide(ctx, rec.ID, "to", rec.ToNumber, dateKey)
		return nil
	})
	_ = g.Wait()

	return Derive(rec, from, to), nil
}

func resolveInstants(rec *cdr.CallRecord) error {
	if rec.StartedAt.IsZero() || rec.EndedAt.IsZero() {
		rec.RestoreInstants()
	}
	if rec.StartedAt.IsZero() || rec.EndedAt.IsZero() || !rec.EndedAt.After(rec.StartedAt) {
		return eris.Wrapf(ErrInvalidInstants, "record %s: %q to %q", rec.ID, rec.CallStartTime, rec.CallEndTime)
	}
	return nil
}

func (p *Processor) lookupSide(ctx context.Context, recordID, side, number, dateKey string) *operator.Info {
	var info operator.Info
	err := safely(func() error {
		var err error
		info, err = p.lookup.Lookup(ctx, number, dateKey)
		return err
	})
	p.metrics.observeLookup(side, err)
	if err != nil {
		p.log.Warn("operator lookup failed",
			zap.String("record_id", recordID),
			zap.String("side", side),
			zap.String("date_key", dateKey),
			zap.Error(err),
		)
		return nil
	}
	return &info
}

// persist writes to both sinks at once and waits for both. There is no cross-sink
// transaction: a write that succeeded stays in place when the other fails.
func (p *Processor) persist(ctx context.Context, rec cdr.EnrichedCallRecord) error {
	var storeErr, indexErr error
	var g errgroup.Group
	g.Go(func() error {
		storeErr = safely(func() error { return p.store.Save(ctx, rec) })
		return nil
	})
	g.Go(func() error {
		indexErr = safely(func() error { return p.index.Index(ctx, rec) })
		return nil
	})
	_ = g.Wait()

	if storeErr != nil {
		p.metrics.observeSinkError("store")
		storeErr = eris.Wrap(storeErr, "enrichment: primary store write")
	}
	if indexErr != nil {
		p.metrics.observeSinkError("index")
		indexErr = eris.Wrap(indexErr, "enrichment: search index write")
	}
	return errors.Join(storeErr, indexErr)
}

// Derive builds the enriched record from the lookup results. from/to are nil when the
// corresponding lookup failed. rec must carry resolved instants.
// Cost follows the originating party's rate only.
func Derive(rec cdr.CallRecord, from, to *operator.Info) cdr.EnrichedCallRecord {
	out := cdr.EnrichedCallRecord{
		CallRecord: rec,
		Duration:   rec.EndedAt.Sub(rec.StartedAt).Seconds(),
	}
	if from != nil {
		out.FromOperator = ptr(from.Operator)
		out.FromCountry = ptr(from.Country)
		out.EstimatedCost = ptr(from.EstimatedCostPerMinute * (out.Duration / 60))
	}
	if to != nil {
		out.ToOperator = ptr(to.Operator)
		out.ToCountry = ptr(to.Country)
	}
	return out
}

func ptr[T any](v T) *T { return &v }

// safely runs fn, turning a panic into an error so it stays scoped to one record.
func safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("enrichment: recovered panic: %v", r)
		}
	}()
	return fn()
}
