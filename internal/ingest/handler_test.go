package ingest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cdr-enrichment/internal/cdr"
	"cdr-enrichment/internal/enrichment"
	"cdr-enrichment/internal/operator"
	"cdr-enrichment/internal/storage"
)

const validBatch = cdr.Header + `
cdr_001,2026-01-21T14:30:00.000Z,2026-01-21T14:35:30.000Z,+14155551234,+442071234567,voice,us-west
cdr_002,2026-01-21T15:00:00.000Z,2026-01-21T15:10:00.000Z,+4915123456789,+33612345678,video,eu-central
cdr_003,2026-01-21T16:00:00.000Z,2026-01-21T16:01:00.000Z,+14155550000,+4915123456789,voice,us-west`

type recordingProcessor struct {
	mu      sync.Mutex
	batches [][]cdr.CallRecord
	ctxErr  error
	release chan struct{}
}

func (r *recordingProcessor) ProcessBatch(ctx context.Context, records []cdr.CallRecord) []enrichment.Outcome {
	if r.release != nil {
		<-r.release
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, records)
	r.ctxErr = ctx.Err()
	return nil
}

func TestHandleBatch_RejectsWithParseMessage(t *testing.T) {
	cases := map[string]string{
		"empty":       "",
		"blank":       "  \n ",
		"bad header":  "id,start\n1,2",
		"no valid":    cdr.Header + "\nbad,row",
		"header only": cdr.Header,
	}
	want := map[string]string{
		"empty":       "Empty payload",
		"blank":       "Empty payload",
		"bad header":  "Invalid CSV header",
		"no valid":    "No valid records found",
		"header only": "No valid records found",
	}

	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			proc := &recordingProcessor{}
			h := NewHandler(proc, nil)

			ack := h.HandleBatch(context.Background(), payload)
			assert.False(t, ack.OK)
			assert.Equal(t, want[name], ack.Error)

			require.NoError(t, h.Drain(context.Background()))
			assert.Empty(t, proc.batches)
		})
	}
}

func TestHandleBatch_AcksBeforeEnrichmentFinishes(t *testing.T) {
	proc := &recordingProcessor{release: make(chan struct{})}
	h := NewHandler(proc, nil)

	ack := h.HandleBatch(context.Background(), validBatch)
	assert.Equal(t, Ack{OK: true}, ack)

	proc.mu.Lock()
	assert.Empty(t, proc.batches)
	proc.mu.Unlock()

	close(proc.release)
	require.NoError(t, h.Drain(context.Background()))
	require.Len(t, proc.batches, 1)
	assert.Len(t, proc.batches[0], 3)
}

func TestHandleBatch_EnrichmentOutlivesRequestContext(t *testing.T) {
	proc := &recordingProcessor{release: make(chan struct{})}
	h := NewHandler(proc, nil)

	ctx, cancel := context.WithCancel(context.Background())
	ack := h.HandleBatch(ctx, validBatch)
	require.True(t, ack.OK)
	cancel()

	close(proc.release)
	require.NoError(t, h.Drain(context.Background()))
	assert.NoError(t, proc.ctxErr)
}

func TestHandleBatch_AckLatencyIndependentOfLookups(t *testing.T) {
	slow := operator.LookupFunc(func(ctx context.Context, number, dateKey string) (operator.Info, error) {
		time.Sleep(200 * time.Millisecond)
		return operator.Info{Operator: "Slow", Country: "Nowhere", EstimatedCostPerMinute: 0.01}, nil
	})
	store := storage.NewMemoryStore()
	h := NewHandler(enrichment.NewProcessor(store, storage.NewMemoryIndex(), slow), nil)

	start := time.Now()
	ack := h.HandleBatch(context.Background(), validBatch)
	elapsed := time.Since(start)

	require.True(t, ack.OK)
	assert.Less(t, elapsed, 500*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.Drain(ctx))

	all, err := store.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestHandleBatch_RecoversProcessorPanic(t *testing.T) {
	h := NewHandler(panicProcessor{}, nil)

	ack := h.HandleBatch(context.Background(), validBatch)
	require.True(t, ack.OK)
	assert.NoError(t, h.Drain(context.Background()))
}

type panicProcessor struct{}

func (panicProcessor) ProcessBatch(context.Context, []cdr.CallRecord) []enrichment.Outcome {
	panic("boom")
}

func TestDrain_TimesOut(t *testing.T) {
	proc := &recordingProcessor{release: make(chan struct{})}
	defer close(proc.release)
	h := NewHandler(proc, nil)
	require.True(t, h.HandleBatch(context.Background(), validBatch).OK)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, h.Drain(ctx), ErrDrainTimeout)
}
