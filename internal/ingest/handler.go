// Package ingest accepts raw CDR batches and hands valid records to the enrichment
// pipeline in the background.
package ingest

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"cdr-enrichment/internal/cdr"
	"cdr-enrichment/internal/enrichment"
)

// Ack is the acknowledgment returned to the submitter. Error is one of the parse
// failure messages when OK is false.
type Ack struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// BatchProcessor is the part of the pipeline the handler depends on.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, records []cdr.CallRecord) []enrichment.Outcome
}

type Handler struct {
	processor BatchProcessor
	log       *zap.Logger

	inflight sync.WaitGroup
}

func NewHandler(processor BatchProcessor, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.L()
	}
	return &Handler{processor: processor, log: log}
}

// HandleBatch parses payload synchronously and, when at least one record is valid,
// starts enrichment without waiting for it. Enrichment outcomes never reach the caller.
func (h *Handler) HandleBatch(ctx context.Context, payload string) Ack {
	records, err := cdr.ParseBatch(payload)
	if err != nil {
		h.log.Info("batch rejected", zap.Error(err))
		return Ack{OK: false, Error: err.Error()}
	}

	// The request context ends once the ack is written; enrichment must outlive it.
	bg := context.WithoutCancel(ctx)
	h.inflight.Add(1)
	go func() {
		defer h.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				h.log.Error("enrichment batch panicked", zap.Any("panic", r))
			}
		}()
		h.processor.ProcessBatch(bg, records)
	}()

	h.log.Debug("batch accepted", zap.Int("records", len(records)))
	return Ack{OK: true}
}

// ErrDrainTimeout is returned by Drain when ctx ends before background batches finish.
var ErrDrainTimeout = errors.New("ingest: background enrichment still running")

// Drain blocks until every batch started by HandleBatch has finished or ctx is done.
func (h *Handler) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ErrDrainTimeout
	}
}
