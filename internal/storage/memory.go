package storage

import (
	"context"
	"sync"

	"cdr-enrichment/internal/cdr"
)

// MemoryStore is an in-memory Store for tests and local runs.
// ListAll returns records in first-insertion order.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]cdr.EnrichedCallRecord
	order   []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]cdr.EnrichedCallRecord{}}
}

func (s *MemoryStore) Save(ctx context.Context, rec cdr.EnrichedCallRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.ID]; !ok {
		s.order = append(s.order, rec.ID)
	}
	s.records[rec.ID] = rec
	return nil
}

func (s *MemoryStore) FindByID(ctx context.Context, id string) (cdr.EnrichedCallRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return cdr.EnrichedCallRecord{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) ListAll(ctx context.Context) ([]cdr.EnrichedCallRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]cdr.EnrichedCallRecord, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id])
	}
	return out, nil
}

// MemoryIndex is an in-memory append-only SearchIndex.
type MemoryIndex struct {
	mu      sync.Mutex
	entries []cdr.EnrichedCallRecord
}

func NewMemoryIndex() *MemoryIndex { return &MemoryIndex{} }

func (i *MemoryIndex) Index(ctx context.Context, rec cdr.EnrichedCallRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.entries = append(i.entries, rec)
	return nil
}

func (i *MemoryIndex) ListAll(ctx context.Context) ([]cdr.EnrichedCallRecord, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]cdr.EnrichedCallRecord, len(i.entries))
	copy(out, i.entries)
	return out, nil
}
