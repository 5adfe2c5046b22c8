// Package storage holds the two persistence sinks for enriched call records.
//
// The sinks differ on duplicates: Store upserts by record ID (last write wins),
// SearchIndex appends every write. Nothing here reconciles the two.
package storage

import (
	"context"
	"encoding/json"
	"errors"

	"cdr-enrichment/internal/cdr"
)

var ErrNotFound = errors.New("storage: record not found")

// Store is the primary keyed store. Save must be safe under concurrent writes to the same ID.
type Store interface {
	Save(ctx context.Context, rec cdr.EnrichedCallRecord) error
	FindByID(ctx context.Context, id string) (cdr.EnrichedCallRecord, error)
	ListAll(ctx context.Context) ([]cdr.EnrichedCallRecord, error)
}

// SearchIndex is the append-only search/analytics sink. Entry order is not guaranteed.
type SearchIndex interface {
	Index(ctx context.Context, rec cdr.EnrichedCallRecord) error
	ListAll(ctx context.Context) ([]cdr.EnrichedCallRecord, error)
}

func encodeRecord(rec cdr.EnrichedCallRecord) ([]byte, error) {
	return json.Marshal(rec)
}

func decodeRecord(b []byte) (cdr.EnrichedCallRecord, error) {
	var rec cdr.EnrichedCallRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return cdr.EnrichedCallRecord{}, err
	}
	rec.RestoreInstants()
	return rec, nil
}
