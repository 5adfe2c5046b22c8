package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"cdr-enrichment/internal/cdr"
)

// StreamClient is the subset of go-redis used by RedisIndex. *redis.Client satisfies it.
type StreamClient interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	XRange(ctx context.Context, stream, start, stop string) *redis.XMessageSliceCmd
}

const DefaultIndexStream = "cdr:index"

// RedisIndex appends records to a Redis stream. Every Index call adds a new entry,
// so a record ID written twice appears twice.
type RedisIndex struct {
	rdb    StreamClient
	stream string
}

func NewRedisIndex(rdb StreamClient, stream string) *RedisIndex {
	if stream == "" {
		stream = DefaultIndexStream
	}
	return &RedisIndex{rdb: rdb, stream: stream}
}

func (i *RedisIndex) Index(ctx context.Context, rec cdr.EnrichedCallRecord) error {
	payload, err := encodeRecord(rec)
	if err != nil {
		return eris.Wrapf(err, "redis index: encode record %s", rec.ID)
	}
	err = i.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: i.stream,
		Values: map[string]any{
			"entry_id":  uuid.NewString(),
			"record_id": rec.ID,
			"record":    payload,
		},
	}).Err()
	if err != nil {
		return eris.Wrapf(err, "redis index: append record %s", rec.ID)
	}
	return nil
}

func (i *RedisIndex) ListAll(ctx context.Context) ([]cdr.EnrichedCallRecord, error) {
	msgs, err := i.rdb.XRange(ctx, i.stream, "-", "+").Result()
	if err != nil {
		return nil, eris.Wrap(err, "redis index: list")
	}
	out := make([]cdr.EnrichedCallRecord, 0, len(msgs))
	for _, m := range msgs {
		raw, ok := m.Values["record"].(string)
		if !ok {
			return nil, eris.Errorf("redis index: entry %s has no record payload", m.ID)
		}
		rec, err := decodeRecord([]byte(raw))
		if err != nil {
			return nil, eris.Wrapf(err, "redis index: decode entry %s", m.ID)
		}
		out = append(out, rec)
	}
	return out, nil
}
