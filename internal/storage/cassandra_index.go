package storage

import (
	"context"

	"github.com/gocql/gocql"
	"github.com/rotisserie/eris"

	"cdr-enrichment/internal/cdr"
)

// CassandraSchema creates the append-only index table. Rows are bucketed by call day.
const CassandraSchema = `
CREATE TABLE IF NOT EXISTS cdr_index (
  day        text,
  entry_id   timeuuid,
  record_id  text,
  payload    text,
  PRIMARY KEY ((day), entry_id)
)`

// CassandraIndex appends each record as a new row with a fresh timeuuid, so duplicate
// record IDs produce duplicate rows.
type CassandraIndex struct {
	session *gocql.Session
}

func NewCassandraIndex(session *gocql.Session) *CassandraIndex {
	return &CassandraIndex{session: session}
}

// EnsureSchema creates the index table in the session keyspace.
func (i *CassandraIndex) EnsureSchema(ctx context.Context) error {
	if err := i.session.Query(CassandraSchema).WithContext(ctx).Exec(); err != nil {
		return eris.Wrap(err, "cassandra index: ensure schema")
	}
	return nil
}

func (i *CassandraIndex) Index(ctx context.Context, rec cdr.EnrichedCallRecord) error {
	payload, err := encodeRecord(rec)
	if err != nil {
		return eris.Wrapf(err, "cassandra index: encode record %s", rec.ID)
	}
	const q = `INSERT INTO cdr_index (day, entry_id, record_id, payload) VALUES (?, ?, ?, ?)`
	if err := i.session.Query(q, dayBucket(rec), gocql.TimeUUID(), rec.ID, string(payload)).WithContext(ctx).Exec(); err != nil {
		return eris.Wrapf(err, "cassandra index: append record %s", rec.ID)
	}
	return nil
}

func (i *CassandraIndex) ListAll(ctx context.Context) ([]cdr.EnrichedCallRecord, error) {
	iter := i.session.Query(`SELECT payload FROM cdr_index`).WithContext(ctx).Iter()

	out := make([]cdr.EnrichedCallRecord, 0)
	var payload string
	for iter.Scan(&payload) {
		rec, err := decodeRecord([]byte(payload))
		if err != nil {
			_ = iter.Close()
			return nil, eris.Wrap(err, "cassandra index: decode row")
		}
		out = append(out, rec)
	}
	if err := iter.Close(); err != nil {
		return nil, eris.Wrap(err, "cassandra index: list")
	}
	return out, nil
}

// dayBucket partitions rows by the UTC call day, e.g. "2026-01-21".
func dayBucket(rec cdr.EnrichedCallRecord) string {
	if rec.StartedAt.IsZero() {
		return "unknown"
	}
	return rec.StartedAt.UTC().Format("2006-01-02")
}
