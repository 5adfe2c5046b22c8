package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"

	"cdr-enrichment/internal/cdr"
	"cdr-enrichment/pkg/utils"
)

// Pool is the subset of *pgxpool.Pool used by PostgresStore (pgxmock.PgxPoolIface satisfies it too).
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Schema creates the primary store table. Applied by EnsureSchema on startup.
const Schema = `
CREATE TABLE IF NOT EXISTS enriched_call_records (
  id               TEXT PRIMARY KEY,
  call_start_time  TEXT NOT NULL,
  call_end_time    TEXT NOT NULL,
  started_at       TIMESTAMPTZ NOT NULL,
  ended_at         TIMESTAMPTZ NOT NULL,
  from_number      TEXT NOT NULL,
  to_number        TEXT NOT NULL,
  call_type        TEXT NOT NULL,
  region           TEXT NOT NULL,
  duration_seconds DOUBLE PRECISION NOT NULL,
  from_operator    TEXT,
  to_operator      TEXT,
  from_country     TEXT,
  to_country       TEXT,
  estimated_cost   DOUBLE PRECISION,
  updated_at       TIMESTAMPTZ NOT NULL
)`

const startedAtIndex = `CREATE INDEX IF NOT EXISTS enriched_call_records_started_at_idx
  ON enriched_call_records (started_at, id)`

const upsertRecordSQL = `
INSERT INTO enriched_call_records (
  id, call_start_time, call_end_time, started_at, ended_at, from_number, to_number,
  call_type, region, duration_seconds, from_operator, to_operator, from_country, to_country,
  estimated_cost, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16
)
ON CONFLICT (id) DO UPDATE SET
  call_start_time  = EXCLUDED.call_start_time,
  call_end_time    = EXCLUDED.call_end_time,
  started_at       = EXCLUDED.started_at,
  ended_at         = EXCLUDED.ended_at,
  from_number      = EXCLUDED.from_number,
  to_number        = EXCLUDED.to_number,
  call_type        = EXCLUDED.call_type,
  region           = EXCLUDED.region,
  duration_seconds = EXCLUDED.duration_seconds,
  from_operator    = EXCLUDED.from_operator,
  to_operator      = EXCLUDED.to_operator,
  from_country     = EXCLUDED.from_country,
  to_country       = EXCLUDED.to_country,
  estimated_cost   = EXCLUDED.estimated_cost,
  updated_at       = EXCLUDED.updated_at
`

const selectColumns = `id, call_start_time, call_end_time, started_at, ended_at, from_number, to_number,
  call_type, region, duration_seconds, from_operator, to_operator, from_country, to_country, estimated_cost`

const findRecordSQL = `SELECT ` + selectColumns + ` FROM enriched_call_records WHERE id = $1`

const listRecordsSQL = `SELECT ` + selectColumns + ` FROM enriched_call_records ORDER BY started_at, id`

// PostgresStore implements Store on PostgreSQL. Concurrent saves of the same ID serialize
// on the primary key row; the last committed write wins.
type PostgresStore struct {
	pool  Pool
	clock func() time.Time
}

func NewPostgresStore(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool, clock: time.Now}
}

// EnsureSchema creates the records table and its listing index if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	err := utils.WithTx(ctx, s.pool, func(ctx context.Context, tx pgx.Tx) error {
		for _, stmt := range []string{Schema, startedAtIndex} {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return eris.Wrap(err, "postgres: ensure schema")
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, rec cdr.EnrichedCallRecord) error {
	_, err := s.pool.Exec(ctx, upsertRecordSQL,
		rec.ID,
		rec.CallStartTime,
		rec.CallEndTime,
		rec.StartedAt.UTC(),
		rec.EndedAt.UTC(),
		rec.FromNumber,
		rec.ToNumber,
		string(rec.CallType),
		rec.Region,
		rec.Duration,
		rec.FromOperator,
		rec.ToOperator,
		rec.FromCountry,
		rec.ToCountry,
		rec.EstimatedCost,
		s.clock().UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: save record %s", rec.ID)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (cdr.EnrichedCallRecord, error) {
	rec, err := scanRecord(s.pool.QueryRow(ctx, findRecordSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return cdr.EnrichedCallRecord{}, ErrNotFound
		}
		return cdr.EnrichedCallRecord{}, eris.Wrapf(err, "postgres: find record %s", id)
	}
	return rec, nil
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]cdr.EnrichedCallRecord, error) {
	rows, err := s.pool.Query(ctx, listRecordsSQL)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list records")
	}
	defer rows.Close()

	out := make([]cdr.EnrichedCallRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan record")
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: list records")
	}
	return out, nil
}

func scanRecord(row pgx.Row) (cdr.EnrichedCallRecord, error) {
	var rec cdr.EnrichedCallRecord
	var callType string
	err := row.Scan(
		&rec.ID,
		&rec.CallStartTime,
		&rec.CallEndTime,
		&rec.StartedAt,
		&rec.EndedAt,
		&rec.FromNumber,
		&rec.ToNumber,
		&callType,
		&rec.Region,
		&rec.Duration,
		&rec.FromOperator,
		&rec.ToOperator,
		&rec.FromCountry,
		&rec.ToCountry,
		&rec.EstimatedCost,
	)
	if err != nil {
		return cdr.EnrichedCallRecord{}, err
	}
	rec.CallType = cdr.CallType(callType)
	return rec, nil
}
