package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cdr-enrichment/internal/cdr"
)

func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresStore(mock), mock
}

var recordColumns = []string{
	"id", "call_start_time", "call_end_time", "started_at", "ended_at", "from_number", "to_number",
	"call_type", "region", "duration_seconds", "from_operator", "to_operator", "from_country",
	"to_country", "estimated_cost",
}

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }

func TestPostgresStore_EnsureSchema(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS enriched_call_records`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS enriched_call_records_started_at_idx`).
		WillReturnResult(pgxmock.NewResult("CREATE INDEX", 0))
	mock.ExpectCommit()

	require.NoError(t, s.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_EnsureSchemaRollsBack(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS enriched_call_records`).
		WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()

	err := s.EnsureSchema(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ensure schema")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveUpserts(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	rec := record("cdr_001", 330)
	rec.FromOperator = strPtr("AT&T")
	rec.EstimatedCost = floatPtr(0.11)

	mock.ExpectExec(`INSERT INTO enriched_call_records .* ON CONFLICT \(id\) DO UPDATE`).
		WithArgs(
			"cdr_001",
			"2026-01-21T14:30:00.000Z",
			"2026-01-21T14:35:30.000Z",
			pgxmock.AnyArg(),
			pgxmock.AnyArg(),
			"+14155551234",
			"+442071234567",
			"voice",
			"us-west",
			330.0,
			pgxmock.AnyArg(),
			pgxmock.AnyArg(),
			pgxmock.AnyArg(),
			pgxmock.AnyArg(),
			pgxmock.AnyArg(),
			pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.Save(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	args := make([]any, 16)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	mock.ExpectExec(`INSERT INTO enriched_call_records`).
		WithArgs(args...).
		WillReturnError(errors.New("connection reset"))

	err := s.Save(context.Background(), record("cdr_001", 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save record cdr_001")
	assert.Contains(t, err.Error(), "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindByID(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	want := record("cdr_001", 330)

	rows := pgxmock.NewRows(recordColumns).AddRow(
		"cdr_001", want.CallStartTime, want.CallEndTime, want.StartedAt, want.EndedAt,
		want.FromNumber, want.ToNumber, "voice", "us-west", 330.0,
		(*string)(nil), strPtr("BT"), (*string)(nil), strPtr("United Kingdom"), (*float64)(nil),
	)
	mock.ExpectQuery(`SELECT .* FROM enriched_call_records WHERE id = \$1`).
		WithArgs("cdr_001").
		WillReturnRows(rows)

	got, err := s.FindByID(context.Background(), "cdr_001")
	require.NoError(t, err)
	assert.Equal(t, "cdr_001", got.ID)
	assert.Equal(t, cdr.CallTypeVoice, got.CallType)
	assert.Equal(t, 330.0, got.Duration)
	assert.Nil(t, got.FromOperator)
	assert.Nil(t, got.EstimatedCost)
	require.NotNil(t, got.ToOperator)
	assert.Equal(t, "BT", *got.ToOperator)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindByID_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .* FROM enriched_call_records WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.FindByID(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListAll(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	a, b := record("a", 1), record("b", 2)

	rows := pgxmock.NewRows(recordColumns).
		AddRow("a", a.CallStartTime, a.CallEndTime, a.StartedAt, a.EndedAt, a.FromNumber, a.ToNumber,
			"voice", "us-west", 1.0, strPtr("AT&T"), strPtr("BT"), strPtr("United States"), strPtr("United Kingdom"), floatPtr(0.02)).
		AddRow("b", b.CallStartTime, b.CallEndTime, b.StartedAt, b.EndedAt, b.FromNumber, b.ToNumber,
			"video", "eu-west", 2.0, (*string)(nil), (*string)(nil), (*string)(nil), (*string)(nil), (*float64)(nil))
	mock.ExpectQuery(`SELECT .* FROM enriched_call_records ORDER BY started_at, id`).
		WillReturnRows(rows)

	got, err := s.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	require.NotNil(t, got[0].EstimatedCost)
	assert.Equal(t, 0.02, *got[0].EstimatedCost)
	assert.Equal(t, cdr.CallTypeVideo, got[1].CallType)
	assert.Nil(t, got[1].ToCountry)
	assert.NoError(t, mock.ExpectationsWereMet())
}
