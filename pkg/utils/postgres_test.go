package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT 1").WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectCommit()

	err = WithTx(context.Background(), mock, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, "SELECT 1")
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RollbackOnError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	want := errors.New("boom")
	err = WithTx(context.Background(), mock, func(context.Context, pgx.Tx) error { return want })
	assert.ErrorIs(t, err, want)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RollbackOnPanic(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = WithTx(context.Background(), mock, func(context.Context, pgx.Tx) error { panic("x") })
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_BeginError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin().WillReturnError(errors.New("no conn"))

	called := false
	err = WithTx(context.Background(), mock, func(context.Context, pgx.Tx) error { called = true; return nil })
	assert.Error(t, err)
	assert.False(t, called)
}

func TestPostgresPoolConfig_Defaults(t *testing.T) {
	c := PostgresPoolConfig{MinConns: 100}.withDefaults()
	assert.Equal(t, int32(25), c.MaxConns)
	assert.Equal(t, int32(25), c.MinConns)
	assert.Equal(t, 30*time.Minute, c.MaxConnLifetime)
	assert.Equal(t, 5*time.Second, c.PingTimeout)
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthCheck_WrapsPingError(t *testing.T) {
	err := HealthCheck(context.Background(), pingFunc(func(context.Context) error {
		return errors.New("refused")
	}), time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db ping failed")
}
