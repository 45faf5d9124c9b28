package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

func newMockKV(t *testing.T) (*KV, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	kv, err := NewWithPool(mock)
	require.NoError(t, err)
	return kv, mock
}

func TestKVGetHit(t *testing.T) {
	t.Parallel()

	kv, mock := newMockKV(t)
	mock.ExpectQuery(`SELECT value FROM kv_entries`).
		WithArgs("task_status::abc").
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow("job-1"))

	value, ok, err := kv.Get(context.Background(), "task_status::abc")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "job-1", value)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestKVGetMiss(t *testing.T) {
	t.Parallel()

	kv, mock := newMockKV(t)
	mock.ExpectQuery(`SELECT value FROM kv_entries`).
		WithArgs("task_status::abc").
		WillReturnError(pgx.ErrNoRows)

	_, ok, err := kv.Get(context.Background(), "task_status::abc")
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestKVSet(t *testing.T) {
	t.Parallel()

	kv, mock := newMockKV(t)
	mock.ExpectExec(`INSERT INTO kv_entries`).
		WithArgs("task_status::abc", "job-1", time.Hour).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, kv.Set(context.Background(), "task_status::abc", "job-1", time.Hour))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{})
	require.Error(t, err)
}
