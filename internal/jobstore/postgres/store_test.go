package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/tautaras/review-crawler/internal/reviews"
)

func newMockStore(t *testing.T) (*JobStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	store, err := NewWithPool(mock)
	require.NoError(t, err)
	return store, mock
}

func TestCreateJob(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	submitted := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(`INSERT INTO extraction_jobs`).
		WithArgs("job-1", "https://www.amazon.com/product-reviews/B0TEST", "amazon", "fp-1",
			"PENDING", 0, 0, "", submitted).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := store.CreateJob(context.Background(), reviews.Job{
		ID:          "job-1",
		URL:         "https://www.amazon.com/product-reviews/B0TEST",
		Platform:    "amazon",
		Fingerprint: "fp-1",
		Status:      reviews.StatusPending,
		Submitted:   submitted,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatus(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec(`UPDATE extraction_jobs`).
		WithArgs("job-1", "PROGRESS", 2, 17, "").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := store.UpdateStatus(context.Background(), "job-1", reviews.StatusProgress,
		reviews.JobProgress{Pages: 2, Reviews: 17}, "")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusUnknownJob(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec(`UPDATE extraction_jobs`).
		WithArgs("missing", "FAILURE", 0, 0, "boom").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.UpdateStatus(context.Background(), "missing", reviews.StatusFailure,
		reviews.JobProgress{}, "boom")
	require.ErrorIs(t, err, reviews.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetJob(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	submitted := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	started := submitted.Add(time.Second)
	mock.ExpectQuery(`SELECT id, url, platform, fingerprint, status`).
		WithArgs("job-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "url", "platform", "fingerprint", "status", "pages", "reviews",
			"error_text", "submitted_at", "started_at", "finished_at",
		}).AddRow(
			"job-1", "https://www.amazon.com/product-reviews/B0TEST", "amazon", "fp-1",
			"PROGRESS", 2, 17, "", submitted, &started, (*time.Time)(nil),
		))

	job, err := store.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	require.Equal(t, "job-1", job.ID)
	require.Equal(t, reviews.StatusProgress, job.Status)
	require.Equal(t, reviews.JobProgress{Pages: 2, Reviews: 17}, job.Progress)
	require.NotNil(t, job.Started)
	require.Nil(t, job.Finished)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetJobNotFound(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT id, url, platform, fingerprint, status`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.GetJob(context.Background(), "missing")
	require.ErrorIs(t, err, reviews.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
