package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	docstorememory "github.com/tautaras/review-crawler/internal/docstore/memory"
	"github.com/tautaras/review-crawler/internal/reviews"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func sampleBatch() []reviews.RawReview {
	return []reviews.RawReview{
		{
			ProductName: "Widget Pro",
			SiteName:    "amazon",
			Rating:      "4.0 out of 5 stars",
			Title:       "Great",
			Description: "Works well",
			Reviewer:    "Pat",
			PostedAt:    "Reviewed in the United States on March 3, 2024",
			ReviewerDetails: reviews.ReviewerDetails{
				Location: "Reviewed in the United States on March 3, 2024",
			},
		},
		{
			ProductName: "Widget Pro",
			SiteName:    "amazon",
			Rating:      "5",
			Title:       "Perfect",
			Description: "No complaints",
			Reviewer:    "Sam",
		},
	}
}

func TestIngestAcceptsNewReviews(t *testing.T) {
	t.Parallel()

	docs := docstorememory.New()
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	svc := New(docs, fixedClock{now: now}, zap.NewNop())

	report := svc.Ingest(context.Background(), sampleBatch())
	require.Equal(t, reviews.IngestReport{Accepted: 2}, report)

	result, err := docs.Search(context.Background(), reviews.SearchFilters{}, 0, 10)
	require.NoError(t, err)
	require.Equal(t, 2, result.Total)
	for _, record := range result.Reviews {
		require.Len(t, record.ReviewID, 64)
		require.Equal(t, now, record.IndexedAt)
		require.Equal(t, now, record.UpdatedAt)
	}
}

func TestIngestIsIdempotent(t *testing.T) {
	t.Parallel()

	docs := docstorememory.New()
	svc := New(docs, fixedClock{now: time.Now().UTC()}, zap.NewNop())

	first := svc.Ingest(context.Background(), sampleBatch())
	require.Equal(t, reviews.IngestReport{Accepted: 2}, first)

	second := svc.Ingest(context.Background(), sampleBatch())
	require.Equal(t, reviews.IngestReport{Skipped: 2}, second)

	result, err := docs.Search(context.Background(), reviews.SearchFilters{}, 0, 10)
	require.NoError(t, err)
	require.Equal(t, 2, result.Total)
}

func TestIngestSameContentDifferentDateSkips(t *testing.T) {
	t.Parallel()

	docs := docstorememory.New()
	svc := New(docs, fixedClock{now: time.Now().UTC()}, zap.NewNop())

	batch := sampleBatch()[:1]
	require.Equal(t, 1, svc.Ingest(context.Background(), batch).Accepted)

	// A re-scrape with a different posted_at is the same review.
	batch[0].PostedAt = "Reviewed in the United States on March 4, 2024"
	report := svc.Ingest(context.Background(), batch)
	require.Equal(t, reviews.IngestReport{Skipped: 1}, report)
}

func TestIngestParsesPostedAt(t *testing.T) {
	t.Parallel()

	docs := docstorememory.New()
	svc := New(docs, fixedClock{now: time.Now().UTC()}, zap.NewNop())

	batch := sampleBatch()
	batch[1].PostedAt = "total gibberish"
	report := svc.Ingest(context.Background(), batch)
	require.Equal(t, 2, report.Accepted)

	result, err := docs.Search(context.Background(), reviews.SearchFilters{Reviewer: "Pat"}, 0, 10)
	require.NoError(t, err)
	require.Len(t, result.Reviews, 1)
	require.NotNil(t, result.Reviews[0].PostedAt)
	require.Equal(t, time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC), result.Reviews[0].PostedAt.UTC())

	result, err = docs.Search(context.Background(), reviews.SearchFilters{Reviewer: "Sam"}, 0, 10)
	require.NoError(t, err)
	require.Len(t, result.Reviews, 1)
	// Unparseable dates leave the field unset; the record still lands.
	require.Nil(t, result.Reviews[0].PostedAt)
}

func TestIngestExtractsNumericRating(t *testing.T) {
	t.Parallel()

	docs := docstorememory.New()
	svc := New(docs, fixedClock{now: time.Now().UTC()}, zap.NewNop())

	require.Equal(t, 2, svc.Ingest(context.Background(), sampleBatch()).Accepted)

	result, err := docs.Search(context.Background(), reviews.SearchFilters{Reviewer: "Pat"}, 0, 10)
	require.NoError(t, err)
	require.Len(t, result.Reviews, 1)
	require.InDelta(t, 4.0, result.Reviews[0].Rating, 0.0001)
}

type flakyDocStore struct {
	*docstorememory.DocumentStore
	failTitle string
}

func (s *flakyDocStore) Create(ctx context.Context, record reviews.ReviewRecord) error {
	if record.Title == s.failTitle {
		return errors.New("shard unavailable")
	}
	return s.DocumentStore.Create(ctx, record)
}

func TestIngestIsolatesRecordFailures(t *testing.T) {
	t.Parallel()

	docs := &flakyDocStore{DocumentStore: docstorememory.New(), failTitle: "Great"}
	svc := New(docs, fixedClock{now: time.Now().UTC()}, zap.NewNop())

	report := svc.Ingest(context.Background(), sampleBatch())
	require.Equal(t, reviews.IngestReport{Accepted: 1, Failed: 1}, report)

	result, err := docs.Search(context.Background(), reviews.SearchFilters{}, 0, 10)
	require.NoError(t, err)
	require.Equal(t, 1, result.Total)
	require.Equal(t, "Perfect", result.Reviews[0].Title)
}
