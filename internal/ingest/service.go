// Package ingest finalizes and persists extracted reviews exactly once.
package ingest

import (
	"context"

	"go.uber.org/zap"

	"github.com/tautaras/review-crawler/internal/reviews"
)

// Service computes content-derived identifiers and writes records that are
// not already stored. It is safe under at-least-once delivery: redelivered
// content hashes to the same id and skips as a no-op.
type Service struct {
	docs   reviews.DocumentStore
	clock  reviews.Clock
	logger *zap.Logger
}

// New constructs a Service.
func New(docs reviews.DocumentStore, clock reviews.Clock, logger *zap.Logger) *Service {
	return &Service{
		docs:   docs,
		clock:  clock,
		logger: logger,
	}
}

// Ingest processes one batch. Per-record failures are isolated: a record that
// cannot be written is counted and skipped while its siblings proceed. Only
// batch-level boundary errors (malformed payloads, handled by the transport
// layer) abort a call.
func (s *Service) Ingest(ctx context.Context, batch []reviews.RawReview) reviews.IngestReport {
	report := reviews.IngestReport{}
	for _, raw := range batch {
		record := s.finalize(raw)

		exists, err := s.docs.Exists(ctx, record.ReviewID)
		if err != nil {
			reviews.TotalIngestFailures.Inc()
			report.Failed++
			s.logger.Error("existence check failed",
				zap.String("review_id", record.ReviewID),
				zap.Error(err),
			)
			continue
		}
		if exists {
			// Exactly-once guarantee: repeated delivery of the same content
			// never creates a duplicate.
			reviews.TotalReviewsSkipped.Inc()
			report.Skipped++
			s.logger.Info("review already exists, skipping",
				zap.String("review_id", record.ReviewID),
			)
			continue
		}

		if err := s.docs.Create(ctx, record); err != nil {
			reviews.TotalIngestFailures.Inc()
			report.Failed++
			s.logger.Error("review insert failed",
				zap.String("review_id", record.ReviewID),
				zap.Error(err),
			)
			continue
		}
		reviews.TotalReviewsIngested.Inc()
		report.Accepted++
		s.logger.Info("review ingested", zap.String("review_id", record.ReviewID))
	}
	return report
}

// finalize derives the record identity and stamps ingestion timestamps.
func (s *Service) finalize(raw reviews.RawReview) reviews.ReviewRecord {
	now := s.clock.Now()
	record := reviews.ReviewRecord{
		ReviewID:         raw.ContentHash(),
		TokenID:          raw.TokenID,
		ProductName:      raw.ProductName,
		SiteName:         raw.SiteName,
		Rating:           raw.Rating.Value(),
		Title:            raw.Title,
		Description:      raw.Description,
		Reviewer:         raw.Reviewer,
		ReviewerLocation: raw.ReviewerDetails.Location,
		IndexedAt:        now,
		UpdatedAt:        now,
	}
	if raw.PostedAt != "" {
		if posted, ok := parsePostedAt(raw.PostedAt); ok {
			record.PostedAt = &posted
		} else {
			// Unparseable dates leave the field unset rather than
			// aborting the record.
			s.logger.Warn("unparseable posted_at",
				zap.String("review_id", record.ReviewID),
				zap.String("posted_at", raw.PostedAt),
			)
		}
	}
	return record
}
