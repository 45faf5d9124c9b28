package reviews

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TotalJobsDispatched tracks extraction jobs submitted to the queue.
	TotalJobsDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reviews_jobs_dispatched_total",
		Help: "The total number of extraction jobs submitted to the queue.",
	})
	// TotalDedupHits tracks requests answered from the dedup cache fast path.
	TotalDedupHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reviews_dedup_hits_total",
		Help: "The total number of submissions short-circuited by the dedup cache.",
	})
	// TotalPagesScraped tracks pages rendered and processed by workers.
	TotalPagesScraped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reviews_pages_scraped_total",
		Help: "The total number of pages processed by the scraper.",
	})
	// TotalPageTimeouts tracks render waits that expired.
	TotalPageTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reviews_page_timeouts_total",
		Help: "The total number of page renders that timed out.",
	})
	// TotalReviewsExtracted tracks review elements successfully extracted.
	TotalReviewsExtracted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reviews_extracted_total",
		Help: "The total number of reviews extracted from pages.",
	})
	// TotalReviewsIngested tracks new records written to the document store.
	TotalReviewsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reviews_ingested_total",
		Help: "The total number of new review records stored.",
	})
	// TotalReviewsSkipped tracks idempotent no-ops on redelivered content.
	TotalReviewsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reviews_ingest_skipped_total",
		Help: "The total number of records skipped because they already exist.",
	})
	// TotalIngestFailures tracks per-record write failures.
	TotalIngestFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reviews_ingest_failures_total",
		Help: "The total number of records that failed to store.",
	})
)
