// Package reviews defines core types shared across subsystems.
package reviews

import (
	"time"
)

// JobStatus represents the lifecycle state of an extraction job.
type JobStatus string

// Job status values persisted in the job store. A job moves monotonically
// through PENDING -> STARTED -> PROGRESS* -> SUCCESS|FAILURE; only the worker
// executing the job mutates it.
const (
	StatusPending  JobStatus = "PENDING"
	StatusStarted  JobStatus = "STARTED"
	StatusProgress JobStatus = "PROGRESS"
	StatusSuccess  JobStatus = "SUCCESS"
	StatusFailure  JobStatus = "FAILURE"

	// StatusUnknown is reported for status queries the backend cannot answer
	// (unknown id, expired result, backend unreachable). It is never stored.
	StatusUnknown JobStatus = "UNKNOWN"
)

// Terminal reports whether the status is a terminal state.
func (s JobStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailure
}

// Active reports whether a cached job id pointing at this status should be
// treated as in-flight. Anything else is stale and the caller resubmits.
func (s JobStatus) Active() bool {
	return s == StatusStarted || s == StatusProgress
}

// TaskName is the fixed task identifier routed to the worker pool.
const TaskName = "reviews.extract_page"

// TaskPayload is the unit of work placed on the queue.
type TaskPayload struct {
	TaskID      string `json:"task_id"`
	URL         string `json:"url"`
	CallbackURL string `json:"callback_url"`
	Platform    string `json:"platform"`
	Fingerprint string `json:"fingerprint"`
}

// JobProgress is the free-form progress metadata attached to a job.
type JobProgress struct {
	Pages   int `json:"pages"`
	Reviews int `json:"reviews"`
}

// Job is the metadata tracked for each submitted extraction request.
type Job struct {
	ID          string      `json:"id"`
	URL         string      `json:"url"`
	Platform    string      `json:"platform"`
	Fingerprint string      `json:"fingerprint"`
	Status      JobStatus   `json:"status"`
	Progress    JobProgress `json:"progress"`
	ErrorText   string      `json:"error_text,omitempty"`
	Submitted   time.Time   `json:"submitted_at"`
	Started     *time.Time  `json:"started_at,omitempty"`
	Finished    *time.Time  `json:"finished_at,omitempty"`
}

// ReviewerDetails carries optional reviewer metadata as scraped.
type ReviewerDetails struct {
	Location string `json:"location,omitempty"`
}

// RawReview is a review as extracted from a page, before ingestion assigns
// its content-derived identifier and timestamps.
type RawReview struct {
	TokenID         string          `json:"token_id,omitempty"`
	ProductName     string          `json:"product_name"`
	SiteName        string          `json:"site_name"`
	Rating          Rating          `json:"rating"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	PostedAt        string          `json:"posted_at,omitempty"`
	Reviewer        string          `json:"reviewer"`
	ReviewerDetails ReviewerDetails `json:"reviewer_details"`
}

// ReviewRecord is the finalized, stored form of a review. Immutable once
// written except for updated_at-bearing updates.
type ReviewRecord struct {
	ReviewID         string     `json:"review_id"`
	TokenID          string     `json:"token_id,omitempty"`
	ProductName      string     `json:"product_name"`
	SiteName         string     `json:"site_name"`
	Rating           float64    `json:"rating"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Reviewer         string     `json:"reviewer"`
	ReviewerLocation string     `json:"reviewer_location,omitempty"`
	PostedAt         *time.Time `json:"posted_at,omitempty"`
	IndexedAt        time.Time  `json:"indexed_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// IngestReport summarizes one ingestion batch.
type IngestReport struct {
	Accepted int `json:"accepted"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// Total returns the number of records in the batch.
func (r IngestReport) Total() int {
	return r.Accepted + r.Skipped + r.Failed
}

// SearchFilters are the optional filters of the query path. Zero values mean
// "no filter"; Rating is a pointer so zero stars remains expressible.
type SearchFilters struct {
	ProductName string
	SiteName    string
	Reviewer    string
	TokenID     string
	Rating      *float64
}

// SearchResult is one page of matched records plus the total hit count.
type SearchResult struct {
	Total   int
	Reviews []ReviewRecord
}

// Page is a rendered page snapshot returned by a PageRenderer.
type Page struct {
	URL  string
	HTML string
	// Partial marks a snapshot taken after the wait condition timed out.
	Partial bool
}

// ExtractionResult is the terminal outcome of one scraper run.
type ExtractionResult struct {
	Pages   int
	Reviews int
	// Err carries the failure that ended the run, nil on DONE.
	Err error
}
