package reviews

import (
	"context"
	"time"
)

// KV is a generic TTL key/value capability backing the dedup cache.
type KV interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores key=value, overwriting any prior value, expiring after ttl.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Queue provides durable, at-least-once task delivery to the worker pool.
type Queue interface {
	// Publish enqueues a task. Fire-and-forget: no guarantee of start time.
	Publish(ctx context.Context, task TaskPayload) error
	// Receive blocks, invoking handler for each delivered task until the
	// context finishes. Handler errors trigger the backend's redelivery.
	Receive(ctx context.Context, handler func(context.Context, TaskPayload) error) error
	Close() error
}

// JobStore is the queue's result backend: job status and progress.
type JobStore interface {
	CreateJob(ctx context.Context, job Job) error
	UpdateStatus(ctx context.Context, jobID string, status JobStatus, progress JobProgress, errText string) error
	GetJob(ctx context.Context, jobID string) (Job, error)
}

// PageRenderer navigates to a URL and returns the page DOM once waitFor
// (a CSS selector) is present. On timeout it returns ErrPageTimeout together
// with whatever snapshot of the partially loaded page it could take.
type PageRenderer interface {
	Render(ctx context.Context, url, waitFor string) (Page, error)
	Close(ctx context.Context) error
}

// DocumentStore is the searchable review store capability.
type DocumentStore interface {
	// Exists reports whether a record with the given id is stored.
	Exists(ctx context.Context, reviewID string) (bool, error)
	// Create writes a record. Creating an existing id is an error.
	Create(ctx context.Context, record ReviewRecord) error
	// Search returns records matching the filters in [offset, offset+limit).
	Search(ctx context.Context, filters SearchFilters, offset, limit int) (SearchResult, error)
}

// BlobStore archives raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces task IDs.
type IDGenerator interface {
	NewID() (string, error)
}
