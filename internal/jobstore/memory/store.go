// Package memory provides an in-memory job store for development/testing.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tautaras/review-crawler/internal/reviews"
)

// JobStore keeps job records in process memory.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]reviews.Job
	now  func() time.Time
}

// NewJobStore constructs a JobStore.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[string]reviews.Job),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// CreateJob stores a new job record.
func (s *JobStore) CreateJob(_ context.Context, job reviews.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	s.jobs[job.ID] = job
	return nil
}

// UpdateStatus updates status, progress, and error text for a job.
func (s *JobStore) UpdateStatus(
	_ context.Context,
	jobID string,
	status reviews.JobStatus,
	progress reviews.JobProgress,
	errText string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("job %s: %w", jobID, reviews.ErrNotFound)
	}
	job.Status = status
	job.Progress = progress
	job.ErrorText = errText
	now := s.now()
	if status == reviews.StatusStarted && job.Started == nil {
		job.Started = pointerTime(now)
	}
	if status.Terminal() {
		job.Finished = pointerTime(now)
	}
	s.jobs[jobID] = job
	return nil
}

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(_ context.Context, jobID string) (reviews.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return reviews.Job{}, fmt.Errorf("job %s: %w", jobID, reviews.ErrNotFound)
	}
	return job, nil
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}
