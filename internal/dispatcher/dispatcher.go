// Package dispatcher submits extraction jobs to the queue and answers status queries.
package dispatcher

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tautaras/review-crawler/internal/reviews"
)

// JobSpec is everything needed to enqueue one extraction job.
type JobSpec struct {
	URL         string
	Platform    string
	Fingerprint string
	CallbackURL string
}

// Status is the answer to a status query. Status queries are used
// opportunistically, so they are non-fatal by design: backend failures are
// reported in-band instead of propagating to the caller.
type Status struct {
	Status   reviews.JobStatus
	Progress reviews.JobProgress
	ErrText  string
}

// Dispatcher couples the queue with its result backend.
type Dispatcher struct {
	queue    reviews.Queue
	jobStore reviews.JobStore
	idGen    reviews.IDGenerator
	clock    reviews.Clock
	logger   *zap.Logger
}

// New constructs a Dispatcher.
func New(
	queue reviews.Queue,
	jobStore reviews.JobStore,
	idGen reviews.IDGenerator,
	clock reviews.Clock,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		queue:    queue,
		jobStore: jobStore,
		idGen:    idGen,
		clock:    clock,
		logger:   logger,
	}
}

// Submit enqueues a fire-and-forget unit of work and returns its assigned job
// id. Delivery is at-least-once to exactly one worker under normal operation;
// there is no guarantee of start time.
func (d *Dispatcher) Submit(ctx context.Context, spec JobSpec) (string, error) {
	jobID, err := d.idGen.NewID()
	if err != nil {
		return "", fmt.Errorf("generate job id: %w", err)
	}

	job := reviews.Job{
		ID:          jobID,
		URL:         spec.URL,
		Platform:    spec.Platform,
		Fingerprint: spec.Fingerprint,
		Status:      reviews.StatusPending,
		Submitted:   d.clock.Now(),
	}
	if err := d.jobStore.CreateJob(ctx, job); err != nil {
		return "", fmt.Errorf("create job record: %w", err)
	}

	task := reviews.TaskPayload{
		TaskID:      jobID,
		URL:         spec.URL,
		CallbackURL: spec.CallbackURL,
		Platform:    spec.Platform,
		Fingerprint: spec.Fingerprint,
	}
	if err := d.queue.Publish(ctx, task); err != nil {
		return "", fmt.Errorf("enqueue job: %w", err)
	}

	reviews.TotalJobsDispatched.Inc()
	d.logger.Info("job dispatched",
		zap.String("job_id", jobID),
		zap.String("platform", spec.Platform),
	)
	return jobID, nil
}

// Status queries the result backend for the job's current state. Unknown ids,
// expired results, and unreachable backends all report StatusUnknown rather
// than an error.
func (d *Dispatcher) Status(ctx context.Context, jobID string) Status {
	job, err := d.jobStore.GetJob(ctx, jobID)
	if err != nil {
		d.logger.Debug("status lookup failed", zap.String("job_id", jobID), zap.Error(err))
		return Status{Status: reviews.StatusUnknown, ErrText: err.Error()}
	}
	return Status{
		Status:   job.Status,
		Progress: job.Progress,
		ErrText:  job.ErrorText,
	}
}
