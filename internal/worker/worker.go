// Package worker consumes extraction tasks from the queue and executes them.
package worker

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/tautaras/review-crawler/internal/reviews"
	"github.com/tautaras/review-crawler/internal/scraper"
)

// Pool runs a fixed number of consumers against the task queue. Delivery is
// at-least-once; the runner and the ingest path are written to tolerate
// redelivery.
type Pool struct {
	queue       reviews.Queue
	jobStore    reviews.JobStore
	runner      *scraper.Runner
	concurrency int
	logger      *zap.Logger
}

// New constructs a Pool. Concurrency below 1 is clamped to 1.
func New(
	queue reviews.Queue,
	jobStore reviews.JobStore,
	runner *scraper.Runner,
	concurrency int,
	logger *zap.Logger,
) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pool{
		queue:       queue,
		jobStore:    jobStore,
		runner:      runner,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Run blocks consuming tasks until ctx is canceled.
func (p *Pool) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	errs := make(chan error, p.concurrency)
	for i := 0; i < p.concurrency; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			logger := p.logger.With(zap.Int("worker", worker))
			logger.Info("worker started")
			if err := p.queue.Receive(ctx, p.handle); err != nil && ctx.Err() == nil {
				logger.Error("receive loop exited", zap.Error(err))
				errs <- err
				return
			}
			logger.Info("worker stopped")
		}(i)
	}
	wg.Wait()
	close(errs)
	return <-errs
}

// handle executes one task to a terminal state. A nil return acknowledges the
// message; an error is returned only when the terminal status could not be
// recorded, so the queue redelivers and the job is not silently lost.
func (p *Pool) handle(ctx context.Context, task reviews.TaskPayload) error {
	logger := p.logger.With(zap.String("job_id", task.TaskID))

	if err := validatePayload(task); err != nil {
		// Malformed tasks cannot succeed on redelivery.
		logger.Error("invalid task payload", zap.Error(err))
		if task.TaskID == "" {
			return nil
		}
		return p.recordTerminal(ctx, task.TaskID, reviews.StatusFailure, reviews.JobProgress{}, err.Error())
	}

	if err := p.jobStore.UpdateStatus(ctx, task.TaskID, reviews.StatusStarted, reviews.JobProgress{}, ""); err != nil {
		logger.Warn("start status update failed", zap.Error(err))
	}
	logger.Info("task started", zap.String("url", task.URL), zap.String("platform", task.Platform))

	result := p.runner.Run(ctx, task)
	progress := reviews.JobProgress{Pages: result.Pages, Reviews: result.Reviews}
	if result.Err != nil {
		logger.Error("task failed",
			zap.Int("pages", result.Pages),
			zap.Int("reviews", result.Reviews),
			zap.Error(result.Err),
		)
		return p.recordTerminal(ctx, task.TaskID, reviews.StatusFailure, progress, result.Err.Error())
	}

	logger.Info("task succeeded",
		zap.Int("pages", result.Pages),
		zap.Int("reviews", result.Reviews),
	)
	return p.recordTerminal(ctx, task.TaskID, reviews.StatusSuccess, progress, "")
}

func (p *Pool) recordTerminal(
	ctx context.Context,
	jobID string,
	status reviews.JobStatus,
	progress reviews.JobProgress,
	errText string,
) error {
	if err := p.jobStore.UpdateStatus(ctx, jobID, status, progress, errText); err != nil {
		return fmt.Errorf("record terminal status %s: %w", status, err)
	}
	return nil
}

func validatePayload(task reviews.TaskPayload) error {
	if task.TaskID == "" {
		return fmt.Errorf("task_id is required")
	}
	if task.URL == "" {
		return fmt.Errorf("url is required")
	}
	if task.CallbackURL == "" {
		return fmt.Errorf("callback_url is required")
	}
	if task.Platform == "" {
		return fmt.Errorf("platform is required")
	}
	return nil
}
