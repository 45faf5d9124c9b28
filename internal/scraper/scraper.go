// Package scraper drives multi-page review extraction for a single job.
package scraper

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/tautaras/review-crawler/internal/recipe"
	"github.com/tautaras/review-crawler/internal/reviews"
)

// State names the position of a run in the extraction loop.
type State string

// The state machine is INIT -> RENDERING -> EXTRACTING ->
// (PAGINATING -> RENDERING)* -> DONE, with FAILED reachable from any state.
const (
	StateInit       State = "INIT"
	StateRendering  State = "RENDERING"
	StateExtracting State = "EXTRACTING"
	StatePaginating State = "PAGINATING"
	StateDone       State = "DONE"
	StateFailed     State = "FAILED"
)

// BatchPoster delivers an extracted batch to the ingest callback.
type BatchPoster interface {
	Post(ctx context.Context, callbackURL string, batch []reviews.RawReview) error
}

// Config controls runner behavior.
type Config struct {
	// MaxPages caps pagination; 0 means unbounded.
	MaxPages int
	// PauseMin/PauseMax bound the randomized politeness delay between
	// page navigations. Rate limiting, not correctness.
	PauseMin time.Duration
	PauseMax time.Duration
	// ArchivePrefix prefixes page snapshot paths in the blob store.
	ArchivePrefix string
}

// Runner executes one extraction job inside a worker. Runs are single-threaded
// internally; pages are inherently sequential because page N+1's URL is
// discovered on page N.
type Runner struct {
	recipes  *recipe.Registry
	renderer reviews.PageRenderer
	static   reviews.PageRenderer
	poster   BatchPoster
	jobStore reviews.JobStore
	archive  reviews.BlobStore
	retry    reviews.RetryPolicy
	cfg      Config
	logger   *zap.Logger
}

// New constructs a Runner. static and archive may be nil; recipes requiring
// a static fetch fall back to the JS renderer, and archiving is skipped.
func New(
	recipes *recipe.Registry,
	renderer reviews.PageRenderer,
	static reviews.PageRenderer,
	poster BatchPoster,
	jobStore reviews.JobStore,
	archive reviews.BlobStore,
	retry reviews.RetryPolicy,
	cfg Config,
	logger *zap.Logger,
) *Runner {
	if cfg.PauseMin <= 0 {
		cfg.PauseMin = 3 * time.Second
	}
	if cfg.PauseMax < cfg.PauseMin {
		cfg.PauseMax = cfg.PauseMin + 4*time.Second
	}
	return &Runner{
		recipes:  recipes,
		renderer: renderer,
		static:   static,
		poster:   poster,
		jobStore: jobStore,
		archive:  archive,
		retry:    retry,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run executes the job to its terminal state and returns the result. Partial
// result counts collected before a failure are reported alongside the error.
func (r *Runner) Run(ctx context.Context, task reviews.TaskPayload) reviews.ExtractionResult {
	state := StateInit
	result := reviews.ExtractionResult{}
	transition := func(next State) {
		state = next
		r.logger.Debug("state transition",
			zap.String("job_id", task.TaskID),
			zap.String("state", string(state)),
		)
	}

	rec, err := r.recipes.Lookup(task.Platform)
	if err != nil {
		// Fatal configuration error: retrying cannot change the outcome.
		r.logger.Error("recipe lookup failed",
			zap.String("job_id", task.TaskID),
			zap.String("platform", task.Platform),
			zap.Error(err),
		)
		result.Err = err
		return result
	}

	productName := deriveProductName(task.URL)
	renderer := r.pickRenderer(rec)
	r.updateProgress(ctx, task.TaskID, result)

	currentURL := task.URL
	for currentURL != "" {
		if r.cfg.MaxPages > 0 && result.Pages >= r.cfg.MaxPages {
			r.logger.Warn("page ceiling reached",
				zap.String("job_id", task.TaskID),
				zap.Int("pages", result.Pages),
			)
			break
		}

		transition(StateRendering)
		page, renderErr := r.renderPage(ctx, renderer, currentURL, rec.Container)
		if renderErr != nil {
			if errors.Is(renderErr, reviews.ErrPageTimeout) {
				// A slow-loading "next" link is a common partial-failure
				// mode: recover the pagination control from whatever did
				// load before giving up.
				reviews.TotalPageTimeouts.Inc()
				next := r.recoverNextPage(page, rec, currentURL, task.TaskID)
				if next != "" {
					result.Pages++
					currentURL = next
					continue
				}
				transition(StateFailed)
				result.Err = renderErr
				return result
			}
			transition(StateFailed)
			result.Err = fmt.Errorf("render page: %w", renderErr)
			return result
		}

		transition(StateExtracting)
		reviews.TotalPagesScraped.Inc()
		batch, skipped := extractReviews(page.HTML, rec, pageMeta{
			productName: productName,
			siteName:    task.Platform,
			tokenID:     task.Fingerprint,
		})
		if skipped > 0 {
			r.logger.Warn("review elements skipped",
				zap.String("job_id", task.TaskID),
				zap.String("url", currentURL),
				zap.Int("skipped", skipped),
			)
		}
		reviews.TotalReviewsExtracted.Add(float64(len(batch)))

		r.archivePage(ctx, task.TaskID, result.Pages, page)

		// Results stream page-by-page; a lost worker loses at most one
		// unposted page, and redelivered batches dedup at ingestion.
		if len(batch) > 0 {
			if err := r.postBatch(ctx, task.CallbackURL, batch); err != nil {
				transition(StateFailed)
				result.Err = fmt.Errorf("post batch: %w", err)
				return result
			}
			result.Reviews += len(batch)
		}

		result.Pages++
		r.updateProgress(ctx, task.TaskID, result)

		r.pause(ctx)

		transition(StatePaginating)
		next := extractNextPage(page.HTML, currentURL, rec.Pagination)
		if next == "" {
			break
		}
		currentURL = next
	}

	transition(StateDone)
	return result
}

func (r *Runner) pickRenderer(rec recipe.Recipe) reviews.PageRenderer {
	if !rec.RenderJS && r.static != nil {
		return r.static
	}
	return r.renderer
}

// renderPage retries transient render failures. Page timeouts are not
// transient here; they get the dedicated recovery path.
func (r *Runner) renderPage(
	ctx context.Context,
	renderer reviews.PageRenderer,
	url, waitFor string,
) (reviews.Page, error) {
	var page reviews.Page
	policy := r.retry
	policy.Retryable = func(err error) bool {
		return !errors.Is(err, reviews.ErrPageTimeout)
	}
	err := policy.Do(ctx, func(ctx context.Context) error {
		var renderErr error
		page, renderErr = renderer.Render(ctx, url, waitFor)
		return renderErr
	})
	return page, err
}

func (r *Runner) recoverNextPage(page reviews.Page, rec recipe.Recipe, currentURL, jobID string) string {
	next := extractNextPage(page.HTML, currentURL, rec.Pagination)
	if next != "" {
		r.logger.Warn("page timed out but next page exists, moving on",
			zap.String("job_id", jobID),
			zap.String("url", currentURL),
			zap.String("next", next),
		)
	}
	return next
}

func (r *Runner) postBatch(ctx context.Context, callbackURL string, batch []reviews.RawReview) error {
	return r.retry.Do(ctx, func(ctx context.Context) error {
		return r.poster.Post(ctx, callbackURL, batch)
	})
}

func (r *Runner) archivePage(ctx context.Context, jobID string, pageIndex int, page reviews.Page) {
	if r.archive == nil || page.HTML == "" {
		return
	}
	path := fmt.Sprintf("%s/page_%d.html", jobID, pageIndex)
	if r.cfg.ArchivePrefix != "" {
		path = r.cfg.ArchivePrefix + "/" + path
	}
	if _, err := r.archive.PutObject(ctx, path, "text/html; charset=utf-8", []byte(page.HTML)); err != nil {
		r.logger.Warn("page archive failed",
			zap.String("job_id", jobID),
			zap.String("url", page.URL),
			zap.Error(err),
		)
	}
}

func (r *Runner) updateProgress(ctx context.Context, jobID string, result reviews.ExtractionResult) {
	progress := reviews.JobProgress{Pages: result.Pages, Reviews: result.Reviews}
	if err := r.jobStore.UpdateStatus(ctx, jobID, reviews.StatusProgress, progress, ""); err != nil {
		r.logger.Warn("progress update failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

// pause sleeps for a randomized delay inside the configured jitter window to
// mimic human pacing between navigations.
func (r *Runner) pause(ctx context.Context) {
	window := r.cfg.PauseMax - r.cfg.PauseMin
	delay := r.cfg.PauseMin + randomJitter(window)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
