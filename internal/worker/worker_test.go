package worker

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	jobstorememory "github.com/tautaras/review-crawler/internal/jobstore/memory"
	queuememory "github.com/tautaras/review-crawler/internal/queue/memory"
	"github.com/tautaras/review-crawler/internal/recipe"
	"github.com/tautaras/review-crawler/internal/reviews"
	"github.com/tautaras/review-crawler/internal/scraper"
)

var workerTestRecipe = recipe.Recipe{
	Container:   "div.review",
	Rating:      "span.rating",
	Title:       "span.title",
	Description: "p.body",
	Reviewer:    "span.author",
	Pagination:  "a.next",
	RenderJS:    true,
}

const workerTestPage = `<html><body>
<div class="review">
  <span class="rating">4</span>
  <span class="title">Solid</span>
  <p class="body">Holds up.</p>
  <span class="author">Pat</span>
</div>
</body></html>`

type scriptedRenderer struct {
	mu    sync.Mutex
	pages map[string]reviews.Page
	errs  map[string]error
}

func (r *scriptedRenderer) Render(_ context.Context, url, _ string) (reviews.Page, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.errs[url]; ok {
		return reviews.Page{}, err
	}
	page, ok := r.pages[url]
	if !ok {
		return reviews.Page{}, fmt.Errorf("unexpected render of %s", url)
	}
	return page, nil
}

func (r *scriptedRenderer) Close(context.Context) error { return nil }

type collectingPoster struct {
	mu      sync.Mutex
	batches [][]reviews.RawReview
}

func (p *collectingPoster) Post(_ context.Context, _ string, batch []reviews.RawReview) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, batch)
	return nil
}

func newTestPool(t *testing.T, renderer *scriptedRenderer) (*Pool, *jobstorememory.JobStore) {
	t.Helper()
	jobStore := jobstorememory.NewJobStore()
	runner := scraper.New(
		recipe.NewRegistry(map[string]recipe.Recipe{"testsite": workerTestRecipe}),
		renderer,
		nil,
		&collectingPoster{},
		jobStore,
		nil,
		reviews.RetryPolicy{MaxAttempts: 1, Delay: time.Millisecond},
		scraper.Config{PauseMin: time.Millisecond, PauseMax: 2 * time.Millisecond},
		zap.NewNop(),
	)
	return New(queuememory.NewQueue(4), jobStore, runner, 1, zap.NewNop()), jobStore
}

func testPayload() reviews.TaskPayload {
	return reviews.TaskPayload{
		TaskID:      "job-1",
		URL:         "https://reviews.testsite.com/widget/p1",
		CallbackURL: "http://localhost:8080/reviews/ingest",
		Platform:    "testsite",
		Fingerprint: "fp-1",
	}
}

func TestHandleRecordsSuccess(t *testing.T) {
	t.Parallel()

	renderer := &scriptedRenderer{pages: map[string]reviews.Page{
		"https://reviews.testsite.com/widget/p1": {HTML: workerTestPage},
	}}
	pool, jobStore := newTestPool(t, renderer)
	require.NoError(t, jobStore.CreateJob(context.Background(), reviews.Job{ID: "job-1", Status: reviews.StatusPending}))

	require.NoError(t, pool.handle(context.Background(), testPayload()))

	job, err := jobStore.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	require.Equal(t, reviews.StatusSuccess, job.Status)
	require.Equal(t, reviews.JobProgress{Pages: 1, Reviews: 1}, job.Progress)
	require.NotNil(t, job.Started)
	require.NotNil(t, job.Finished)
}

func TestHandleRecordsFailure(t *testing.T) {
	t.Parallel()

	renderer := &scriptedRenderer{errs: map[string]error{
		"https://reviews.testsite.com/widget/p1": fmt.Errorf("browser crashed"),
	}}
	pool, jobStore := newTestPool(t, renderer)
	require.NoError(t, jobStore.CreateJob(context.Background(), reviews.Job{ID: "job-1", Status: reviews.StatusPending}))

	require.NoError(t, pool.handle(context.Background(), testPayload()))

	job, err := jobStore.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	require.Equal(t, reviews.StatusFailure, job.Status)
	require.Contains(t, job.ErrorText, "browser crashed")
}

func TestHandleInvalidPayloadFailsJob(t *testing.T) {
	t.Parallel()

	pool, jobStore := newTestPool(t, &scriptedRenderer{})
	require.NoError(t, jobStore.CreateJob(context.Background(), reviews.Job{ID: "job-1", Status: reviews.StatusPending}))

	task := testPayload()
	task.CallbackURL = ""
	require.NoError(t, pool.handle(context.Background(), task))

	job, err := jobStore.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	require.Equal(t, reviews.StatusFailure, job.Status)
	require.Contains(t, job.ErrorText, "callback_url")
}

func TestHandleMissingTaskIDIsDropped(t *testing.T) {
	t.Parallel()

	pool, _ := newTestPool(t, &scriptedRenderer{})
	require.NoError(t, pool.handle(context.Background(), reviews.TaskPayload{URL: "https://x"}))
}

func TestHandleTerminalRecordFailurePropagates(t *testing.T) {
	t.Parallel()

	// The job row is missing, so the terminal write fails and the handler
	// reports the error for redelivery.
	renderer := &scriptedRenderer{pages: map[string]reviews.Page{
		"https://reviews.testsite.com/widget/p1": {HTML: workerTestPage},
	}}
	pool, _ := newTestPool(t, renderer)

	require.Error(t, pool.handle(context.Background(), testPayload()))
}

func TestPoolRunConsumesQueue(t *testing.T) {
	t.Parallel()

	renderer := &scriptedRenderer{pages: map[string]reviews.Page{
		"https://reviews.testsite.com/widget/p1": {HTML: workerTestPage},
	}}
	jobStore := jobstorememory.NewJobStore()
	queue := queuememory.NewQueue(4)
	runner := scraper.New(
		recipe.NewRegistry(map[string]recipe.Recipe{"testsite": workerTestRecipe}),
		renderer,
		nil,
		&collectingPoster{},
		jobStore,
		nil,
		reviews.RetryPolicy{MaxAttempts: 1, Delay: time.Millisecond},
		scraper.Config{PauseMin: time.Millisecond, PauseMax: 2 * time.Millisecond},
		zap.NewNop(),
	)
	pool := New(queue, jobStore, runner, 2, zap.NewNop())

	require.NoError(t, jobStore.CreateJob(context.Background(), reviews.Job{ID: "job-1", Status: reviews.StatusPending}))
	require.NoError(t, queue.Publish(context.Background(), testPayload()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = pool.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		job, err := jobStore.GetJob(context.Background(), "job-1")
		return err == nil && job.Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not stop after cancel")
	}
}
