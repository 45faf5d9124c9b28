package scraper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	archivememory "github.com/tautaras/review-crawler/internal/archive/memory"
	jobstorememory "github.com/tautaras/review-crawler/internal/jobstore/memory"
	"github.com/tautaras/review-crawler/internal/recipe"
	"github.com/tautaras/review-crawler/internal/reviews"
)

type renderStep struct {
	page reviews.Page
	err  error
}

// fakeRenderer serves scripted responses per URL, consuming steps in order so
// a URL can fail once and then succeed.
type fakeRenderer struct {
	mu     sync.Mutex
	steps  map[string][]renderStep
	visits []string
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{steps: make(map[string][]renderStep)}
}

func (f *fakeRenderer) add(url string, step renderStep) {
	f.steps[url] = append(f.steps[url], step)
}

func (f *fakeRenderer) Render(_ context.Context, url, _ string) (reviews.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visits = append(f.visits, url)
	queue := f.steps[url]
	if len(queue) == 0 {
		return reviews.Page{}, fmt.Errorf("unexpected render of %s", url)
	}
	step := queue[0]
	if len(queue) > 1 {
		f.steps[url] = queue[1:]
	}
	return step.page, step.err
}

func (f *fakeRenderer) Close(context.Context) error { return nil }

func (f *fakeRenderer) visited() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.visits))
	copy(out, f.visits)
	return out
}

type fakePoster struct {
	mu       sync.Mutex
	batches  [][]reviews.RawReview
	failures int
	calls    int
}

func (p *fakePoster) Post(_ context.Context, _ string, batch []reviews.RawReview) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.failures > 0 {
		p.failures--
		return errors.New("callback unavailable")
	}
	p.batches = append(p.batches, batch)
	return nil
}

func pageHTML(reviewCount int, nextHref string) string {
	html := "<html><body>"
	for i := 0; i < reviewCount; i++ {
		html += fmt.Sprintf(`
<div class="review">
  <span class="rating">%d</span>
  <span class="title">Title %d</span>
  <p class="body">Body %d</p>
  <span class="author">Author %d</span>
</div>`, 1+i%5, i, i, i)
	}
	if nextHref != "" {
		html += fmt.Sprintf(`<a class="next" href="%s">Next</a>`, nextHref)
	}
	return html + "</body></html>"
}

func newTestRunner(
	renderer *fakeRenderer,
	poster *fakePoster,
	jobStore reviews.JobStore,
	archive reviews.BlobStore,
	maxPages int,
) *Runner {
	return New(
		recipe.NewRegistry(map[string]recipe.Recipe{"testsite": testRecipe}),
		renderer,
		nil,
		poster,
		jobStore,
		archive,
		reviews.RetryPolicy{MaxAttempts: 2, Delay: time.Millisecond},
		Config{
			MaxPages: maxPages,
			PauseMin: time.Millisecond,
			PauseMax: 2 * time.Millisecond,
		},
		zap.NewNop(),
	)
}

func testTask() reviews.TaskPayload {
	return reviews.TaskPayload{
		TaskID:      "job-1",
		URL:         "https://reviews.testsite.com/widget-pro/p1",
		CallbackURL: "http://localhost:8080/reviews/ingest",
		Platform:    "testsite",
		Fingerprint: "fp-1",
	}
}

func createTestJob(t *testing.T, jobStore reviews.JobStore) {
	t.Helper()
	require.NoError(t, jobStore.CreateJob(context.Background(), reviews.Job{
		ID:     "job-1",
		Status: reviews.StatusStarted,
	}))
}

func TestRunFollowsPaginationToCompletion(t *testing.T) {
	t.Parallel()

	renderer := newFakeRenderer()
	renderer.add("https://reviews.testsite.com/widget-pro/p1",
		renderStep{page: reviews.Page{HTML: pageHTML(3, "/widget-pro/p2")}})
	renderer.add("https://reviews.testsite.com/widget-pro/p2",
		renderStep{page: reviews.Page{HTML: pageHTML(2, "/widget-pro/p3")}})
	renderer.add("https://reviews.testsite.com/widget-pro/p3",
		renderStep{page: reviews.Page{HTML: pageHTML(1, "")}})

	poster := &fakePoster{}
	jobStore := jobstorememory.NewJobStore()
	createTestJob(t, jobStore)

	result := newTestRunner(renderer, poster, jobStore, nil, 0).Run(context.Background(), testTask())

	require.NoError(t, result.Err)
	require.Equal(t, 3, result.Pages)
	require.Equal(t, 6, result.Reviews)
	require.Equal(t, []string{
		"https://reviews.testsite.com/widget-pro/p1",
		"https://reviews.testsite.com/widget-pro/p2",
		"https://reviews.testsite.com/widget-pro/p3",
	}, renderer.visited())
	require.Len(t, poster.batches, 3)

	job, err := jobStore.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	require.Equal(t, reviews.JobProgress{Pages: 3, Reviews: 6}, job.Progress)
}

func TestRunRecoversNextPageAfterTimeout(t *testing.T) {
	t.Parallel()

	// Page 1 times out but the pagination control made it into the partial
	// DOM, so the run moves on and extracts page 2.
	renderer := newFakeRenderer()
	renderer.add("https://reviews.testsite.com/widget-pro/p1", renderStep{
		page: reviews.Page{HTML: pageHTML(0, "/widget-pro/p2"), Partial: true},
		err:  fmt.Errorf("%w: p1", reviews.ErrPageTimeout),
	})
	renderer.add("https://reviews.testsite.com/widget-pro/p2",
		renderStep{page: reviews.Page{HTML: pageHTML(2, "")}})

	poster := &fakePoster{}
	jobStore := jobstorememory.NewJobStore()
	createTestJob(t, jobStore)

	result := newTestRunner(renderer, poster, jobStore, nil, 0).Run(context.Background(), testTask())

	require.NoError(t, result.Err)
	require.Equal(t, 2, result.Pages)
	require.Equal(t, 2, result.Reviews)
	require.Len(t, poster.batches, 1)
}

func TestRunFailsWhenTimeoutHasNoNextPage(t *testing.T) {
	t.Parallel()

	renderer := newFakeRenderer()
	renderer.add("https://reviews.testsite.com/widget-pro/p1", renderStep{
		page: reviews.Page{HTML: "<html><body><p>half loaded</p></body></html>", Partial: true},
		err:  fmt.Errorf("%w: p1", reviews.ErrPageTimeout),
	})

	jobStore := jobstorememory.NewJobStore()
	createTestJob(t, jobStore)

	result := newTestRunner(renderer, &fakePoster{}, jobStore, nil, 0).Run(context.Background(), testTask())

	require.ErrorIs(t, result.Err, reviews.ErrPageTimeout)
	require.Zero(t, result.Reviews)
	// No retry for timeouts: the recovery path is the retry.
	require.Len(t, renderer.visited(), 1)
}

func TestRunRetriesTransientRenderFailure(t *testing.T) {
	t.Parallel()

	renderer := newFakeRenderer()
	renderer.add("https://reviews.testsite.com/widget-pro/p1",
		renderStep{err: errors.New("connection reset")})
	renderer.add("https://reviews.testsite.com/widget-pro/p1",
		renderStep{page: reviews.Page{HTML: pageHTML(1, "")}})

	poster := &fakePoster{}
	jobStore := jobstorememory.NewJobStore()
	createTestJob(t, jobStore)

	result := newTestRunner(renderer, poster, jobStore, nil, 0).Run(context.Background(), testTask())

	require.NoError(t, result.Err)
	require.Equal(t, 1, result.Pages)
	require.Len(t, renderer.visited(), 2)
}

func TestRunFailsWhenCallbackExhaustsRetries(t *testing.T) {
	t.Parallel()

	renderer := newFakeRenderer()
	renderer.add("https://reviews.testsite.com/widget-pro/p1",
		renderStep{page: reviews.Page{HTML: pageHTML(2, "")}})

	poster := &fakePoster{failures: 10}
	jobStore := jobstorememory.NewJobStore()
	createTestJob(t, jobStore)

	result := newTestRunner(renderer, poster, jobStore, nil, 0).Run(context.Background(), testTask())

	require.Error(t, result.Err)
	require.Contains(t, result.Err.Error(), "post batch")
	require.Equal(t, 2, poster.calls)
}

func TestRunStopsAtPageCeiling(t *testing.T) {
	t.Parallel()

	renderer := newFakeRenderer()
	renderer.add("https://reviews.testsite.com/widget-pro/p1",
		renderStep{page: reviews.Page{HTML: pageHTML(1, "/widget-pro/p2")}})
	renderer.add("https://reviews.testsite.com/widget-pro/p2",
		renderStep{page: reviews.Page{HTML: pageHTML(1, "/widget-pro/p3")}})

	poster := &fakePoster{}
	jobStore := jobstorememory.NewJobStore()
	createTestJob(t, jobStore)

	result := newTestRunner(renderer, poster, jobStore, nil, 2).Run(context.Background(), testTask())

	require.NoError(t, result.Err)
	require.Equal(t, 2, result.Pages)
	require.Len(t, renderer.visited(), 2)
}

func TestRunUnknownPlatformIsFatal(t *testing.T) {
	t.Parallel()

	jobStore := jobstorememory.NewJobStore()
	createTestJob(t, jobStore)

	task := testTask()
	task.Platform = "unknown"
	result := newTestRunner(newFakeRenderer(), &fakePoster{}, jobStore, nil, 0).Run(context.Background(), task)

	require.ErrorIs(t, result.Err, reviews.ErrRecipeNotFound)
}

func TestRunArchivesPageSnapshots(t *testing.T) {
	t.Parallel()

	renderer := newFakeRenderer()
	renderer.add("https://reviews.testsite.com/widget-pro/p1",
		renderStep{page: reviews.Page{HTML: pageHTML(1, "/widget-pro/p2")}})
	renderer.add("https://reviews.testsite.com/widget-pro/p2",
		renderStep{page: reviews.Page{HTML: pageHTML(1, "")}})

	archive := archivememory.New()
	jobStore := jobstorememory.NewJobStore()
	createTestJob(t, jobStore)

	result := newTestRunner(renderer, &fakePoster{}, jobStore, archive, 0).
		Run(context.Background(), testTask())

	require.NoError(t, result.Err)
	require.Equal(t, 2, archive.Len())
	_, ok := archive.Object("job-1/page_0.html")
	require.True(t, ok)
	_, ok = archive.Object("job-1/page_1.html")
	require.True(t, ok)
}
