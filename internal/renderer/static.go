package renderer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/tautaras/review-crawler/internal/reviews"
)

// StaticConfig controls the non-JS fetcher.
type StaticConfig struct {
	UserAgent string
	Timeout   time.Duration
}

// StaticRenderer fetches pages over plain HTTP via Colly, for platforms whose
// recipes do not need JavaScript. There is nothing to wait for on a static
// page: if the wait selector is absent from the response, the page is
// reported the same way a render timeout would be, so the caller's partial
// recovery path applies uniformly.
type StaticRenderer struct {
	cfg StaticConfig
}

// NewStatic constructs a StaticRenderer.
func NewStatic(cfg StaticConfig) *StaticRenderer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &StaticRenderer{cfg: cfg}
}

// Render fetches rawURL and verifies waitFor is present in the document.
func (r *StaticRenderer) Render(ctx context.Context, rawURL, waitFor string) (reviews.Page, error) {
	if err := ctx.Err(); err != nil {
		return reviews.Page{}, err
	}
	collector := colly.NewCollector(colly.Async(false))
	collector.SetRequestTimeout(r.cfg.Timeout)
	if r.cfg.UserAgent != "" {
		collector.UserAgent = r.cfg.UserAgent
	}

	var body []byte
	var fetchErr error
	collector.OnResponse(func(resp *colly.Response) {
		body = resp.Body
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	if err := collector.Visit(rawURL); err != nil {
		return reviews.Page{}, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	collector.Wait()
	if fetchErr != nil {
		return reviews.Page{}, fmt.Errorf("fetch %s: %w", rawURL, fetchErr)
	}

	page := reviews.Page{URL: rawURL, HTML: string(body)}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return reviews.Page{}, fmt.Errorf("parse %s: %w", rawURL, err)
	}
	if doc.Find(waitFor).Length() == 0 {
		page.Partial = true
		return page, fmt.Errorf("%w: %s", reviews.ErrPageTimeout, rawURL)
	}
	return page, nil
}

// Close satisfies the PageRenderer interface; the static fetcher holds no
// long-lived resources.
func (r *StaticRenderer) Close(_ context.Context) error {
	return nil
}
