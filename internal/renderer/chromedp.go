// Package renderer provides page renderer implementations.
package renderer

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tautaras/review-crawler/internal/reviews"
)

// ChromeConfig controls the headless Chrome renderer.
type ChromeConfig struct {
	UserAgent string
	// NavTimeout bounds navigation plus document readiness.
	NavTimeout time.Duration
	// WaitTimeout bounds how long to wait for the wait selector after
	// navigation. Expiry is a PageTimeout, not an immediate failure.
	WaitTimeout    time.Duration
	MaxConcurrency int
	DomainQPS      float64
}

// ChromeRenderer renders pages using headless Chrome via chromedp.
type ChromeRenderer struct {
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	logger          *zap.Logger
	sem             chan struct{}
	cfg             ChromeConfig
	domainLimiters  sync.Map
}

// NewChrome creates a renderer backed by a shared headless browser.
func NewChrome(cfg ChromeConfig, logger *zap.Logger) (*ChromeRenderer, error) {
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 30 * time.Second
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = 10 * time.Second
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 2
	}

	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		allocatorCancel()
		browserCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	return &ChromeRenderer{
		allocatorCancel: allocatorCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		logger:          logger,
		sem:             make(chan struct{}, cfg.MaxConcurrency),
		cfg:             cfg,
	}, nil
}

// Close tears down the chromedp allocator and browser contexts.
func (r *ChromeRenderer) Close(_ context.Context) error {
	if r == nil {
		return nil
	}
	r.browserCancel()
	r.allocatorCancel()
	return nil
}

// Render navigates to rawURL and waits for waitFor to materialize. On wait
// timeout it snapshots the partially loaded DOM and returns it alongside
// ErrPageTimeout so the caller can attempt pagination recovery.
func (r *ChromeRenderer) Render(ctx context.Context, rawURL, waitFor string) (reviews.Page, error) {
	release, err := r.acquireSlot(ctx)
	if err != nil {
		return reviews.Page{}, err
	}
	defer release()

	if err := r.waitDomainBudget(ctx, rawURL); err != nil {
		return reviews.Page{}, fmt.Errorf("render rate limit: %w", err)
	}

	tabCtx, cancelTab := chromedp.NewContext(r.browserCtx)
	defer cancelTab()

	stopForward := forwardCancel(ctx, cancelTab)
	defer stopForward()

	navCtx, cancelNav := context.WithTimeout(tabCtx, r.cfg.NavTimeout)
	defer cancelNav()

	navTasks := chromedp.Tasks{
		network.Enable(),
		chromedp.Navigate(rawURL),
	}
	if r.cfg.UserAgent != "" {
		navTasks = append(chromedp.Tasks{emulation.SetUserAgentOverride(r.cfg.UserAgent)}, navTasks...)
	}
	if err := chromedp.Run(navCtx, navTasks); err != nil {
		return reviews.Page{}, fmt.Errorf("navigate %s: %w", rawURL, err)
	}

	waitCtx, cancelWait := context.WithTimeout(tabCtx, r.cfg.WaitTimeout)
	defer cancelWait()

	waitErr := chromedp.Run(waitCtx, chromedp.WaitReady(waitFor, chromedp.ByQuery))

	var html string
	snapCtx, cancelSnap := context.WithTimeout(tabCtx, r.cfg.NavTimeout)
	defer cancelSnap()
	if err := chromedp.Run(snapCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		if waitErr != nil {
			return reviews.Page{}, fmt.Errorf("%w: %s", reviews.ErrPageTimeout, rawURL)
		}
		return reviews.Page{}, fmt.Errorf("snapshot dom: %w", err)
	}

	page := reviews.Page{URL: rawURL, HTML: html}
	if waitErr != nil {
		if errors.Is(waitErr, context.DeadlineExceeded) {
			page.Partial = true
			return page, fmt.Errorf("%w: %s", reviews.ErrPageTimeout, rawURL)
		}
		return reviews.Page{}, fmt.Errorf("wait for %q: %w", waitFor, waitErr)
	}
	return page, nil
}

func (r *ChromeRenderer) acquireSlot(ctx context.Context) (func(), error) {
	select {
	case r.sem <- struct{}{}:
		return func() { <-r.sem }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire render slot: %w", ctx.Err())
	}
}

func (r *ChromeRenderer) waitDomainBudget(ctx context.Context, rawURL string) error {
	if r.cfg.DomainQPS <= 0 {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse render url: %w", err)
	}
	host := strings.ToLower(parsed.Host)
	val, _ := r.domainLimiters.LoadOrStore(host, rate.NewLimiter(rate.Limit(r.cfg.DomainQPS), 1))
	limiter, ok := val.(*rate.Limiter)
	if !ok {
		return fmt.Errorf("unexpected limiter type %T", val)
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait limiter: %w", err)
	}
	return nil
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
