package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tautaras/review-crawler/internal/config"
	"github.com/tautaras/review-crawler/internal/recipe"
	"github.com/tautaras/review-crawler/internal/renderer"
	"github.com/tautaras/review-crawler/internal/reviews"
	"github.com/tautaras/review-crawler/internal/scraper"
)

// BuildRunner assembles the extraction runner: recipes, renderers, callback
// poster, retry policy, and page archive. The returned cleanup releases
// renderer resources and must be called on shutdown.
func BuildRunner(
	ctx context.Context,
	cfg config.Config,
	jobStore reviews.JobStore,
	logger *zap.Logger,
) (*scraper.Runner, func(), error) {
	archive, err := BuildArchive(ctx, cfg.Archive)
	if err != nil {
		return nil, nil, err
	}

	static := renderer.NewStatic(renderer.StaticConfig{
		UserAgent: cfg.Renderer.UserAgent,
		Timeout:   time.Duration(cfg.Renderer.NavTimeoutSec) * time.Second,
	})

	var js reviews.PageRenderer = static
	chrome, err := renderer.NewChrome(renderer.ChromeConfig{
		UserAgent:      cfg.Renderer.UserAgent,
		NavTimeout:     time.Duration(cfg.Renderer.NavTimeoutSec) * time.Second,
		WaitTimeout:    time.Duration(cfg.Renderer.WaitTimeoutSec) * time.Second,
		MaxConcurrency: cfg.Renderer.MaxParallel,
		DomainQPS:      cfg.Renderer.DomainQPS,
	}, logger)
	if err != nil {
		// No local Chrome. Recipes that require JS rendering will get the
		// static fetch, which usually surfaces as a page timeout downstream.
		logger.Warn("chrome renderer init failed, falling back to static fetches", zap.Error(err))
	} else {
		js = chrome
	}

	poster := scraper.NewHTTPPoster(time.Duration(cfg.Scraper.PostTimeoutSec)*time.Second, logger)

	retry := reviews.NewFixedRetryPolicy()
	if cfg.Scraper.RetryAttempts > 0 {
		retry.MaxAttempts = cfg.Scraper.RetryAttempts
	}
	if cfg.Scraper.RetryDelaySec > 0 {
		retry.Delay = time.Duration(cfg.Scraper.RetryDelaySec) * time.Second
	}

	runner := scraper.New(
		recipe.NewRegistry(cfg.Recipes),
		js,
		static,
		poster,
		jobStore,
		archive,
		retry,
		scraper.Config{
			MaxPages:      cfg.Scraper.MaxPages,
			PauseMin:      time.Duration(cfg.Scraper.PauseMinSeconds) * time.Second,
			PauseMax:      time.Duration(cfg.Scraper.PauseMaxSeconds) * time.Second,
			ArchivePrefix: cfg.Archive.Prefix,
		},
		logger,
	)

	cleanup := func() {
		if chrome != nil {
			if err := chrome.Close(context.Background()); err != nil {
				logger.Warn("chrome renderer close failed", zap.Error(err))
			}
		}
	}
	return runner, cleanup, nil
}
