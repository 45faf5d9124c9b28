// Package main runs the review crawler API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/tautaras/review-crawler/internal/api"
	"github.com/tautaras/review-crawler/internal/app"
	"github.com/tautaras/review-crawler/internal/classifier"
	"github.com/tautaras/review-crawler/internal/clock/system"
	"github.com/tautaras/review-crawler/internal/config"
	"github.com/tautaras/review-crawler/internal/dedup"
	"github.com/tautaras/review-crawler/internal/dispatcher"
	"github.com/tautaras/review-crawler/internal/id/uuid"
	"github.com/tautaras/review-crawler/internal/ingest"
	"github.com/tautaras/review-crawler/internal/logging"
	"github.com/tautaras/review-crawler/internal/worker"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	kv, err := app.BuildKV(ctx, cfg.Cache)
	if err != nil {
		return err
	}
	queue, err := app.BuildQueue(ctx, cfg.Queue, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := queue.Close(); err != nil {
			logger.Warn("queue close failed", zap.Error(err))
		}
	}()
	jobStore, err := app.BuildJobStore(ctx, cfg.JobStore)
	if err != nil {
		return err
	}
	docs, err := app.BuildDocStore(ctx, cfg.DocStore)
	if err != nil {
		return err
	}

	clock := system.New()
	disp := dispatcher.New(queue, jobStore, uuid.New(), clock, logger)
	cache := dedup.New(kv, cfg.CacheTTL())
	cls := classifier.New(classifier.Config{
		CheckEnabled: cfg.Classifier.CheckEnabled,
		APIKey:       cfg.Classifier.APIKey,
		Endpoint:     cfg.Classifier.Endpoint,
		Timeout:      time.Duration(cfg.Classifier.TimeoutSeconds) * time.Second,
	}, logger)
	ing := ingest.New(docs, clock, logger)

	callbackURL := cfg.Scraper.CallbackURL
	if callbackURL == "" {
		callbackURL = fmt.Sprintf("http://localhost:%d/reviews/ingest", cfg.Server.Port)
	}
	server := api.NewServer(cls, cache, disp, ing, docs, api.Config{
		CallbackURL:     callbackURL,
		RequestTimeout:  time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		DefaultPageSize: cfg.Server.PageSize,
		MaxPageSize:     cfg.Server.MaxPageSize,
	}, logger)

	// With the in-memory queue there is no external worker process to drain
	// it, so the server embeds the worker pool. Single-binary dev mode.
	if cfg.Queue.Provider == "memory" {
		runner, cleanup, err := app.BuildRunner(ctx, cfg, jobStore, logger)
		if err != nil {
			return err
		}
		defer cleanup()
		pool := worker.New(queue, jobStore, runner, cfg.Scraper.Concurrency, logger)
		go func() {
			if err := pool.Run(ctx); err != nil {
				logger.Error("embedded worker pool exited", zap.Error(err))
			}
		}()
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
