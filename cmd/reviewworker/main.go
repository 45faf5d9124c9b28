// Package main runs the review extraction worker pool.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/tautaras/review-crawler/internal/app"
	"github.com/tautaras/review-crawler/internal/config"
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
		logger.Fatal("worker exited", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	if cfg.Queue.Provider == "memory" {
		// The in-memory queue lives inside the server process; a standalone
		// worker would consume from an always-empty queue.
		return errors.New("the standalone worker requires a durable queue provider")
	}
	if cfg.Queue.Subscription == "" {
		return errors.New("queue.subscription is required for the worker")
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

	runner, cleanup, err := app.BuildRunner(ctx, cfg, jobStore, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	pool := worker.New(queue, jobStore, runner, cfg.Scraper.Concurrency, logger)
	logger.Info("worker pool starting", zap.Int("concurrency", cfg.Scraper.Concurrency))
	if err := pool.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	logger.Info("worker stopped")
	return nil
}
