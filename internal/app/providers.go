// Package app builds configured backend providers for the service binaries.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	archivegcs "github.com/tautaras/review-crawler/internal/archive/gcs"
	archivelocal "github.com/tautaras/review-crawler/internal/archive/local"
	archivememory "github.com/tautaras/review-crawler/internal/archive/memory"
	"github.com/tautaras/review-crawler/internal/config"
	docstorememory "github.com/tautaras/review-crawler/internal/docstore/memory"
	docstorepostgres "github.com/tautaras/review-crawler/internal/docstore/postgres"
	jobstorememory "github.com/tautaras/review-crawler/internal/jobstore/memory"
	jobstorepostgres "github.com/tautaras/review-crawler/internal/jobstore/postgres"
	kvmemory "github.com/tautaras/review-crawler/internal/kv/memory"
	kvpostgres "github.com/tautaras/review-crawler/internal/kv/postgres"
	queuememory "github.com/tautaras/review-crawler/internal/queue/memory"
	queuepubsub "github.com/tautaras/review-crawler/internal/queue/pubsub"
	"github.com/tautaras/review-crawler/internal/reviews"
)

const defaultMemoryQueueDepth = 64

// BuildKV selects the dedup cache backend.
func BuildKV(ctx context.Context, cfg config.CacheConfig) (reviews.KV, error) {
	switch cfg.Provider {
	case "memory":
		return kvmemory.New(), nil
	case "postgres":
		kv, err := kvpostgres.New(ctx, kvpostgres.Config{DSN: cfg.DSN})
		if err != nil {
			return nil, fmt.Errorf("build postgres kv: %w", err)
		}
		return kv, nil
	default:
		return nil, fmt.Errorf("unknown cache provider %q", cfg.Provider)
	}
}

// BuildQueue selects the task queue backend.
func BuildQueue(ctx context.Context, cfg config.QueueConfig, logger *zap.Logger) (reviews.Queue, error) {
	switch cfg.Provider {
	case "memory":
		return queuememory.NewQueue(defaultMemoryQueueDepth), nil
	case "pubsub":
		q, err := queuepubsub.New(ctx, queuepubsub.Config{
			ProjectID:    cfg.ProjectID,
			TopicID:      cfg.TopicID,
			Subscription: cfg.Subscription,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("build pubsub queue: %w", err)
		}
		return q, nil
	default:
		return nil, fmt.Errorf("unknown queue provider %q", cfg.Provider)
	}
}

// BuildJobStore selects the job result backend.
func BuildJobStore(ctx context.Context, cfg config.JobStoreConfig) (reviews.JobStore, error) {
	switch cfg.Provider {
	case "memory":
		return jobstorememory.NewJobStore(), nil
	case "postgres":
		store, err := jobstorepostgres.New(ctx, jobstorepostgres.Config{DSN: cfg.DSN, MaxConns: cfg.MaxConns})
		if err != nil {
			return nil, fmt.Errorf("build postgres job store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown jobstore provider %q", cfg.Provider)
	}
}

// BuildDocStore selects the searchable review store backend.
func BuildDocStore(ctx context.Context, cfg config.DocStoreConfig) (reviews.DocumentStore, error) {
	switch cfg.Provider {
	case "memory":
		return docstorememory.New(), nil
	case "postgres":
		store, err := docstorepostgres.New(ctx, docstorepostgres.Config{DSN: cfg.DSN, MaxConns: cfg.MaxConns})
		if err != nil {
			return nil, fmt.Errorf("build postgres doc store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown docstore provider %q", cfg.Provider)
	}
}

// BuildArchive selects the page snapshot destination. Provider "none" returns
// a nil store; the scraper treats that as archiving disabled.
func BuildArchive(ctx context.Context, cfg config.ArchiveConfig) (reviews.BlobStore, error) {
	switch cfg.Provider {
	case "none":
		return nil, nil
	case "memory":
		return archivememory.New(), nil
	case "local":
		store, err := archivelocal.New(cfg.BaseDir)
		if err != nil {
			return nil, fmt.Errorf("build local archive: %w", err)
		}
		return store, nil
	case "gcs":
		store, err := archivegcs.New(ctx, archivegcs.Config{Bucket: cfg.Bucket})
		if err != nil {
			return nil, fmt.Errorf("build gcs archive: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown archive provider %q", cfg.Provider)
	}
}
