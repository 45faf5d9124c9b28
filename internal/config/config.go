// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tautaras/review-crawler/internal/recipe"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig             `mapstructure:"server"`
	Classifier ClassifierConfig         `mapstructure:"classifier"`
	Cache      CacheConfig              `mapstructure:"cache"`
	Queue      QueueConfig              `mapstructure:"queue"`
	JobStore   JobStoreConfig           `mapstructure:"jobstore"`
	DocStore   DocStoreConfig           `mapstructure:"docstore"`
	Scraper    ScraperConfig            `mapstructure:"scraper"`
	Renderer   RendererConfig           `mapstructure:"renderer"`
	Archive    ArchiveConfig            `mapstructure:"archive"`
	Logging    LoggingConfig            `mapstructure:"logging"`
	Recipes    map[string]recipe.Recipe `mapstructure:"recipes"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	MaxPageSize    int `mapstructure:"max_page_size"`
	PageSize       int `mapstructure:"page_size"`
}

// ClassifierConfig controls URL validation and the optional reputation check.
type ClassifierConfig struct {
	CheckEnabled   bool   `mapstructure:"check_enabled"`
	APIKey         string `mapstructure:"api_key"`
	Endpoint       string `mapstructure:"endpoint"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// CacheConfig selects the deduplication cache backend.
type CacheConfig struct {
	Provider   string `mapstructure:"provider"`
	DSN        string `mapstructure:"dsn"`
	TTLSeconds int    `mapstructure:"ttl_seconds"`
}

// QueueConfig selects the task queue backend.
type QueueConfig struct {
	Provider     string `mapstructure:"provider"`
	ProjectID    string `mapstructure:"project_id"`
	TopicID      string `mapstructure:"topic_id"`
	Subscription string `mapstructure:"subscription"`
}

// JobStoreConfig selects the job result backend.
type JobStoreConfig struct {
	Provider string `mapstructure:"provider"`
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// DocStoreConfig selects the searchable review store backend.
type DocStoreConfig struct {
	Provider string `mapstructure:"provider"`
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// ScraperConfig governs worker extraction behavior.
type ScraperConfig struct {
	Concurrency     int    `mapstructure:"concurrency"`
	MaxPages        int    `mapstructure:"max_pages"`
	PauseMinSeconds int    `mapstructure:"pause_min_seconds"`
	PauseMaxSeconds int    `mapstructure:"pause_max_seconds"`
	CallbackURL     string `mapstructure:"callback_url"`
	PostTimeoutSec  int    `mapstructure:"post_timeout_seconds"`
	RetryAttempts   int    `mapstructure:"retry_attempts"`
	RetryDelaySec   int    `mapstructure:"retry_delay_seconds"`
}

// RendererConfig configures page rendering.
type RendererConfig struct {
	UserAgent      string  `mapstructure:"user_agent"`
	NavTimeoutSec  int     `mapstructure:"nav_timeout_seconds"`
	WaitTimeoutSec int     `mapstructure:"wait_timeout_seconds"`
	MaxParallel    int     `mapstructure:"max_parallel"`
	DomainQPS      float64 `mapstructure:"domain_qps"`
}

// ArchiveConfig selects the page snapshot destination.
type ArchiveConfig struct {
	Provider string `mapstructure:"provider"`
	BaseDir  string `mapstructure:"base_dir"`
	Bucket   string `mapstructure:"bucket"`
	Prefix   string `mapstructure:"prefix"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("REVIEWS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.timeout_seconds", 60)
	v.SetDefault("server.page_size", 10)
	v.SetDefault("server.max_page_size", 100)
	v.SetDefault("classifier.check_enabled", false)
	v.SetDefault("classifier.timeout_seconds", 10)
	v.SetDefault("cache.provider", "memory")
	v.SetDefault("cache.ttl_seconds", 3600)
	v.SetDefault("queue.provider", "memory")
	v.SetDefault("jobstore.provider", "memory")
	v.SetDefault("docstore.provider", "memory")
	v.SetDefault("scraper.concurrency", 2)
	v.SetDefault("scraper.max_pages", 50)
	v.SetDefault("scraper.pause_min_seconds", 3)
	v.SetDefault("scraper.pause_max_seconds", 7)
	v.SetDefault("scraper.post_timeout_seconds", 30)
	v.SetDefault("scraper.retry_attempts", 3)
	v.SetDefault("scraper.retry_delay_seconds", 5)
	v.SetDefault("renderer.user_agent", "review-crawler/1.0")
	v.SetDefault("renderer.nav_timeout_seconds", 30)
	v.SetDefault("renderer.wait_timeout_seconds", 10)
	v.SetDefault("renderer.max_parallel", 2)
	v.SetDefault("renderer.domain_qps", 0.5)
	v.SetDefault("archive.provider", "none")
	v.SetDefault("archive.prefix", "pages")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Classifier.CheckEnabled && c.Classifier.APIKey == "" {
		return fmt.Errorf("classifier.api_key must be set when check is enabled")
	}
	switch c.Cache.Provider {
	case "memory":
	case "postgres":
		if c.Cache.DSN == "" {
			return fmt.Errorf("cache.dsn must be set for the postgres provider")
		}
	default:
		return fmt.Errorf("cache.provider must be memory or postgres")
	}
	switch c.Queue.Provider {
	case "memory":
	case "pubsub":
		if c.Queue.ProjectID == "" || c.Queue.TopicID == "" {
			return fmt.Errorf("queue.project_id and queue.topic_id must be set for the pubsub provider")
		}
	default:
		return fmt.Errorf("queue.provider must be memory or pubsub")
	}
	switch c.JobStore.Provider {
	case "memory":
	case "postgres":
		if c.JobStore.DSN == "" {
			return fmt.Errorf("jobstore.dsn must be set for the postgres provider")
		}
	default:
		return fmt.Errorf("jobstore.provider must be memory or postgres")
	}
	switch c.DocStore.Provider {
	case "memory":
	case "postgres":
		if c.DocStore.DSN == "" {
			return fmt.Errorf("docstore.dsn must be set for the postgres provider")
		}
	default:
		return fmt.Errorf("docstore.provider must be memory or postgres")
	}
	switch c.Archive.Provider {
	case "none", "memory":
	case "local":
		if c.Archive.BaseDir == "" {
			return fmt.Errorf("archive.base_dir must be set for the local provider")
		}
	case "gcs":
		if c.Archive.Bucket == "" {
			return fmt.Errorf("archive.bucket must be set for the gcs provider")
		}
	default:
		return fmt.Errorf("archive.provider must be none, memory, local, or gcs")
	}
	if c.Scraper.Concurrency <= 0 {
		return fmt.Errorf("scraper.concurrency must be > 0")
	}
	if c.Scraper.PauseMaxSeconds < c.Scraper.PauseMinSeconds {
		return fmt.Errorf("scraper.pause_max_seconds must be >= scraper.pause_min_seconds")
	}
	return nil
}

// CacheTTL returns the dedup cache TTL as a duration.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}
