// Package dedup implements the job deduplication cache.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/tautaras/review-crawler/internal/reviews"
)

const keyPrefix = "task_status::"

// DefaultTTL bounds how long a fingerprint is assumed in-flight. Expiry is
// independent of job completion.
const DefaultTTL = time.Hour

// Cache maps request fingerprints to in-flight job ids over a generic TTL
// key/value capability. Presence of a cached id does NOT mean the job is
// active; callers must cross-check live status and treat anything other than
// STARTED/PROGRESS as stale. The check-then-set sequence is not atomic, so
// at-most-one-job-per-fingerprint is a soft guarantee only; idempotent
// ingestion is the correctness backstop.
type Cache struct {
	kv  reviews.KV
	ttl time.Duration
}

// New constructs a Cache. A non-positive ttl falls back to DefaultTTL.
func New(kv reviews.KV, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{kv: kv, ttl: ttl}
}

// LookupInflight returns the job id previously recorded for the fingerprint,
// or ok=false when absent or expired.
func (c *Cache) LookupInflight(ctx context.Context, fingerprint string) (string, bool, error) {
	value, ok, err := c.kv.Get(ctx, keyPrefix+fingerprint)
	if err != nil {
		return "", false, fmt.Errorf("dedup lookup: %w", err)
	}
	return value, ok, nil
}

// Record stores fingerprint -> jobID, overwriting any prior value.
func (c *Cache) Record(ctx context.Context, fingerprint, jobID string) error {
	if err := c.kv.Set(ctx, keyPrefix+fingerprint, jobID, c.ttl); err != nil {
		return fmt.Errorf("dedup record: %w", err)
	}
	return nil
}
