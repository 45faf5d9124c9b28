package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tautaras/review-crawler/internal/reviews"
)

// HTTPPoster posts extracted batches to the ingest callback endpoint.
// Retrying is the caller's concern; a single Post is one attempt.
type HTTPPoster struct {
	client *http.Client
	logger *zap.Logger
}

// NewHTTPPoster constructs an HTTPPoster.
func NewHTTPPoster(timeout time.Duration, logger *zap.Logger) *HTTPPoster {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPPoster{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Post delivers one batch as a JSON array.
func (p *HTTPPoster) Post(ctx context.Context, callbackURL string, batch []reviews.RawReview) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("post batch: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			p.logger.Warn("close callback response", zap.Error(closeErr))
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("callback returned status %d", resp.StatusCode)
	}
	p.logger.Info("batch posted",
		zap.String("callback_url", callbackURL),
		zap.Int("reviews", len(batch)),
	)
	return nil
}
