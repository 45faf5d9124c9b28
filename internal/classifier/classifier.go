// Package classifier validates review URLs and maps them to platforms.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tautaras/review-crawler/internal/reviews"
)

// platformHosts maps a host substring to its platform identifier. Polymorphism
// over platforms is data-driven; adding a platform means adding a row here and
// a recipe in the registry.
var platformHosts = []struct {
	substr   string
	platform string
}{
	{"amazon.com", "amazon"},
	{"flipkart.com", "flipkart"},
}

// Config controls classification behavior.
type Config struct {
	// CheckEnabled turns the external reputation lookup on. The check is an
	// explicit flag rather than an implicit key-presence test; disabled is
	// the documented fail-open default.
	CheckEnabled bool
	// APIKey authenticates against the reputation service.
	APIKey string
	// Endpoint overrides the reputation service URL (tests).
	Endpoint string
	Timeout  time.Duration
}

const defaultReputationEndpoint = "https://safebrowsing.googleapis.com/v4/threatMatches:find"

// Classifier validates URLs and resolves their platform. Classification of a
// valid URL is a pure function; the reputation check is the only side channel.
type Classifier struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New constructs a Classifier.
func New(cfg Config, logger *zap.Logger) *Classifier {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultReputationEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Classifier{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Classify validates rawURL and returns its platform identifier.
// It signals ErrInvalidURL, ErrUnsafeScheme, ErrUnsafeURL, or
// ErrUnsupportedPlatform.
func (c *Classifier) Classify(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", reviews.ErrInvalidURL
	}
	if u.Scheme != "https" {
		return "", reviews.ErrUnsafeScheme
	}

	if c.cfg.CheckEnabled {
		safe, err := c.checkReputation(ctx, rawURL)
		if err != nil {
			// The reputation service is advisory; an unreachable service
			// falls open rather than blocking submissions.
			c.logger.Warn("reputation check failed", zap.String("url", rawURL), zap.Error(err))
		} else if !safe {
			return "", reviews.ErrUnsafeURL
		}
	}

	host := strings.ToLower(u.Host)
	for _, entry := range platformHosts {
		if strings.Contains(host, entry.substr) {
			return entry.platform, nil
		}
	}
	return "", reviews.ErrUnsupportedPlatform
}

type threatRequest struct {
	Client struct {
		ClientID      string `json:"clientId"`
		ClientVersion string `json:"clientVersion"`
	} `json:"client"`
	ThreatInfo struct {
		ThreatTypes      []string            `json:"threatTypes"`
		PlatformTypes    []string            `json:"platformTypes"`
		ThreatEntryTypes []string            `json:"threatEntryTypes"`
		ThreatEntries    []map[string]string `json:"threatEntries"`
	} `json:"threatInfo"`
}

func (c *Classifier) checkReputation(ctx context.Context, rawURL string) (bool, error) {
	var payload threatRequest
	payload.Client.ClientID = "review-crawler"
	payload.Client.ClientVersion = "1.0.0"
	payload.ThreatInfo.ThreatTypes = []string{"MALWARE", "SOCIAL_ENGINEERING"}
	payload.ThreatInfo.PlatformTypes = []string{"ANY_PLATFORM"}
	payload.ThreatInfo.ThreatEntryTypes = []string{"URL"}
	payload.ThreatInfo.ThreatEntries = []map[string]string{{"url": rawURL}}

	body, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("marshal threat request: %w", err)
	}

	endpoint := c.cfg.Endpoint + "?key=" + url.QueryEscape(c.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("build threat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("reputation request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("close reputation response", zap.Error(closeErr))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("reputation service returned %d", resp.StatusCode)
	}

	var result map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, fmt.Errorf("decode reputation response: %w", err)
	}
	_, flagged := result["matches"]
	return !flagged, nil
}
