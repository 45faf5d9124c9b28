package reviews

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

// NormalizeURL standardizes a URL so equivalent requests share a fingerprint.
// It lowercases the scheme and host, removes default ports and fragments, and
// sorts query parameters.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Scheme == "http" && strings.HasSuffix(u.Host, ":80") {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" && strings.HasSuffix(u.Host, ":443") {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""

	q := u.Query()
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// Fingerprint returns the deduplication key material for a URL: the SHA-256
// hex digest of its normalized form. Same normalized URL, same fingerprint.
func Fingerprint(rawURL string) (string, error) {
	normalized, err := NormalizeURL(rawURL)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:]), nil
}

// ContentHash derives the content-addressed review identifier from the
// identity-bearing fields. Missing fields hash as empty strings so the input
// shape stays stable; timestamps are deliberately excluded so re-scraping
// identical content yields the same id.
func (r RawReview) ContentHash() string {
	var b strings.Builder
	b.WriteString(r.Title)
	b.WriteString(r.Description)
	b.WriteString(r.Rating.String())
	b.WriteString(r.Reviewer)
	b.WriteString(r.ReviewerDetails.Location)
	b.WriteString(r.ProductName)
	b.WriteString(r.SiteName)
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
