package ingest

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// parsePostedAt normalizes a scraped review date to UTC, best effort.
// Platforms wrap dates in prose ("Reviewed in the United States on
// March 3, 2024"), so after a direct parse fails the text after the last
// " on " is tried.
func parsePostedAt(text string) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}
	if t, err := dateparse.ParseAny(text); err == nil {
		return t.UTC(), true
	}
	if idx := strings.LastIndex(text, " on "); idx >= 0 {
		if t, err := dateparse.ParseAny(strings.TrimSpace(text[idx+4:])); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
