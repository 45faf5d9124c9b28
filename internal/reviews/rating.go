package reviews

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var leadingNumber = regexp.MustCompile(`\d+(?:\.\d+)?`)

// Rating is a review rating as scraped. Pages deliver ratings as text
// ("4.0 out of 5 stars") while callers may post plain numbers, so both JSON
// shapes unmarshal into the raw string form. The raw form participates in the
// content hash; Value extracts the numeric rating best-effort.
type Rating string

// UnmarshalJSON accepts either a JSON string or a JSON number.
func (r *Rating) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*r = Rating(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("rating must be a string or number: %w", err)
	}
	*r = Rating(n.String())
	return nil
}

// MarshalJSON emits the raw scraped form.
func (r Rating) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(r))
}

// String returns the raw scraped form, trimmed.
func (r Rating) String() string {
	return strings.TrimSpace(string(r))
}

// Value extracts the leading numeric rating, or 0 when none is present.
func (r Rating) Value() float64 {
	match := leadingNumber.FindString(r.String())
	if match == "" {
		return 0
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0
	}
	return v
}

// IsZero reports whether no rating text was scraped at all.
func (r Rating) IsZero() bool {
	return r.String() == ""
}
