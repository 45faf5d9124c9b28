package api

import "strconv"

func parseFloat(raw string) (float64, error) {
	return strconv.ParseFloat(raw, 64)
}

// parseIntOrDefault returns def for an absent value and -1 for garbage, so
// callers reject it with their range check.
func parseIntOrDefault(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return n
}
