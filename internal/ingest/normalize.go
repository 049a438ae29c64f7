package ingest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// sanitizeString collapses whitespace and trims the result.
func sanitizeString(value string) string {
	value = whitespaceRegex.ReplaceAllString(value, " ")
	return strings.TrimSpace(value)
}

// normalizeAccountID canonicalises an account identifier. Identifiers are
// case-sensitive; only surrounding and repeated whitespace is removed.
func normalizeAccountID(id string) string {
	return sanitizeString(id)
}

// normalizeAmount parses an amount, tolerating thousands separators and a
// leading currency symbol.
func normalizeAmount(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimLeft(raw, "$€£₹")
	raw = strings.ReplaceAll(raw, ",", "")
	if raw == "" {
		return 0, fmt.Errorf("empty amount")
	}
	return strconv.ParseFloat(raw, 64)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp accepts the layouts commonly found in transaction exports.
// Values without a zone are read as UTC.
func ParseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", raw)
}
