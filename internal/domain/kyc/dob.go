package kyc

import (
	"regexp"
	"strings"
	"time"
)

var (
	isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	dmyDatePattern = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`)
)

var fallbackDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
}

// ParseDateOfBirth accepts YYYY-MM-DD, DD/MM/YYYY or a handful of unambiguous
// layouts. Strings shaped like the first two formats never fall through.
func ParseDateOfBirth(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	if isoDatePattern.MatchString(s) {
		t, err := time.Parse("2006-01-02", s)
		return t, err == nil
	}
	if dmyDatePattern.MatchString(s) {
		t, err := time.Parse("02/01/2006", s)
		return t, err == nil
	}
	for _, layout := range fallbackDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
