package parser

import (
	"strings"
	"time"

	"slunch/pkg/apperr"
)

// NormalizeDate accepts YYYYMMDD or YYYY-MM-DD and returns YYYY-MM-DD.
func NormalizeDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"20060102", "2006-01-02"} {
		if len(s) != len(layout) {
			continue
		}
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", apperr.Validation("invalid date %q", s)
}

// NormalizeMonth accepts YYYYMM or YYYY-MM and returns YYYY-MM.
func NormalizeMonth(s string) (string, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"200601", "2006-01"} {
		if len(s) != len(layout) {
			continue
		}
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.Format("2006-01"), nil
		}
	}
	return "", apperr.Validation("invalid month %q", s)
}

// Compact turns YYYY-MM-DD back into the provider's YYYYMMDD form.
func Compact(date string) string {
	return strings.ReplaceAll(date, "-", "")
}
