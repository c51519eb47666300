// Package dates parses the textual date columns of the raw sources.
package dates

import (
	"strings"
	"time"
)

const (
	// ISO is the layout of admission, discharge, lab and medication dates.
	ISO = "2006-01-02"
	// US is the alternate layout accepted for date of birth.
	US = "01/02/2006"
)

// Parse tries each layout in order and returns the first successful parse.
// invalid reports a present but unparseable value; a nil or blank raw value
// yields (nil, false).
func Parse(raw *string, layouts ...string) (parsed *time.Time, invalid bool) {
	if raw == nil {
		return nil, false
	}
	value := strings.TrimSpace(*raw)
	if value == "" {
		return nil, false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return &t, false
		}
	}
	return nil, true
}

// Format renders t as yyyy-MM-dd, or "" for nil.
func Format(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(ISO)
}
