// Package sanitize turns the extraction service's unverified field bundle
// into values that always satisfy the bill invariants. It never rejects
// input; anything unusable gets a safe fallback.
package sanitize

import (
	"strconv"
	"strings"
	"time"

	"billscan/models"
	"billscan/pkg/extract"
)

const (
	// FallbackPlace is stored when the service produced no usable place.
	FallbackPlace = "Unknown Place"

	maxPlaceLen   = 200
	maxRawTextLen = 5000
)

// dateLayouts the service has been seen emitting. The python extractor
// normalizes to plain YYYY-MM-DD; older builds sent full timestamps.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Fields is a fully-valid view of an extracted receipt, ready to attach an
// owner and persist.
type Fields struct {
	Place   string    `json:"place"`
	Mode    string    `json:"mode"`
	Price   float64   `json:"price"`
	Date    time.Time `json:"date"`
	RawText string    `json:"rawText,omitempty"`
}

// Bill sanitizes raw extracted fields. now is used as the fallback date and
// should be the processing instant (UTC).
func Bill(raw extract.RawFields, now time.Time) Fields {
	return Fields{
		Place:   place(raw.Place),
		Mode:    mode(raw.Mode),
		Price:   price(raw.Price),
		Date:    date(raw.Date, now),
		RawText: rawText(raw.RawText),
	}
}

func place(v any) string {
	s, ok := v.(string)
	if !ok {
		return FallbackPlace
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return FallbackPlace
	}
	if len(s) > maxPlaceLen {
		s = s[:maxPlaceLen]
	}
	return s
}

func mode(v any) string {
	if s, ok := v.(string); ok && models.ValidMode(s) {
		return s
	}
	return models.ModeUPI
}

// price accepts JSON numbers and numeric strings; anything negative or
// unparseable becomes 0.
func price(v any) float64 {
	switch n := v.(type) {
	case float64:
		if n >= 0 {
			return n
		}
	case int:
		if n >= 0 {
			return float64(n)
		}
	case int64:
		if n >= 0 {
			return float64(n)
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil && f >= 0 {
			return f
		}
	}
	return 0
}

// date accepts the known string layouts plus numeric epoch milliseconds.
func date(v any, now time.Time) time.Time {
	switch d := v.(type) {
	case string:
		s := strings.TrimSpace(d)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC()
			}
		}
	case float64:
		if d > 0 {
			return time.UnixMilli(int64(d)).UTC()
		}
	case time.Time:
		return d.UTC()
	}
	return now
}

func rawText(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	if len(s) > maxRawTextLen {
		s = s[:maxRawTextLen]
	}
	return s
}
