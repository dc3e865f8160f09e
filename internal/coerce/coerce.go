// Package coerce converts raw untyped source values into typed primitives.
// Source bases are hand-edited, so every field arrives in whatever shape the
// last person left it in: checkboxes as booleans, dates, "✅" strings or
// numbers; runtimes as clock strings or bare numbers in an unknown unit.
// Every function here is total: bad input degrades to absent (nil), never to
// an error.
package coerce

import (
	"math"
	"strconv"
	"strings"
	"time"

	"vhsops/internal/config"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"1/2/2006",
}

// Date parses an ISO-like date or datetime string. Anything else is absent.
func Date(v any) *time.Time {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// Number accepts a numeric value or numeric string.
func Number(v any) *float64 {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return nil
		}
		return &n
	case float32:
		f := float64(n)
		return &f
	case int:
		f := float64(n)
		return &f
	case int64:
		f := float64(n)
		return &f
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return &f
	}
	return nil
}

// autoSecondsThreshold is the cutover for the auto unit mode: bare values
// above it are assumed to be seconds. Genuinely long in-minutes runtimes
// near the threshold are misread; the source data cannot disambiguate.
const autoSecondsThreshold = 300

// Minutes interprets a runtime value as minutes. Clock strings "H:MM:SS"
// and "M:SS" are parsed positionally; bare numbers follow the configured
// unit mode. Negative or unparseable values are absent.
func Minutes(v any, unit config.DurationUnit) *float64 {
	if s, ok := v.(string); ok && strings.Contains(s, ":") {
		return clockMinutes(s)
	}
	n := Number(v)
	if n == nil || *n < 0 {
		return nil
	}
	m := *n
	switch unit {
	case config.UnitMinutes:
	case config.UnitAuto:
		if m > autoSecondsThreshold {
			m /= 60
		}
	default: // seconds
		m /= 60
	}
	return &m
}

func clockMinutes(s string) *float64 {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return nil
	}
	nums := make([]float64, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || f < 0 {
			return nil
		}
		nums[i] = f
	}
	var m float64
	if len(parts) == 3 {
		m = nums[0]*60 + nums[1] + nums[2]/60
	} else {
		m = nums[0] + nums[1]/60
	}
	return &m
}

var truthyTokens = map[string]bool{
	"yes": true, "y": true, "true": true, "done": true, "checked": true,
	"complete": true, "completed": true, "x": true, "✅": true, "✓": true,
}

var falsyTokens = map[string]bool{
	"no": true, "n": true, "false": true, "pending": true, "unchecked": true,
	"incomplete": true, "todo": true, "❌": true, "": true,
}

// Bool folds the checkbox encodings seen in the wild into a boolean:
// native bools, positive numbers, known tokens, date strings (a timestamp
// in a checkbox column means "done on that date"), non-empty arrays.
// Unrecognized non-date text is false rather than true so that free-form
// notes in a flag column never overcount completions.
func Bool(v any) bool {
	switch b := v.(type) {
	case nil:
		return false
	case bool:
		return b
	case float64:
		return b > 0
	case float32:
		return b > 0
	case int:
		return b > 0
	case int64:
		return b > 0
	case string:
		s := strings.ToLower(strings.TrimSpace(b))
		if truthyTokens[s] {
			return true
		}
		if falsyTokens[s] {
			return false
		}
		return Date(b) != nil
	case []any:
		return len(b) > 0
	}
	return true
}

// Text stringifies a scalar value, absent and blank both becoming "".
func Text(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	}
	return ""
}
