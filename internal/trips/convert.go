package trips

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// timeLayouts are tried in order for string timestamps. Fractional seconds
// are accepted after the seconds field even when the layout omits them.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"01/02/2006 03:04:05 PM",
}

// parseTime interprets v as a timestamp. Naive strings are read as UTC.
func parseTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return time.Time{}, false
		}
		return t, true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts, true
			}
		}
	}
	return time.Time{}, false
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	case int:
		f = float64(n)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int:
		return int64(n), true
	case string:
		s := strings.TrimSpace(n)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true
		}
		// Location ids sometimes arrive as "132.0".
		if f, ok := toFloat(s); ok && f == math.Trunc(f) {
			return int64(f), true
		}
		return 0, false
	}
	if f, ok := toFloat(v); ok && f == math.Trunc(f) {
		return int64(f), true
	}
	return 0, false
}

func toText(v any) (string, bool) {
	switch s := v.(type) {
	case nil:
		return "", false
	case string:
		return s, true
	case time.Time:
		return s.Format(time.RFC3339), true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case int64:
		return strconv.FormatInt(s, 10), true
	case bool:
		return strconv.FormatBool(s), true
	}
	return "", false
}

// coerce converts a raw value to the Go type matching the column type, or
// nil when it cannot.
func coerce(v any, t ColumnType) any {
	if v == nil {
		return nil
	}
	var (
		out any
		ok  bool
	)
	switch t {
	case Integer:
		out, ok = toInt(v)
	case Real:
		out, ok = toFloat(v)
	case Datetime:
		out, ok = parseTime(v)
	default:
		out, ok = toText(v)
	}
	if !ok {
		return nil
	}
	return out
}
