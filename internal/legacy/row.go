package legacy

import (
	"strconv"
	"strings"
	"time"
)

// row is one legacy table row keyed by column name.
type row map[string]any

func (r row) value(keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := r[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func (r row) str(keys ...string) string {
	v, ok := r.value(keys...)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []byte:
		return strings.TrimSpace(string(t))
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return t.Format(time.RFC3339)
	}
	return ""
}

func (r row) integer(keys ...string) (int, bool) {
	v, ok := r.value(keys...)
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		return n, err == nil
	case []byte:
		n, err := strconv.Atoi(strings.TrimSpace(string(t)))
		return n, err == nil
	}
	return 0, false
}

func (r row) boolean(keys ...string) bool {
	v, ok := r.value(keys...)
	if !ok {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case int64:
		return t != 0
	case float64:
		return t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "true", "yes":
			return true
		}
	}
	return false
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// time reads a timestamp stored as unix milliseconds, a date string or a
// driver-parsed time.
func (r row) time(keys ...string) (time.Time, bool) {
	v, ok := r.value(keys...)
	if !ok {
		return time.Time{}, false
	}
	switch t := v.(type) {
	case time.Time:
		return t, true
	case int64:
		return time.UnixMilli(t), true
	case float64:
		return time.UnixMilli(int64(t)), true
	case string:
		s := strings.TrimSpace(t)
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(ms), true
		}
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts, true
			}
		}
	}
	return time.Time{}, false
}
