package domain

import (
	"strconv"
	"time"
)

// Record is a raw input mapping as received from collaborators (transaction
// rows, history rows, rule matches, reviews). Field access through the
// helpers below is the only place where loose typing is tolerated; everything
// downstream works with strongly typed entities.
type Record map[string]any

// Field returns the first present, non-nil value among the given keys.
func (r Record) Field(keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := r[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// String returns the first present value coerced to a string.
func (r Record) String(keys ...string) string {
	v, ok := r.Field(keys...)
	if !ok {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	}
	return ""
}

// Float returns the first present value coerced to a float64.
func (r Record) Float(keys ...string) (float64, bool) {
	v, ok := r.Field(keys...)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// Bool returns the first present value coerced to a bool.
func (r Record) Bool(keys ...string) (bool, bool) {
	v, ok := r.Field(keys...)
	if !ok {
		return false, false
	}
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch b {
		case "true", "yes", "1":
			return true, true
		case "false", "no", "0":
			return false, true
		}
	case float64:
		return b != 0, true
	case int:
		return b != 0, true
	}
	return false, false
}

// Time returns the first present value parsed as a timestamp. Accepts
// time.Time, RFC 3339 strings, and unix-seconds numbers.
func (r Record) Time(keys ...string) (time.Time, bool) {
	v, ok := r.Field(keys...)
	if !ok {
		return time.Time{}, false
	}
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		if ts, err := time.Parse(time.RFC3339, t); err == nil {
			return ts, true
		}
		if ts, err := time.Parse("2006-01-02 15:04:05", t); err == nil {
			return ts, true
		}
	case float64:
		return time.Unix(int64(t), 0).UTC(), true
	case int64:
		return time.Unix(t, 0).UTC(), true
	}
	return time.Time{}, false
}

// Map returns the first present value that is itself a mapping.
func (r Record) Map(keys ...string) (Record, bool) {
	v, ok := r.Field(keys...)
	if !ok {
		return nil, false
	}
	switch m := v.(type) {
	case Record:
		return m, true
	case map[string]any:
		return Record(m), true
	}
	return nil, false
}
