package gateway

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Record is one row keyed by column name.
type Record map[string]any

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// String returns the column as a string, or "" when absent or NULL.
func (r Record) String(column string) string {
	switch v := r[column].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case [16]byte:
		return uuid.UUID(v).String()
	case uuid.UUID:
		return v.String()
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// Int64 returns the column as an integer, or 0 when absent or not numeric.
func (r Record) Int64(column string) int64 {
	switch v := r[column].(type) {
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	case []byte:
		n, _ := strconv.ParseInt(string(v), 10, 64)
		return n
	default:
		return 0
	}
}

// Float64 returns the column as a float, or 0 when absent or not numeric.
func (r Record) Float64(column string) float64 {
	switch v := r[column].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	case []byte:
		f, _ := strconv.ParseFloat(string(v), 64)
		return f
	default:
		return 0
	}
}

// Bool returns the column as a bool.
func (r Record) Bool(column string) bool {
	switch v := r[column].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	default:
		return false
	}
}

// Time returns the column as a UTC time, or the zero time when absent.
func (r Record) Time(column string) time.Time {
	t := r.TimePtr(column)
	if t == nil {
		return time.Time{}
	}
	return *t
}

// TimePtr returns the column as a UTC time, or nil when absent, NULL or unparsable.
func (r Record) TimePtr(column string) *time.Time {
	switch v := r[column].(type) {
	case time.Time:
		t := v.UTC()
		return &t
	case *time.Time:
		if v == nil {
			return nil
		}
		t := v.UTC()
		return &t
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil
		}
		t = t.UTC()
		return &t
	default:
		return nil
	}
}
