// Package envelope normalizes raw change-capture messages into typed
// change envelopes handlers can reason about.
package envelope

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Operation is the change-capture operation code.
type Operation string

const (
	OperationCreate Operation = "c"
	OperationUpdate Operation = "u"
	OperationDelete Operation = "d"
	OperationRead   Operation = "r"
)

// Row is one table's columns at a point in time. Structured columns hold
// decoded nested values (map[string]any / []any) after parsing.
type Row map[string]any

// Envelope is a normalized record of one row-level database change.
type Envelope struct {
	Table      string
	Op         Operation
	Before     Row
	After      Row
	CommitTime time.Time
}

// Image returns the row image that carries current state: After for
// create/update/read, Before for delete.
func (e Envelope) Image() Row {
	if e.Op == OperationDelete {
		return e.Before
	}
	return e.After
}

// Has reports whether the column is present.
func (r Row) Has(column string) bool {
	if r == nil {
		return false
	}
	_, ok := r[column]
	return ok
}

// String returns the column as a trimmed string, or "".
func (r Row) String(column string) string {
	if r == nil {
		return ""
	}
	value, ok := r[column]
	if !ok || value == nil {
		return ""
	}
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case []byte:
		return strings.TrimSpace(string(typed))
	default:
		return ""
	}
}

// Int64 returns the column as an int64, tolerating the numeric shapes JSON
// decoding and database drivers produce.
func (r Row) Int64(column string) int64 {
	if r == nil {
		return 0
	}
	switch typed := r[column].(type) {
	case int64:
		return typed
	case int:
		return int64(typed)
	case int32:
		return int64(typed)
	case float64:
		return int64(typed)
	case float32:
		return int64(typed)
	case json.Number:
		parsed, err := typed.Int64()
		if err == nil {
			return parsed
		}
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		if err == nil {
			return parsed
		}
	}
	return 0
}

// Bool returns the column as a bool. Numeric columns count as true when
// non-zero, matching how sqlite surfaces booleans.
func (r Row) Bool(column string) bool {
	if r == nil {
		return false
	}
	switch typed := r[column].(type) {
	case bool:
		return typed
	case int64:
		return typed != 0
	case int:
		return typed != 0
	case float64:
		return typed != 0
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(typed))
		return err == nil && parsed
	}
	return false
}

// Time returns the column as a time. Integer values are taken as
// microseconds since epoch; strings are parsed as RFC 3339.
func (r Row) Time(column string) (time.Time, bool) {
	if r == nil {
		return time.Time{}, false
	}
	switch typed := r[column].(type) {
	case time.Time:
		return typed, true
	case int64:
		return time.UnixMicro(typed).UTC(), true
	case float64:
		return time.UnixMicro(int64(typed)).UTC(), true
	case json.Number:
		parsed, err := typed.Int64()
		if err == nil {
			return time.UnixMicro(parsed).UTC(), true
		}
	case string:
		parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(typed))
		if err == nil {
			return parsed.UTC(), true
		}
	}
	return time.Time{}, false
}

// Map returns the column as a decoded nested object, or nil.
func (r Row) Map(column string) map[string]any {
	if r == nil {
		return nil
	}
	if typed, ok := r[column].(map[string]any); ok {
		return typed
	}
	return nil
}

// Slice returns the column as a decoded sequence, or nil.
func (r Row) Slice(column string) []any {
	if r == nil {
		return nil
	}
	if typed, ok := r[column].([]any); ok {
		return typed
	}
	return nil
}

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	out := make(Row, len(r))
	for key, value := range r {
		out[key] = value
	}
	return out
}
