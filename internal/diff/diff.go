// Package diff decides which columns changed between two row images. It is
// the gate every dispatch rule uses to avoid firing on irrelevant changes.
package diff

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/peerloop/relay/internal/envelope"
)

// Predicate classifies a single column value.
type Predicate func(value any) bool

// Changed reports whether the column differs between the two images.
// Scalars compare by value; structured values compare by canonical
// serialization with recursively sorted keys, so key reordering is never
// treated as a change. A column present in only one image counts as changed.
func Changed(before, after envelope.Row, column string) bool {
	beforeValue, beforeOK := lookup(before, column)
	afterValue, afterOK := lookup(after, column)
	if beforeOK != afterOK {
		return true
	}
	if !beforeOK {
		return false
	}
	return Canonical(beforeValue) != Canonical(afterValue)
}

// AnyChanged reports whether any of the listed columns changed.
func AnyChanged(before, after envelope.Row, columns ...string) bool {
	for _, column := range columns {
		if Changed(before, after, column) {
			return true
		}
	}
	return false
}

// Transitioned reports whether the column moved into the predicate: true iff
// the predicate does not hold on the before value (or the column is absent
// there) and does hold on the after value.
func Transitioned(before, after envelope.Row, column string, pred Predicate) bool {
	if beforeValue, ok := lookup(before, column); ok && pred(beforeValue) {
		return false
	}
	afterValue, ok := lookup(after, column)
	if !ok {
		return false
	}
	return pred(afterValue)
}

// Equals builds a predicate matching a column against a trimmed string.
func Equals(want string) Predicate {
	return func(value any) bool {
		typed, ok := value.(string)
		if !ok {
			return false
		}
		return strings.TrimSpace(typed) == want
	}
}

// Canonical serializes a value deterministically: object keys are emitted in
// sorted order at every depth. Two values are deep-equal iff their canonical
// forms match.
func Canonical(value any) string {
	var sb strings.Builder
	writeCanonical(&sb, value)
	return sb.String()
}

func writeCanonical(sb *strings.Builder, value any) {
	switch typed := value.(type) {
	case nil:
		sb.WriteString("null")
	case map[string]any:
		keys := make([]string, 0, len(typed))
		for key := range typed {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		sb.WriteByte('{')
		for i, key := range keys {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(strconv.Quote(key))
			sb.WriteByte(':')
			writeCanonical(sb, typed[key])
		}
		sb.WriteByte('}')
	case []any:
		sb.WriteByte('[')
		for i, item := range typed {
			if i > 0 {
				sb.WriteByte(',')
			}
			writeCanonical(sb, item)
		}
		sb.WriteByte(']')
	case string:
		sb.WriteString(strconv.Quote(typed))
	case bool:
		sb.WriteString(strconv.FormatBool(typed))
	case float64:
		sb.WriteString(strconv.FormatFloat(typed, 'g', -1, 64))
	case float32:
		sb.WriteString(strconv.FormatFloat(float64(typed), 'g', -1, 64))
	case int:
		sb.WriteString(strconv.Itoa(typed))
	case int64:
		sb.WriteString(strconv.FormatInt(typed, 10))
	case []byte:
		sb.WriteString(strconv.Quote(string(typed)))
	default:
		fmt.Fprintf(sb, "%v", typed)
	}
}

func lookup(row envelope.Row, column string) (any, bool) {
	if row == nil {
		return nil, false
	}
	value, ok := row[column]
	return value, ok
}
