// Package logger holds logging helpers shared by the delivery layer.
package logger

import (
	"encoding/json"
	"strings"
)

// Change payloads mirror raw table rows, so credential-bearing columns can
// show up verbatim. Anything matched here is masked before logging.
var sensitiveColumns = []string{
	"password",
	"secret",
	"token",
	"api_key",
	"authorization",
}

// MaskPayload decodes a raw message payload and masks sensitive columns so
// the result is safe to log next to a poison-message warning. Payloads that
// do not decode as an object come back nil; the raw bytes are never logged.
func MaskPayload(raw []byte) map[string]any {
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil
	}
	return MaskColumns(decoded)
}

// MaskColumns returns a deep copy with sensitive columns masked.
func MaskColumns(input map[string]any) map[string]any {
	if input == nil {
		return nil
	}
	out := make(map[string]any, len(input))
	for column, value := range input {
		if isSensitiveColumn(column) {
			out[column] = maskValue(value)
			continue
		}
		out[column] = maskNested(value)
	}
	return out
}

func maskNested(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return MaskColumns(typed)
	case []any:
		items := make([]any, 0, len(typed))
		for _, entry := range typed {
			items = append(items, maskNested(entry))
		}
		return items
	default:
		return value
	}
}

func maskValue(value any) any {
	switch typed := value.(type) {
	case string:
		return maskLast4(typed)
	case []byte:
		return maskLast4(string(typed))
	default:
		return "****"
	}
}

func isSensitiveColumn(column string) bool {
	column = strings.ToLower(strings.TrimSpace(column))
	for _, needle := range sensitiveColumns {
		if strings.Contains(column, needle) {
			return true
		}
	}
	return false
}

func maskLast4(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if len(value) <= 4 {
		return "****" + value
	}
	return "****" + value[len(value)-4:]
}
