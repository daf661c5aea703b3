package envelope

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	ErrUnsupportedOperation = errors.New("unsupported_operation")
	ErrMissingTable         = errors.New("missing_table")
	ErrMissingRowImage      = errors.New("missing_row_image")
	ErrUnexpectedRowImage   = errors.New("unexpected_row_image")
	ErrMissingIdentifier    = errors.New("missing_identifier")
)

// RawMessage mirrors the upstream capture system's wire shape. Field names
// are load-bearing for interoperability.
type RawMessage struct {
	Table            string          `json:"table"`
	Op               string          `json:"op"`
	Before           json.RawMessage `json:"before,omitempty"`
	After            json.RawMessage `json:"after,omitempty"`
	CommitTimeMicros int64           `json:"ts_us"`
}

// Parser normalizes raw capture messages into envelopes.
type Parser struct {
	log     *zap.Logger
	schemas map[string]Schema
}

func NewParser(log *zap.Logger) *Parser {
	return &Parser{
		log:     log.Named("envelope"),
		schemas: DefaultSchemas(),
	}
}

// Parse decodes a raw message payload and normalizes it.
func (p *Parser) Parse(raw []byte) (Envelope, error) {
	var msg RawMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Envelope{}, fmt.Errorf("decode change message: %w", err)
	}
	return p.ParseMessage(msg)
}

// ParseMessage normalizes an already-decoded raw message. Create must carry
// only an after image and Delete only a before image; Update and Read carry
// both.
func (p *Parser) ParseMessage(msg RawMessage) (Envelope, error) {
	table := strings.TrimSpace(msg.Table)
	if table == "" {
		return Envelope{}, ErrMissingTable
	}

	op := Operation(strings.TrimSpace(msg.Op))
	switch op {
	case OperationCreate, OperationUpdate, OperationDelete, OperationRead:
	default:
		return Envelope{}, fmt.Errorf("%w: %q", ErrUnsupportedOperation, msg.Op)
	}

	before, err := decodeImage(msg.Before)
	if err != nil {
		return Envelope{}, fmt.Errorf("decode before image: %w", err)
	}
	after, err := decodeImage(msg.After)
	if err != nil {
		return Envelope{}, fmt.Errorf("decode after image: %w", err)
	}

	switch op {
	case OperationCreate:
		if after == nil {
			return Envelope{}, fmt.Errorf("%w: create without after image", ErrMissingRowImage)
		}
		if before != nil {
			return Envelope{}, fmt.Errorf("%w: create with before image", ErrUnexpectedRowImage)
		}
	case OperationDelete:
		if before == nil {
			return Envelope{}, fmt.Errorf("%w: delete without before image", ErrMissingRowImage)
		}
		if after != nil {
			return Envelope{}, fmt.Errorf("%w: delete with after image", ErrUnexpectedRowImage)
		}
	default:
		if before == nil || after == nil {
			return Envelope{}, fmt.Errorf("%w: %s requires both images", ErrMissingRowImage, op)
		}
	}

	env := Envelope{
		Table:      table,
		Op:         op,
		Before:     before,
		After:      after,
		CommitTime: time.UnixMicro(msg.CommitTimeMicros).UTC(),
	}

	if schema, ok := p.schemas[table]; ok {
		p.normalize(&env, schema)
		if err := validateIdentifiers(env, schema); err != nil {
			return Envelope{}, err
		}
	}
	return env, nil
}

// normalize decodes structured columns that arrived as JSON-encoded strings.
// A column that fails to decode is dropped from both images so that no rule
// fires on it; the envelope itself is not aborted.
func (p *Parser) normalize(env *Envelope, schema Schema) {
	for _, column := range schema.Structured {
		okBefore := decodeStructuredColumn(env.Before, column)
		okAfter := decodeStructuredColumn(env.After, column)
		if okBefore && okAfter {
			continue
		}
		p.log.Warn("malformed structured column, treating as unchanged",
			zap.String("table", env.Table),
			zap.String("column", column),
		)
		delete(env.Before, column)
		delete(env.After, column)
	}
}

// decodeStructuredColumn decodes a JSON-encoded string in place. Columns
// that are absent, nil, or already decoded are left alone.
func decodeStructuredColumn(row Row, column string) bool {
	if row == nil {
		return true
	}
	value, ok := row[column]
	if !ok || value == nil {
		return true
	}
	var encoded []byte
	switch typed := value.(type) {
	case string:
		encoded = []byte(typed)
	case []byte:
		encoded = typed
	default:
		return true
	}
	var decoded any
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		return false
	}
	switch decoded.(type) {
	case map[string]any, []any:
		row[column] = decoded
		return true
	default:
		return false
	}
}

func validateIdentifiers(env Envelope, schema Schema) error {
	for _, column := range schema.Required {
		if env.Before != nil && !env.Before.Has(column) {
			return fmt.Errorf("%w: %s.%s absent from before image", ErrMissingIdentifier, env.Table, column)
		}
		if env.After != nil && !env.After.Has(column) {
			return fmt.Errorf("%w: %s.%s absent from after image", ErrMissingIdentifier, env.Table, column)
		}
	}
	return nil
}

func decodeImage(raw json.RawMessage) (Row, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var row Row
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, err
	}
	return row, nil
}
