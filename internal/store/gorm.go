package store

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/peerloop/relay/internal/diff"
	"github.com/peerloop/relay/internal/envelope"
)

// Gorm implements Store against the platform database.
type Gorm struct {
	db *gorm.DB
}

func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

func (s *Gorm) Find(ctx context.Context, table string, pred Predicate) (envelope.Row, error) {
	if table == "" {
		return nil, ErrMissingTable
	}
	if len(pred) == 0 {
		return nil, ErrMissingPredicate
	}
	row := map[string]any{}
	err := s.db.WithContext(ctx).
		Table(table).
		Where(map[string]any(pred)).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return envelope.Row(row), nil
}

func (s *Gorm) FindAll(ctx context.Context, table string, pred Predicate) ([]envelope.Row, error) {
	if table == "" {
		return nil, ErrMissingTable
	}
	if len(pred) == 0 {
		return nil, ErrMissingPredicate
	}
	var rows []map[string]any
	err := s.db.WithContext(ctx).
		Table(table).
		Where(map[string]any(pred)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]envelope.Row, 0, len(rows))
	for _, row := range rows {
		out = append(out, envelope.Row(row))
	}
	return out, nil
}

// Upsert writes the row keyed by conflictKeys. When an existing row already
// carries the same non-key values the write is skipped entirely, so retried
// envelopes do not bump triggers or updated-at columns.
func (s *Gorm) Upsert(ctx context.Context, table string, row envelope.Row, conflictKeys []string) error {
	if table == "" {
		return ErrMissingTable
	}
	if len(conflictKeys) == 0 {
		return ErrMissingConflict
	}

	pred := Predicate{}
	for _, key := range conflictKeys {
		pred[key] = row[key]
	}
	existing, err := s.Find(ctx, table, pred)
	if err != nil {
		return err
	}
	if existing != nil && !rowChanged(existing, row, conflictKeys) {
		return nil
	}

	values := make(map[string]any, len(row))
	for column, value := range row {
		values[column] = storable(value)
	}

	conflictColumns := make([]clause.Column, 0, len(conflictKeys))
	for _, key := range conflictKeys {
		conflictColumns = append(conflictColumns, clause.Column{Name: key})
	}
	assignments := map[string]any{}
	for column, value := range values {
		if isConflictKey(column, conflictKeys) {
			continue
		}
		assignments[column] = value
	}

	tx := s.db.WithContext(ctx).Table(table)
	if len(assignments) == 0 {
		tx = tx.Clauses(clause.OnConflict{Columns: conflictColumns, DoNothing: true})
	} else {
		tx = tx.Clauses(clause.OnConflict{Columns: conflictColumns, DoUpdates: clause.Assignments(assignments)})
	}
	return tx.Create(values).Error
}

func (s *Gorm) Update(ctx context.Context, table string, pred Predicate, patch envelope.Row) (int64, error) {
	if table == "" {
		return 0, ErrMissingTable
	}
	if len(pred) == 0 {
		return 0, ErrMissingPredicate
	}
	if len(patch) == 0 {
		return 0, nil
	}
	values := make(map[string]any, len(patch))
	for column, value := range patch {
		values[column] = storable(value)
	}
	tx := s.db.WithContext(ctx).
		Table(table).
		Where(map[string]any(pred)).
		Updates(values)
	return tx.RowsAffected, tx.Error
}

// rowChanged compares non-key columns of the incoming row against the
// stored row, canonically, so structured values survive key reordering and
// drivers that return JSON columns as text.
func rowChanged(existing, incoming envelope.Row, conflictKeys []string) bool {
	columns := make([]string, 0, len(incoming))
	for column := range incoming {
		if isConflictKey(column, conflictKeys) {
			continue
		}
		columns = append(columns, column)
	}
	sort.Strings(columns)
	for _, column := range columns {
		if diff.Canonical(decoded(existing[column])) != diff.Canonical(decoded(incoming[column])) {
			return true
		}
	}
	return false
}

// decoded unwraps JSON-encoded text values so they compare structurally.
func decoded(value any) any {
	var encoded []byte
	switch typed := value.(type) {
	case string:
		encoded = []byte(typed)
	case []byte:
		encoded = typed
	case datatypes.JSON:
		encoded = typed
	case datatypes.JSONMap:
		return map[string]any(typed)
	default:
		return value
	}
	var out any
	if err := json.Unmarshal(encoded, &out); err != nil {
		return value
	}
	switch out.(type) {
	case map[string]any, []any:
		return out
	default:
		return value
	}
}

// storable converts structured values into gorm's JSON column types.
func storable(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return datatypes.JSONMap(typed)
	case []any:
		encoded, err := json.Marshal(typed)
		if err != nil {
			return value
		}
		return datatypes.JSON(encoded)
	default:
		return value
	}
}

func isConflictKey(column string, conflictKeys []string) bool {
	for _, key := range conflictKeys {
		if key == column {
			return true
		}
	}
	return false
}
