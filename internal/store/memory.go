package store

import (
	"context"
	"sync"

	"github.com/peerloop/relay/internal/diff"
	"github.com/peerloop/relay/internal/envelope"
)

// Memory is an in-memory Store used by tests and local development. It
// mirrors the Gorm implementation's semantics, including the no-op upsert.
type Memory struct {
	mu     sync.Mutex
	tables map[string][]envelope.Row
}

func NewMemory() *Memory {
	return &Memory{tables: make(map[string][]envelope.Row)}
}

// Seed inserts rows without upsert semantics, for test fixtures.
func (s *Memory) Seed(table string, rows ...envelope.Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range rows {
		s.tables[table] = append(s.tables[table], row.Clone())
	}
}

func (s *Memory) Find(ctx context.Context, table string, pred Predicate) (envelope.Row, error) {
	if table == "" {
		return nil, ErrMissingTable
	}
	if len(pred) == 0 {
		return nil, ErrMissingPredicate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.tables[table] {
		if matches(row, pred) {
			return row.Clone(), nil
		}
	}
	return nil, nil
}

func (s *Memory) FindAll(ctx context.Context, table string, pred Predicate) ([]envelope.Row, error) {
	if table == "" {
		return nil, ErrMissingTable
	}
	if len(pred) == 0 {
		return nil, ErrMissingPredicate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []envelope.Row
	for _, row := range s.tables[table] {
		if matches(row, pred) {
			out = append(out, row.Clone())
		}
	}
	return out, nil
}

func (s *Memory) Upsert(ctx context.Context, table string, row envelope.Row, conflictKeys []string) error {
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
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.tables[table] {
		if !matches(existing, pred) {
			continue
		}
		merged := existing.Clone()
		for column, value := range row {
			merged[column] = value
		}
		s.tables[table][i] = merged
		return nil
	}
	s.tables[table] = append(s.tables[table], row.Clone())
	return nil
}

func (s *Memory) Update(ctx context.Context, table string, pred Predicate, patch envelope.Row) (int64, error) {
	if table == "" {
		return 0, ErrMissingTable
	}
	if len(pred) == 0 {
		return 0, ErrMissingPredicate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var affected int64
	for i, row := range s.tables[table] {
		if !matches(row, pred) {
			continue
		}
		patched := row.Clone()
		for column, value := range patch {
			patched[column] = value
		}
		s.tables[table][i] = patched
		affected++
	}
	return affected, nil
}

// Rows returns a copy of a table's contents, for assertions.
func (s *Memory) Rows(table string) []envelope.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.tables[table]
	out := make([]envelope.Row, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Clone())
	}
	return out
}

func matches(row envelope.Row, pred Predicate) bool {
	for column, want := range pred {
		value, ok := row[column]
		if !ok {
			return false
		}
		if diff.Canonical(value) != diff.Canonical(want) {
			return false
		}
	}
	return true
}
