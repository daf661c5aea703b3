// Package store exposes the narrow relational capabilities dispatch rules
// are allowed to use: predicate-scoped reads, idempotent upserts, and
// predicate-scoped patches. Handlers never overwrite full rows.
package store

import (
	"context"
	"errors"

	"github.com/peerloop/relay/internal/envelope"
)

// Predicate matches rows by column equality.
type Predicate map[string]any

var (
	ErrMissingTable     = errors.New("missing_table")
	ErrMissingPredicate = errors.New("missing_predicate")
	ErrMissingConflict  = errors.New("missing_conflict_keys")
)

// Store is the side-effect collaborator interface.
type Store interface {
	// Find returns the first row matching the predicate, or nil.
	Find(ctx context.Context, table string, pred Predicate) (envelope.Row, error)
	// FindAll returns every row matching the predicate.
	FindAll(ctx context.Context, table string, pred Predicate) ([]envelope.Row, error)
	// Upsert inserts the row or updates it in place, keyed by conflictKeys.
	// Re-applying the same row is a no-op.
	Upsert(ctx context.Context, table string, row envelope.Row, conflictKeys []string) error
	// Update patches every row matching the predicate and reports how many
	// rows it touched, so compare-and-set callers can detect a lost race.
	Update(ctx context.Context, table string, pred Predicate, patch envelope.Row) (int64, error)
}
