package store

import (
	"context"
	"errors"
	"testing"

	"github.com/peerloop/relay/internal/envelope"
)

func TestMemoryFind(t *testing.T) {
	s := NewMemory()
	s.Seed("users", envelope.Row{"id": "u1", "reputation": float64(5)})
	s.Seed("users", envelope.Row{"id": "u2", "reputation": float64(9)})

	row, err := s.Find(context.Background(), "users", Predicate{"id": "u2"})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if row == nil || row.Int64("reputation") != 9 {
		t.Fatalf("unexpected row: %+v", row)
	}

	row, err = s.Find(context.Background(), "users", Predicate{"id": "missing"})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if row != nil {
		t.Fatalf("expected nil for no match, got %+v", row)
	}

	if _, err := s.Find(context.Background(), "users", nil); !errors.Is(err, ErrMissingPredicate) {
		t.Fatalf("expected ErrMissingPredicate, got %v", err)
	}
}

func TestMemoryFindAll(t *testing.T) {
	s := NewMemory()
	s.Seed("opportunities",
		envelope.Row{"id": "o1", "organization_id": "org1", "state": "live"},
		envelope.Row{"id": "o2", "organization_id": "org1", "state": "draft"},
		envelope.Row{"id": "o3", "organization_id": "org1", "state": "live"},
	)

	rows, err := s.FindAll(context.Background(), "opportunities", Predicate{"organization_id": "org1", "state": "live"})
	if err != nil {
		t.Fatalf("find all: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
}

func TestMemoryUpsert(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	err := s.Upsert(ctx, "posts", envelope.Row{"source_id": "s1", "content": "hello"}, []string{"source_id"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	err = s.Upsert(ctx, "posts", envelope.Row{"source_id": "s1", "content": "edited"}, []string{"source_id"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	rows := s.Rows("posts")
	if len(rows) != 1 {
		t.Fatalf("conflict key must collapse to one row, got %d", len(rows))
	}
	if got := rows[0].String("content"); got != "edited" {
		t.Fatalf("expected merged content, got %q", got)
	}

	if err := s.Upsert(ctx, "posts", envelope.Row{"source_id": "s2"}, nil); !errors.Is(err, ErrMissingConflict) {
		t.Fatalf("expected ErrMissingConflict, got %v", err)
	}
}

func TestMemoryUpdatePredicate(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	s.Seed("users", envelope.Row{"id": "u1", "reputation": float64(5)})

	// Compare-and-set style patch: stale predicate touches nothing and
	// reports it.
	affected, err := s.Update(ctx, "users", Predicate{"id": "u1", "reputation": float64(4)}, envelope.Row{"reputation": float64(10)})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if affected != 0 {
		t.Fatalf("stale predicate must report zero rows, got %d", affected)
	}
	if got := s.Rows("users")[0].Int64("reputation"); got != 5 {
		t.Fatalf("stale predicate must not patch, got %d", got)
	}

	affected, err = s.Update(ctx, "users", Predicate{"id": "u1", "reputation": float64(5)}, envelope.Row{"reputation": float64(10)})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if affected != 1 {
		t.Fatalf("expected one patched row, got %d", affected)
	}
	if got := s.Rows("users")[0].Int64("reputation"); got != 10 {
		t.Fatalf("expected patch applied, got %d", got)
	}
}

func TestMemoryClonesRows(t *testing.T) {
	s := NewMemory()
	s.Seed("users", envelope.Row{"id": "u1", "reputation": float64(5)})

	row, err := s.Find(context.Background(), "users", Predicate{"id": "u1"})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	row["reputation"] = float64(99)

	if got := s.Rows("users")[0].Int64("reputation"); got != 5 {
		t.Fatalf("mutating a returned row must not leak into the store")
	}
}
