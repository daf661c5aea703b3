package dispatch

import (
	"context"
	"errors"

	"github.com/peerloop/relay/internal/envelope"
	"github.com/peerloop/relay/internal/store"
)

var (
	errUnknownUser   = errors.New("unknown_user")
	errWriteConflict = errors.New("write_conflict")
)

// reputationRules applies ledger entries to the user's stored reputation.
// The stored value is clamped at zero in both directions, which makes
// create-then-delete of a negative-amount entry non-symmetric near zero.
// That asymmetry matches upstream product behavior and is covered by tests;
// do not "fix" it.
func reputationRules() []Rule {
	return []Rule{
		{Name: "apply-ledger-entry", Handle: handleReputationEntry},
	}
}

func handleReputationEntry(ctx context.Context, d *Deps, env envelope.Envelope) ([]Emission, error) {
	var delta int64
	var row envelope.Row
	switch env.Op {
	case envelope.OperationCreate:
		row = env.After
		delta = row.Int64("amount")
	case envelope.OperationDelete:
		row = env.Before
		delta = -row.Int64("amount")
	default:
		// Ledger entries are immutable; updates carry no meaning here.
		return nil, nil
	}
	if delta == 0 {
		return nil, nil
	}

	userID := row.String("user_id")
	return []Emission{
		effect(func(ctx context.Context) error {
			return applyReputationDelta(ctx, d, userID, delta)
		}),
	}, nil
}

// applyReputationDelta adjusts reputation with a compare-and-set update: the
// predicate pins the value the delta was computed from. When the update
// matches nothing a concurrent writer moved the value first; the delta must
// not be dropped, so the envelope fails with a retryable conflict and the
// retry re-reads the fresh value.
func applyReputationDelta(ctx context.Context, d *Deps, userID string, delta int64) error {
	user, err := d.Store.Find(ctx, "users", store.Predicate{"id": userID})
	if err != nil {
		return err
	}
	if user == nil {
		return errUnknownUser
	}

	current := user.Int64("reputation")
	next := current + delta
	if next < 0 {
		next = 0
	}
	if next == current {
		return nil
	}
	affected, err := d.Store.Update(ctx, "users",
		store.Predicate{"id": userID, "reputation": current},
		envelope.Row{"reputation": next},
	)
	if err != nil {
		return err
	}
	if affected == 0 {
		return errWriteConflict
	}
	return nil
}
