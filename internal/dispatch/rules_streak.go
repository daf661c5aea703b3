package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/peerloop/relay/internal/envelope"
	"github.com/peerloop/relay/internal/events"
	"github.com/peerloop/relay/internal/store"
	"github.com/peerloop/relay/internal/streak"
)

var errMissingLastActive = errors.New("missing_last_active_at")

// streakRules covers the user_streaks table. Only updates are meaningful:
// streak rows are created silently when the user first becomes active.
func streakRules() []Rule {
	return []Rule{
		{Name: "announce-streak-update", Handle: handleStreakUpdated},
		{Name: "recover-streak", Handle: handleStreakRecovery},
	}
}

func handleStreakUpdated(ctx context.Context, d *Deps, env envelope.Envelope) ([]Emission, error) {
	if env.Op != envelope.OperationUpdate {
		return nil, nil
	}
	if !anyColumnChanged(env.Before, env.After) {
		return nil, nil
	}
	return []Emission{
		emit(events.Event{
			Topic: events.TopicUserStreakUpdated,
			Payload: map[string]any{
				"user_id":        env.After.String("user_id"),
				"current_streak": env.After.Int64("current_streak"),
			},
		}),
	}, nil
}

// handleStreakRecovery runs when a streak just reset to zero. Eligible users
// get the prior streak value cached until the next business day and an alert
// flag raised so the product can offer the recovery. Feature-gated per user.
func handleStreakRecovery(ctx context.Context, d *Deps, env envelope.Envelope) ([]Emission, error) {
	if env.Op != envelope.OperationUpdate {
		return nil, nil
	}
	if env.After.Int64("current_streak") != 0 || env.Before.Int64("current_streak") <= 0 {
		return nil, nil
	}

	userID := env.After.String("user_id")
	user, err := d.Store.Find(ctx, "users", store.Predicate{"id": userID})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errUnknownUser
	}
	if !user.Bool("streak_recovery_entitled") {
		return nil, nil
	}

	lastActiveAt, ok := env.Before.Time("last_active_at")
	if !ok {
		return nil, errMissingLastActive
	}
	timezone := env.Before.String("timezone")
	if timezone == "" {
		timezone = "UTC"
	}
	weekStart := streak.ParseWeekStart(env.Before.String("week_start_day"))
	history := recoveryInstants(env.Before.Slice("recovery_history"))

	recovery, err := streak.Evaluate(lastActiveAt, d.Clock.Now(), weekStart, timezone, history)
	if err != nil {
		return nil, err
	}
	if !recovery.Eligible {
		return nil, nil
	}

	previousStreak := int(env.Before.Int64("current_streak"))
	expiry := time.Duration(recovery.CacheExpirySeconds) * time.Second
	return []Emission{
		effect(func(ctx context.Context) error {
			d.RecoveryCache.Set(userID, previousStreak, expiry)
			// Upsert so users without an alerts row yet still get the flag.
			return d.Store.Upsert(ctx, "user_alerts",
				envelope.Row{"user_id": userID, "show_streak_recovery": true},
				[]string{"user_id"},
			)
		}),
	}, nil
}

func recoveryInstants(values []any) []time.Time {
	out := make([]time.Time, 0, len(values))
	for _, value := range values {
		wrapper := envelope.Row{"at": value}
		if instant, ok := wrapper.Time("at"); ok {
			out = append(out, instant)
		}
	}
	return out
}
