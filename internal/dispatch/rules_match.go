package dispatch

import (
	"context"
	"fmt"

	"github.com/peerloop/relay/internal/diff"
	"github.com/peerloop/relay/internal/envelope"
	"github.com/peerloop/relay/internal/events"
	"github.com/peerloop/relay/internal/match"
	"github.com/peerloop/relay/internal/store"
)

// matchStatusRules emits lifecycle events when the status value itself
// changes on an opportunity match. Same-status updates stay silent.
func matchStatusRules() []Rule {
	return []Rule{
		{Name: "announce-status-change", Handle: handleMatchStatusChange},
	}
}

// matchComputationRules folds incoming match computations into the stored
// pairing per the lifecycle rules in the match package.
func matchComputationRules() []Rule {
	return []Rule{
		{Name: "apply-computation", Handle: handleMatchComputation},
	}
}

func handleMatchStatusChange(ctx context.Context, d *Deps, env envelope.Envelope) ([]Emission, error) {
	if env.Op != envelope.OperationUpdate {
		return nil, nil
	}
	if !diff.Changed(env.Before, env.After, "status") {
		return nil, nil
	}

	status := match.ParseStatus(env.After.String("status"))
	topic, ok := statusTopic(status)
	if !ok {
		// Pending is reached only through a re-match, which announces
		// itself through the computation path.
		return nil, nil
	}
	return []Emission{
		emit(events.Event{
			Topic: topic,
			Payload: map[string]any{
				"opportunity_id": env.After.String("opportunity_id"),
				"user_id":        env.After.String("user_id"),
				"status":         string(status),
			},
		}),
	}, nil
}

func statusTopic(status match.Status) (string, bool) {
	switch status {
	case match.StatusCandidateAccepted:
		return events.TopicCandidateAcceptedOpportunity, true
	case match.StatusCandidateRejected:
		return events.TopicCandidateRejectedOpportunity, true
	case match.StatusRecruiterAccepted:
		return events.TopicRecruiterAcceptedOpportunity, true
	case match.StatusRecruiterRejected:
		return events.TopicRecruiterRejectedOpportunity, true
	default:
		return "", false
	}
}

// handleMatchComputation validates the computation before any write: a score
// outside [0, 100] aborts the envelope with a typed error and the delivery
// layer retries it.
func handleMatchComputation(ctx context.Context, d *Deps, env envelope.Envelope) ([]Emission, error) {
	if env.Op != envelope.OperationCreate {
		return nil, nil
	}

	opportunityID := env.After.String("opportunity_id")
	userID := env.After.String("user_id")
	incoming := descriptionFromRow(env.After)

	existingRow, err := d.Store.Find(ctx, "opportunity_matches", store.Predicate{
		"opportunity_id": opportunityID,
		"user_id":        userID,
	})
	if err != nil {
		return nil, err
	}
	var existing *match.Match
	if existingRow != nil {
		decoded := match.FromRow(existingRow)
		existing = &decoded
	}

	updated, rematch, err := match.ApplyComputation(existing, opportunityID, userID, incoming, d.Clock.Now())
	if err != nil {
		return nil, err
	}

	out := []Emission{
		effect(func(ctx context.Context) error {
			return d.Store.Upsert(ctx, "opportunity_matches", updated.ToRow(), []string{"opportunity_id", "user_id"})
		}),
	}
	if rematch {
		// Resurface the opportunity in the UI.
		out = append(out, effect(func(ctx context.Context) error {
			_, err := d.Store.Update(ctx, "user_alerts",
				store.Predicate{"user_id": userID, "opportunity_id": opportunityID},
				envelope.Row{"seen_opportunity": false},
			)
			return err
		}))
	}
	out = append(out, emit(events.Event{
		Topic: events.TopicCandidateOpportunityMatch,
		Payload: map[string]any{
			"opportunity_id": opportunityID,
			"user_id":        userID,
			"match_score":    incoming.MatchScore,
			"rematch":        rematch,
		},
		DedupeKey: fmt.Sprintf("match:%s:%s:%d", opportunityID, userID, env.CommitTime.UnixMicro()),
	}))
	return out, nil
}

func descriptionFromRow(row envelope.Row) match.Description {
	var desc match.Description
	if value, ok := row["description"]; ok {
		descFromAny(value, &desc)
	}
	return desc
}

func descFromAny(value any, desc *match.Description) {
	if structured, ok := value.(map[string]any); ok {
		wrapper := envelope.Row(structured)
		desc.MatchScore = int(wrapper.Int64("match_score"))
		desc.Reasoning = wrapper.String("reasoning")
		desc.ReasoningShort = wrapper.String("reasoning_short")
	}
}
