package dispatch

import (
	"context"
	"fmt"

	"github.com/peerloop/relay/internal/diff"
	"github.com/peerloop/relay/internal/envelope"
	"github.com/peerloop/relay/internal/events"
	"github.com/peerloop/relay/internal/store"
)

const (
	opportunityStateLive = "live"
	opportunityTypeJob   = "job"
)

// opportunityRules announces job opportunities going live and cleans up
// alerts when they leave the live state.
func opportunityRules() []Rule {
	return []Rule{
		{Name: "broadcast-live", Handle: handleOpportunityLive},
		{Name: "clear-alerts-on-unlive", Handle: handleOpportunityUnlive},
	}
}

func handleOpportunityLive(ctx context.Context, d *Deps, env envelope.Envelope) ([]Emission, error) {
	if env.Op != envelope.OperationCreate && env.Op != envelope.OperationUpdate {
		return nil, nil
	}
	if !diff.Transitioned(env.Before, env.After, "state", diff.Equals(opportunityStateLive)) {
		return nil, nil
	}
	if env.After.String("type") != opportunityTypeJob {
		return nil, nil
	}

	opportunityID := env.After.String("id")
	orgID := env.After.String("org_id")

	org, err := d.Store.Find(ctx, "organizations", store.Predicate{"id": orgID})
	if err != nil {
		return nil, err
	}
	if org != nil && org.Bool("demo") {
		// The demo organization skips the matching pipeline: every member
		// receives a direct match event instead of the broadcast.
		members, err := d.Store.FindAll(ctx, "organization_members", store.Predicate{"org_id": orgID})
		if err != nil {
			return nil, err
		}
		out := make([]Emission, 0, len(members))
		for _, member := range members {
			userID := member.String("user_id")
			out = append(out, emit(events.Event{
				Topic: events.TopicCandidateOpportunityMatch,
				Payload: map[string]any{
					"opportunity_id": opportunityID,
					"user_id":        userID,
					"demo":           true,
				},
				DedupeKey: fmt.Sprintf("demo-match:%s:%s", opportunityID, userID),
			}))
		}
		return out, nil
	}

	recruiters, err := d.Store.FindAll(ctx, "opportunity_recruiters", store.Predicate{"opportunity_id": opportunityID})
	if err != nil {
		return nil, err
	}
	exclude := make([]any, 0, len(recruiters))
	for _, recruiter := range recruiters {
		exclude = append(exclude, recruiter.String("user_id"))
	}
	return []Emission{
		emit(events.Event{
			Topic: events.TopicOpportunityAdded,
			Payload: map[string]any{
				"opportunity_id":   opportunityID,
				"org_id":           orgID,
				"exclude_user_ids": exclude,
			},
			DedupeKey: fmt.Sprintf("opportunity-added:%s:%d", opportunityID, env.CommitTime.UnixMicro()),
		}),
	}, nil
}

func handleOpportunityUnlive(ctx context.Context, d *Deps, env envelope.Envelope) ([]Emission, error) {
	if env.Op != envelope.OperationUpdate {
		return nil, nil
	}
	left := func(value any) bool { return !diff.Equals(opportunityStateLive)(value) }
	if !diff.Transitioned(env.Before, env.After, "state", left) {
		return nil, nil
	}

	opportunityID := env.After.String("id")
	return []Emission{
		effect(func(ctx context.Context) error {
			_, err := d.Store.Update(ctx, "user_alerts",
				store.Predicate{"opportunity_id": opportunityID},
				envelope.Row{"dismissed": true},
			)
			return err
		}),
	}, nil
}
