package dispatch

import (
	"context"
	"fmt"

	"github.com/peerloop/relay/internal/diff"
	"github.com/peerloop/relay/internal/envelope"
	"github.com/peerloop/relay/internal/events"
	"github.com/peerloop/relay/internal/store"
)

// organizationDescriptiveColumns are the profile fields whose edits warrant
// re-broadcasting the org's live opportunities. Seat and name changes do
// not.
var organizationDescriptiveColumns = []string{
	"description",
	"website",
	"industry",
	"location",
	"logo_url",
}

func organizationRules() []Rule {
	return []Rule{
		{Name: "rebroadcast-live-opportunities", Handle: handleOrganizationUpdated},
	}
}

// handleOrganizationUpdated re-announces every live opportunity of an org
// whose descriptive profile changed, one event per opportunity. Creates
// never broadcast.
func handleOrganizationUpdated(ctx context.Context, d *Deps, env envelope.Envelope) ([]Emission, error) {
	if env.Op != envelope.OperationUpdate {
		return nil, nil
	}
	if !diff.AnyChanged(env.Before, env.After, organizationDescriptiveColumns...) {
		return nil, nil
	}

	orgID := env.After.String("id")
	live, err := d.Store.FindAll(ctx, "opportunities", store.Predicate{
		"org_id": orgID,
		"state":  opportunityStateLive,
	})
	if err != nil {
		return nil, err
	}

	out := make([]Emission, 0, len(live))
	for _, opportunity := range live {
		opportunityID := opportunity.String("id")
		out = append(out, emit(events.Event{
			Topic: events.TopicOpportunityAdded,
			Payload: map[string]any{
				"opportunity_id": opportunityID,
				"org_id":         orgID,
			},
			DedupeKey: fmt.Sprintf("opportunity-added:%s:%d", opportunityID, env.CommitTime.UnixMicro()),
		}))
	}
	return out, nil
}
