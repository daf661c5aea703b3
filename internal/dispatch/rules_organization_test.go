package dispatch

import (
	"testing"

	"github.com/peerloop/relay/internal/envelope"
	"github.com/peerloop/relay/internal/events"
)

func orgRow(description string) envelope.Row {
	return envelope.Row{
		"id":          "org1",
		"name":        "peerloop",
		"description": description,
	}
}

func TestOrganizationProfileEditRebroadcastsLiveOpportunities(t *testing.T) {
	deps, mem, rec := newTestDeps(t)
	mem.Seed("opportunities",
		envelope.Row{"id": "o1", "org_id": "org1", "state": "live"},
		envelope.Row{"id": "o2", "org_id": "org1", "state": "draft"},
		envelope.Row{"id": "o3", "org_id": "org1", "state": "live"},
	)

	dispatchEnvelope(t, deps, update("organizations", orgRow("old"), orgRow("new")))

	topics := rec.Topics()
	if len(topics) != 2 {
		t.Fatalf("expected one event per live opportunity, got %v", topics)
	}
	for _, topic := range topics {
		if topic != events.TopicOpportunityAdded {
			t.Fatalf("unexpected topic %s", topic)
		}
	}
}

func TestOrganizationNonDescriptiveEditStaysSilent(t *testing.T) {
	deps, mem, rec := newTestDeps(t)
	mem.Seed("opportunities", envelope.Row{"id": "o1", "org_id": "org1", "state": "live"})

	before := orgRow("same")
	after := orgRow("same")
	after["name"] = "renamed"
	dispatchEnvelope(t, deps, update("organizations", before, after))

	if len(rec.Events) != 0 {
		t.Fatalf("name-only edits must not broadcast: %v", rec.Topics())
	}
}

func TestOrganizationCreateStaysSilent(t *testing.T) {
	deps, _, rec := newTestDeps(t)

	dispatchEnvelope(t, deps, create("organizations", orgRow("fresh")))

	if len(rec.Events) != 0 {
		t.Fatalf("org creation must not broadcast: %v", rec.Topics())
	}
}
