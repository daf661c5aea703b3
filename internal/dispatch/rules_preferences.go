package dispatch

import (
	"context"

	"github.com/peerloop/relay/internal/envelope"
	"github.com/peerloop/relay/internal/events"
)

func preferenceRules() []Rule {
	return []Rule{
		{Name: "announce-preference-update", Handle: handlePreferenceChange},
	}
}

func handlePreferenceChange(ctx context.Context, d *Deps, env envelope.Envelope) ([]Emission, error) {
	switch env.Op {
	case envelope.OperationCreate:
	case envelope.OperationUpdate:
		if !anyColumnChanged(env.Before, env.After) {
			return nil, nil
		}
	default:
		return nil, nil
	}
	return []Emission{
		emit(events.Event{
			Topic: events.TopicCandidatePreferenceUpdated,
			Payload: map[string]any{
				"user_id": env.After.String("user_id"),
			},
		}),
	}, nil
}
