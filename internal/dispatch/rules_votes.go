package dispatch

import (
	"context"
	"fmt"

	"github.com/peerloop/relay/internal/envelope"
	"github.com/peerloop/relay/internal/events"
)

const (
	voteNone = "none"
	voteUp   = "up"
	voteDown = "down"
)

// voteRules interprets a vote table for one entity kind ("post"/"comment").
// A vote flip emits the cancel event for the old direction first, then the
// new-vote event, so downstream counters never double-apply.
func voteRules(entity, idColumn string) []Rule {
	return []Rule{
		{Name: "announce-vote-change", Handle: handleVoteChange(entity, idColumn)},
	}
}

func handleVoteChange(entity, idColumn string) HandlerFunc {
	return func(ctx context.Context, d *Deps, env envelope.Envelope) ([]Emission, error) {
		switch env.Op {
		case envelope.OperationCreate:
			vote := voteValue(env.After)
			if vote == voteNone {
				return nil, nil
			}
			return []Emission{emit(voteEvent(entity, idColumn, env, vote, false))}, nil

		case envelope.OperationUpdate:
			before := voteValue(env.Before)
			after := voteValue(env.After)
			if before == after {
				// Unrelated column changes never fire vote events.
				return nil, nil
			}
			var out []Emission
			if before != voteNone {
				out = append(out, emit(voteEvent(entity, idColumn, env, before, true)))
			}
			if after != voteNone {
				out = append(out, emit(voteEvent(entity, idColumn, env, after, false)))
			}
			return out, nil

		case envelope.OperationDelete:
			vote := voteValue(env.Before)
			if vote == voteNone {
				return nil, nil
			}
			return []Emission{emit(voteEvent(entity, idColumn, env, vote, true))}, nil

		default:
			return nil, nil
		}
	}
}

func voteValue(row envelope.Row) string {
	switch row.String("vote") {
	case voteUp:
		return voteUp
	case voteDown:
		return voteDown
	default:
		return voteNone
	}
}

func voteTopic(entity, vote string, canceled bool) string {
	direction := "upvote"
	if vote == voteDown {
		direction = "downvote"
	}
	if canceled {
		return fmt.Sprintf("%s-%s-canceled", entity, direction)
	}
	return fmt.Sprintf("%s-%sd", entity, direction)
}

func voteEvent(entity, idColumn string, env envelope.Envelope, vote string, canceled bool) events.Event {
	image := env.Image()
	entityID := image.String(idColumn)
	userID := image.String("user_id")
	topic := voteTopic(entity, vote, canceled)
	return events.Event{
		Topic: topic,
		Payload: map[string]any{
			idColumn:  entityID,
			"user_id": userID,
		},
		DedupeKey: fmt.Sprintf("%s:%s:%s:%d", topic, entityID, userID, env.CommitTime.UnixMicro()),
	}
}
