package dispatch

import (
	"context"
	"errors"

	"github.com/peerloop/relay/internal/diff"
	"github.com/peerloop/relay/internal/envelope"
	"github.com/peerloop/relay/internal/events"
	"github.com/peerloop/relay/internal/store"
)

const (
	moderationApproved = "approved"
	moderationRejected = "rejected"

	postTypeFreeform = "freeform"
	postTypeShare    = "share"
	postTypePoll     = "poll"

	// unknownSourceBucket receives shared posts whose external link has no
	// internal source record yet.
	unknownSourceBucket = "unknown"
)

var errUnknownPostType = errors.New("unknown_post_type")

// moderationRules covers the source_post_moderation queue: submissions are
// announced unless an automated trust signal flagged them at creation, a
// rejection clears the earlier submission notifications, and an approval
// materializes the concrete post record.
func moderationRules() []Rule {
	return []Rule{
		{Name: "announce-submission", Handle: handleModerationSubmitted},
		{Name: "clear-on-rejection", Handle: handleModerationRejected},
		{Name: "materialize-on-approval", Handle: handleModerationApproved},
	}
}

func handleModerationSubmitted(ctx context.Context, d *Deps, env envelope.Envelope) ([]Emission, error) {
	if env.Op != envelope.OperationCreate {
		return nil, nil
	}
	if env.After.Bool("flagged") {
		// Trust signal tripped at creation: suppress silently, no event.
		return nil, nil
	}
	return []Emission{
		emit(events.Event{
			Topic: events.TopicSourcePostSubmitted,
			Payload: map[string]any{
				"id":      env.After.String("id"),
				"user_id": env.After.String("user_id"),
			},
		}),
	}, nil
}

func handleModerationRejected(ctx context.Context, d *Deps, env envelope.Envelope) ([]Emission, error) {
	if env.Op != envelope.OperationUpdate {
		return nil, nil
	}
	if !diff.Transitioned(env.Before, env.After, "status", diff.Equals(moderationRejected)) {
		return nil, nil
	}
	sourceID := env.After.String("id")
	return []Emission{
		effect(func(ctx context.Context) error {
			_, err := d.Store.Update(ctx, "notifications",
				store.Predicate{"source_post_id": sourceID},
				envelope.Row{"dismissed": true},
			)
			return err
		}),
		emit(events.Event{
			Topic:   events.TopicSourcePostRejected,
			Payload: map[string]any{"id": sourceID},
		}),
	}, nil
}

// handleModerationApproved creates the concrete post for an approved
// submission. The transition gate means a no-op status update never
// re-creates anything, and the find-before-insert makes a crash retry land
// on the already-created post.
func handleModerationApproved(ctx context.Context, d *Deps, env envelope.Envelope) ([]Emission, error) {
	if env.Op != envelope.OperationUpdate {
		return nil, nil
	}
	if !diff.Transitioned(env.Before, env.After, "status", diff.Equals(moderationApproved)) {
		return nil, nil
	}

	postID, err := ensurePost(ctx, d, env.After)
	if err != nil {
		return nil, err
	}
	return []Emission{
		emit(events.Event{
			Topic: events.TopicSourcePostApproved,
			Payload: map[string]any{
				"id":      env.After.String("id"),
				"post_id": postID,
			},
		}),
	}, nil
}

func ensurePost(ctx context.Context, d *Deps, row envelope.Row) (string, error) {
	sourceID := row.String("id")
	existing, err := d.Store.Find(ctx, "posts", store.Predicate{"source_post_id": sourceID})
	if err != nil {
		return "", err
	}
	if existing != nil {
		return existing.String("id"), nil
	}

	postType := row.String("type")
	postID := d.GenID.Generate().String()
	post := envelope.Row{
		"id":             postID,
		"source_post_id": sourceID,
		"author_id":      row.String("user_id"),
		"title":          row.String("title"),
		"type":           postType,
	}

	switch postType {
	case postTypeFreeform:
		post["content"] = row.String("content")

	case postTypeShare:
		bucket := unknownSourceBucket
		if url := row.String("source_url"); url != "" {
			source, err := d.Store.Find(ctx, "shared_sources", store.Predicate{"url": url})
			if err != nil {
				return "", err
			}
			if source != nil {
				bucket = source.String("id")
			}
		}
		post["shared_source_id"] = bucket
		post["source_url"] = row.String("source_url")

	case postTypePoll:
		// Options are written after the post row below.

	default:
		return "", errUnknownPostType
	}

	if err := d.Store.Upsert(ctx, "posts", post, []string{"source_post_id"}); err != nil {
		return "", err
	}

	if postType == postTypePoll {
		for position, option := range row.Slice("poll_options") {
			text, _ := option.(string)
			optionRow := envelope.Row{
				"post_id":  postID,
				"position": position,
				"text":     text,
			}
			if err := d.Store.Upsert(ctx, "poll_options", optionRow, []string{"post_id", "position"}); err != nil {
				return "", err
			}
		}
	}
	return postID, nil
}
