// Package events defines the domain events the engine publishes and the
// emitter that delivers them in order.
package events

import "context"

// Topics published by the dispatch rules.
const (
	TopicPostUpvoted             = "post-upvoted"
	TopicPostUpvoteCanceled      = "post-upvote-canceled"
	TopicPostDownvoted           = "post-downvoted"
	TopicPostDownvoteCanceled    = "post-downvote-canceled"
	TopicCommentUpvoted          = "comment-upvoted"
	TopicCommentUpvoteCanceled   = "comment-upvote-canceled"
	TopicCommentDownvoted        = "comment-downvoted"
	TopicCommentDownvoteCanceled = "comment-downvote-canceled"

	TopicUserStreakUpdated = "user-streak-updated"

	TopicSourcePostSubmitted = "source-post-moderation-submitted"
	TopicSourcePostApproved  = "source-post-moderation-approved"
	TopicSourcePostRejected  = "source-post-moderation-rejected"

	TopicOpportunityAdded             = "opportunity-added"
	TopicCandidateOpportunityMatch    = "candidate-opportunity-match"
	TopicCandidateAcceptedOpportunity = "candidate-accepted-opportunity"
	TopicCandidateRejectedOpportunity = "candidate-rejected-opportunity"
	TopicRecruiterAcceptedOpportunity = "recruiter-accepted-opportunity"
	TopicRecruiterRejectedOpportunity = "recruiter-rejected-opportunity"

	TopicCandidatePreferenceUpdated = "candidate-preference-updated"
)

// Event is a business-meaningful message for downstream consumers. A dedupe
// key lets the emitter suppress exact repeats within a bounded window;
// without one the consumer must be idempotent itself.
type Event struct {
	Topic     string
	Payload   map[string]any
	DedupeKey string
}

// Publisher delivers events to the shared bus.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Recorder is a Publisher that keeps events in memory, for tests and dry
// runs.
type Recorder struct {
	Events []Event
}

func (r *Recorder) Publish(ctx context.Context, event Event) error {
	r.Events = append(r.Events, event)
	return nil
}

// Topics lists the recorded topics in publish order.
func (r *Recorder) Topics() []string {
	out := make([]string, 0, len(r.Events))
	for _, event := range r.Events {
		out = append(out, event.Topic)
	}
	return out
}
