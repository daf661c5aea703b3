package dispatch

import "go.uber.org/zap"

// BuildRegistry wires the full per-table rule set. New tables register here
// without touching existing handlers.
func BuildRegistry(log *zap.Logger) *Registry {
	registry := NewRegistry(log)

	registry.Register("post_votes", voteRules("post", "post_id")...)
	registry.Register("comment_votes", voteRules("comment", "comment_id")...)
	registry.Register("reputation_ledger", reputationRules()...)
	registry.Register("user_streaks", streakRules()...)
	registry.Register("source_post_moderation", moderationRules()...)
	registry.Register("opportunities", opportunityRules()...)
	registry.Register("opportunity_matches", matchStatusRules()...)
	registry.Register("match_computations", matchComputationRules()...)
	registry.Register("organizations", organizationRules()...)
	registry.Register("user_preferences", preferenceRules()...)

	return registry
}
