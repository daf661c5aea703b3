package envelope

// Schema declares the minimal column contract the engine relies on for one
// table: which identifier columns must be present, and which columns hold
// structured values that need decoding at the parse boundary.
type Schema struct {
	Table      string
	Required   []string
	Structured []string
}

// DefaultSchemas covers the tables the dispatch registry handles. Tables
// without a schema pass through the parser untouched.
func DefaultSchemas() map[string]Schema {
	schemas := []Schema{
		{Table: "post_votes", Required: []string{"post_id", "user_id"}},
		{Table: "comment_votes", Required: []string{"comment_id", "user_id"}},
		{Table: "reputation_ledger", Required: []string{"id", "user_id"}},
		{Table: "user_streaks", Required: []string{"user_id"}, Structured: []string{"recovery_history"}},
		{Table: "source_post_moderation", Required: []string{"id"}, Structured: []string{"poll_options"}},
		{Table: "opportunities", Required: []string{"id", "org_id"}},
		{Table: "opportunity_matches", Required: []string{"opportunity_id", "user_id"}, Structured: []string{"description", "feedback", "history"}},
		{Table: "match_computations", Required: []string{"opportunity_id", "user_id"}, Structured: []string{"description"}},
		{Table: "organizations", Required: []string{"id"}},
		{Table: "user_preferences", Required: []string{"user_id"}, Structured: []string{"preferences"}},
	}

	out := make(map[string]Schema, len(schemas))
	for _, schema := range schemas {
		out[schema.Table] = schema
	}
	return out
}
