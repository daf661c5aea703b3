package match

import (
	"encoding/json"

	"github.com/peerloop/relay/internal/envelope"
)

// FromRow reads a match out of a stored row. Structured columns are accepted
// either as decoded values or as JSON-encoded strings, mirroring the parser's
// tolerance at the capture boundary.
func FromRow(row envelope.Row) Match {
	m := Match{
		OpportunityID: row.String("opportunity_id"),
		UserID:        row.String("user_id"),
		Status:        ParseStatus(row.String("status")),
		Feedback:      []QA{},
		History:       []HistoryEntry{},
	}
	decodeColumn(row["description"], &m.Description)
	decodeColumn(row["feedback"], &m.Feedback)
	decodeColumn(row["history"], &m.History)
	return m
}

// ToRow renders the match as a row suitable for an idempotent upsert keyed
// by (opportunity_id, user_id).
func (m Match) ToRow() envelope.Row {
	return envelope.Row{
		"opportunity_id": m.OpportunityID,
		"user_id":        m.UserID,
		"status":         string(m.Status),
		"description":    toStructured(m.Description),
		"feedback":       toStructured(m.Feedback),
		"history":        toStructured(m.History),
	}
}

func decodeColumn(value any, target any) {
	if value == nil {
		return
	}
	var encoded []byte
	switch typed := value.(type) {
	case string:
		encoded = []byte(typed)
	case []byte:
		encoded = typed
	default:
		marshaled, err := json.Marshal(typed)
		if err != nil {
			return
		}
		encoded = marshaled
	}
	_ = json.Unmarshal(encoded, target)
}

func toStructured(value any) any {
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil
	}
	var out any
	if err := json.Unmarshal(encoded, &out); err != nil {
		return nil
	}
	return out
}
