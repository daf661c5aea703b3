// Package match governs the opportunity/candidate match lifecycle: how
// incoming match computations create, refresh, or re-open a pairing, and
// which status transitions are legal.
package match

import (
	"errors"
	"time"
)

// Status is the match lifecycle state.
type Status string

const (
	StatusPending           Status = "pending"
	StatusCandidateAccepted Status = "candidate_accepted"
	StatusCandidateRejected Status = "candidate_rejected"
	StatusRecruiterAccepted Status = "recruiter_accepted"
	StatusRecruiterRejected Status = "recruiter_rejected"
)

var (
	ErrInvalidScore       = errors.New("invalid_match_score")
	ErrMissingOpportunity = errors.New("missing_opportunity_id")
	ErrMissingUser        = errors.New("missing_user_id")
)

// Description is the matching engine's verdict for one pairing.
type Description struct {
	MatchScore     int    `json:"match_score"`
	Reasoning      string `json:"reasoning"`
	ReasoningShort string `json:"reasoning_short"`
}

// QA is one feedback question/answer pair collected from the candidate.
type QA struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// HistoryEntry archives a match's state at the moment a re-match replaced it.
type HistoryEntry struct {
	Status      Status      `json:"status"`
	Feedback    []QA        `json:"feedback"`
	Description Description `json:"description"`
	ArchivedAt  time.Time   `json:"archived_at"`
}

// Match is one opportunity/user pairing. History is append-only, ordered by
// ArchivedAt ascending, and advisory: at-least-once delivery may duplicate
// an entry, so it must never be used as a correctness-critical ledger.
type Match struct {
	OpportunityID string         `json:"opportunity_id"`
	UserID        string         `json:"user_id"`
	Status        Status         `json:"status"`
	Description   Description    `json:"description"`
	Feedback      []QA           `json:"feedback"`
	History       []HistoryEntry `json:"history"`
}

// ParseStatus maps a stored status value, defaulting to Pending.
func ParseStatus(value string) Status {
	switch Status(value) {
	case StatusCandidateAccepted, StatusCandidateRejected, StatusRecruiterAccepted, StatusRecruiterRejected:
		return Status(value)
	default:
		return StatusPending
	}
}

// ValidateDescription rejects computations whose score falls outside the
// [0, 100] range before any write happens.
func ValidateDescription(desc Description) error {
	if desc.MatchScore < 0 || desc.MatchScore > 100 {
		return ErrInvalidScore
	}
	return nil
}

// ValidTransition reports whether a direct status move is part of the
// lifecycle. A fresh match computation may land in any state; that path is
// handled by ApplyComputation, not here.
func ValidTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusCandidateAccepted || to == StatusCandidateRejected
	case StatusCandidateAccepted:
		return to == StatusRecruiterAccepted || to == StatusRecruiterRejected
	default:
		return false
	}
}

// ApplyComputation folds a new match computation into the existing pairing
// and returns the resulting row plus whether this was a re-match.
//
// No existing row inserts a fresh Pending match. An existing
// candidate-rejected row is re-opened: the pre-transition status, feedback,
// and description are archived as one history entry, feedback empties, and
// status resets to Pending. Any other existing status only refreshes the
// description; status, feedback, and history stay untouched. That last arm
// is intentional idempotent-refresh behavior.
func ApplyComputation(existing *Match, opportunityID, userID string, incoming Description, now time.Time) (Match, bool, error) {
	if opportunityID == "" {
		return Match{}, false, ErrMissingOpportunity
	}
	if userID == "" {
		return Match{}, false, ErrMissingUser
	}
	if err := ValidateDescription(incoming); err != nil {
		return Match{}, false, err
	}

	if existing == nil {
		return Match{
			OpportunityID: opportunityID,
			UserID:        userID,
			Status:        StatusPending,
			Description:   incoming,
			Feedback:      []QA{},
			History:       []HistoryEntry{},
		}, false, nil
	}

	updated := *existing
	updated.OpportunityID = opportunityID
	updated.UserID = userID

	if existing.Status != StatusCandidateRejected {
		updated.Description = incoming
		return updated, false, nil
	}

	archived := HistoryEntry{
		Status:      existing.Status,
		Feedback:    existing.Feedback,
		Description: existing.Description,
		ArchivedAt:  now,
	}
	updated.History = append(append([]HistoryEntry{}, existing.History...), archived)
	updated.Status = StatusPending
	updated.Feedback = []QA{}
	updated.Description = incoming
	return updated, true, nil
}
