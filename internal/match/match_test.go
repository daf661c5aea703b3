package match

import (
	"errors"
	"testing"
	"time"
)

var computedAt = time.Date(2024, time.March, 4, 12, 0, 0, 0, time.UTC)

func TestApplyComputationInsertsPending(t *testing.T) {
	incoming := Description{MatchScore: 72, Reasoning: "strong overlap", ReasoningShort: "strong"}

	created, rematch, err := ApplyComputation(nil, "opp-1", "user-1", incoming, computedAt)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if rematch {
		t.Fatalf("fresh insert is not a re-match")
	}
	if created.Status != StatusPending {
		t.Fatalf("expected pending, got %s", created.Status)
	}
	if len(created.Feedback) != 0 || len(created.History) != 0 {
		t.Fatalf("fresh match must start empty")
	}
	if created.Description != incoming {
		t.Fatalf("expected incoming description stored")
	}
}

func TestApplyComputationRefreshesDescriptionOnly(t *testing.T) {
	existing := &Match{
		OpportunityID: "opp-1",
		UserID:        "user-1",
		Status:        StatusCandidateAccepted,
		Description:   Description{MatchScore: 50},
		Feedback:      []QA{{Question: "q", Answer: "a"}},
	}
	incoming := Description{MatchScore: 90}

	updated, rematch, err := ApplyComputation(existing, "opp-1", "user-1", incoming, computedAt)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if rematch {
		t.Fatalf("non-rejected status is an idempotent refresh, not a re-match")
	}
	if updated.Status != StatusCandidateAccepted {
		t.Fatalf("status must stay untouched, got %s", updated.Status)
	}
	if len(updated.Feedback) != 1 {
		t.Fatalf("feedback must stay untouched")
	}
	if len(updated.History) != 0 {
		t.Fatalf("history must stay untouched")
	}
	if updated.Description.MatchScore != 90 {
		t.Fatalf("description must refresh")
	}
}

func TestApplyComputationRematchArchivesHistory(t *testing.T) {
	rejected := &Match{
		OpportunityID: "opp-1",
		UserID:        "user-1",
		Status:        StatusCandidateRejected,
		Description:   Description{MatchScore: 40, Reasoning: "weak"},
		Feedback:      []QA{{Question: "why", Answer: "pay"}},
	}

	first, rematch, err := ApplyComputation(rejected, "opp-1", "user-1", Description{MatchScore: 65}, computedAt)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !rematch {
		t.Fatalf("rejected status must trigger a re-match")
	}
	if first.Status != StatusPending {
		t.Fatalf("expected status reset to pending, got %s", first.Status)
	}
	if len(first.Feedback) != 0 {
		t.Fatalf("expected feedback emptied")
	}
	if len(first.History) != 1 {
		t.Fatalf("expected exactly one history entry, got %d", len(first.History))
	}
	entry := first.History[0]
	if entry.Status != StatusCandidateRejected || entry.Description.MatchScore != 40 {
		t.Fatalf("history entry must capture pre-transition state: %+v", entry)
	}
	if len(entry.Feedback) != 1 || entry.Feedback[0].Answer != "pay" {
		t.Fatalf("history entry must capture feedback")
	}
	if !entry.ArchivedAt.Equal(computedAt) {
		t.Fatalf("expected archive timestamp %v, got %v", computedAt, entry.ArchivedAt)
	}

	// Reject again, then re-match again: the first entry stays put.
	second := first
	second.Status = StatusCandidateRejected
	second.Feedback = []QA{{Question: "again", Answer: "location"}}
	later := computedAt.Add(48 * time.Hour)

	third, rematch, err := ApplyComputation(&second, "opp-1", "user-1", Description{MatchScore: 70}, later)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !rematch {
		t.Fatalf("expected second re-match")
	}
	if len(third.History) != 2 {
		t.Fatalf("expected two history entries, got %d", len(third.History))
	}
	if third.History[0].Description.MatchScore != 40 {
		t.Fatalf("first history entry must be undisturbed")
	}
	if third.History[1].Feedback[0].Answer != "location" {
		t.Fatalf("second history entry must capture the second rejection")
	}
	if third.History[1].ArchivedAt.Before(third.History[0].ArchivedAt) {
		t.Fatalf("history must stay ordered by archive time")
	}
}

func TestApplyComputationValidatesScore(t *testing.T) {
	for _, score := range []int{-1, 101} {
		_, _, err := ApplyComputation(nil, "opp-1", "user-1", Description{MatchScore: score}, computedAt)
		if !errors.Is(err, ErrInvalidScore) {
			t.Fatalf("score %d: expected ErrInvalidScore, got %v", score, err)
		}
	}
}

func TestApplyComputationValidatesIdentifiers(t *testing.T) {
	if _, _, err := ApplyComputation(nil, "", "user-1", Description{}, computedAt); !errors.Is(err, ErrMissingOpportunity) {
		t.Fatalf("expected ErrMissingOpportunity, got %v", err)
	}
	if _, _, err := ApplyComputation(nil, "opp-1", "", Description{}, computedAt); !errors.Is(err, ErrMissingUser) {
		t.Fatalf("expected ErrMissingUser, got %v", err)
	}
}

func TestValidTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusCandidateAccepted, true},
		{StatusPending, StatusCandidateRejected, true},
		{StatusCandidateAccepted, StatusRecruiterAccepted, true},
		{StatusCandidateAccepted, StatusRecruiterRejected, true},
		{StatusCandidateRejected, StatusRecruiterAccepted, false},
		{StatusRecruiterAccepted, StatusPending, false},
	}
	for _, tc := range cases {
		if got := ValidTransition(tc.from, tc.to); got != tc.ok {
			t.Fatalf("%s -> %s: expected %v", tc.from, tc.to, tc.ok)
		}
	}
}

func TestRowRoundTrip(t *testing.T) {
	m := Match{
		OpportunityID: "opp-1",
		UserID:        "user-1",
		Status:        StatusCandidateRejected,
		Description:   Description{MatchScore: 40, Reasoning: "weak", ReasoningShort: "w"},
		Feedback:      []QA{{Question: "why", Answer: "pay"}},
		History:       []HistoryEntry{},
	}

	decoded := FromRow(m.ToRow())
	if decoded.Status != m.Status || decoded.Description != m.Description {
		t.Fatalf("round trip lost data: %+v", decoded)
	}
	if len(decoded.Feedback) != 1 || decoded.Feedback[0] != m.Feedback[0] {
		t.Fatalf("round trip lost feedback: %+v", decoded.Feedback)
	}
}
