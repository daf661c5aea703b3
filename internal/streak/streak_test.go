package streak

import (
	"errors"
	"testing"
	"time"
)

// 2024-03-04 is a Monday.
func date(day int, hour int) time.Time {
	return time.Date(2024, time.March, day, hour, 0, 0, 0, time.UTC)
}

func TestEvaluateWithinGrace(t *testing.T) {
	// Monday noon -> Wednesday noon: only Tuesday lies strictly between.
	recovery, err := Evaluate(date(4, 12), date(6, 12), WeekStartMonday, "UTC", nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !recovery.Eligible {
		t.Fatalf("expected eligible within grace window")
	}
}

func TestEvaluateThreeValidDaysNotEligible(t *testing.T) {
	// Monday noon -> Friday noon: Tuesday, Wednesday, Thursday all count.
	recovery, err := Evaluate(date(4, 12), date(8, 12), WeekStartMonday, "UTC", nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if recovery.Eligible {
		t.Fatalf("expected ineligible after three valid days")
	}
	if recovery.CacheExpirySeconds != 0 {
		t.Fatalf("ineligible result must not carry an expiry")
	}
}

func TestEvaluateWeekendDoesNotCount(t *testing.T) {
	// Thursday -> following Tuesday crosses one weekend; only Friday and
	// Monday count against the grace window.
	recovery, err := Evaluate(date(7, 12), date(12, 12), WeekStartMonday, "UTC", nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !recovery.Eligible {
		t.Fatalf("expected eligible across a weekend")
	}
}

func TestEvaluateSundayWeekStartWeekend(t *testing.T) {
	// With a Sunday week start the weekend is Friday/Saturday, so a
	// Thursday -> Monday gap only spends Sunday from the grace window.
	recovery, err := Evaluate(date(7, 12), date(11, 12), WeekStartSunday, "UTC", nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !recovery.Eligible {
		t.Fatalf("expected eligible with Friday/Saturday weekend")
	}
}

func TestEvaluatePriorRecoveryMovesStart(t *testing.T) {
	// The user already recovered on Thursday; counting from Monday's
	// last-active would be ineligible, counting from Thursday is not.
	lastActive := date(4, 12)
	now := date(12, 12)
	history := []time.Time{date(7, 9)}

	recovery, err := Evaluate(lastActive, now, WeekStartMonday, "UTC", history)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !recovery.Eligible {
		t.Fatalf("expected prior recovery to move the gap start")
	}

	recovery, err = Evaluate(lastActive, now, WeekStartMonday, "UTC", nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if recovery.Eligible {
		t.Fatalf("expected ineligible without the prior recovery")
	}
}

func TestEvaluateCacheExpiry(t *testing.T) {
	// Wednesday noon: next business day starts Thursday 00:00, 12 hours
	// away, plus the 12-hour buffer.
	recovery, err := Evaluate(date(4, 12), date(6, 12), WeekStartMonday, "UTC", nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if want := (12 + 12) * 3600; recovery.CacheExpirySeconds != want {
		t.Fatalf("expected %d seconds, got %d", want, recovery.CacheExpirySeconds)
	}
}

func TestEvaluateCacheExpirySkipsWeekend(t *testing.T) {
	// Friday noon: next business day is Monday 00:00, 60 hours away.
	recovery, err := Evaluate(date(7, 12), date(8, 12), WeekStartMonday, "UTC", nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if want := (60 + 12) * 3600; recovery.CacheExpirySeconds != want {
		t.Fatalf("expected %d seconds, got %d", want, recovery.CacheExpirySeconds)
	}
}

func TestEvaluateInvertedRangeNotEligible(t *testing.T) {
	// A last-active instant in the future (clock skew, bad upstream data)
	// must never come out eligible.
	recovery, err := Evaluate(date(6, 12), date(4, 12), WeekStartMonday, "UTC", nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if recovery.Eligible {
		t.Fatalf("expected ineligible for an inverted range")
	}
	if recovery.CacheExpirySeconds != 0 {
		t.Fatalf("inverted range must not carry an expiry")
	}

	// A recovery instant past now inverts the effective start the same way.
	recovery, err = Evaluate(date(4, 12), date(6, 12), WeekStartMonday, "UTC", []time.Time{date(8, 9)})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if recovery.Eligible {
		t.Fatalf("expected ineligible when the effective start is after now")
	}
}

func TestEvaluateUnknownTimezone(t *testing.T) {
	_, err := Evaluate(date(4, 12), date(6, 12), WeekStartMonday, "Mars/Olympus", nil)
	if !errors.Is(err, ErrUnknownTimezone) {
		t.Fatalf("expected ErrUnknownTimezone, got %v", err)
	}
}

func TestParseWeekStart(t *testing.T) {
	if ParseWeekStart("sunday") != WeekStartSunday {
		t.Fatalf("expected sunday")
	}
	if ParseWeekStart("") != WeekStartMonday {
		t.Fatalf("expected monday default")
	}
}
