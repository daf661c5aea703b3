// Package streak holds the grace-period recovery calculation for user
// activity streaks.
package streak

import (
	"errors"
	"math"
	"time"
)

// WeekStart is the user's configured first day of the week. It determines
// which days count as the weekend.
type WeekStart string

const (
	WeekStartSunday WeekStart = "sunday"
	WeekStartMonday WeekStart = "monday"
)

const (
	// graceValidDays is the number of non-weekend days a user may miss and
	// still recover the previous streak.
	graceValidDays = 2
	// expiryBufferHours pads the recovery cache expiry past the start of the
	// next business day.
	expiryBufferHours = 12
)

var (
	ErrUnknownTimezone = errors.New("unknown_timezone")
	ErrInvalidInstant  = errors.New("invalid_instant")
)

// Recovery is the outcome of an eligibility evaluation.
type Recovery struct {
	Eligible           bool
	CacheExpirySeconds int
}

// ParseWeekStart maps a stored week-start value, defaulting to Monday.
func ParseWeekStart(value string) WeekStart {
	if value == string(WeekStartSunday) {
		return WeekStartSunday
	}
	return WeekStartMonday
}

// Evaluate decides whether a user whose streak just reset may recover it.
//
// Both instants are converted to the user's local calendar day. The count of
// non-weekend days strictly between the two local dates must not exceed the
// grace window. A prior recovery that happened after lastActiveAt moves the
// effective start of the gap forward, so back-to-back resets cannot reuse
// the same grace period.
//
// When eligible, CacheExpirySeconds covers the hours until the start of the
// next non-weekend local day after now, plus a fixed 12-hour buffer.
func Evaluate(lastActiveAt, now time.Time, weekStart WeekStart, timezone string, recoveryHistory []time.Time) (Recovery, error) {
	if lastActiveAt.IsZero() || now.IsZero() {
		return Recovery{}, ErrInvalidInstant
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return Recovery{}, ErrUnknownTimezone
	}

	start := lastActiveAt
	for _, recoveredAt := range recoveryHistory {
		if recoveredAt.After(lastActiveAt) && recoveredAt.After(start) {
			start = recoveredAt
		}
	}
	// Clock skew or bad upstream data can put the gap start after now; an
	// inverted range is never eligible.
	if now.Before(start) {
		return Recovery{}, nil
	}

	startDay := localDate(start, loc)
	nowDay := localDate(now, loc)

	validDays := 0
	for day := startDay.AddDate(0, 0, 1); day.Before(nowDay); day = day.AddDate(0, 0, 1) {
		if isWeekend(day.Weekday(), weekStart) {
			continue
		}
		validDays++
		if validDays > graceValidDays {
			return Recovery{}, nil
		}
	}

	return Recovery{
		Eligible:           true,
		CacheExpirySeconds: cacheExpirySeconds(now, nowDay, weekStart),
	}, nil
}

// cacheExpirySeconds computes hours until the start of the next non-weekend
// local day, rounded up so the cache never lapses before that day begins.
func cacheExpirySeconds(now, nowDay time.Time, weekStart WeekStart) int {
	next := nowDay.AddDate(0, 0, 1)
	for isWeekend(next.Weekday(), weekStart) {
		next = next.AddDate(0, 0, 1)
	}
	hours := int(math.Ceil(next.Sub(now).Hours()))
	return (hours + expiryBufferHours) * 3600
}

// isWeekend defines the weekend relative to the week's first day: Monday
// weeks rest on Saturday/Sunday, Sunday weeks on Friday/Saturday.
func isWeekend(day time.Weekday, weekStart WeekStart) bool {
	if weekStart == WeekStartSunday {
		return day == time.Friday || day == time.Saturday
	}
	return day == time.Saturday || day == time.Sunday
}

func localDate(instant time.Time, loc *time.Location) time.Time {
	local := instant.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
