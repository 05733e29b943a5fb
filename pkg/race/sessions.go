// Package race turns bundled calendar entries into races whose session
// ranges can answer "which session's result would this instant spoil".
//
// A session only has a start time. Its spoiler range runs until the next
// session starts: Free Practice 1 at Friday 09:30 stays blocked until Free
// Practice 2 starts at 13:00. The last session has no successor, so its range
// ends a trailing number of days after it starts.
package race

import (
	"time"

	"github.com/bmease/race-spoilers/pkg/model"
)

// Sessions is an ordered session list with derived ranges.
//
// Sessions sharing a start time are ordered by name; the earlier-named one
// gets a zero-width range that never contains any instant.
type Sessions struct {
	ranges       []model.SessionRange
	trailingDays int
}

// NewSessions sorts sessions by time and derives their ranges. A negative
// trailingDays falls back to model.DefaultTrailingDays. Empty input yields an
// empty calendar.
func NewSessions(sessions []model.Session, trailingDays int) *Sessions {
	if trailingDays < 0 {
		trailingDays = model.DefaultTrailingDays
	}
	sorted := make([]model.Session, len(sessions))
	copy(sorted, sessions)
	model.SortSessions(sorted)

	return &Sessions{
		ranges:       sessionRanges(sorted, trailingDays),
		trailingDays: trailingDays,
	}
}

// sessionRanges expects sessions sorted by time.
func sessionRanges(sorted []model.Session, trailingDays int) []model.SessionRange {
	out := make([]model.SessionRange, 0, len(sorted))
	for i, s := range sorted {
		end := s.Time.AddDate(0, 0, trailingDays)
		if i+1 < len(sorted) {
			end = sorted[i+1].Time
		}
		out = append(out, model.SessionRange{
			Name:  s.Name,
			Time:  s.Time,
			Start: s.Time,
			End:   end,
		})
	}
	return out
}

// Len returns the number of sessions.
func (s *Sessions) Len() int { return len(s.ranges) }

// TrailingDays returns the tail window applied to the last session.
func (s *Sessions) TrailingDays() int { return s.trailingDays }

// Ranges returns a copy of the session ranges in chronological order.
func (s *Sessions) Ranges() []model.SessionRange {
	out := make([]model.SessionRange, len(s.ranges))
	copy(out, s.ranges)
	return out
}

// Start is the earliest range start, or the zero time for an empty calendar.
func (s *Sessions) Start() time.Time {
	var start time.Time
	for i, r := range s.ranges {
		if i == 0 || r.Start.Before(start) {
			start = r.Start
		}
	}
	return start
}

// End is the latest range end, or the zero time for an empty calendar.
func (s *Sessions) End() time.Time {
	var end time.Time
	for i, r := range s.ranges {
		if i == 0 || r.End.After(end) {
			end = r.End
		}
	}
	return end
}

// Span returns Start and End as a Range.
func (s *Sessions) Span() model.Range {
	return model.Range{Start: s.Start(), End: s.End()}
}

// IsDuringSession reports whether t falls strictly inside the calendar's
// overall span, not necessarily inside one specific session range.
func (s *Sessions) IsDuringSession(t time.Time) bool {
	if len(s.ranges) == 0 {
		return false
	}
	return s.Span().Contains(t)
}

// SessionDuring returns the first range, in chronological order, that
// strictly contains t.
func (s *Sessions) SessionDuring(t time.Time) (model.SessionRange, bool) {
	for _, r := range s.ranges {
		if r.Range().Contains(t) {
			return r, true
		}
	}
	return model.SessionRange{}, false
}

// Lookup returns the range for a session name.
func (s *Sessions) Lookup(name string) (model.SessionRange, int, bool) {
	for i, r := range s.ranges {
		if r.Name == name {
			return r, i, true
		}
	}
	return model.SessionRange{}, -1, false
}
