// Package model defines the core domain types for race-spoilers.
//
// A race weekend is a handful of named sessions (practice, qualifying, the
// race itself), each known only by its start time. Spoilers for a session are
// considered live from its start until the next session starts; the final
// session stays live for a trailing window of days. Everything else in the
// module is derived from those two ideas:
//
//   - Session ranges: consecutive start times turned into [start, end) spans.
//   - Block state: per race, a blocked flag plus the subset of sessions whose
//     results should stay hidden.
package model

import (
	"sort"
	"time"
)

// DefaultTrailingDays is how long after the final session of a race its
// results stay blocked.
const DefaultTrailingDays = 6

// Session is a single named start time within a race weekend.
type Session struct {
	Name string    `json:"name"`
	Time time.Time `json:"time"`
}

// Range is a span of time. Containment checks are strict on both ends.
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether start < t < end.
func (r Range) Contains(t time.Time) bool {
	return r.Start.Before(t) && t.Before(r.End)
}

// SessionRange is a Session together with the span during which its result
// is a spoiler. Start always equals Time.
type SessionRange struct {
	Name  string    `json:"name"`
	Time  time.Time `json:"time"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Range returns the span of the session range.
func (s SessionRange) Range() Range {
	return Range{Start: s.Start, End: s.End}
}

// RaceRecord is the serialized form of a race. It is both the bundled
// calendar entry and the persisted/wire shape. Sessions are kept as a
// name -> start time mapping so ranges are always re-derived on load.
type RaceRecord struct {
	Name            string               `json:"name"`
	Location        string               `json:"location"`
	Latitude        float64              `json:"latitude"`
	Longitude       float64              `json:"longitude"`
	Round           int                  `json:"round"`
	Slug            string               `json:"slug"`
	Sessions        map[string]time.Time `json:"sessions"`
	Blocked         bool                 `json:"blocked"`
	BlockedSessions []string             `json:"blockedSessions"`
}

// SessionList returns the record's sessions ordered by time, ties broken by
// name so the order never depends on map iteration.
func (r RaceRecord) SessionList() []Session {
	out := make([]Session, 0, len(r.Sessions))
	for name, t := range r.Sessions {
		out = append(out, Session{Name: name, Time: t})
	}
	SortSessions(out)
	return out
}

// SortSessions orders sessions chronologically, breaking ties by name.
func SortSessions(sessions []Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		if !sessions[i].Time.Equal(sessions[j].Time) {
			return sessions[i].Time.Before(sessions[j].Time)
		}
		return sessions[i].Name < sessions[j].Name
	})
}

// Calendar is one season of bundled race data.
type Calendar struct {
	Races []RaceRecord `json:"races"`
}

// State is the single durable record shared by every execution context.
type State struct {
	Races []RaceRecord `json:"races"`
}

// BlockedQuery is the answer to "is this instant a spoiler": the race and
// the session whose result would be revealed.
type BlockedQuery struct {
	Race    RaceRecord   `json:"race"`
	Session SessionRange `json:"session"`
}

// Update is pushed to subscribers after block state changes so they can
// re-evaluate content in the affected span without refetching everything.
type Update struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// SessionNames maps calendar session keys to display names.
var SessionNames = map[string]string{
	"fp1":              "Free Practice 1",
	"fp2":              "Free Practice 2",
	"fp3":              "Free Practice 3",
	"qualifying":       "Qualifying",
	"sprintQualifying": "Sprint Qualifying",
	"gp":               "Race",
}

// SessionDisplayName returns the display name for a session key, or the key
// itself when it has none.
func SessionDisplayName(key string) string {
	if name, ok := SessionNames[key]; ok {
		return name
	}
	return key
}
