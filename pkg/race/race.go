package race

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/bmease/race-spoilers/pkg/clock"
	"github.com/bmease/race-spoilers/pkg/model"
)

// Race is one race weekend: identity, sessions and block state.
// Identity is (Name, Round); names repeat across seasons.
//
// Block state obeys one invariant: BlockedSessions is only non-empty while
// Blocked is true.
type Race struct {
	Name      string
	Location  string
	Latitude  float64
	Longitude float64
	Round     int
	Slug      string

	sessions        *Sessions
	raw             map[string]time.Time
	blocked         bool
	blockedSessions []string
}

// New builds a Race from its serialized form, re-deriving session ranges
// from the raw start times. Unknown names in BlockedSessions are dropped.
func New(rec model.RaceRecord, trailingDays int) *Race {
	raw := make(map[string]time.Time, len(rec.Sessions))
	for name, t := range rec.Sessions {
		raw[name] = t
	}
	r := &Race{
		Name:      rec.Name,
		Location:  rec.Location,
		Latitude:  rec.Latitude,
		Longitude: rec.Longitude,
		Round:     rec.Round,
		Slug:      rec.Slug,
		sessions:  NewSessions(rec.SessionList(), trailingDays),
		raw:       raw,
	}
	r.SetBlocked(rec.Blocked, rec.BlockedSessions)
	return r
}

// Record serializes the race. Sessions go back out as name -> start time.
func (r *Race) Record() model.RaceRecord {
	sessions := make(map[string]time.Time, len(r.raw))
	for name, t := range r.raw {
		sessions[name] = t
	}
	blocked := make([]string, len(r.blockedSessions))
	copy(blocked, r.blockedSessions)
	return model.RaceRecord{
		Name:            r.Name,
		Location:        r.Location,
		Latitude:        r.Latitude,
		Longitude:       r.Longitude,
		Round:           r.Round,
		Slug:            r.Slug,
		Sessions:        sessions,
		Blocked:         r.blocked,
		BlockedSessions: blocked,
	}
}

// Clone returns an independent copy of the race.
func (r *Race) Clone() *Race {
	return New(r.Record(), r.sessions.trailingDays)
}

// MarshalJSON encodes the race in its serialized record form.
func (r *Race) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Record())
}

func (r *Race) String() string {
	return fmt.Sprintf("%s (round %d)", r.Name, r.Round)
}

// Sessions returns the race's session calendar.
func (r *Race) Sessions() *Sessions { return r.sessions }

// SessionNames returns session names in chronological order.
func (r *Race) SessionNames() []string {
	ranges := r.sessions.ranges
	out := make([]string, len(ranges))
	for i, s := range ranges {
		out[i] = s.Name
	}
	return out
}

// HasSession reports whether the race has a session with this name.
func (r *Race) HasSession(name string) bool {
	_, ok := r.raw[name]
	return ok
}

// Range spans the first session's start to the last session's start.
func (r *Race) Range() model.Range {
	ranges := r.sessions.ranges
	if len(ranges) == 0 {
		return model.Range{}
	}
	return model.Range{Start: ranges[0].Time, End: ranges[len(ranges)-1].Time}
}

// BlockedRange spans the first session's start to the end of the last
// session's trailing window.
func (r *Race) BlockedRange() model.Range {
	ranges := r.sessions.ranges
	if len(ranges) == 0 {
		return model.Range{}
	}
	return model.Range{Start: ranges[0].Start, End: ranges[len(ranges)-1].End}
}

// DayRange widens Range to whole calendar days in loc (time.Local if nil).
func (r *Race) DayRange(loc *time.Location) model.Range {
	return toDays(r.Range(), loc)
}

// BlockedDayRange widens BlockedRange to whole calendar days in loc.
func (r *Race) BlockedDayRange(loc *time.Location) model.Range {
	return toDays(r.BlockedRange(), loc)
}

func toDays(rg model.Range, loc *time.Location) model.Range {
	if loc == nil {
		loc = time.Local
	}
	return model.Range{
		Start: clock.StartOfDay(rg.Start, loc),
		End:   clock.EndOfDay(rg.End, loc),
	}
}

// FirstSession returns the earliest session name, or "" if there are none.
func (r *Race) FirstSession() string {
	ranges := r.sessions.ranges
	if len(ranges) == 0 {
		return ""
	}
	return ranges[0].Name
}

// LastSession returns the latest session name, or "" if there are none.
func (r *Race) LastSession() string {
	ranges := r.sessions.ranges
	if len(ranges) == 0 {
		return ""
	}
	return ranges[len(ranges)-1].Name
}

// NextSessionKey returns the session after name in chronological order.
func (r *Race) NextSessionKey(name string) (string, bool) {
	_, i, ok := r.sessions.Lookup(name)
	if !ok || i+1 >= len(r.sessions.ranges) {
		return "", false
	}
	return r.sessions.ranges[i+1].Name, true
}

// PreviousSessionKey returns the session before name in chronological order.
func (r *Race) PreviousSessionKey(name string) (string, bool) {
	_, i, ok := r.sessions.Lookup(name)
	if !ok || i == 0 {
		return "", false
	}
	return r.sessions.ranges[i-1].Name, true
}

// BlockedSessionRange returns the span during which the named session's
// result is a spoiler: its start until the next session, or until the
// trailing window closes for the last session.
func (r *Race) BlockedSessionRange(name string) (model.Range, bool) {
	s, _, ok := r.sessions.Lookup(name)
	if !ok {
		return model.Range{}, false
	}
	return s.Range(), true
}

// IsDuringRace reports whether BlockedRange strictly contains t.
func (r *Race) IsDuringRace(t time.Time) bool {
	if r.sessions.Len() == 0 {
		return false
	}
	return r.BlockedRange().Contains(t)
}

// SessionDuring returns the session whose blocked range strictly contains t.
func (r *Race) SessionDuring(t time.Time) (model.SessionRange, bool) {
	return r.sessions.SessionDuring(t)
}

// Blocked reports whether the race is blocked.
func (r *Race) Blocked() bool { return r.blocked }

// BlockedSessions returns the blocked session names in chronological order.
func (r *Race) BlockedSessions() []string {
	out := make([]string, len(r.blockedSessions))
	copy(out, r.blockedSessions)
	return out
}

// IsBlockedSession reports whether name is listed as blocked.
func (r *Race) IsBlockedSession(name string) bool {
	for _, s := range r.blockedSessions {
		if s == name {
			return true
		}
	}
	return false
}

// SetBlocked replaces the block state. Unblocking always clears the session
// list; sessions the race does not have are ignored.
func (r *Race) SetBlocked(blocked bool, sessions []string) {
	r.blocked = blocked
	if !blocked {
		r.blockedSessions = nil
		return
	}
	want := make(map[string]bool, len(sessions))
	for _, s := range sessions {
		want[s] = true
	}
	kept := make([]string, 0, len(want))
	for _, name := range r.SessionNames() {
		if want[name] {
			kept = append(kept, name)
		}
	}
	r.blockedSessions = kept
}

// BlockSession adds name to the blocked sessions, blocking the race if it
// was not already. It reports whether anything changed.
func (r *Race) BlockSession(name string) bool {
	if r.blocked && r.IsBlockedSession(name) {
		return false
	}
	r.SetBlocked(true, append(r.BlockedSessions(), name))
	return true
}

// UnblockSession removes name from the blocked sessions and reports whether
// anything changed. The race itself stays blocked.
func (r *Race) UnblockSession(name string) bool {
	if !r.IsBlockedSession(name) {
		return false
	}
	kept := make([]string, 0, len(r.blockedSessions))
	for _, s := range r.blockedSessions {
		if s != name {
			kept = append(kept, s)
		}
	}
	r.blockedSessions = kept
	return true
}
