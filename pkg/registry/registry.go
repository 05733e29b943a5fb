// Package registry owns the race calendar of one execution context and
// enforces the blocking rules on it.
//
// A Registry is the single owner of its in-memory races. Every exported
// method takes the registry lock, so goroutines in one process observe
// operations in a total order. Other processes hold their own Registry;
// the only thing shared between them is the store, where the last writer
// wins. Mutations re-read the store before applying a change, and Reload
// picks up writes made elsewhere for queries.
package registry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bmease/race-spoilers/pkg/calendar"
	"github.com/bmease/race-spoilers/pkg/clock"
	"github.com/bmease/race-spoilers/pkg/model"
	"github.com/bmease/race-spoilers/pkg/race"
	"github.com/bmease/race-spoilers/pkg/store"
)

// ErrNotFound is returned when no race (or session) matches a lookup.
var ErrNotFound = errors.New("not found")

// Notifier receives an update after every block state change.
type Notifier interface {
	Post(ctx context.Context, u model.Update)
}

// CalendarSource returns the bundled races for a season.
type CalendarSource func(season int) ([]model.RaceRecord, error)

// Options configures a Registry. Zero values select the defaults noted on
// each field.
type Options struct {
	Season       int            // bundled season to install (default 2021)
	TrailingDays int            // days blocked after the last session (default 6)
	Location     *time.Location // calendar-day boundaries (default time.Local)
	Clock        clock.Clock    // default clock.System
	Logger       *zerolog.Logger
	Notifier     Notifier       // may be nil
	Calendar     CalendarSource // default calendar.Load
}

// DefaultSeason is the season installed when Options.Season is unset.
const DefaultSeason = 2021

// Registry holds the race collection.
type Registry struct {
	mu    sync.Mutex
	races []*race.Race

	store        store.StoreInterface
	season       int
	trailingDays int
	loc          *time.Location
	clock        clock.Clock
	log          zerolog.Logger
	notifier     Notifier
	calendar     CalendarSource
}

// New returns an empty Registry backed by st. Call Load before querying.
func New(st store.StoreInterface, opts Options) *Registry {
	r := &Registry{
		store:        st,
		season:       opts.Season,
		trailingDays: opts.TrailingDays,
		loc:          opts.Location,
		clock:        opts.Clock,
		notifier:     opts.Notifier,
		calendar:     opts.Calendar,
		log:          zerolog.Nop(),
	}
	if r.season == 0 {
		r.season = DefaultSeason
	}
	if r.trailingDays <= 0 {
		r.trailingDays = model.DefaultTrailingDays
	}
	if r.loc == nil {
		r.loc = time.Local
	}
	if r.clock == nil {
		r.clock = clock.System{}
	}
	if r.calendar == nil {
		r.calendar = calendar.Load
	}
	if opts.Logger != nil {
		r.log = opts.Logger.With().Str("component", "registry").Logger()
	}
	return r
}

// Season returns the bundled season this registry installs.
func (r *Registry) Season() int { return r.season }

// Location returns the location used for calendar-day boundaries.
func (r *Registry) Location() *time.Location { return r.loc }

// ---------------------------------------------------------------------------
// Persistence
// ---------------------------------------------------------------------------

// Install replaces the in-memory and persisted races with the bundled
// calendar. A calendar that fails to load aborts without touching state.
func (r *Registry) Install(ctx context.Context) error {
	records, err := r.calendar(r.season)
	if err != nil {
		return fmt.Errorf("load bundled calendar: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.races
	r.setRaces(records)
	if err := r.persist(ctx); err != nil {
		r.races = prev
		return err
	}
	r.log.Info().Int("season", r.season).Int("races", len(r.races)).Msg("installed bundled calendar")
	return nil
}

// Load reads races from the store. An empty store is a first run: the
// bundled calendar is installed and persisted instead.
func (r *Registry) Load(ctx context.Context) error {
	records, err := r.store.LoadRaces(ctx)
	if errors.Is(err, store.ErrEmpty) {
		r.log.Info().Msg("store is empty, installing bundled calendar")
		return r.Install(ctx)
	}
	if err != nil {
		return fmt.Errorf("load races: %w", err)
	}

	r.mu.Lock()
	r.setRaces(records)
	n := len(r.races)
	r.mu.Unlock()

	r.log.Debug().Int("races", n).Msg("loaded races from store")
	return nil
}

// Reload re-reads the store to observe writes made by other contexts.
// Every race whose block state changed since the last read is reported to
// the notifier, so subscribers hear about writes made elsewhere.
func (r *Registry) Reload(ctx context.Context) error {
	records, err := r.store.LoadRaces(ctx)
	if errors.Is(err, store.ErrEmpty) {
		r.log.Info().Msg("store was cleared, installing bundled calendar")
		return r.Install(ctx)
	}
	if err != nil {
		return fmt.Errorf("reload races: %w", err)
	}

	r.mu.Lock()
	before := make(map[raceKey]model.RaceRecord, len(r.races))
	for _, rc := range r.races {
		before[raceKey{rc.Name, rc.Round}] = rc.Record()
	}
	r.setRaces(records)
	var updates []model.Update
	for _, rc := range r.races {
		prev := before[raceKey{rc.Name, rc.Round}]
		if prev.Blocked != rc.Blocked() || !slices.Equal(prev.BlockedSessions, rc.BlockedSessions()) {
			updates = append(updates, model.Update(rc.BlockedRange()))
		}
	}
	r.mu.Unlock()

	if len(updates) > 0 {
		r.log.Debug().Int("changed", len(updates)).Msg("reloaded races with outside changes")
	}
	for _, u := range updates {
		r.notify(ctx, u)
	}
	return nil
}

type raceKey struct {
	name  string
	round int
}

// refresh re-reads the store before a mutation so the change applies to
// the latest persisted state. An empty store keeps the in-memory races.
// Must be called with r.mu held.
func (r *Registry) refresh(ctx context.Context) error {
	records, err := r.store.LoadRaces(ctx)
	if errors.Is(err, store.ErrEmpty) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("refresh races: %w", err)
	}
	r.setRaces(records)
	return nil
}

// setRaces must be called with r.mu held.
func (r *Registry) setRaces(records []model.RaceRecord) {
	races := make([]*race.Race, 0, len(records))
	for _, rec := range records {
		races = append(races, race.New(rec, r.trailingDays))
	}
	sort.SliceStable(races, func(i, j int) bool { return races[i].Round < races[j].Round })
	r.races = races
}

// persist must be called with r.mu held.
func (r *Registry) persist(ctx context.Context) error {
	records := make([]model.RaceRecord, len(r.races))
	for i, rc := range r.races {
		records[i] = rc.Record()
	}
	if err := r.store.SaveRaces(ctx, records); err != nil {
		return fmt.Errorf("save races: %w", err)
	}
	r.log.Debug().Int("races", len(records)).Msg("saved races to store")
	return nil
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// QueryBlockedTime decides whether t is a spoiler. It returns the race and
// session only when the race is blocked, t is inside the race's blocked
// range, and the session active at t is one of the race's blocked
// sessions. A nil result means t is safe to show.
//
// Blocked ranges of consecutive races can overlap during the trailing
// window; every blocked race is checked in round order.
func (r *Registry) QueryBlockedTime(t time.Time) *model.BlockedQuery {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rc := range r.races {
		if !rc.Blocked() || !rc.IsDuringRace(t) {
			continue
		}
		session, ok := rc.SessionDuring(t)
		if !ok || !rc.IsBlockedSession(session.Name) {
			continue
		}
		return &model.BlockedQuery{Race: rc.Record(), Session: session}
	}
	return nil
}

// Calendar returns every race ordered by round.
func (r *Registry) Calendar() []*race.Race {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneAll(r.races)
}

// CurrentRace returns the race whose day range contains now, inclusive.
func (r *Registry) CurrentRace() *race.Race {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rc := r.currentRace(r.clock.Now()); rc != nil {
		return rc.Clone()
	}
	return nil
}

// NextRace returns the current race if there is one, otherwise the
// earliest race that has not started yet.
func (r *Registry) NextRace() *race.Race {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rc := r.nextRace(r.clock.Now()); rc != nil {
		return rc.Clone()
	}
	return nil
}

// PreviousRaces returns the races before the next race, or every race once
// the season is over.
func (r *Registry) PreviousRaces() []*race.Race {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.nextRace(r.clock.Now())
	if next == nil {
		return cloneAll(r.races)
	}
	out := []*race.Race{}
	for _, rc := range r.races {
		if rc.Round < next.Round {
			out = append(out, rc.Clone())
		}
	}
	return out
}

// UpcomingRaces returns the races after the next race; none once the
// season is over.
func (r *Registry) UpcomingRaces() []*race.Race {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := []*race.Race{}
	next := r.nextRace(r.clock.Now())
	if next == nil {
		return out
	}
	for _, rc := range r.races {
		if rc.Round > next.Round {
			out = append(out, rc.Clone())
		}
	}
	return out
}

// Race returns the race matching name and round, or ErrNotFound.
func (r *Registry) Race(name string, round int) (*race.Race, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rc, err := r.find(name, round)
	if err != nil {
		return nil, err
	}
	return rc.Clone(), nil
}

func (r *Registry) currentRace(now time.Time) *race.Race {
	for _, rc := range r.races {
		if rc.Sessions().Len() == 0 {
			continue
		}
		days := rc.DayRange(r.loc)
		if !now.Before(days.Start) && !now.After(days.End) {
			return rc
		}
	}
	return nil
}

func (r *Registry) nextRace(now time.Time) *race.Race {
	if rc := r.currentRace(now); rc != nil {
		return rc
	}
	for _, rc := range r.races {
		if rc.Sessions().Len() > 0 && now.Before(rc.Range().Start) {
			return rc
		}
	}
	return nil
}

func (r *Registry) find(name string, round int) (*race.Race, error) {
	for _, rc := range r.races {
		if rc.Name == name && rc.Round == round {
			return rc, nil
		}
	}
	r.log.Warn().Str("race", name).Int("round", round).Msg("race not found")
	return nil, fmt.Errorf("%w: race %q round %d", ErrNotFound, name, round)
}

func cloneAll(races []*race.Race) []*race.Race {
	out := make([]*race.Race, len(races))
	for i, rc := range races {
		out[i] = rc.Clone()
	}
	return out
}
