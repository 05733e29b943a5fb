package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/bmease/race-spoilers/pkg/model"
	"github.com/bmease/race-spoilers/pkg/race"
)

// SetBlockedRace blocks or unblocks a whole race.
//
// Blocking lists every session. Unblocking a race whose blocked range has
// not closed yet leaves the race blocked with only the sessions that have
// not started, which may be none.
//
// The change is persisted and subscribers are told the race's blocked range.
func (r *Registry) SetBlockedRace(ctx context.Context, name string, round int, value bool) error {
	r.mu.Lock()
	if err := r.refresh(ctx); err != nil {
		r.mu.Unlock()
		return err
	}
	rc, err := r.find(name, round)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	before := rc.Record()
	now := r.clock.Now()

	switch {
	case value:
		rc.SetBlocked(true, rc.SessionNames())
	case rc.Blocked() && now.Before(rc.BlockedRange().End):
		rc.SetBlocked(true, futureSessions(rc, now))
	default:
		rc.SetBlocked(false, nil)
	}

	if err := r.persist(ctx); err != nil {
		r.restore(rc, before)
		r.mu.Unlock()
		return err
	}
	update := model.Update(rc.BlockedRange())
	r.log.Info().
		Str("race", name).
		Int("round", round).
		Bool("value", value).
		Bool("blocked", rc.Blocked()).
		Strs("blocked_sessions", rc.BlockedSessions()).
		Msg("set blocked race")
	r.mu.Unlock()

	r.notify(ctx, update)
	return nil
}

// SetBlockedSession adds or removes one session from a race's blocked
// sessions. Repeating a call is a no-op: nothing is persisted or pushed.
// Blocking a session of an unblocked race blocks the race.
func (r *Registry) SetBlockedSession(ctx context.Context, name string, round int, session string, value bool) error {
	r.mu.Lock()
	if err := r.refresh(ctx); err != nil {
		r.mu.Unlock()
		return err
	}
	rc, err := r.find(name, round)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	if !rc.HasSession(session) {
		r.mu.Unlock()
		r.log.Warn().Str("race", name).Int("round", round).Str("session", session).Msg("session not found")
		return fmt.Errorf("%w: session %q in race %q round %d", ErrNotFound, session, name, round)
	}
	before := rc.Record()

	var changed bool
	if value {
		changed = rc.BlockSession(session)
	} else {
		changed = rc.UnblockSession(session)
	}
	if !changed {
		r.mu.Unlock()
		r.log.Debug().Str("race", name).Int("round", round).Str("session", session).Bool("value", value).Msg("blocked session unchanged")
		return nil
	}

	if err := r.persist(ctx); err != nil {
		r.restore(rc, before)
		r.mu.Unlock()
		return err
	}
	update := model.Update(rc.BlockedRange())
	r.log.Info().
		Str("race", name).
		Int("round", round).
		Str("session", session).
		Bool("value", value).
		Strs("blocked_sessions", rc.BlockedSessions()).
		Msg("set blocked session")
	r.mu.Unlock()

	r.notify(ctx, update)
	return nil
}

// futureSessions lists sessions that start after now, in order.
func futureSessions(rc *race.Race, now time.Time) []string {
	var out []string
	for _, s := range rc.Sessions().Ranges() {
		if s.Time.After(now) {
			out = append(out, s.Name)
		}
	}
	return out
}

// restore rolls back block state after a failed write. Must be called with
// r.mu held.
func (r *Registry) restore(rc *race.Race, before model.RaceRecord) {
	rc.SetBlocked(before.Blocked, before.BlockedSessions)
}

func (r *Registry) notify(ctx context.Context, u model.Update) {
	if r.notifier == nil {
		return
	}
	r.notifier.Post(ctx, u)
}
