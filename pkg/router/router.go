// Package router dispatches tagged messages to a registry and fans block
// state notifications out to subscribers.
package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/bmease/race-spoilers/pkg/model"
	"github.com/bmease/race-spoilers/pkg/race"
	"github.com/bmease/race-spoilers/pkg/registry"
)

// Registry is the set of registry operations reachable by message.
// Reload runs before every request so a long-lived router answers from the
// shared store rather than the copy it loaded at startup.
type Registry interface {
	Reload(ctx context.Context) error
	QueryBlockedTime(t time.Time) *model.BlockedQuery
	Calendar() []*race.Race
	CurrentRace() *race.Race
	NextRace() *race.Race
	PreviousRaces() []*race.Race
	UpcomingRaces() []*race.Race
	Race(name string, round int) (*race.Race, error)
	SetBlockedRace(ctx context.Context, name string, round int, value bool) error
	SetBlockedSession(ctx context.Context, name string, round int, session string, value bool) error
}

var _ Registry = (*registry.Registry)(nil)

// Router validates requests and forwards them to a Registry.
type Router struct {
	reg Registry
	log zerolog.Logger
}

// New returns a Router over reg. A nil logger disables logging.
func New(reg Registry, logger *zerolog.Logger) *Router {
	rt := &Router{reg: reg, log: zerolog.Nop()}
	if logger != nil {
		rt.log = logger.With().Str("component", "router").Logger()
	}
	return rt
}

// Handle validates req and runs it. Queries with no answer return a nil
// result; mutations always return a nil result.
func (rt *Router) Handle(ctx context.Context, req Request) (any, error) {
	t, err := ParseMessageType(req.Type)
	if err != nil {
		rt.log.Warn().Err(err).Str("type", req.Type).Msg("rejected request")
		return nil, err
	}
	if !t.IsPush() {
		if err := rt.reg.Reload(ctx); err != nil {
			rt.log.Error().Err(err).Str("type", string(t)).Msg("reload before request")
			return nil, err
		}
	}
	result, err := rt.dispatch(ctx, t, req)
	if err != nil {
		rt.log.Debug().Err(err).Str("type", string(t)).Msg("request failed")
		return nil, err
	}
	rt.log.Debug().Str("type", string(t)).Msg("handled request")
	return result, nil
}

func (rt *Router) dispatch(ctx context.Context, t MessageType, req Request) (any, error) {
	switch t {
	case QueryBlockedTime:
		var p QueryParams
		if err := decodeParams(t, req.Payload, &p); err != nil {
			return nil, err
		}
		if q := rt.reg.QueryBlockedTime(p.Time.Time); q != nil {
			return q, nil
		}
		return nil, nil

	case GetCalendar:
		return rt.reg.Calendar(), nil

	case GetCurrentRace:
		return optional(rt.reg.CurrentRace()), nil

	case GetNextRace:
		return optional(rt.reg.NextRace()), nil

	case GetPreviousRaces:
		return rt.reg.PreviousRaces(), nil

	case GetUpcomingRaces:
		return rt.reg.UpcomingRaces(), nil

	case GetRace:
		var p RaceParams
		if err := decodeParams(t, req.Payload, &p); err != nil {
			return nil, err
		}
		rc, err := rt.reg.Race(p.Name, int(p.Round))
		if err != nil {
			return nil, err
		}
		return rc, nil

	case SetBlockedRace:
		var p BlockRaceParams
		if err := decodeParams(t, req.Payload, &p); err != nil {
			return nil, err
		}
		return nil, rt.reg.SetBlockedRace(ctx, p.Name, int(p.Round), *p.Value)

	case SetBlockedSession:
		var p BlockSessionParams
		if err := decodeParams(t, req.Payload, &p); err != nil {
			return nil, err
		}
		return nil, rt.reg.SetBlockedSession(ctx, p.Name, int(p.Round), p.Session, *p.Value)

	case UpdateBlockedRace:
		return nil, fmt.Errorf("%w: %s", ErrPushOnly, t)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
}

// optional keeps a missing race an untyped nil so it encodes as null.
func optional(rc *race.Race) any {
	if rc == nil {
		return nil
	}
	return rc
}

// Error codes reported to remote callers.
const (
	CodeMissingType   = "missing_type"
	CodeUnknownType   = "unknown_type"
	CodePushOnly      = "push_only"
	CodeInvalidParams = "invalid_params"
	CodeNotFound      = "not_found"
	CodeInternal      = "internal"
)

// Code classifies err for a remote caller.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrMissingType):
		return CodeMissingType
	case errors.Is(err, ErrUnknownType):
		return CodeUnknownType
	case errors.Is(err, ErrPushOnly):
		return CodePushOnly
	case errors.Is(err, ErrInvalidParams):
		return CodeInvalidParams
	case errors.Is(err, registry.ErrNotFound):
		return CodeNotFound
	default:
		return CodeInternal
	}
}
