package router

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/bmease/race-spoilers/pkg/model"
)

var (
	// ErrMissingType is returned for a request with no type tag.
	ErrMissingType = errors.New("missing message type")
	// ErrUnknownType is returned for a tag outside the message set.
	ErrUnknownType = errors.New("unknown message type")
	// ErrPushOnly is returned when a notification tag is sent as a request.
	ErrPushOnly = errors.New("message type is push-only")
	// ErrInvalidParams is returned when a payload fails validation.
	ErrInvalidParams = errors.New("invalid params")
)

// MessageType tags every request and notification.
type MessageType string

const (
	QueryBlockedTime  MessageType = "QUERY_BLOCKED_TIME"
	GetCalendar       MessageType = "GET_CALENDAR"
	GetCurrentRace    MessageType = "GET_CURRENT_RACE"
	GetNextRace       MessageType = "GET_NEXT_RACE"
	GetPreviousRaces  MessageType = "GET_PREVIOUS_RACES"
	GetUpcomingRaces  MessageType = "GET_UPCOMING_RACES"
	GetRace           MessageType = "GET_RACE"
	SetBlockedRace    MessageType = "SET_BLOCKED_RACE"
	SetBlockedSession MessageType = "SET_BLOCKED_SESSION"

	// UpdateBlockedRace is pushed to subscribers; it is never a request.
	UpdateBlockedRace MessageType = "UPDATE_BLOCKED_RACE"
)

// MessageTypes lists every tag in declaration order.
var MessageTypes = []MessageType{
	QueryBlockedTime,
	GetCalendar,
	GetCurrentRace,
	GetNextRace,
	GetPreviousRaces,
	GetUpcomingRaces,
	GetRace,
	SetBlockedRace,
	SetBlockedSession,
	UpdateBlockedRace,
}

// ParseMessageType validates a raw tag.
func ParseMessageType(s string) (MessageType, error) {
	if s == "" {
		return "", ErrMissingType
	}
	for _, t := range MessageTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
}

// IsPush reports whether t is only ever sent to subscribers.
func (t MessageType) IsPush() bool { return t == UpdateBlockedRace }

// Request is one inbound message. Type is kept raw so that validation
// happens in one place.
type Request struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewRequest builds a request with params encoded as its payload.
func NewRequest(t MessageType, params any) (Request, error) {
	req := Request{Type: string(t)}
	if params == nil {
		return req, nil
	}
	b, err := json.Marshal(params)
	if err != nil {
		return Request{}, fmt.Errorf("encode %s params: %w", t, err)
	}
	req.Payload = b
	return req, nil
}

// Message is a notification pushed to subscribers.
type Message struct {
	Type    MessageType  `json:"type"`
	Payload model.Update `json:"payload"`
}

// ---------------------------------------------------------------------------
// Params
// ---------------------------------------------------------------------------

// Round is a race round that decodes from a JSON number or a numeric
// string.
type Round int

func (r *Round) UnmarshalJSON(b []byte) error {
	s := string(bytes.TrimSpace(b))
	if s == "null" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		s = strings.TrimSpace(str)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("round %s is not an integer", s)
	}
	*r = Round(n)
	return nil
}

// Timestamp decodes from an RFC 3339 string or Unix milliseconds.
type Timestamp struct {
	time.Time
}

func (ts *Timestamp) UnmarshalJSON(b []byte) error {
	s := string(bytes.TrimSpace(b))
	if s == "null" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		t, err := time.Parse(time.RFC3339, str)
		if err != nil {
			return fmt.Errorf("time %q is not RFC 3339", str)
		}
		ts.Time = t
		return nil
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return fmt.Errorf("time %s is not a timestamp", s)
		}
		// Exponent forms are fine as long as they name a whole millisecond
		// that fits in an int64.
		if !(f >= math.MinInt64 && f < math.MaxInt64) {
			return fmt.Errorf("time %s is out of range", s)
		}
		if f != math.Trunc(f) {
			return fmt.Errorf("time %s is not a whole number of milliseconds", s)
		}
		ms = int64(f)
	}
	ts.Time = time.UnixMilli(ms).UTC()
	return nil
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(ts.Time.Format(time.RFC3339Nano))
}

// QueryParams is the payload of QUERY_BLOCKED_TIME.
type QueryParams struct {
	Time Timestamp `json:"time"`
}

func (p QueryParams) validate() error {
	if p.Time.IsZero() {
		return errors.New("time is required")
	}
	return nil
}

// RaceParams is the payload of GET_RACE.
type RaceParams struct {
	Name  string `json:"name"`
	Round Round  `json:"round"`
}

func (p RaceParams) validate() error {
	if p.Name == "" {
		return errors.New("name is required")
	}
	if p.Round <= 0 {
		return errors.New("round must be a positive integer")
	}
	return nil
}

// BlockRaceParams is the payload of SET_BLOCKED_RACE.
type BlockRaceParams struct {
	Name  string `json:"name"`
	Round Round  `json:"round"`
	Value *bool  `json:"value"`
}

func (p BlockRaceParams) validate() error {
	if err := (RaceParams{Name: p.Name, Round: p.Round}).validate(); err != nil {
		return err
	}
	if p.Value == nil {
		return errors.New("value is required")
	}
	return nil
}

// BlockSessionParams is the payload of SET_BLOCKED_SESSION.
type BlockSessionParams struct {
	Name    string `json:"name"`
	Round   Round  `json:"round"`
	Session string `json:"session"`
	Value   *bool  `json:"value"`
}

func (p BlockSessionParams) validate() error {
	if err := (BlockRaceParams{Name: p.Name, Round: p.Round, Value: p.Value}).validate(); err != nil {
		return err
	}
	if p.Session == "" {
		return errors.New("session is required")
	}
	return nil
}

type validator interface {
	validate() error
}

// decodeParams fills p from payload and validates it. Every error wraps
// ErrInvalidParams.
func decodeParams(t MessageType, payload json.RawMessage, p validator) error {
	if len(bytes.TrimSpace(payload)) == 0 {
		payload = json.RawMessage("{}")
	}
	if err := json.Unmarshal(payload, p); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidParams, t, err)
	}
	if err := p.validate(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidParams, t, err)
	}
	return nil
}
