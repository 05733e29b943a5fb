package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/bmease/race-spoilers/pkg/clock"
	"github.com/bmease/race-spoilers/pkg/model"
	"github.com/bmease/race-spoilers/pkg/race"
	"github.com/bmease/race-spoilers/pkg/registry"
	"github.com/bmease/race-spoilers/pkg/store"
)

// fakeRegistry records the last mutation it was asked to make.
type fakeRegistry struct {
	races   []*race.Race
	blocked *model.BlockedQuery
	queried time.Time

	setName    string
	setRound   int
	setSession string
	setValue   bool
	setErr     error

	reloads   int
	reloadErr error
}

func (f *fakeRegistry) Reload(context.Context) error {
	f.reloads++
	return f.reloadErr
}

func (f *fakeRegistry) QueryBlockedTime(t time.Time) *model.BlockedQuery {
	f.queried = t
	return f.blocked
}
func (f *fakeRegistry) Calendar() []*race.Race      { return f.races }
func (f *fakeRegistry) CurrentRace() *race.Race     { return nil }
func (f *fakeRegistry) NextRace() *race.Race        { return f.races[0] }
func (f *fakeRegistry) PreviousRaces() []*race.Race { return []*race.Race{} }
func (f *fakeRegistry) UpcomingRaces() []*race.Race { return f.races[1:] }

func (f *fakeRegistry) Race(name string, round int) (*race.Race, error) {
	for _, rc := range f.races {
		if rc.Name == name && rc.Round == round {
			return rc, nil
		}
	}
	return nil, fmt.Errorf("%w: race %q round %d", registry.ErrNotFound, name, round)
}

func (f *fakeRegistry) SetBlockedRace(_ context.Context, name string, round int, value bool) error {
	f.setName, f.setRound, f.setValue = name, round, value
	return f.setErr
}

func (f *fakeRegistry) SetBlockedSession(_ context.Context, name string, round int, session string, value bool) error {
	f.setName, f.setRound, f.setSession, f.setValue = name, round, session, value
	return f.setErr
}

func newFake() *fakeRegistry {
	mk := func(name string, round int, day int) *race.Race {
		return race.New(model.RaceRecord{
			Name:  name,
			Round: round,
			Sessions: map[string]time.Time{
				"gp": time.Date(2021, 5, day, 13, 0, 0, 0, time.UTC),
			},
		}, 6)
	}
	return &fakeRegistry{races: []*race.Race{
		mk("Spanish Grand Prix", 1, 9),
		mk("Monaco Grand Prix", 2, 23),
	}}
}

func request(t *testing.T, typ string, payload string) Request {
	t.Helper()
	req := Request{Type: typ}
	if payload != "" {
		req.Payload = json.RawMessage(payload)
	}
	return req
}

// --- Type validation ---

func TestParseMessageType(t *testing.T) {
	for _, mt := range MessageTypes {
		got, err := ParseMessageType(string(mt))
		if err != nil || got != mt {
			t.Fatalf("ParseMessageType(%q) = %q, %v", mt, got, err)
		}
	}
	if _, err := ParseMessageType(""); !errors.Is(err, ErrMissingType) {
		t.Fatalf("empty tag err = %v, want ErrMissingType", err)
	}
	if _, err := ParseMessageType("get_calendar"); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("lowercase tag err = %v, want ErrUnknownType", err)
	}
}

func TestHandle_RejectsBadTags(t *testing.T) {
	fake := newFake()
	rt := New(fake, nil)

	cases := []struct {
		name string
		typ  string
		want error
	}{
		{"missing", "", ErrMissingType},
		{"unknown", "DELETE_EVERYTHING", ErrUnknownType},
		{"push only", "UPDATE_BLOCKED_RACE", ErrPushOnly},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := rt.Handle(context.Background(), request(t, tc.typ, `{"name":"Monaco Grand Prix","round":2,"value":true}`))
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
			if fake.setName != "" {
				t.Fatal("rejected request must not reach the registry")
			}
		})
	}
}

// --- Params ---

func TestHandle_RoundAcceptsNumberOrString(t *testing.T) {
	rt := New(newFake(), nil)
	for _, payload := range []string{
		`{"name":"Monaco Grand Prix","round":2}`,
		`{"name":"Monaco Grand Prix","round":"2"}`,
		`{"name":"Monaco Grand Prix","round":" 2 "}`,
	} {
		got, err := rt.Handle(context.Background(), request(t, "GET_RACE", payload))
		if err != nil {
			t.Fatalf("%s: %v", payload, err)
		}
		if rc := got.(*race.Race); rc.Round != 2 {
			t.Fatalf("%s: round = %d", payload, rc.Round)
		}
	}
}

func TestHandle_InvalidParams(t *testing.T) {
	rt := New(newFake(), nil)

	cases := []struct {
		name    string
		typ     string
		payload string
	}{
		{"round not numeric", "GET_RACE", `{"name":"Monaco Grand Prix","round":"two"}`},
		{"round missing", "GET_RACE", `{"name":"Monaco Grand Prix"}`},
		{"round negative", "GET_RACE", `{"name":"Monaco Grand Prix","round":-1}`},
		{"name missing", "GET_RACE", `{"round":2}`},
		{"no payload", "GET_RACE", ``},
		{"payload not an object", "GET_RACE", `[1,2]`},
		{"value missing", "SET_BLOCKED_RACE", `{"name":"Monaco Grand Prix","round":2}`},
		{"value not bool", "SET_BLOCKED_RACE", `{"name":"Monaco Grand Prix","round":2,"value":"yes"}`},
		{"session missing", "SET_BLOCKED_SESSION", `{"name":"Monaco Grand Prix","round":2,"value":true}`},
		{"time missing", "QUERY_BLOCKED_TIME", `{}`},
		{"time malformed", "QUERY_BLOCKED_TIME", `{"time":"yesterday"}`},
		{"time overflows int64", "QUERY_BLOCKED_TIME", `{"time":1.5e300}`},
		{"time integer overflows int64", "QUERY_BLOCKED_TIME", `{"time":99999999999999999999}`},
		{"time fractional ms", "QUERY_BLOCKED_TIME", `{"time":1621713600000.5}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := rt.Handle(context.Background(), request(t, tc.typ, tc.payload))
			if !errors.Is(err, ErrInvalidParams) {
				t.Fatalf("err = %v, want ErrInvalidParams", err)
			}
		})
	}
}

func TestHandle_QueryTimeFormats(t *testing.T) {
	want := time.Date(2021, 5, 22, 20, 0, 0, 0, time.UTC)
	cases := []struct {
		name    string
		payload string
	}{
		{"rfc3339", `{"time":"2021-05-22T20:00:00Z"}`},
		{"rfc3339 offset", `{"time":"2021-05-22T22:00:00+02:00"}`},
		{"fractional", `{"time":"2021-05-22T20:00:00.000Z"}`},
		{"unix ms", fmt.Sprintf(`{"time":%d}`, want.UnixMilli())},
		{"unix ms exponent", `{"time":1.6217136e12}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fake := newFake()
			rt := New(fake, nil)
			if _, err := rt.Handle(context.Background(), request(t, "QUERY_BLOCKED_TIME", tc.payload)); err != nil {
				t.Fatal(err)
			}
			if !fake.queried.Equal(want) {
				t.Fatalf("queried %v, want %v", fake.queried, want)
			}
		})
	}
}

// --- Dispatch ---

func TestHandle_Mutations(t *testing.T) {
	fake := newFake()
	rt := New(fake, nil)
	ctx := context.Background()

	got, err := rt.Handle(ctx, request(t, "SET_BLOCKED_RACE", `{"name":"Monaco Grand Prix","round":"2","value":false}`))
	if err != nil || got != nil {
		t.Fatalf("SET_BLOCKED_RACE = %v, %v", got, err)
	}
	if fake.setName != "Monaco Grand Prix" || fake.setRound != 2 || fake.setValue {
		t.Fatalf("registry saw %q/%d/%v", fake.setName, fake.setRound, fake.setValue)
	}

	_, err = rt.Handle(ctx, request(t, "SET_BLOCKED_SESSION", `{"name":"Monaco Grand Prix","round":2,"session":"qualifying","value":true}`))
	if err != nil {
		t.Fatal(err)
	}
	if fake.setSession != "qualifying" || !fake.setValue {
		t.Fatalf("registry saw session %q value %v", fake.setSession, fake.setValue)
	}

	fake.setErr = fmt.Errorf("%w: session", registry.ErrNotFound)
	_, err = rt.Handle(ctx, request(t, "SET_BLOCKED_SESSION", `{"name":"Monaco Grand Prix","round":2,"session":"sprint","value":true}`))
	if !errors.Is(err, registry.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestHandle_Queries(t *testing.T) {
	fake := newFake()
	rt := New(fake, nil)
	ctx := context.Background()

	got, err := rt.Handle(ctx, request(t, "GET_CALENDAR", ""))
	if err != nil || len(got.([]*race.Race)) != 2 {
		t.Fatalf("GET_CALENDAR = %v, %v", got, err)
	}

	// A missing race must be an untyped nil so it encodes as null.
	got, err = rt.Handle(ctx, request(t, "GET_CURRENT_RACE", "null"))
	if err != nil || got != nil {
		t.Fatalf("GET_CURRENT_RACE = %#v, %v", got, err)
	}
	b, _ := json.Marshal(got)
	if string(b) != "null" {
		t.Fatalf("encoded = %s", b)
	}

	got, err = rt.Handle(ctx, request(t, "GET_NEXT_RACE", ""))
	if err != nil || got.(*race.Race).Round != 1 {
		t.Fatalf("GET_NEXT_RACE = %v, %v", got, err)
	}

	got, err = rt.Handle(ctx, request(t, "QUERY_BLOCKED_TIME", `{"time":"2021-05-01T00:00:00Z"}`))
	if err != nil || got != nil {
		t.Fatalf("QUERY_BLOCKED_TIME = %#v, %v", got, err)
	}

	_, err = rt.Handle(ctx, request(t, "GET_RACE", `{"name":"Monaco Grand Prix","round":7}`))
	if !errors.Is(err, registry.ErrNotFound) {
		t.Fatalf("GET_RACE err = %v, want ErrNotFound", err)
	}
}

func TestCode(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{ErrMissingType, CodeMissingType},
		{fmt.Errorf("%w: x", ErrUnknownType), CodeUnknownType},
		{ErrPushOnly, CodePushOnly},
		{fmt.Errorf("%w: x", ErrInvalidParams), CodeInvalidParams},
		{fmt.Errorf("wrap: %w", registry.ErrNotFound), CodeNotFound},
		{errors.New("disk full"), CodeInternal},
	}
	for _, tc := range cases {
		if got := Code(tc.err); got != tc.want {
			t.Fatalf("Code(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestNewRequest(t *testing.T) {
	req, err := NewRequest(GetRace, RaceParams{Name: "Monaco Grand Prix", Round: 2})
	if err != nil {
		t.Fatal(err)
	}
	if req.Type != "GET_RACE" || string(req.Payload) != `{"name":"Monaco Grand Prix","round":2}` {
		t.Fatalf("req = %s %s", req.Type, req.Payload)
	}
	req, _ = NewRequest(GetCalendar, nil)
	if req.Payload != nil {
		t.Fatalf("payload = %s, want none", req.Payload)
	}
}

// --- End to end ---

func TestRouter_BlockingNotifiesSubscribers(t *testing.T) {
	ctx := context.Background()
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	hub := NewHub(4, nil)
	reg := registry.New(st, registry.Options{
		Location: time.UTC,
		Clock:    clock.NewManual(time.Date(2021, 5, 1, 0, 0, 0, 0, time.UTC)),
		Notifier: hub,
	})
	if err := reg.Load(ctx); err != nil {
		t.Fatal(err)
	}
	rt := New(reg, nil)

	id, ch := hub.Subscribe()
	defer hub.Unsubscribe(id)

	req, _ := NewRequest(SetBlockedSession, map[string]any{
		"name": "Monaco Grand Prix", "round": "5", "session": "qualifying", "value": true,
	})
	if _, err := rt.Handle(ctx, req); err != nil {
		t.Fatalf("SET_BLOCKED_SESSION: %v", err)
	}

	select {
	case msg := <-ch:
		if msg.Type != UpdateBlockedRace {
			t.Fatalf("type = %s", msg.Type)
		}
		if msg.Payload.Start.IsZero() || !msg.Payload.End.After(msg.Payload.Start) {
			t.Fatalf("payload = %+v", msg.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("no update pushed")
	}

	// A time inside Monaco qualifying is now a spoiler.
	req, _ = NewRequest(QueryBlockedTime, map[string]any{"time": "2021-05-22T20:00:00Z"})
	got, err := rt.Handle(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	q, ok := got.(*model.BlockedQuery)
	if !ok || q.Session.Name != "qualifying" || q.Race.Round != 5 {
		t.Fatalf("QUERY_BLOCKED_TIME = %#v", got)
	}
}

func TestHandle_ReloadsBeforeEachRequest(t *testing.T) {
	fake := newFake()
	rt := New(fake, nil)
	ctx := context.Background()

	rt.Handle(ctx, request(t, "GET_CALENDAR", ""))
	rt.Handle(ctx, request(t, "SET_BLOCKED_RACE", `{"name":"Monaco Grand Prix","round":2,"value":true}`))
	if fake.reloads != 2 {
		t.Fatalf("reloads = %d, want 2", fake.reloads)
	}
	rt.Handle(ctx, request(t, "UPDATE_BLOCKED_RACE", ""))
	rt.Handle(ctx, request(t, "", ""))
	if fake.reloads != 2 {
		t.Fatalf("rejected requests reloaded: %d", fake.reloads)
	}

	fake.reloadErr = errors.New("disk gone")
	fake.setName = ""
	_, err := rt.Handle(ctx, request(t, "SET_BLOCKED_RACE", `{"name":"Monaco Grand Prix","round":2,"value":true}`))
	if err == nil || Code(err) != CodeInternal {
		t.Fatalf("err = %v, want internal", err)
	}
	if fake.setName != "" {
		t.Fatal("a failed reload must not reach the mutation")
	}
}

func TestRouter_SeesWritesFromAnotherProcess(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shared.db")
	open := func(n registry.Notifier) *registry.Registry {
		st, err := store.New(path)
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { st.Close() })
		reg := registry.New(st, registry.Options{
			Location: time.UTC,
			Clock:    clock.NewManual(time.Date(2021, 5, 1, 0, 0, 0, 0, time.UTC)),
			Notifier: n,
		})
		if err := reg.Load(ctx); err != nil {
			t.Fatal(err)
		}
		return reg
	}
	hub := NewHub(4, nil)
	served := open(hub)
	cli := open(nil)
	rt := New(served, nil)

	id, ch := hub.Subscribe()
	defer hub.Unsubscribe(id)

	if err := cli.SetBlockedRace(ctx, "Monaco Grand Prix", 5, true); err != nil {
		t.Fatal(err)
	}

	req, _ := NewRequest(QueryBlockedTime, map[string]any{"time": "2021-05-22T14:00:00Z"})
	got, err := rt.Handle(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if q, ok := got.(*model.BlockedQuery); !ok || q.Race.Round != 5 {
		t.Fatalf("QUERY_BLOCKED_TIME = %#v, want Monaco blocked", got)
	}
	select {
	case msg := <-ch:
		if msg.Type != UpdateBlockedRace {
			t.Fatalf("type = %s", msg.Type)
		}
	default:
		t.Fatal("subscriber not told about the block made elsewhere")
	}

	// A mutation through the served router keeps the other block.
	req, _ = NewRequest(SetBlockedRace, map[string]any{"name": "Spanish Grand Prix", "round": 4, "value": true})
	if _, err := rt.Handle(ctx, req); err != nil {
		t.Fatal(err)
	}
	if err := cli.Reload(ctx); err != nil {
		t.Fatal(err)
	}
	for _, want := range []struct {
		name  string
		round int
	}{{"Spanish Grand Prix", 4}, {"Monaco Grand Prix", 5}} {
		rc, err := cli.Race(want.name, want.round)
		if err != nil {
			t.Fatal(err)
		}
		if !rc.Blocked() {
			t.Fatalf("%s not blocked in the shared store", want.name)
		}
	}
}
