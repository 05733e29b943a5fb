// Package calendar ships the bundled season calendars and parses them into
// race records.
//
// Each season is a JSON document `{"races": [...]}` embedded at build time
// as data/f1-calendar-<year>.json. A calendar that fails to parse or
// validate is fatal for loading: an empty calendar would silently unblock
// every spoiler.
package calendar

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/bmease/race-spoilers/pkg/model"
)

//go:embed data/*.json
var bundled embed.FS

var (
	// ErrUnknownSeason is returned when no calendar is bundled for a year.
	ErrUnknownSeason = errors.New("no bundled calendar for season")
	// ErrMalformed is returned when calendar data cannot be parsed or fails
	// validation.
	ErrMalformed = errors.New("malformed calendar")
)

var fileRe = regexp.MustCompile(`^f1-calendar-(\d{4})\.json$`)

func fileName(year int) string {
	return fmt.Sprintf("data/f1-calendar-%d.json", year)
}

// Seasons lists the bundled season years in ascending order.
func Seasons() []int {
	entries, err := fs.ReadDir(bundled, "data")
	if err != nil {
		return nil
	}
	var years []int
	for _, e := range entries {
		m := fileRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		y, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// Load parses the bundled calendar for year.
func Load(year int) ([]model.RaceRecord, error) {
	data, err := bundled.ReadFile(fileName(year))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSeason, year)
	}
	if err != nil {
		return nil, fmt.Errorf("read calendar %d: %w", year, err)
	}
	races, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("calendar %d: %w", year, err)
	}
	return races, nil
}

// Parse decodes and validates a calendar document. Races come back sorted by
// round with block state cleared.
func Parse(data []byte) ([]model.RaceRecord, error) {
	var cal model.Calendar
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&cal); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := Validate(cal.Races); err != nil {
		return nil, err
	}

	races := make([]model.RaceRecord, len(cal.Races))
	copy(races, cal.Races)
	for i := range races {
		races[i].Blocked = false
		races[i].BlockedSessions = nil
	}
	sort.SliceStable(races, func(i, j int) bool { return races[i].Round < races[j].Round })
	return races, nil
}

// Validate checks the fields every race needs: a name, a positive round,
// at least one session with a non-zero time, and a unique (name, round).
func Validate(races []model.RaceRecord) error {
	if len(races) == 0 {
		return fmt.Errorf("%w: no races", ErrMalformed)
	}
	seen := make(map[string]bool, len(races))
	for i, r := range races {
		if strings.TrimSpace(r.Name) == "" {
			return fmt.Errorf("%w: race %d has no name", ErrMalformed, i)
		}
		if r.Round <= 0 {
			return fmt.Errorf("%w: race %q has round %d", ErrMalformed, r.Name, r.Round)
		}
		if len(r.Sessions) == 0 {
			return fmt.Errorf("%w: race %q has no sessions", ErrMalformed, r.Name)
		}
		for name, t := range r.Sessions {
			if strings.TrimSpace(name) == "" || t.IsZero() {
				return fmt.Errorf("%w: race %q has an invalid session %q", ErrMalformed, r.Name, name)
			}
		}
		key := r.Name + "\x00" + strconv.Itoa(r.Round)
		if seen[key] {
			return fmt.Errorf("%w: duplicate race %q round %d", ErrMalformed, r.Name, r.Round)
		}
		seen[key] = true
	}
	return nil
}
