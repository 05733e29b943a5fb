package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bmease/race-spoilers/pkg/model"
	"github.com/bmease/race-spoilers/pkg/race"
)

const (
	dayFormat     = "Mon 02 Jan"
	sessionFormat = "Mon 02 Jan 15:04"
)

// blockMarker summarizes a race's block state for one-line output.
func blockMarker(rc *race.Race) string {
	if !rc.Blocked() {
		return ""
	}
	sessions := rc.BlockedSessions()
	if len(sessions) == len(rc.SessionNames()) {
		return "[blocked]"
	}
	if len(sessions) == 0 {
		return "[blocked: none]"
	}
	return "[blocked: " + strings.Join(sessions, ", ") + "]"
}

// printRaceLine writes one race as a single line.
func printRaceLine(w io.Writer, rc *race.Race, loc *time.Location) {
	days := rc.DayRange(loc)
	fmt.Fprintf(w, "  %2d  %-28s %s - %s  %s\n",
		rc.Round, rc.Name,
		days.Start.Format(dayFormat), days.End.Format(dayFormat),
		blockMarker(rc))
}

// printRaceList writes races one per line, or a placeholder when empty.
func printRaceList(w io.Writer, races []*race.Race, loc *time.Location) {
	if len(races) == 0 {
		fmt.Fprintln(w, "  none")
		return
	}
	for _, rc := range races {
		printRaceLine(w, rc, loc)
	}
}

// printRaceDetail writes a race and its sessions, marking blocked ones.
func printRaceDetail(w io.Writer, rc *race.Race, loc *time.Location) {
	fmt.Fprintf(w, "%s (round %d)", rc.Name, rc.Round)
	if rc.Location != "" {
		fmt.Fprintf(w, "  %s", rc.Location)
	}
	if m := blockMarker(rc); m != "" {
		fmt.Fprintf(w, "  %s", m)
	}
	fmt.Fprintln(w)
	for _, s := range rc.Sessions().Ranges() {
		marker := ""
		if rc.IsBlockedSession(s.Name) {
			marker = "  blocked until " + s.End.In(loc).Format(sessionFormat)
		}
		fmt.Fprintf(w, "  %-18s %s%s\n",
			model.SessionDisplayName(s.Name), s.Time.In(loc).Format(sessionFormat), marker)
	}
}

// printBlocked writes the answer to a spoiler query.
func printBlocked(w io.Writer, q *model.BlockedQuery, loc *time.Location) {
	fmt.Fprintf(w, "BLOCKED: %s %s (round %d) until %s\n",
		model.SessionDisplayName(q.Session.Name), q.Race.Name, q.Race.Round,
		q.Session.End.In(loc).Format(sessionFormat))
}
