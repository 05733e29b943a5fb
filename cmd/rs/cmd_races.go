package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/bmease/race-spoilers/pkg/race"
	"github.com/bmease/race-spoilers/pkg/router"
)

func (a *app) cmdCalendar(ctx context.Context, args []string) int {
	return a.listRaces(ctx, "calendar", router.GetCalendar, args)
}

func (a *app) cmdPrevious(ctx context.Context, args []string) int {
	return a.listRaces(ctx, "previous", router.GetPreviousRaces, args)
}

func (a *app) cmdUpcoming(ctx context.Context, args []string) int {
	return a.listRaces(ctx, "upcoming", router.GetUpcomingRaces, args)
}

func (a *app) cmdCurrent(ctx context.Context, args []string) int {
	return a.showRace(ctx, "current", router.GetCurrentRace, args)
}

func (a *app) cmdNext(ctx context.Context, args []string) int {
	return a.showRace(ctx, "next", router.GetNextRace, args)
}

// listRaces runs a query returning a race list.
func (a *app) listRaces(ctx context.Context, name string, t router.MessageType, args []string) int {
	flags := flag.NewFlagSet(name, flag.ContinueOnError)
	jsonOut := flags.Bool("json", false, "JSON output")
	if _, err := parseArgs(flags, args); err != nil {
		return 1
	}

	result, err := a.send(ctx, t, nil)
	if err != nil {
		return errorf("%s: %v", name, err)
	}
	races, _ := result.([]*race.Race)

	if *jsonOut {
		printJSON(races)
	} else {
		printRaceList(os.Stdout, races, a.reg.Location())
	}
	return 0
}

// showRace runs a query returning at most one race.
func (a *app) showRace(ctx context.Context, name string, t router.MessageType, args []string) int {
	flags := flag.NewFlagSet(name, flag.ContinueOnError)
	jsonOut := flags.Bool("json", false, "JSON output")
	if _, err := parseArgs(flags, args); err != nil {
		return 1
	}

	result, err := a.send(ctx, t, nil)
	if err != nil {
		return errorf("%s: %v", name, err)
	}
	rc, _ := result.(*race.Race)

	switch {
	case *jsonOut:
		printJSON(result)
	case rc == nil:
		fmt.Printf("no %s race\n", name)
	default:
		printRaceDetail(os.Stdout, rc, a.reg.Location())
	}
	return 0
}

func (a *app) cmdRace(ctx context.Context, args []string) int {
	flags := flag.NewFlagSet("race", flag.ContinueOnError)
	jsonOut := flags.Bool("json", false, "JSON output")
	pos, err := parseArgs(flags, args)
	if err != nil {
		return 1
	}
	if len(pos) < 2 {
		fmt.Fprintln(os.Stderr, "usage: rs race <name> <round> [--json]")
		return 1
	}

	result, err := a.send(ctx, router.GetRace, map[string]any{"name": pos[0], "round": pos[1]})
	if err != nil {
		return errorf("race: %v", err)
	}
	rc := result.(*race.Race)

	if *jsonOut {
		printJSON(rc)
	} else {
		printRaceDetail(os.Stdout, rc, a.reg.Location())
	}
	return 0
}
