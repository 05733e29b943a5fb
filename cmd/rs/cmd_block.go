package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/bmease/race-spoilers/pkg/race"
	"github.com/bmease/race-spoilers/pkg/registry"
	"github.com/bmease/race-spoilers/pkg/router"
)

func (a *app) cmdBlock(ctx context.Context, args []string, value bool) int {
	name := "unblock"
	if value {
		name = "block"
	}
	flags := flag.NewFlagSet(name, flag.ContinueOnError)
	jsonOut := flags.Bool("json", false, "JSON output")
	pos, err := parseArgs(flags, args)
	if err != nil {
		return 1
	}
	if len(pos) < 2 {
		fmt.Fprintf(os.Stderr, "usage: rs %s <name> <round> [--json]\n", name)
		return 1
	}

	params := map[string]any{"name": pos[0], "round": pos[1], "value": value}
	if _, err := a.send(ctx, router.SetBlockedRace, params); err != nil {
		return blockError(name, err)
	}
	return a.printBlockState(ctx, pos[0], pos[1], *jsonOut)
}

func (a *app) cmdBlockSession(ctx context.Context, args []string, value bool) int {
	name := "unblock-session"
	if value {
		name = "block-session"
	}
	flags := flag.NewFlagSet(name, flag.ContinueOnError)
	jsonOut := flags.Bool("json", false, "JSON output")
	pos, err := parseArgs(flags, args)
	if err != nil {
		return 1
	}
	if len(pos) < 3 {
		fmt.Fprintf(os.Stderr, "usage: rs %s <name> <round> <session> [--json]\n", name)
		return 1
	}

	params := map[string]any{"name": pos[0], "round": pos[1], "session": pos[2], "value": value}
	if _, err := a.send(ctx, router.SetBlockedSession, params); err != nil {
		return blockError(name, err)
	}
	return a.printBlockState(ctx, pos[0], pos[1], *jsonOut)
}

// printBlockState re-reads the race so the output shows what was actually
// stored, which may differ from the request when unblocking mid-weekend.
func (a *app) printBlockState(ctx context.Context, name, round string, jsonOut bool) int {
	result, err := a.send(ctx, router.GetRace, map[string]any{"name": name, "round": round})
	if err != nil {
		return errorf("%v", err)
	}
	rc := result.(*race.Race)

	if jsonOut {
		printJSON(map[string]any{
			"name":            rc.Name,
			"round":           rc.Round,
			"blocked":         rc.Blocked(),
			"blockedSessions": rc.BlockedSessions(),
		})
		return 0
	}
	printRaceDetail(os.Stdout, rc, a.reg.Location())
	return 0
}

func blockError(cmd string, err error) int {
	if errors.Is(err, registry.ErrNotFound) {
		return errorf("%s: %v (see 'rs calendar')", cmd, err)
	}
	return errorf("%s: %v", cmd, err)
}
