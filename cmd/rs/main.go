// Command rs is the race-spoilers CLI: it keeps a race calendar, tracks
// which race weekends and sessions you have not caught up on, and answers
// whether a timestamp would spoil one of them.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/bmease/race-spoilers/pkg/config"
	"github.com/bmease/race-spoilers/pkg/logging"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "--help", "-h", "help":
		printUsage()
		return
	case "--version", "-v", "version":
		fmt.Println("rs", version)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fatal("%v", err)
	}
	log := logging.New(cfg)

	ctx := context.Background()
	a, err := newApp(ctx, cfg, log)
	if err != nil {
		fatal("%v", err)
	}
	code := a.run(ctx, os.Args[1], os.Args[2:])
	a.Close()
	os.Exit(code)
}

// run dispatches one subcommand and returns its exit code.
func (a *app) run(ctx context.Context, cmd string, args []string) int {
	switch cmd {
	// Setup
	case "install":
		return a.cmdInstall(ctx, args)
	case "reset":
		return a.cmdReset(ctx, args)

	// Queries
	case "calendar", "cal":
		return a.cmdCalendar(ctx, args)
	case "current":
		return a.cmdCurrent(ctx, args)
	case "next":
		return a.cmdNext(ctx, args)
	case "previous", "prev":
		return a.cmdPrevious(ctx, args)
	case "upcoming":
		return a.cmdUpcoming(ctx, args)
	case "race":
		return a.cmdRace(ctx, args)
	case "query", "q":
		return a.cmdQuery(ctx, args)

	// Blocking
	case "block":
		return a.cmdBlock(ctx, args, true)
	case "unblock":
		return a.cmdBlock(ctx, args, false)
	case "block-session":
		return a.cmdBlockSession(ctx, args, true)
	case "unblock-session":
		return a.cmdBlockSession(ctx, args, false)

	// Transport
	case "serve":
		return a.cmdServe(ctx, args)
	case "watch":
		return a.cmdWatch(ctx, args)

	default:
		fmt.Fprintf(os.Stderr, "rs: unknown command %q\n", cmd)
		fmt.Fprintln(os.Stderr, "Run 'rs --help' for usage.")
		return 1
	}
}

func printUsage() {
	fmt.Print(`rs: race weekend spoiler blocking

Block a race weekend (or single sessions) you have not watched yet, then ask
whether a timestamp falls in a blocked session's spoiler window.

Usage:
  rs <command> [flags]

Setup:
  install                         Reinstall the bundled season calendar
  reset                           Clear persisted state (reinstalled on next run)

Queries:
  calendar                        List every race in the season
  current                         Race whose weekend is today
  next                            Current race, or the next one to start
  previous                        Races before the next race
  upcoming                        Races after the next race
  race <name> <round>             Show one race
  query <time>                    Is this time a spoiler? (RFC 3339, Unix ms or "now")

Blocking:
  block <name> <round>            Block every session of a race
  unblock <name> <round>          Unblock a race (sessions yet to start stay blocked)
  block-session <name> <round> <session>
  unblock-session <name> <round> <session>

Transport:
  serve [--addr HOST:PORT]        Serve the message API over HTTP
  watch [--url URL]               Stream block updates from a server

Aliases:
  cal = calendar, prev = previous, q = query

Environment:
  RACESPOILERS_STORE          sqlite (default), bolt or redis
  RACESPOILERS_DB             Database path (default: .racespoilers/racespoilers.db)
  RACESPOILERS_REDIS_ADDR     Redis address (default: localhost:6379)
  RACESPOILERS_REDIS_PREFIX   Redis key prefix (default: racespoilers:)
  RACESPOILERS_SEASON         Bundled season (default: 2021)
  RACESPOILERS_TRAILING_DAYS  Days blocked after the last session (default: 6)
  RACESPOILERS_TIMEZONE       Calendar-day timezone (default: Local)
  RACESPOILERS_LOG_LEVEL      debug, info, warn (default) or error
  RACESPOILERS_ADDR           serve address (default: localhost:8080)

All commands support --json for machine-readable output.

Exit codes:
  0  success (query: time is safe)
  1  error
  2  query: time is blocked
`)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "rs: "+format+"\n", args...)
	os.Exit(1)
}
