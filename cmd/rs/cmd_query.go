package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/bmease/race-spoilers/pkg/model"
	"github.com/bmease/race-spoilers/pkg/router"
)

// Exit code for a query that hit a blocked session.
const exitBlocked = 2

func (a *app) cmdQuery(ctx context.Context, args []string) int {
	flags := flag.NewFlagSet("query", flag.ContinueOnError)
	jsonOut := flags.Bool("json", false, "JSON output")
	pos, err := parseArgs(flags, args)
	if err != nil {
		return 1
	}
	if len(pos) < 1 {
		fmt.Fprintln(os.Stderr, "usage: rs query <time|now> [--json]")
		return 1
	}

	result, err := a.send(ctx, router.QueryBlockedTime, map[string]any{"time": queryTime(pos[0])})
	if err != nil {
		return errorf("query: %v", err)
	}
	q, _ := result.(*model.BlockedQuery)

	switch {
	case *jsonOut:
		printJSON(map[string]any{"blocked": q != nil, "result": result})
	case q == nil:
		fmt.Println("safe")
	default:
		printBlocked(os.Stdout, q, a.reg.Location())
	}
	if q != nil {
		return exitBlocked
	}
	return 0
}

// queryTime turns a command-line time into a message param: Unix
// milliseconds stay numeric, "now" is the current time, anything else is
// passed through for the router to validate.
func queryTime(arg string) any {
	if arg == "now" {
		return time.Now().UTC().Format(time.RFC3339)
	}
	if ms, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return ms
	}
	return arg
}
