package main

import (
	"context"
	"flag"
	"fmt"
)

func (a *app) cmdInstall(ctx context.Context, args []string) int {
	flags := flag.NewFlagSet("install", flag.ContinueOnError)
	jsonOut := flags.Bool("json", false, "JSON output")
	if _, err := parseArgs(flags, args); err != nil {
		return 1
	}

	if err := a.reg.Install(ctx); err != nil {
		return errorf("install: %v", err)
	}
	races := a.reg.Calendar()

	if *jsonOut {
		printJSON(map[string]any{"season": a.reg.Season(), "races": len(races)})
	} else {
		fmt.Printf("installed %d season calendar (%d races), block state cleared\n", a.reg.Season(), len(races))
	}
	return 0
}

func (a *app) cmdReset(ctx context.Context, args []string) int {
	flags := flag.NewFlagSet("reset", flag.ContinueOnError)
	jsonOut := flags.Bool("json", false, "JSON output")
	if _, err := parseArgs(flags, args); err != nil {
		return 1
	}

	if err := a.store.Clear(ctx); err != nil {
		return errorf("reset: %v", err)
	}

	if *jsonOut {
		printJSON(map[string]any{"cleared": true})
	} else {
		fmt.Println("cleared persisted state; the bundled calendar is installed on next run")
	}
	return 0
}
