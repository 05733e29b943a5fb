package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bmease/race-spoilers/pkg/router"
	"github.com/bmease/race-spoilers/pkg/server"
)

func (a *app) cmdWatch(ctx context.Context, args []string) int {
	flags := flag.NewFlagSet("watch", flag.ContinueOnError)
	url := flags.String("url", "http://"+a.cfg.Addr, "server URL")
	jsonOut := flags.Bool("json", false, "JSON output (one JSON object per line)")
	if _, err := parseArgs(flags, args); err != nil {
		return 1
	}

	// Handle ctrl-c gracefully.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stderr, "watching %s for block updates (ctrl-c to stop)\n", *url)

	loc := a.reg.Location()
	err := server.Watch(ctx, *url, func(msg router.Message) {
		if *jsonOut {
			b, _ := json.Marshal(msg)
			fmt.Println(string(b))
			return
		}
		fmt.Printf("%s %s - %s\n", msg.Type,
			msg.Payload.Start.In(loc).Format(sessionFormat),
			msg.Payload.End.In(loc).Format(sessionFormat))
	})
	if err != nil {
		return errorf("watch: %v", err)
	}
	fmt.Fprintln(os.Stderr, "\nstopped")
	return 0
}
