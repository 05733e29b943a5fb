package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bmease/race-spoilers/pkg/server"
)

func (a *app) cmdServe(ctx context.Context, args []string) int {
	flags := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := flags.String("addr", a.cfg.Addr, "listen address")
	poll := flags.Duration("poll", 2*time.Second, "how often to pick up changes made by other rs commands (0 disables)")
	if _, err := parseArgs(flags, args); err != nil {
		return 1
	}

	// Handle ctrl-c gracefully.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *poll > 0 {
		go a.pollStore(ctx, *poll)
	}

	fmt.Fprintf(os.Stderr, "serving on http://%s (ctrl-c to stop)\n", *addr)
	if err := server.New(a.router, a.hub, &a.log).ListenAndServe(ctx, *addr); err != nil {
		return errorf("serve: %v", err)
	}
	fmt.Fprintln(os.Stderr, "\nstopped")
	return 0
}

// pollStore reloads the registry every interval until ctx is done. Block
// changes written by other processes reach subscribers through the reload.
func (a *app) pollStore(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.reg.Reload(ctx); err != nil && ctx.Err() == nil {
				a.log.Warn().Err(err).Msg("poll store")
			}
		}
	}
}
