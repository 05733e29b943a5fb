package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/bmease/race-spoilers/pkg/config"
	"github.com/bmease/race-spoilers/pkg/registry"
	"github.com/bmease/race-spoilers/pkg/router"
	"github.com/bmease/race-spoilers/pkg/store"
)

// app holds shared state for all CLI subcommands.
type app struct {
	cfg    config.Config
	log    zerolog.Logger
	store  store.StoreInterface
	reg    *registry.Registry
	hub    *router.Hub
	router *router.Router
}

// newApp opens the configured store and loads the registry from it,
// installing the bundled calendar on first run. Creates the .racespoilers/
// directory if using the default DB path.
func newApp(ctx context.Context, cfg config.Config, log zerolog.Logger) (*app, error) {
	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		st.Close()
		return nil, err
	}

	hub := router.NewHub(router.DefaultBuffer, &log)
	reg := registry.New(st, registry.Options{
		Season:       cfg.Season,
		TrailingDays: cfg.TrailingDays,
		Location:     loc,
		Logger:       &log,
		Notifier:     hub,
	})
	if err := reg.Load(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return &app{
		cfg:    cfg,
		log:    log,
		store:  st,
		reg:    reg,
		hub:    hub,
		router: router.New(reg, &log),
	}, nil
}

func openStore(cfg config.Config) (store.StoreInterface, error) {
	if cfg.UsesDefaultDB() {
		if err := os.MkdirAll(filepath.Dir(cfg.DB), 0755); err != nil {
			return nil, fmt.Errorf("cannot create %s: %w", filepath.Dir(cfg.DB), err)
		}
	}
	switch cfg.Store {
	case config.StoreBolt:
		s, err := store.OpenBolt(cfg.DB)
		if err != nil {
			return nil, fmt.Errorf("cannot open bolt database %q: %w", cfg.DB, err)
		}
		return s, nil
	case config.StoreRedis:
		s, err := store.DialRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisPrefix)
		if err != nil {
			return nil, fmt.Errorf("cannot connect to redis %q: %w", cfg.RedisAddr, err)
		}
		return s, nil
	default:
		s, err := store.New(cfg.DB)
		if err != nil {
			return nil, fmt.Errorf("cannot open database %q: %w", cfg.DB, err)
		}
		return s, nil
	}
}

// Close releases the store.
func (a *app) Close() { a.store.Close() }

// send routes one message exactly as a remote caller's would be.
func (a *app) send(ctx context.Context, t router.MessageType, params any) (any, error) {
	req, err := router.NewRequest(t, params)
	if err != nil {
		return nil, err
	}
	return a.router.Handle(ctx, req)
}

// parseArgs parses flags that may appear before, between or after
// positional arguments and returns the positionals.
func parseArgs(flags *flag.FlagSet, args []string) ([]string, error) {
	var pos []string
	for {
		if err := flags.Parse(args); err != nil {
			return nil, err
		}
		args = flags.Args()
		if len(args) == 0 {
			return pos, nil
		}
		pos = append(pos, args[0])
		args = args[1:]
	}
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func errorf(format string, args ...any) int {
	fmt.Fprintf(os.Stderr, "rs: "+format+"\n", args...)
	return 1
}
