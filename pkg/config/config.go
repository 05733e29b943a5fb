// Package config reads race-spoilers settings from the environment.
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store backends.
const (
	StoreSQLite = "sqlite"
	StoreBolt   = "bolt"
	StoreRedis  = "redis"
)

// DefaultDir holds the database when RACESPOILERS_DB is unset.
const DefaultDir = ".racespoilers"

// DefaultDB is the default database path.
var DefaultDB = filepath.Join(DefaultDir, "racespoilers.db")

// Config is the process configuration.
type Config struct {
	Store         string `env:"RACESPOILERS_STORE" envDefault:"sqlite"`
	DB            string `env:"RACESPOILERS_DB" envDefault:".racespoilers/racespoilers.db"`
	RedisAddr     string `env:"RACESPOILERS_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"RACESPOILERS_REDIS_PASSWORD"`
	RedisPrefix   string `env:"RACESPOILERS_REDIS_PREFIX" envDefault:"racespoilers:"`
	Season        int    `env:"RACESPOILERS_SEASON" envDefault:"2021"`
	TrailingDays  int    `env:"RACESPOILERS_TRAILING_DAYS" envDefault:"6"`
	Timezone      string `env:"RACESPOILERS_TIMEZONE" envDefault:"Local"`
	Log           bool   `env:"RACESPOILERS_LOG" envDefault:"true"`
	LogLevel      string `env:"RACESPOILERS_LOG_LEVEL" envDefault:"warn"`
	Addr          string `env:"RACESPOILERS_ADDR" envDefault:"localhost:8080"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses and validates the environment.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values env tags cannot express.
func (c Config) Validate() error {
	switch c.Store {
	case StoreSQLite, StoreBolt:
		if c.DB == "" {
			return fmt.Errorf("RACESPOILERS_DB is required for the %s store", c.Store)
		}
	case StoreRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("RACESPOILERS_REDIS_ADDR is required for the redis store")
		}
	default:
		return fmt.Errorf("unknown store %q (want sqlite, bolt or redis)", c.Store)
	}
	if c.Season <= 0 {
		return fmt.Errorf("invalid season %d", c.Season)
	}
	if c.TrailingDays <= 0 {
		return fmt.Errorf("trailing days must be positive, got %d", c.TrailingDays)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone. "Local" and "" mean time.Local.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// UsesDefaultDB reports whether the database lives at DefaultDB, which the
// CLI creates on first use.
func (c Config) UsesDefaultDB() bool {
	return c.Store != StoreRedis && filepath.Clean(c.DB) == DefaultDB
}
