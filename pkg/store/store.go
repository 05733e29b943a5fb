// Package store manages persistence of race block state.
//
// SQLite in WAL mode is the default backend: the CLI, the HTTP server and any
// other process on the machine open the same file, so the database is how
// execution contexts observe each other's writes. bbolt and Redis backends
// hold the same single record for deployments that prefer them.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bmease/race-spoilers/pkg/model"

	_ "modernc.org/sqlite"
)

// Store manages SQLite persistence with WAL mode for concurrent access.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the SQLite database and initializes the schema.
func New(path string) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(60000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS state (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// LoadRaces returns the persisted races, or ErrEmpty on first run.
func (s *Store) LoadRaces(ctx context.Context) ([]model.RaceRecord, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM state WHERE key = ?`, stateKey,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("load races: %w", err)
	}
	return decodeState([]byte(value))
}

// SaveRaces replaces the persisted race list.
func (s *Store) SaveRaces(ctx context.Context, races []model.RaceRecord) error {
	payload, err := encodeState(races)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO state (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		stateKey, string(payload), now,
	)
	if err != nil {
		return fmt.Errorf("save races: %w", err)
	}
	return nil
}

// Clear removes the persisted race list.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM state WHERE key = ?`, stateKey); err != nil {
		return fmt.Errorf("clear races: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func encodeState(races []model.RaceRecord) ([]byte, error) {
	if races == nil {
		races = []model.RaceRecord{}
	}
	payload, err := json.Marshal(model.State{Races: races})
	if err != nil {
		return nil, fmt.Errorf("marshal races: %w", err)
	}
	return payload, nil
}

// decodeState treats a record holding zero races the same as no record.
func decodeState(payload []byte) ([]model.RaceRecord, error) {
	var st model.State
	if err := json.Unmarshal(payload, &st); err != nil {
		return nil, fmt.Errorf("unmarshal races: %w", err)
	}
	if len(st.Races) == 0 {
		return nil, ErrEmpty
	}
	return st.Races, nil
}
