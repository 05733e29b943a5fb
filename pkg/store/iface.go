// iface.go defines the StoreInterface for dependency injection and testing.
//
// Every backend persists the same thing: one durable record holding the full
// race list, block state included. The registry in each execution context
// reads it on load and rewrites it after every mutation; the last writer wins.
package store

import (
	"context"
	"errors"

	"github.com/bmease/race-spoilers/pkg/model"
)

// ErrEmpty is returned by LoadRaces when nothing has been persisted yet.
// Callers treat it as a first run and repopulate from the bundled calendar.
var ErrEmpty = errors.New("store: no races persisted")

// StoreInterface defines the full set of store operations.
type StoreInterface interface {
	// Close releases the backend connection.
	Close() error

	// LoadRaces returns the persisted races, or ErrEmpty.
	LoadRaces(ctx context.Context) ([]model.RaceRecord, error)

	// SaveRaces replaces the persisted race list.
	SaveRaces(ctx context.Context, races []model.RaceRecord) error

	// Clear removes the persisted race list.
	Clear(ctx context.Context) error
}

// Compile-time checks that every backend implements StoreInterface.
var (
	_ StoreInterface = (*Store)(nil)
	_ StoreInterface = (*BoltStore)(nil)
	_ StoreInterface = (*RedisStore)(nil)
)

// stateKey names the single durable record in every backend.
const stateKey = "races"
