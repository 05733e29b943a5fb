package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bmease/race-spoilers/pkg/model"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the race list under a single prefixed key so several
// hosts can share block state.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// DialRedis connects to addr and verifies the connection with a PING.
func DialRedis(addr, password, prefix string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return NewRedisStore(client, prefix), nil
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
	}
}

func (r *RedisStore) key() string {
	return r.prefix + stateKey
}

// Close closes the client.
func (r *RedisStore) Close() error { return r.client.Close() }

// LoadRaces returns the persisted races, or ErrEmpty on first run.
func (r *RedisStore) LoadRaces(ctx context.Context) ([]model.RaceRecord, error) {
	val, err := r.client.Get(ctx, r.key()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("load races: %w", err)
	}
	return decodeState(val)
}

// SaveRaces replaces the persisted race list. The key never expires.
func (r *RedisStore) SaveRaces(ctx context.Context, races []model.RaceRecord) error {
	payload, err := encodeState(races)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key(), payload, 0).Err(); err != nil {
		return fmt.Errorf("save races: %w", err)
	}
	return nil
}

// Clear removes the persisted race list.
func (r *RedisStore) Clear(ctx context.Context) error {
	return r.client.Del(ctx, r.key()).Err()
}
