package baseline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix is prepended to the check name to form the Redis key.
const DefaultRedisPrefix = "galleyprobe:baseline:"

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	// URL is the Redis connection URL (e.g., "redis://localhost:6379/0")
	URL string

	// Prefix is prepended to check names (defaults to DefaultRedisPrefix)
	Prefix string

	// TTL expires baselines that are not re-recorded; zero keeps them forever
	TTL time.Duration
}

// RedisStore implements Store with one Redis key per check.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("redis URL is required for the redis baseline store")
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	store := NewRedisStoreWithClient(client, cfg.Prefix, cfg.TTL)
	slog.Debug("redis baseline store connected", "prefix", store.prefix, "ttl", store.ttl)
	return store, nil
}

// NewRedisStoreWithClient wraps an existing client. The store takes ownership of it.
func NewRedisStoreWithClient(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

// Get returns the snapshot for check.
func (s *RedisStore) Get(ctx context.Context, check string) (*Snapshot, error) {
	data, err := s.client.Get(ctx, s.prefix+check).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get baseline from redis: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse baseline from redis: %w", err)
	}
	return &snap, nil
}

// Set stores the snapshot under prefix+check.
func (s *RedisStore) Set(ctx context.Context, snap *Snapshot) error {
	if snap == nil || snap.Check == "" {
		return fmt.Errorf("snapshot with a check name is required")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal baseline: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+snap.Check, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set baseline in redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
