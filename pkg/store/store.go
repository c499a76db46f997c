// Package store provides the redis-backed primitive layer for the bridge
// ledger: key/value and set operations, timestamp-scored sorted sets,
// multi-key atomic commits and a distributed lock with TTL. It is the only
// component that owns persisted state.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store wraps a redis client with the operations the ledger needs
type Store struct {
	client *redis.Client
}

// Options configures the redis connection
type Options struct {
	Addr     string
	Password string
	DB       int
}

// NewStore connects to redis and verifies the connection
func NewStore(ctx context.Context, opts Options) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &Store{client: client}, nil
}

// NewStoreWithClient wraps an existing client. Used by tests and by
// components sharing the connection.
func NewStoreWithClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// Client exposes the underlying connection for components that need raw
// access (the job queue shares it).
func (s *Store) Client() *redis.Client {
	return s.client
}

// Close closes the redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// Get returns the value for key, or "" if the key does not exist
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get %s: %w", key, err)
	}
	return val, nil
}

// Set writes a value
func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// SetWithTTL writes a value that expires after ttl
func (s *Store) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// Exists reports whether key is set
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %w", key, err)
	}
	return n > 0, nil
}

// Delete removes a key
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

// Keys returns the keys matching pattern. Claim namespaces are small by
// construction so a scan here is bounded.
func (s *Store) Keys(ctx context.Context, pattern string) ([]string, error) {
	keys, err := s.client.Keys(ctx, pattern).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list keys %s: %w", pattern, err)
	}
	return keys, nil
}

// IsMember reports whether member belongs to the set at key
func (s *Store) IsMember(ctx context.Context, key, member string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, key, member).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check membership in %s: %w", key, err)
	}
	return ok, nil
}

// AddToSet adds a member to the set at key
func (s *Store) AddToSet(ctx context.Context, key, member string) error {
	if err := s.client.SAdd(ctx, key, member).Err(); err != nil {
		return fmt.Errorf("failed to add to set %s: %w", key, err)
	}
	return nil
}

// AddScored adds a member scored by a unix timestamp to the sorted set at key
func (s *Store) AddScored(ctx context.Context, key string, score int64, member string) error {
	if err := s.client.ZAdd(ctx, key, redis.Z{Score: float64(score), Member: member}).Err(); err != nil {
		return fmt.Errorf("failed to add to sorted set %s: %w", key, err)
	}
	return nil
}

// LatestScored returns up to count members of the sorted set at key in
// reverse score order (most recent first)
func (s *Store) LatestScored(ctx context.Context, key string, count int64) ([]string, error) {
	members, err := s.client.ZRevRange(ctx, key, 0, count-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to range sorted set %s: %w", key, err)
	}
	return members, nil
}

// Atomically runs fn against a transaction pipeline and commits all queued
// commands as a single MULTI/EXEC block.
func (s *Store) Atomically(ctx context.Context, fn func(pipe redis.Pipeliner) error) error {
	_, err := s.client.TxPipelined(ctx, fn)
	if err != nil {
		return fmt.Errorf("atomic commit failed: %w", err)
	}
	return nil
}
