// Package redisstore implements [storage.Store] on Redis, for embeddings
// where session material must survive restarts of the host process but a
// local filesystem is unavailable or undesirable (containers, shared hosts).
package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/fxtrail/fxclient/storage"
)

// DefaultPrefix namespaces client keys inside a shared Redis instance.
const DefaultPrefix = "fxc"

// Store persists values as plain Redis strings without TTL; lifecycle is
// driven entirely by Set/Delete, matching the other backends.
type Store struct {
	client redis.UniversalClient
	prefix string
}

// New returns a store on client using [DefaultPrefix].
func New(client redis.UniversalClient) *Store {
	return NewWithPrefix(client, DefaultPrefix)
}

// NewWithPrefix returns a store with a caller-chosen key prefix.
func NewWithPrefix(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) key(key string) string {
	return s.prefix + ":" + key
}

// Get returns the value stored under key or [storage.ErrNotFound].
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("redisstore: get: %w", err)
	}
	return value, nil
}

// Set replaces the value stored under key.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redisstore: set: %w", err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redisstore: del: %w", err)
	}
	return nil
}
