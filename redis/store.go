// Package redis provides a checkpoint store backed by Redis. Checkpoints
// are stored as JSON values keyed by thread and checkpoint ID, with a
// per-thread latest pointer and a set indexing the thread's checkpoints so
// whole threads can be deleted.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/forkline-ai/forkline"
)

// Store implements forkline.Store on Redis.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithTTL sets the expiration for a thread's checkpoints. Zero means no
// expiration.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a Redis-backed checkpoint store.
func New(address, password string, db int, opts ...Option) *Store {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(client, opts...)
}

// NewFromClient creates a store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "forkline:thread:",
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *Store) checkpointKey(threadID, checkpointID string) string {
	return s.prefix + threadID + ":chk:" + checkpointID
}

func (s *Store) latestKey(threadID string) string {
	return s.prefix + threadID + ":latest"
}

func (s *Store) indexKey(threadID string) string {
	return s.prefix + threadID + ":index"
}

// Put persists the checkpoint and advances the thread's latest pointer in
// one pipeline. Re-putting the same checkpoint ID overwrites the identical
// value, so retries are safe.
func (s *Store) Put(ctx context.Context, checkpoint *forkline.Checkpoint) error {
	data, err := json.Marshal(checkpoint)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.checkpointKey(checkpoint.ThreadID, checkpoint.ID), data, s.ttl)
	pipe.Set(ctx, s.latestKey(checkpoint.ThreadID), checkpoint.ID, s.ttl)
	pipe.SAdd(ctx, s.indexKey(checkpoint.ThreadID), checkpoint.ID)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.indexKey(checkpoint.ThreadID), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save checkpoint to redis: %w", err)
	}
	return nil
}

// Get returns a checkpoint by ID, or nil when it does not exist.
func (s *Store) Get(ctx context.Context, threadID, checkpointID string) (*forkline.Checkpoint, error) {
	data, err := s.client.Get(ctx, s.checkpointKey(threadID, checkpointID)).Bytes()
	if err != nil {
		if err == backend.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load checkpoint from redis: %w", err)
	}
	var checkpoint forkline.Checkpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &checkpoint, nil
}

// Latest returns the thread's most recent checkpoint, or nil for an unknown
// thread.
func (s *Store) Latest(ctx context.Context, threadID string) (*forkline.Checkpoint, error) {
	latestID, err := s.client.Get(ctx, s.latestKey(threadID)).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load latest pointer from redis: %w", err)
	}
	return s.Get(ctx, threadID, latestID)
}

// DeleteThread removes every checkpoint of the thread, its index, and its
// latest pointer.
func (s *Store) DeleteThread(ctx context.Context, threadID string) error {
	ids, err := s.client.SMembers(ctx, s.indexKey(threadID)).Result()
	if err != nil && err != backend.Nil {
		return fmt.Errorf("failed to list thread checkpoints: %w", err)
	}
	keys := make([]string, 0, len(ids)+2)
	for _, id := range ids {
		keys = append(keys, s.checkpointKey(threadID, id))
	}
	keys = append(keys, s.latestKey(threadID), s.indexKey(threadID))
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete thread from redis: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
