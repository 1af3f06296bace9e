package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStore implements Store on a Redis instance: one JSON document per key,
// with a pub/sub channel per path driving subscriptions. Merge patches are
// read-modify-write guarded by a per-path mutex, which assumes a single
// backend process owns each user's documents.
type RedisStore struct {
	client *redis.Client
	locks  sync.Map // path -> *sync.Mutex
}

// NewRedisStore wraps an already-connected Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func docKey(path string) string {
	return "mukoma:doc:" + path
}

func watchChannel(path string) string {
	return "mukoma:watch:" + path
}

func (s *RedisStore) lock(path string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(path, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Get reads and decodes the document at path.
func (s *RedisStore) Get(ctx context.Context, path string) (Document, error) {
	raw, err := s.client.Get(ctx, docKey(path)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", path, err)
	}

	var doc Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", path, err)
	}
	return doc, nil
}

// Set applies the patch and publishes a change notification for subscribers.
func (s *RedisStore) Set(ctx context.Context, path string, patch Document, merge bool) error {
	mu := s.lock(path)
	mu.Lock()
	defer mu.Unlock()

	current, err := s.Get(ctx, path)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	next := applyPatch(current, patch, merge, time.Now().UTC())
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", path, err)
	}

	if err := s.client.Set(ctx, docKey(path), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", path, err)
	}
	if err := s.client.Publish(ctx, watchChannel(path), "changed").Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", path, err)
	}
	return nil
}

// Subscribe listens on the path's change channel and re-reads the document on
// every notification.
func (s *RedisStore) Subscribe(path string, onChange func(Document)) (Unsubscribe, error) {
	ctx := context.Background()
	pubsub := s.client.Subscribe(ctx, watchChannel(path))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", path, err)
	}

	go func() {
		for range pubsub.Channel() {
			doc, err := s.Get(ctx, path)
			if err != nil {
				continue
			}
			onChange(doc)
		}
	}()

	return func() { _ = pubsub.Close() }, nil
}
