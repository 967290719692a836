package redis

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store mirrors the command log into a Redis list.
type Store struct {
	client    *redis.Client
	namespace string
}

// NewStore creates a Redis store. An empty namespace uses DefaultNamespace.
func NewStore(client *redis.Client, namespace string) *Store {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Store{
		client:    client,
		namespace: namespace,
	}
}

func (s *Store) Name() string { return "redis" }

// Save replaces the stored command log with lines in one transaction.
func (s *Store) Save(ctx context.Context, lines []string) error {
	key := CommandLogKey(s.namespace)

	values := make([]interface{}, len(lines))
	for i, l := range lines {
		values[i] = l
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(values) > 0 {
			pipe.RPush(ctx, key, values...)
		}
		pipe.Set(ctx, SavedAtKey(s.namespace), time.Now().UTC().Format(time.RFC3339), 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save command log: %w", err)
	}
	return nil
}

// Load returns the stored command log. When no log was ever saved the error
// matches fs.ErrNotExist.
func (s *Store) Load(ctx context.Context) ([]string, error) {
	var (
		lines   *redis.StringSliceCmd
		savedAt *redis.StringCmd
	)
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		lines = pipe.LRange(ctx, CommandLogKey(s.namespace), 0, -1)
		savedAt = pipe.Get(ctx, SavedAtKey(s.namespace))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to load command log: %w", err)
	}

	if errors.Is(savedAt.Err(), redis.Nil) {
		return nil, fmt.Errorf("command log %s: %w", CommandLogKey(s.namespace), fs.ErrNotExist)
	}
	return lines.Val(), nil
}

// SavedAt returns the time of the last save, zero when there was none.
func (s *Store) SavedAt(ctx context.Context) (time.Time, error) {
	v, err := s.client.Get(ctx, SavedAtKey(s.namespace)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read save time: %w", err)
	}
	return time.Parse(time.RFC3339, v)
}
