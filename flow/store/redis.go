package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/agentflux/flowcore/flow"
)

// RedisConfig configures a RedisStore.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	// TTL bounds how long a checkpoint survives; zero means no expiry.
	TTL time.Duration
}

// RedisStore is a Redis-backed CheckpointStore suitable for deployments
// where the retrying caller may not be the process that observed the
// failure.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "flowcore:"
	}
	return &RedisStore{
		client: client,
		prefix: prefix + "checkpoint:",
		ttl:    cfg.TTL,
	}, nil
}

func (s *RedisStore) key(runID string) string {
	return s.prefix + runID
}

// Save persists a checkpoint.
func (s *RedisStore) Save(ctx context.Context, runID string, cp *flow.RunCheckpoint) error {
	raw, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := s.client.Set(ctx, s.key(runID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Load retrieves a checkpoint.
func (s *RedisStore) Load(ctx context.Context, runID string) (*flow.RunCheckpoint, error) {
	raw, err := s.client.Get(ctx, s.key(runID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	cp := &flow.RunCheckpoint{}
	if err := json.Unmarshal(raw, cp); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	return cp, nil
}

// Delete removes a checkpoint.
func (s *RedisStore) Delete(ctx context.Context, runID string) error {
	if err := s.client.Del(ctx, s.key(runID)).Err(); err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
