package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nadzzz/solace/internal/config"
)

// Redis stores conversations as JSON strings with a sliding expiry.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}
	return newRedis(client, cfg), nil
}

func newRedis(client *redis.Client, cfg config.RedisConfig) *Redis {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "solace:conversation:"
	}
	return &Redis{client: client, prefix: prefix, ttl: cfg.TTL}
}

func (r *Redis) key(id string) string { return r.prefix + id }

func (r *Redis) Get(ctx context.Context, id string) (*Conversation, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", id, err)
	}

	var c Conversation
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decoding conversation %s: %w", id, err)
	}
	return &c, nil
}

// Save writes the snapshot and restarts its expiry. A zero TTL keeps it forever.
func (r *Redis) Save(ctx context.Context, c *Conversation) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding conversation %s: %w", c.ID, err)
	}
	if err := r.client.Set(ctx, r.key(c.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", c.ID, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, id string) error {
	n, err := r.client.Del(ctx, r.key(id)).Result()
	if err != nil {
		return fmt.Errorf("redis del %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Redis) Close() error { return r.client.Close() }
