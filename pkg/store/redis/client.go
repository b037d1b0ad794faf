// Redis client wrapper for the engine's coordination needs: idempotency
// markers and the scheduler leader gate. Redis is optional; the engine runs
// without it, it just loses submission dedup across gateway replicas.

package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/orion-compute/orion-engine/pkg/logger"
)

// Client: Thin wrapper around go-redis with engine-level logging
type Client struct {
	rdb *redis.Client
	log *logger.Logger
}

// NewClient: Connect to Redis and verify with a ping
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	log := logger.Get()
	log.Info("Connected to Redis at %s (db=%d)", addr, db)

	return &Client{rdb: rdb, log: log}, nil
}

// Close: Release the connection pool
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Set: Store a key with TTL (0 = no expiry)
func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Get: Fetch a key; returns ("", false, nil) when absent
func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, true, nil
}

// SetNX: Set only if absent; returns true when this call created the key
func (c *Client) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	return ok, nil
}

// Delete: Remove a key; absent keys are not an error
func (c *Client) Delete(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}
