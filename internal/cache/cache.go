// Package cache manages the Redis connection used by the Redis-backed stores.
package cache

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/emadnahed/linkguard/internal/config"
)

// Client wraps a go-redis client with the key namespace of this service.
type Client struct {
	*redis.Client
	prefix string
}

// NewRedisClient connects to Redis and verifies connectivity.
func NewRedisClient(ctx context.Context, cfg *config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return Wrap(rdb, cfg.KeyPrefix), nil
}

// Wrap namespaces an existing client under prefix.
func Wrap(rdb *redis.Client, prefix string) *Client {
	return &Client{Client: rdb, prefix: prefix}
}

// Prefix returns the key namespace.
func (c *Client) Prefix() string {
	return c.prefix
}

// Key joins parts with ':' under the client's prefix.
func (c *Client) Key(parts ...string) string {
	return c.prefix + strings.Join(parts, ":")
}

// HealthCheck pings Redis.
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
