package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNil is returned by Get when the key does not exist.
var ErrNil = errors.New("redis: key not found")

// Client wraps the Redis operations used by the persistence layer.
type Client struct {
	rdb    *redis.Client
	prefix string
}

// Config holds Redis connection configuration.
type Config struct {
	URL       string `yaml:"url"`
	Password  string `yaml:"password"`
	KeyPrefix string `yaml:"key_prefix"`
}

// NewClient creates a new Redis client and verifies the connection.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewFromRedis(rdb, cfg.KeyPrefix), nil
}

// NewFromRedis wraps an existing go-redis client.
func NewFromRedis(rdb *redis.Client, prefix string) *Client {
	if prefix == "" {
		prefix = "tradeup"
	}
	return &Client{rdb: rdb, prefix: prefix}
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks the connection.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Key returns the namespaced key for name.
func (c *Client) Key(name string) string {
	return fmt.Sprintf("%s:%s", c.prefix, name)
}

// Get returns the raw value stored under name.
func (c *Client) Get(ctx context.Context, name string) ([]byte, error) {
	val, err := c.rdb.Get(ctx, c.Key(name)).Bytes()
	if err == redis.Nil {
		return nil, ErrNil
	}
	if err != nil {
		return nil, fmt.Errorf("get failed: %w", err)
	}
	return val, nil
}

// Set replaces the value stored under name. SET is a whole-value replace.
func (c *Client) Set(ctx context.Context, name string, data []byte) error {
	if err := c.rdb.Set(ctx, c.Key(name), data, 0).Err(); err != nil {
		return fmt.Errorf("set failed: %w", err)
	}
	return nil
}

// Del removes name. Removing a missing key is not an error.
func (c *Client) Del(ctx context.Context, name string) error {
	if err := c.rdb.Del(ctx, c.Key(name)).Err(); err != nil {
		return fmt.Errorf("del failed: %w", err)
	}
	return nil
}
