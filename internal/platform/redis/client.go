package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"govdash/internal/platform/config"
)

// Client is the shared connection behind distributed rate-limit buckets and
// the cross-instance feed relay.
type Client struct {
	*redis.Client
}

// New connects to cfg.URL and verifies the connection. It returns nil, nil
// when Redis is not configured; callers fall back to in-process state.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{Client: client}, nil
}

// Check is the readiness probe used by /health.
func (c *Client) Check(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
