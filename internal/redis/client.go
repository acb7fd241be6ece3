package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Client is the single shared connection pool used by the nonce ledger, the
// bootstrap rate limiter and the cross-instance event relay.
type Client struct {
	*redis.Client
}

// NewClient creates a client from a URL of the form redis://[:password@]host:port[/db].
func NewClient(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &Client{Client: redis.NewClient(opts)}, nil
}

// Wrap adopts an existing go-redis client, e.g. one pointed at miniredis in tests.
func Wrap(c *redis.Client) *Client {
	return &Client{Client: c}
}

// PingContext verifies the connection. Called at startup to fail fast and by /health.
func (c *Client) PingContext(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
