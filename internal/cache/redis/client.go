// Package redis backs the book mirror, signal bus, strategy locks and rate
// limiter with go-redis/v9. Every key carries the configured prefix.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type ClientConfig struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
	TLSEnabled bool
	KeyPrefix  string // e.g. "tickerbot:"
}

func (cfg ClientConfig) options() *redis.Options {
	opts := &redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		PoolSize:   cfg.PoolSize,
		MaxRetries: cfg.MaxRetries,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts
}

// Client is a prefixed go-redis client shared by the cache components.
type Client struct {
	rdb    *redis.Client
	prefix string
}

// New connects to cfg.Addr and fails unless the server answers PING.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	c := &Client{rdb: redis.NewClient(cfg.options()), prefix: cfg.KeyPrefix}
	if err := c.Ping(ctx); err != nil {
		c.rdb.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping %s: %w", c.rdb.Options().Addr, err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// Key namespaces k with the configured prefix.
func (c *Client) Key(k string) string {
	return c.prefix + k
}
