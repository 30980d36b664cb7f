package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps the Redis operations used for notification dedup and
// per-wallet cache entries.
type Client struct {
	rdb    *redis.Client
	prefix string
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	Prefix   string `yaml:"prefix"`
}

// NewClient creates a new Redis client.
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

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "dexwatch"
	}
	return &Client{rdb: rdb, prefix: prefix}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Key helpers
func (c *Client) seenKey(walletID, signature string) string {
	return fmt.Sprintf("%s:seen:%s:%s", c.prefix, walletID, signature)
}

func (c *Client) walletPattern(walletID string) string {
	return fmt.Sprintf("%s:seen:%s:*", c.prefix, walletID)
}

// MarkSeen records a signature for a wallet. It returns true the first time
// the pair is seen within ttl.
func (c *Client) MarkSeen(ctx context.Context, walletID, signature string, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, c.seenKey(walletID, signature), time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx failed: %w", err)
	}
	return ok, nil
}

// Forget removes the mark set by MarkSeen.
func (c *Client) Forget(ctx context.Context, walletID, signature string) error {
	if err := c.rdb.Del(ctx, c.seenKey(walletID, signature)).Err(); err != nil {
		return fmt.Errorf("del failed: %w", err)
	}
	return nil
}

// DeleteWalletCache drops every cached entry of a wallet.
func (c *Client) DeleteWalletCache(ctx context.Context, walletID string) error {
	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, c.walletPattern(walletID), 100).Result()
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("del failed: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// Health pings the server.
func (c *Client) Health(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
