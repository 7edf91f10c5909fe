// Package cache provides a Redis client wrapper used to memoize source
// API responses between runs.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "quizimport:http:"

// Cache wraps a Redis client with a default entry TTL.
type Cache struct {
	Client *redis.Client
	TTL    time.Duration
}

// ParseURL validates a Redis connection URL.
func ParseURL(url string) (*redis.Options, error) {
	if url == "" {
		return nil, fmt.Errorf("cache URL is empty")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid cache URL: %w", err)
	}
	return opts, nil
}

// New creates a new cache client.
func New(ctx context.Context, url string, ttl time.Duration) (*Cache, error) {
	opts, err := ParseURL(url)
	if err != nil {
		return nil, err
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging cache: %w", err)
	}

	return &Cache{Client: client, TTL: ttl}, nil
}

// Key derives the cache key for a request URL. Credentials never reach the key.
func Key(requestURL string) string {
	sum := sha256.Sum256([]byte(requestURL))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// Get returns the cached body for requestURL. A miss is reported as ok=false
// with a nil error.
func (c *Cache) Get(ctx context.Context, requestURL string) ([]byte, bool, error) {
	b, err := c.Client.Get(ctx, Key(requestURL)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}
	return b, true, nil
}

// Set stores body for requestURL with the cache TTL.
func (c *Cache) Set(ctx context.Context, requestURL string, body []byte) error {
	if err := c.Client.Set(ctx, Key(requestURL), body, c.TTL).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Close shuts down the cache client.
func (c *Cache) Close() error {
	return c.Client.Close()
}
