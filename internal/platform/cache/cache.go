// Package cache provides a Dragonfly/Redis client wrapper and the draft
// response cache built on it.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/p-n-ai/pai-assess/internal/survey"
)

const responseKeyPrefix = "assess:responses:"

// Cache wraps a Redis/Dragonfly client.
type Cache struct {
	Client *redis.Client
	ttl    time.Duration
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

// New creates a new cache client. ttl bounds how long cached response sets
// live after their last write.
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

	return &Cache{Client: client, ttl: ttl}, nil
}

// ResponseKey is the cache key of a session's response set.
func ResponseKey(sessionID string) string {
	return responseKeyPrefix + sessionID
}

// GetResponses returns the cached response set. The bool is false on a miss.
func (c *Cache) GetResponses(ctx context.Context, sessionID string) ([]survey.Response, bool, error) {
	data, err := c.Client.Get(ctx, ResponseKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cached responses: %w", err)
	}

	var out []survey.Response
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, false, fmt.Errorf("decode cached responses: %w", err)
	}
	return out, true, nil
}

// PutResponses stores the full response set, replacing any previous value.
func (c *Cache) PutResponses(ctx context.Context, sessionID string, responses []survey.Response) error {
	data, err := json.Marshal(responses)
	if err != nil {
		return fmt.Errorf("encode responses: %w", err)
	}
	if err := c.Client.Set(ctx, ResponseKey(sessionID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache responses: %w", err)
	}
	return nil
}

// DeleteResponses drops the cached response set.
func (c *Cache) DeleteResponses(ctx context.Context, sessionID string) error {
	return c.Client.Del(ctx, ResponseKey(sessionID)).Err()
}

// Close shuts down the cache client.
func (c *Cache) Close() error {
	return c.Client.Close()
}

// HealthCheck verifies the cache connection is alive.
func (c *Cache) HealthCheck(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}
