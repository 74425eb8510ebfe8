// Package cache keeps upstream book data in Redis, keyed by book id.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Kinds of cached book data.
const (
	KindBookInfo = "bookinfo"
	KindChapters = "chapters"
)

const DefaultTTL = 6 * time.Hour

// Redis stores JSON documents per book with a fixed time-to-live.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis connects to redisURL and checks the connection.
func NewRedis(redisURL string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	c := NewRedisWithClient(redis.NewClient(opts), ttl)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Ping(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return c, nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{
		client: client,
		prefix: "wrnotes:",
		ttl:    ttl,
	}
}

func (c *Redis) key(kind, bookID string) string {
	return c.prefix + kind + ":" + bookID
}

// Get decodes the cached document into out. It reports false on a miss.
func (c *Redis) Get(ctx context.Context, kind, bookID string, out any) (bool, error) {
	data, err := c.client.Get(ctx, c.key(kind, bookID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s %s: %w", kind, bookID, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("unmarshal %s %s: %w", kind, bookID, err)
	}
	return true, nil
}

// Set stores v for the configured time-to-live.
func (c *Redis) Set(ctx context.Context, kind, bookID string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s %s: %w", kind, bookID, err)
	}
	if err := c.client.Set(ctx, c.key(kind, bookID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set %s %s: %w", kind, bookID, err)
	}
	return nil
}

// Invalidate drops everything cached for a book.
func (c *Redis) Invalidate(ctx context.Context, bookID string) error {
	keys := []string{c.key(KindBookInfo, bookID), c.key(KindChapters, bookID)}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidate %s: %w", bookID, err)
	}
	return nil
}

// Ping checks that the server answers.
func (c *Redis) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Redis) Close() error {
	return c.client.Close()
}
