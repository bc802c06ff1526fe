package report

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/banksight/internal/core"
	"github.com/redis/go-redis/v9"
)

// Cache stores report results between data loads.
type Cache interface {
	Get(ctx context.Context, id int) (*core.Result, bool)
	Set(ctx context.Context, id int, result *core.Result)
	// Invalidate makes every cached result stale. The load stage and API
	// writes call it.
	Invalidate(ctx context.Context) error
}

const (
	keyPrefix     = "banksight:report:"
	generationKey = keyPrefix + "generation"
)

// RedisCache keeps gob-encoded results in Redis. Keys embed a generation
// number; bumping it orphans older entries, which then expire by TTL.
// Redis failures are logged and treated as misses.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisCache connects to url, e.g. redis://localhost:6379/0.
func NewRedisCache(url string, ttl time.Duration, logger *slog.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedisCacheFromClient(redis.NewClient(opts), ttl, logger), nil
}

func NewRedisCacheFromClient(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

// Ping checks connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func resultKey(gen int64, id int) string {
	return fmt.Sprintf("%s%d:%d", keyPrefix, gen, id)
}

func (c *RedisCache) Get(ctx context.Context, id int) (*core.Result, bool) {
	gen, err := c.generation(ctx)
	if err != nil {
		c.logger.Warn("report cache unavailable", "report", id, "error", err)
		return nil, false
	}
	data, err := c.client.Get(ctx, resultKey(gen, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("report cache read failed", "report", id, "error", err)
		return nil, false
	}

	var result core.Result
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&result); err != nil {
		c.logger.Warn("report cache entry corrupt", "report", id, "error", err)
		return nil, false
	}
	if result.Rows == nil {
		result.Rows = [][]any{}
	}
	return &result, true
}

func (c *RedisCache) Set(ctx context.Context, id int, result *core.Result) {
	gen, err := c.generation(ctx)
	if err != nil {
		c.logger.Warn("report cache unavailable", "report", id, "error", err)
		return
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(result); err != nil {
		c.logger.Warn("report cache encode failed", "report", id, "error", err)
		return
	}
	if err := c.client.Set(ctx, resultKey(gen, id), buf.Bytes(), c.ttl).Err(); err != nil {
		c.logger.Warn("report cache write failed", "report", id, "error", err)
	}
}

func (c *RedisCache) Invalidate(ctx context.Context) error {
	return c.client.Incr(ctx, generationKey).Err()
}
