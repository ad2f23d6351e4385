package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"interview-analyzer/internal/analysis"
)

// RedisStore keeps one Redis string per entry, stored without expiry.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

type RedisConfig struct {
	Prefix string
}

// NewRedisStore creates a Redis-backed cache.
func NewRedisStore(client *redis.Client, config RedisConfig, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{
		client: client,
		prefix: config.Prefix,
		logger: logger.Named("rediscache"),
	}
}

// key builds the final Redis key with prefix.
func (c *RedisStore) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + ":" + k
}

// Get retrieves an entry. An undecodable value is reported as a miss.
func (c *RedisStore) Get(ctx context.Context, key string) (*Entry, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, fmt.Errorf("context error: %w", err)
	}

	res, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(res, &entry); err != nil {
		c.logger.Warn("cached value is corrupt, treating as miss",
			zap.String("key", key),
			zap.Error(err),
		)
		return nil, false, nil
	}
	return &entry, true, nil
}

// Put stores an entry with no TTL; entries are never expired.
func (c *RedisStore) Put(ctx context.Context, key string, model string, result analysis.Result) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	value, err := json.Marshal(newEntry(model, result))
	if err != nil {
		return fmt.Errorf("redis marshal entry: %w", err)
	}
	if err := c.client.Set(ctx, c.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// List scans every key under the prefix.
func (c *RedisStore) List(ctx context.Context) ([]KeyedEntry, error) {
	pattern := "*"
	if c.prefix != "" {
		pattern = c.prefix + ":*"
	}

	var out []KeyedEntry
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		redisKey := iter.Val()
		key := strings.TrimPrefix(redisKey, c.prefix+":")
		if c.prefix == "" {
			key = redisKey
		}
		entry, ok, err := c.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, KeyedEntry{Key: key, Entry: *entry})
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan failed: %w", err)
	}

	sortNewestFirst(out)
	return out, nil
}

// Ping checks if Redis connection is healthy.
func (c *RedisStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	return c.client.Ping(ctx).Err()
}
