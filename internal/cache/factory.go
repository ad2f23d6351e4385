package cache

import (
	"fmt"
	"path/filepath"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

type Config struct {
	Backend string
	DataDir string
	Prefix  string
}

// NewStore builds the configured backend. redisClient is only used by the
// redis backend. The returned close func releases backend resources.
func NewStore(cfg Config, redisClient *redis.Client, logger *zap.Logger) (Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Backend {
	case BackendMemory:
		return NewMemoryStore(), noop, nil
	case BackendRedis:
		if redisClient == nil {
			return nil, noop, fmt.Errorf("cache backend %q needs a redis client", cfg.Backend)
		}
		return NewRedisStore(redisClient, RedisConfig{Prefix: cfg.Prefix}, logger), noop, nil
	case BackendSQLite:
		s, err := OpenSQLiteStore(filepath.Join(cfg.DataDir, "cache.db"), logger)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	case BackendFile, "":
		s, err := NewFileStore(filepath.Join(cfg.DataDir, "cache.json"), logger)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
