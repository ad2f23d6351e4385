package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"interview-analyzer/internal/analysis"
	"interview-analyzer/internal/metrics"
	"interview-analyzer/pkg/logging/logging"
)

// LoggingStore wraps a Store with logging + metrics.
type LoggingStore struct {
	inner   Store
	backend string
}

// NewLoggingStore returns a cache that logs and records metrics.
func NewLoggingStore(inner Store, backend string) Store {
	return &LoggingStore{inner: inner, backend: backend}
}

func (c *LoggingStore) Get(ctx context.Context, key string) (*Entry, bool, error) {
	start := time.Now()
	entry, ok, err := c.inner.Get(ctx, key)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	result := "miss"
	if err != nil {
		result = "error"
	} else if ok {
		result = "hit"
	}
	metrics.CacheLookupsTotal.WithLabelValues(result).Inc()

	fields := []zap.Field{
		zap.String("cache_backend", c.backend),
		zap.String("cache_key", key),
		zap.String("cache_result", result), // hit | miss | error
		zap.Float64("latency_ms", latencyMs),
	}
	if ok && entry != nil {
		fields = append(fields, zap.String("model_id", entry.Model))
	}

	logger := logging.L(ctx)
	if err != nil {
		logger.Error("result_cache_get", append(fields, zap.Error(err))...)
	} else {
		logger.Info("result_cache_get", fields...)
	}

	return entry, ok, err
}

func (c *LoggingStore) Put(ctx context.Context, key string, model string, result analysis.Result) error {
	start := time.Now()
	err := c.inner.Put(ctx, key, model, result)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	metrics.CacheWritesTotal.WithLabelValues(metrics.Outcome(err)).Inc()

	fields := []zap.Field{
		zap.String("cache_backend", c.backend),
		zap.String("cache_key", key),
		zap.String("model_id", model),
		zap.Int("rubric_items", len(result.Rubric)),
		zap.Float64("latency_ms", latencyMs),
	}

	logger := logging.L(ctx)
	if err != nil {
		logger.Error("result_cache_put", append(fields, zap.Error(err))...)
	} else {
		logger.Info("result_cache_put", fields...)
	}

	return err
}

func (c *LoggingStore) List(ctx context.Context) ([]KeyedEntry, error) {
	return c.inner.List(ctx)
}
