package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"interview-analyzer/internal/analysis"
)

const lockRetryDelay = 50 * time.Millisecond

// FileStore persists all entries as one JSON object (key -> entry) and reads
// the whole file on every operation. Put holds an advisory file lock across
// its read-modify-write so writers in other goroutines or processes sharing
// the data dir do not drop each other's keys.
type FileStore struct {
	path string
	// mu serialises writers in this process; flock does not exclude
	// goroutines sharing one *flock.Flock.
	mu     sync.Mutex
	lock   *flock.Flock
	logger *zap.Logger
}

func NewFileStore(path string, logger *zap.Logger) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("file cache: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("file cache: create directory: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: logger.Named("filecache"),
	}, nil
}

// Path returns the location of the cache file.
func (c *FileStore) Path() string {
	return c.path
}

func (c *FileStore) Get(ctx context.Context, key string) (*Entry, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, fmt.Errorf("context error: %w", err)
	}

	entries, err := c.load()
	if err != nil {
		return nil, false, err
	}
	entry, ok := entries[key]
	if !ok {
		return nil, false, nil
	}
	return &entry, true, nil
}

func (c *FileStore) Put(ctx context.Context, key string, model string, result analysis.Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	locked, err := c.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("file cache: lock: %w", err)
	}
	if !locked {
		return errors.New("file cache: lock not acquired")
	}
	defer func() {
		if err := c.lock.Unlock(); err != nil {
			c.logger.Warn("unlock cache file failed", zap.Error(err))
		}
	}()

	entries, err := c.load()
	if err != nil {
		return err
	}
	entries[key] = newEntry(model, result)
	return c.save(entries)
}

func (c *FileStore) List(ctx context.Context) ([]KeyedEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	entries, err := c.load()
	if err != nil {
		return nil, err
	}
	out := make([]KeyedEntry, 0, len(entries))
	for k, v := range entries {
		out = append(out, KeyedEntry{Key: k, Entry: v})
	}
	sortNewestFirst(out)
	return out, nil
}

// load reads the cache file. A missing, empty or malformed file yields an
// empty map; only genuine read failures are returned.
func (c *FileStore) load() (map[string]Entry, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]Entry{}, nil
		}
		return nil, fmt.Errorf("file cache: read: %w", err)
	}
	if len(data) == 0 {
		return map[string]Entry{}, nil
	}

	var entries map[string]Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		c.logger.Warn("cache file is corrupt, treating as empty",
			zap.String("path", c.path),
			zap.Error(err),
		)
		return map[string]Entry{}, nil
	}
	if entries == nil {
		entries = map[string]Entry{}
	}
	return entries, nil
}

// save writes the cache atomically via a temp file in the same directory.
func (c *FileStore) save(entries map[string]Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("file cache: marshal: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(c.path), filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("file cache: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("file cache: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("file cache: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("file cache: rename temp file: %w", err)
	}
	return nil
}
