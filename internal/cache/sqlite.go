package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"interview-analyzer/internal/analysis"
)

// SQLiteStore keeps entries in an embedded SQLite table, one row per key.
// Single-row upserts replace the whole-file read-modify-write of FileStore.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

const createResultCacheTable = `
CREATE TABLE IF NOT EXISTS result_cache (
	cache_key  TEXT PRIMARY KEY,
	model      TEXT NOT NULL,
	analysis   TEXT NOT NULL,
	created_at TEXT NOT NULL
)`

// OpenSQLiteStore opens (creating if needed) the database at path.
func OpenSQLiteStore(path string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("sqlite cache: create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.Exec(createResultCacheTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create result_cache table: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger.Named("sqlitecache")}, nil
}

// Close closes the underlying database connection.
func (c *SQLiteStore) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *SQLiteStore) Get(ctx context.Context, key string) (*Entry, bool, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT model, analysis, created_at FROM result_cache WHERE cache_key = ?`, key)

	var model, payload, created string
	if err := row.Scan(&model, &payload, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("sqlite get: %w", err)
	}

	entry, ok := c.decode(key, model, payload, created)
	if !ok {
		return nil, false, nil
	}
	return &entry, true, nil
}

func (c *SQLiteStore) Put(ctx context.Context, key string, model string, result analysis.Result) error {
	entry := newEntry(model, result)
	payload, err := json.Marshal(entry.Analysis)
	if err != nil {
		return fmt.Errorf("sqlite marshal analysis: %w", err)
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO result_cache (cache_key, model, analysis, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (cache_key) DO UPDATE
		SET model = excluded.model,
		    analysis = excluded.analysis,
		    created_at = excluded.created_at`,
		key, entry.Model, string(payload), entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("sqlite put: %w", err)
	}
	return nil
}

func (c *SQLiteStore) List(ctx context.Context) ([]KeyedEntry, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT cache_key, model, analysis, created_at FROM result_cache`)
	if err != nil {
		return nil, fmt.Errorf("sqlite list: %w", err)
	}
	defer rows.Close()

	var out []KeyedEntry
	for rows.Next() {
		var key, model, payload, created string
		if err := rows.Scan(&key, &model, &payload, &created); err != nil {
			return nil, fmt.Errorf("sqlite scan: %w", err)
		}
		if entry, ok := c.decode(key, model, payload, created); ok {
			out = append(out, KeyedEntry{Key: key, Entry: entry})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite rows: %w", err)
	}

	sortNewestFirst(out)
	return out, nil
}

func (c *SQLiteStore) decode(key, model, payload, created string) (Entry, bool) {
	var result analysis.Result
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		c.logger.Warn("cached row is corrupt, treating as miss",
			zap.String("key", key),
			zap.Error(err),
		)
		return Entry{}, false
	}
	createdAt, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		c.logger.Warn("cached row has bad timestamp",
			zap.String("key", key),
			zap.Error(err),
		)
	}
	return Entry{Model: model, Analysis: result, CreatedAt: createdAt}, true
}
