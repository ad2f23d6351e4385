package cache

import (
	"context"
	"time"

	"interview-analyzer/internal/analysis"
)

// Key identifies one analysis: the video bytes plus the evaluation config.
type Key struct {
	ContentHash string
	ConfigHash  string
	Hash        string // sha256(ContentHash + ":" + ConfigHash)
}

// String converts the structured key into the string used by every backend.
func (k Key) String() string {
	return k.Hash
}

// Entry is a stored analysis. Entries are never expired.
type Entry struct {
	Model     string          `json:"model"`
	Analysis  analysis.Result `json:"analysis"`
	CreatedAt time.Time       `json:"created_at"`
}

type KeyedEntry struct {
	Key string `json:"key"`
	Entry
}

// Store is the result cache used by the pipeline.
//
// Get reports a missing key and unreadable stored data the same way:
// (nil, false, nil). A non-nil error means the backend itself failed; callers
// log it and continue as on a miss. Put overwrites any existing entry.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, bool, error)
	Put(ctx context.Context, key string, model string, result analysis.Result) error
	List(ctx context.Context) ([]KeyedEntry, error)
}

func newEntry(model string, result analysis.Result) Entry {
	return Entry{
		Model:     model,
		Analysis:  result,
		CreatedAt: time.Now().UTC(),
	}
}
