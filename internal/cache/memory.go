package cache

import (
	"context"
	"sort"
	"sync"

	"interview-analyzer/internal/analysis"
)

// MemoryStore keeps entries in process memory. Used for dev and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]Entry)}
}

func (c *MemoryStore) Get(_ context.Context, key string) (*Entry, bool, error) {
	c.mu.RLock()
	entry, ok := c.items[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	out := cloneEntry(entry)
	return &out, true, nil
}

func (c *MemoryStore) Put(_ context.Context, key string, model string, result analysis.Result) error {
	// Copy to decouple from caller's slices
	entry := cloneEntry(newEntry(model, result))

	c.mu.Lock()
	c.items[key] = entry
	c.mu.Unlock()

	return nil
}

func (c *MemoryStore) List(_ context.Context) ([]KeyedEntry, error) {
	c.mu.RLock()
	out := make([]KeyedEntry, 0, len(c.items))
	for k, v := range c.items {
		out = append(out, KeyedEntry{Key: k, Entry: cloneEntry(v)})
	}
	c.mu.RUnlock()

	sortNewestFirst(out)
	return out, nil
}

// Len returns the number of items currently in the cache.
func (c *MemoryStore) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func cloneEntry(e Entry) Entry {
	if e.Analysis.Rubric != nil {
		e.Analysis.Rubric = append(make([]analysis.RubricScore, 0, len(e.Analysis.Rubric)), e.Analysis.Rubric...)
	}
	return e
}

func sortNewestFirst(entries []KeyedEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].Key < entries[j].Key
		}
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
}
