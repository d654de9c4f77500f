package cache

import (
	"alcyxob/trainer-schedule/internal/domain"
	"context"
	"encoding/json"
	"sync"
)

type entry struct {
	generation int64
	data       []byte
}

// MemoryViewCache is an in-process view cache for single-instance deployments.
// Views are stored encoded so callers can never mutate a cached value.
type MemoryViewCache struct {
	mu         sync.RWMutex
	generation int64
	entries    map[string]entry
}

func NewMemoryViewCache() *MemoryViewCache {
	return &MemoryViewCache{entries: make(map[string]entry)}
}

func (c *MemoryViewCache) Get(_ context.Context, id string) (*domain.SessionView, int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[id]
	if !ok || e.generation != c.generation {
		return nil, c.generation, false
	}
	var view domain.SessionView
	if err := json.Unmarshal(e.data, &view); err != nil {
		return nil, c.generation, false
	}
	return &view, c.generation, true
}

func (c *MemoryViewCache) Set(_ context.Context, id string, generation int64, view *domain.SessionView) {
	if view == nil {
		return
	}
	data, err := json.Marshal(view)
	if err != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != c.generation {
		return
	}
	c.entries[id] = entry{generation: generation, data: data}
}

func (c *MemoryViewCache) Invalidate(context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.entries = make(map[string]entry)
}
