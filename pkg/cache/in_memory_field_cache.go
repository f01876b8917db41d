package cache

import (
	"context"
	"sync"
	"time"

	"github.com/climatekit/ascraster/pkg/raster"
)

// InMemoryFieldCache keeps entries in a map for the lifetime of the process.
// It is used when no cache directory is configured.
type InMemoryFieldCache struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	now     func() time.Time
}

// NewInMemoryFieldCache creates an empty cache.
func NewInMemoryFieldCache() *InMemoryFieldCache {
	return &InMemoryFieldCache{entries: make(map[string]*Entry), now: time.Now}
}

// Get returns the entry stored under key, or nil if there is none.
func (c *InMemoryFieldCache) Get(ctx context.Context, key string) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, nil
	}
	return &Entry{Rasters: append([]*raster.Raster(nil), e.Rasters...), StoredAt: e.StoredAt}, nil
}

// Put stores rasters under key, replacing any previous entry.
func (c *InMemoryFieldCache) Put(ctx context.Context, key string, rasters []*raster.Raster) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &Entry{Rasters: append([]*raster.Raster(nil), rasters...), StoredAt: c.now().UTC()}
	return nil
}

// Len returns the number of entries.
func (c *InMemoryFieldCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close drops all entries.
func (c *InMemoryFieldCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*Entry)
	return nil
}
