package marketdata

import (
	"context"
	"sync"
	"time"

	"trade-council/models"
)

// SnapshotCache stores built snapshots so replays and concurrent runs on
// the same symbol reuse them. notBefore filters out stale entries; the
// caller derives it from the configured TTL.
type SnapshotCache interface {
	GetSnapshot(ctx context.Context, symbol string, notBefore time.Time) (*models.IndicatorSnapshot, error)
	PutSnapshot(ctx context.Context, snapshot *models.IndicatorSnapshot) error
}

// MemoryCache is the in-process SnapshotCache. A store-backed cache can
// sit behind it for cross-process reuse.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*models.IndicatorSnapshot
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]*models.IndicatorSnapshot),
	}
}

// GetSnapshot returns the cached snapshot for a symbol if its as-of time
// is at or after notBefore. A miss returns (nil, nil).
func (c *MemoryCache) GetSnapshot(_ context.Context, symbol string, notBefore time.Time) (*models.IndicatorSnapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snapshot, ok := c.entries[symbol]
	if !ok || snapshot.AsOf.Before(notBefore) {
		return nil, nil
	}
	return snapshot, nil
}

// PutSnapshot stores a snapshot, replacing any prior entry for the symbol.
func (c *MemoryCache) PutSnapshot(_ context.Context, snapshot *models.IndicatorSnapshot) error {
	if snapshot == nil || snapshot.Symbol == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[snapshot.Symbol] = snapshot
	return nil
}

// Invalidate removes the cached snapshot for a symbol, forcing the next
// build to fetch live data.
func (c *MemoryCache) Invalidate(symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, symbol)
}

// Len reports how many symbols are cached.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

var _ SnapshotCache = (*MemoryCache)(nil)
