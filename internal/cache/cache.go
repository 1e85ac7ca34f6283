// Package cache serves previously fetched reports keyed by normalized RC number.
// Expiry is evaluated when reading; stale entries stay stored until overwritten.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xaenox/rc-intel-bot/internal/models"
	"github.com/xaenox/rc-intel-bot/internal/rc"
	"github.com/xaenox/rc-intel-bot/internal/storage"
)

const DefaultTTL = 24 * time.Hour

type Cache struct {
	store storage.CacheStorage
	ttl   time.Duration
	now   func() time.Time
}

func New(store storage.CacheStorage, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{store: store, ttl: ttl, now: time.Now}
}

// WithClock replaces the clock used for cached_at and expiry checks.
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

// Get returns the cached report for id. Missing and expired entries are both
// reported as a miss.
func (c *Cache) Get(ctx context.Context, id string) (*models.IntelReport, bool, error) {
	key := rc.Normalize(id)

	entry, err := c.store.GetCacheEntry(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("read cache entry %s: %w", key, err)
	}
	if entry == nil || c.now().Sub(entry.CachedAt) > c.ttl {
		return nil, false, nil
	}

	var report models.IntelReport
	if err := json.Unmarshal(entry.Data, &report); err != nil {
		return nil, false, fmt.Errorf("decode cache entry %s: %w", key, err)
	}

	hits, err := c.store.IncrementCacheHits(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("count cache hit %s: %w", key, err)
	}

	report.Meta.FromCache = true
	report.Meta.CacheHits = hits
	return &report, true, nil
}

// Put replaces the entry for id with report.
func (c *Cache) Put(ctx context.Context, id string, report *models.IntelReport) error {
	key := rc.Normalize(id)

	stored := *report
	stored.Meta.FromCache = false
	stored.Meta.CacheHits = 0

	data, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("encode report %s: %w", key, err)
	}
	if _, err := c.store.PutCacheEntry(ctx, key, data, c.now()); err != nil {
		return fmt.Errorf("write cache entry %s: %w", key, err)
	}
	return nil
}

func (c *Cache) Size(ctx context.Context) (int, error) {
	return c.store.CountCacheEntries(ctx)
}
