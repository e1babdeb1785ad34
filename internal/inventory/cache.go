package inventory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Fetcher produces a fresh Inventory from the upstream spreadsheet.
type Fetcher interface {
	FetchInventory(ctx context.Context) (*Inventory, error)
}

// State describes how the returned inventory was obtained.
type State string

const (
	StateFresh     State = "fresh"     // served from the fresh window, no upstream call
	StateRefreshed State = "refreshed" // fetched just now
	StateStale     State = "stale"     // upstream failed, served from the stale window
)

// Cache bounds the rate of upstream fetches and keeps availability during
// outages. A value younger than the fresh window is served as-is; past that
// a refresh is attempted, and on failure the previous value is served until
// it ages past the stale window.
//
// Concurrent callers that both observe an expired entry each fetch on their
// own; fetches are idempotent and the last writer wins.
type Cache struct {
	fetcher  Fetcher
	freshFor time.Duration
	staleFor time.Duration
	now      func() time.Time

	mu        sync.RWMutex
	value     *Inventory
	fetchedAt time.Time
}

func NewCache(f Fetcher, freshFor, staleFor time.Duration) *Cache {
	return &Cache{
		fetcher:  f,
		freshFor: freshFor,
		staleFor: staleFor,
		now:      time.Now,
	}
}

// Get returns the current inventory, fetching or degrading per the window
// policy. It fails only when no successful fetch happened within the stale
// window.
func (c *Cache) Get(ctx context.Context) (*Inventory, State, error) {
	if v, ok := c.cached(c.freshFor); ok {
		return v, StateFresh, nil
	}

	v, err := c.fetcher.FetchInventory(ctx)
	if err == nil {
		c.store(v)
		return v, StateRefreshed, nil
	}

	if v, ok := c.cached(c.staleFor); ok {
		log.Warn().Err(err).Msg("inventory refresh failed; serving stale")
		return v, StateStale, nil
	}
	return nil, "", fmt.Errorf("fetch inventory: %w", err)
}

// Refresh forces a fetch regardless of freshness, storing on success. Used
// by the background refresher to keep request paths off the slow fetch.
func (c *Cache) Refresh(ctx context.Context) error {
	v, err := c.fetcher.FetchInventory(ctx)
	if err != nil {
		return fmt.Errorf("fetch inventory: %w", err)
	}
	c.store(v)
	return nil
}

func (c *Cache) cached(maxAge time.Duration) (*Inventory, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.value == nil || c.now().Sub(c.fetchedAt) >= maxAge {
		return nil, false
	}
	return c.value, true
}

func (c *Cache) store(v *Inventory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = v
	c.fetchedAt = c.now()
}
