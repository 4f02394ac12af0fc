package feeds

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Amenzel91/catalyst-bot-sub003/types"
)

// PriceCache memoizes bar loads per ticker and range for the life of one
// run. Failed loads are cached too so a missing ticker is queried once.
type PriceCache struct {
	src PriceSource

	mu      sync.Mutex
	entries map[string]cacheEntry
	hits    int
	misses  int
}

type cacheEntry struct {
	bars []types.Bar
	err  error
}

// NewPriceCache wraps src
func NewPriceCache(src PriceSource) *PriceCache {
	return &PriceCache{
		src:     src,
		entries: make(map[string]cacheEntry),
	}
}

// LoadPriceData serves from cache when the same ticker and range was seen
func (c *PriceCache) LoadPriceData(ctx context.Context, ticker string, start, end time.Time) ([]types.Bar, error) {
	key := fmt.Sprintf("%s|%d|%d", ticker, start.Unix(), end.Unix())

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		c.hits++
		c.mu.Unlock()
		return e.bars, e.err
	}
	c.misses++
	c.mu.Unlock()

	bars, err := c.src.LoadPriceData(ctx, ticker, start, end)
	if ctx.Err() != nil {
		// cancellation is not a property of the data
		return bars, err
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{bars: bars, err: err}
	c.mu.Unlock()
	return bars, err
}

// GetPriceAtTime delegates to the wrapped source
func (c *PriceCache) GetPriceAtTime(ctx context.Context, ticker string, t time.Time) (decimal.Decimal, error) {
	return c.src.GetPriceAtTime(ctx, ticker, t)
}

// Stats returns hit and miss counts
func (c *PriceCache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
