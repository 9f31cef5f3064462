package marketdata

import (
	"container/list"
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"regimefolio/internal/domain"
)

// DefaultCacheCapacity is the number of price tables kept in memory.
const DefaultCacheCapacity = 128

// Cache is an LRU layer in front of a price Provider. Concurrent misses for
// the same key are collapsed into one underlying fetch; failures are never
// cached. Ticker order is part of the key, so the same assets requested in a
// different order fetch and cache separately.
type Cache struct {
	next     Provider
	capacity int
	log      zerolog.Logger

	mu    sync.Mutex
	order *list.List // front is most recently used
	items map[string]*list.Element

	group singleflight.Group
}

type cacheEntry struct {
	key   string
	table *PriceTable
}

// NewCache wraps a provider with an LRU cache. Capacity <= 0 uses the default.
func NewCache(next Provider, capacity int, log zerolog.Logger) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &Cache{
		next:     next,
		capacity: capacity,
		log:      log.With().Str("component", "price_cache").Logger(),
		order:    list.New(),
		items:    make(map[string]*list.Element),
	}
}

func cacheKey(tickers []string, dateRange domain.DateRange) string {
	return strings.Join(tickers, ",") + "|" + dateRange.Start + "|" + dateRange.End
}

// FetchPrices serves from cache when possible, otherwise delegates to the
// underlying provider and caches the successful result.
func (c *Cache) FetchPrices(ctx context.Context, tickers []string, dateRange domain.DateRange) (*PriceTable, error) {
	key := cacheKey(tickers, dateRange)

	if table, ok := c.get(key); ok {
		c.log.Debug().Str("key", key).Msg("Price cache hit")
		return table, nil
	}
	c.log.Debug().Str("key", key).Msg("Price cache miss")

	result, err, shared := c.group.Do(key, func() (interface{}, error) {
		table, err := c.next.FetchPrices(ctx, tickers, dateRange)
		if err != nil {
			return nil, err
		}
		c.put(key, table)
		return table, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.log.Debug().Str("key", key).Msg("Price fetch shared with concurrent request")
	}
	return result.(*PriceTable), nil
}

func (c *Cache) get(key string) (*PriceTable, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*cacheEntry).table, true
}

func (c *Cache) put(key string, table *PriceTable) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.order.MoveToFront(elem)
		elem.Value.(*cacheEntry).table = table
		return
	}

	c.items[key] = c.order.PushFront(&cacheEntry{key: key, table: table})
	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).key)
	}
}

// Len reports the number of cached tables.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
