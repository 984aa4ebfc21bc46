package network

import (
	"fmt"
	"strconv"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is how many built networks are kept when no size is configured
const DefaultCacheSize = 16

// Cache holds built raw networks keyed by feed version and collection buffer.
// Cached networks are shared between requests and must only be read;
// FilterByRadius never writes to its input, so its output is safe to hand out.
type Cache struct {
	lru    *lru.Cache[string, Network]
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewCache creates a cache holding up to size networks
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	l, err := lru.New[string, Network](size)
	if err != nil {
		return nil, fmt.Errorf("creating LRU cache: %w", err)
	}
	return &Cache{lru: l}, nil
}

func cacheKey(feedVersion string, bufferMeters float64) string {
	return feedVersion + ":" + strconv.FormatFloat(bufferMeters, 'f', -1, 64)
}

// GetOrBuild returns the cached network for the key, calling build on a miss.
// Failed builds are not cached.
func (c *Cache) GetOrBuild(feedVersion string, bufferMeters float64, build func() (Network, error)) (Network, error) {
	key := cacheKey(feedVersion, bufferMeters)
	if net, ok := c.lru.Get(key); ok {
		c.hits.Add(1)
		return net, nil
	}
	c.misses.Add(1)

	net, err := build()
	if err != nil {
		return Network{}, err
	}
	c.lru.Add(key, net)
	return net, nil
}

// Purge drops every cached network, used after the feed is refreshed
func (c *Cache) Purge() {
	c.lru.Purge()
}

// Len reports how many networks are cached
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Stats returns hit and miss counters since creation
func (c *Cache) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}
