package websearch

import (
	"sync"
	"time"
)

// pageCache is a TTL cache for fetched page content. Expired entries are
// dropped lazily on read and swept whenever the cache grows past maxEntries.
type pageCache struct {
	mu         sync.RWMutex
	entries    map[string]cacheEntry
	ttl        time.Duration
	maxEntries int
}

type cacheEntry struct {
	content   *PageContent
	expiresAt time.Time
}

func newPageCache(ttl time.Duration, maxEntries int) *pageCache {
	if maxEntries <= 0 {
		maxEntries = 512
	}
	return &pageCache{
		entries:    make(map[string]cacheEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
	}
}

func (c *pageCache) get(url string) (*PageContent, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	c.mu.RLock()
	entry, ok := c.entries[url]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, url)
		c.mu.Unlock()
		return nil, false
	}
	copied := *entry.content
	copied.FromCache = true
	return &copied, true
}

func (c *pageCache) put(url string, content *PageContent) {
	if c.ttl <= 0 || content == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= c.maxEntries {
		c.sweepLocked()
	}
	copied := *content
	c.entries[url] = cacheEntry{content: &copied, expiresAt: time.Now().Add(c.ttl)}
}

// sweepLocked removes expired entries; if none expired, the cache simply stays
// at its cap and the oldest entries age out over time.
func (c *pageCache) sweepLocked() {
	now := time.Now()
	for url, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, url)
		}
	}
}

func (c *pageCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
