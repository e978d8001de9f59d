package analyzer

import (
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"
)

const (
	// DefaultCacheTTL is how long a cached analysis stays fresh.
	DefaultCacheTTL = 15 * time.Minute
	// DefaultCacheSize caps the number of cached analyses.
	DefaultCacheSize = 100
)

type cacheEntry struct {
	result   Result
	storedAt time.Time
}

/* resultCache is a process-local cache for analysis results keyed by a
 * fingerprint of the webhook plus the model that produced the result.
 * Expired entries are dropped on read and write; when the cache grows
 * past its capacity the oldest entries go first.
 */
type resultCache struct {
	mu       sync.Mutex
	entries  map[string]cacheEntry
	ttl      time.Duration
	capacity int
	now      func() time.Time
}

func newResultCache(ttl time.Duration, capacity int) *resultCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &resultCache{
		entries:  make(map[string]cacheEntry),
		ttl:      ttl,
		capacity: capacity,
		now:      time.Now,
	}
}

func (c *resultCache) Get(key string) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return Result{}, false
	}
	if c.now().Sub(entry.storedAt) > c.ttl {
		delete(c.entries, key)
		return Result{}, false
	}
	return entry.result, true
}

func (c *resultCache) Set(key string, result Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{result: result, storedAt: c.now()}
	c.clean()
}

// clean drops expired entries, then evicts oldest-first down to capacity.
// Callers must hold the mutex.
func (c *resultCache) clean() {
	now := c.now()
	for key, entry := range c.entries {
		if now.Sub(entry.storedAt) > c.ttl {
			delete(c.entries, key)
		}
	}

	for len(c.entries) > c.capacity {
		var oldestKey string
		var oldestAt time.Time
		first := true
		for key, entry := range c.entries {
			if first || entry.storedAt.Before(oldestAt) {
				oldestKey = key
				oldestAt = entry.storedAt
				first = false
			}
		}
		delete(c.entries, oldestKey)
	}
}

func (c *resultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// cacheKey fingerprints a webhook for cache lookups. Two webhooks with
// the same provider, method, path, headers and body analyzed by the
// same model share an entry.
func cacheKey(provider, method, path string, headers map[string]string, body []byte, model string) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s|%s",
		provider, method, path, hashBytes(body), hashHeaders(headers), model)
}

func hashBytes(data []byte) string {
	h := fnv.New64a()
	h.Write(data)
	return fmt.Sprintf("%x", h.Sum64())
}

func hashHeaders(headers map[string]string) string {
	keys := make([]string, 0, len(headers))
	for key := range headers {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	h := fnv.New64a()
	for _, key := range keys {
		fmt.Fprintf(h, "%s=%s;", key, headers[key])
	}
	return fmt.Sprintf("%x", h.Sum64())
}
