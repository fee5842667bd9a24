// Package memorycache is the bounded in-process cache tier.
//
// Entries carry the routing table's per-type TTL, and the cache holds at most
// the configured number of entries. Touch-on-hit is disabled, so capacity
// eviction removes the oldest entry by write time. Not true LRU, but cheap
// and good enough for a hot-entry tier sitting in front of real storage.
package memorycache

import (
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

type Cache struct {
	cache *ttlcache.Cache[string, []byte]
}

func New(capacity uint64) *Cache {
	ttlCache := ttlcache.New[string, []byte](
		ttlcache.WithCapacity[string, []byte](capacity),
		ttlcache.WithDisableTouchOnHit[string, []byte](),
	)
	go ttlCache.Start()
	return &Cache{cache: ttlCache}
}

func (c *Cache) Get(key string) []byte {
	item := c.cache.Get(key)
	if item == nil {
		return nil
	}
	return item.Value()
}

func (c *Cache) Set(key string, data []byte, ttl time.Duration) {
	if ttl < 0 {
		ttl = ttlcache.NoTTL
	}
	c.cache.Set(key, data, ttl)
}

func (c *Cache) Delete(key string) {
	c.cache.Delete(key)
}

// DeleteByPrefix removes every entry whose key starts with prefix. Used by
// per-type clears, where keys are "<type>:<key>".
func (c *Cache) DeleteByPrefix(prefix string) {
	for _, key := range c.cache.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.cache.Delete(key)
		}
	}
}

func (c *Cache) Purge() {
	c.cache.DeleteAll()
}

func (c *Cache) Len() int {
	return c.cache.Len()
}

func (c *Cache) Stop() {
	c.cache.Stop()
}
