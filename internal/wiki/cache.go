package wiki

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores resolved pages keyed by the requested title.
type Cache interface {
	Get(ctx context.Context, key string) (*Page, bool)
	Set(ctx context.Context, key string, page *Page)
}

func cacheKey(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

type memoryEntry struct {
	page    *Page
	expires time.Time
}

// DefaultMaxCacheEntries bounds MemoryCache when no limit is given.
const DefaultMaxCacheEntries = 1000

// MemoryCache is an in-process page cache with per-entry expiry. Expired
// entries are swept on writes at most once per TTL, and the oldest entry is
// evicted when the cache is full.
type MemoryCache struct {
	mu        sync.Mutex
	ttl       time.Duration
	max       int
	entries   map[string]memoryEntry
	lastSweep time.Time
	now       func() time.Time
}

// NewMemoryCache returns a cache holding at most maxEntries pages
// (DefaultMaxCacheEntries when maxEntries <= 0).
func NewMemoryCache(ttl time.Duration, maxEntries int) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxCacheEntries
	}
	return &MemoryCache{ttl: ttl, max: maxEntries, entries: make(map[string]memoryEntry), now: time.Now}
}

func (c *MemoryCache) expired(e memoryEntry, now time.Time) bool {
	return c.ttl > 0 && now.After(e.expires)
}

func (c *MemoryCache) Get(_ context.Context, key string) (*Page, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := cacheKey(key)
	e, ok := c.entries[k]
	if !ok {
		return nil, false
	}
	if c.expired(e, c.now()) {
		delete(c.entries, k)
		return nil, false
	}
	return e.page, true
}

func (c *MemoryCache) Set(_ context.Context, key string, page *Page) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	k := cacheKey(key)

	if c.ttl > 0 && now.Sub(c.lastSweep) >= c.ttl {
		c.sweepLocked(now)
	}
	if _, exists := c.entries[k]; !exists && len(c.entries) >= c.max {
		c.sweepLocked(now)
		if len(c.entries) >= c.max {
			c.evictOldestLocked()
		}
	}
	c.entries[k] = memoryEntry{page: page, expires: now.Add(c.ttl)}
}

func (c *MemoryCache) sweepLocked(now time.Time) {
	for k, e := range c.entries {
		if c.expired(e, now) {
			delete(c.entries, k)
		}
	}
	c.lastSweep = now
}

// Every entry shares one TTL, so the earliest expiry is the oldest write.
func (c *MemoryCache) evictOldestLocked() {
	var (
		oldest   string
		oldestAt time.Time
		found    bool
	)
	for k, e := range c.entries {
		if !found || e.expires.Before(oldestAt) {
			oldest, oldestAt, found = k, e.expires, true
		}
	}
	if found {
		delete(c.entries, oldest)
	}
}

func (c *MemoryCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// RedisCache keeps pages as JSON under wiki:page:<title> with a TTL.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func redisPageKey(title string) string {
	return "wiki:page:" + cacheKey(title)
}

func (c *RedisCache) Get(ctx context.Context, key string) (*Page, bool) {
	raw, err := c.rdb.Get(ctx, redisPageKey(key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("[Wiki] Cache read failed for %q: %v", key, err)
		}
		return nil, false
	}
	var page Page
	if err := json.Unmarshal(raw, &page); err != nil {
		log.Printf("[Wiki] Dropping corrupt cache entry %q: %v", key, err)
		return nil, false
	}
	return &page, true
}

func (c *RedisCache) Set(ctx context.Context, key string, page *Page) {
	raw, err := json.Marshal(page)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, redisPageKey(key), raw, c.ttl).Err(); err != nil {
		log.Printf("[Wiki] Cache write failed for %q: %v", key, err)
	}
}
