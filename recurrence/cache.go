package recurrence

import (
	"crypto/sha256"
	"fmt"
	"slices"
	"sync"
	"time"
)

// CacheEntry represents a cached recurrence result
type CacheEntry struct {
	Result     any // bool for HasOccurrenceInRange, ExpansionResult for Expand
	ExpiresAt  time.Time
	AccessedAt time.Time
}

// RecurrenceCache caches engine results keyed by the recurrence definition
// and the queried range.
type RecurrenceCache struct {
	entries         map[string]*CacheEntry
	mutex           sync.RWMutex
	ttl             time.Duration
	maxEntries      int
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	closeOnce       sync.Once
}

// CacheConfig holds configuration for the recurrence cache
type CacheConfig struct {
	TTL             time.Duration `yaml:"ttl"`              // How long entries stay valid
	MaxEntries      int           `yaml:"max_entries"`      // Maximum number of entries before eviction
	CleanupInterval time.Duration `yaml:"cleanup_interval"` // How often to run cleanup
}

// DefaultCacheConfig provides sensible defaults for recurrence caching
var DefaultCacheConfig = CacheConfig{
	TTL:             15 * time.Minute,
	MaxEntries:      1000,
	CleanupInterval: 5 * time.Minute,
}

// NewRecurrenceCache creates a cache and starts its cleanup goroutine. Call
// Close to stop it.
func NewRecurrenceCache(config CacheConfig) *RecurrenceCache {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultCacheConfig.CleanupInterval
	}
	cache := &RecurrenceCache{
		entries:         make(map[string]*CacheEntry),
		ttl:             config.TTL,
		maxEntries:      config.MaxEntries,
		cleanupInterval: config.CleanupInterval,
		stopCleanup:     make(chan struct{}),
	}

	go cache.cleanupLoop()

	return cache
}

// generateCacheKey hashes the operation, the canonical recurrence and the range.
func (c *RecurrenceCache) generateCacheKey(operation string, ev *EventRecurrence, rangeStart, rangeEnd time.Time) string {
	hasher := sha256.New()
	hasher.Write([]byte(operation))
	hasher.Write([]byte{0})
	hasher.Write([]byte(ev.canonical()))
	hasher.Write([]byte(rangeStart.Format(time.RFC3339Nano)))
	hasher.Write([]byte(rangeEnd.Format(time.RFC3339Nano)))
	return fmt.Sprintf("%x", hasher.Sum(nil))
}

// Get retrieves a cached result if it exists and hasn't expired
func (c *RecurrenceCache) Get(operation string, ev *EventRecurrence, rangeStart, rangeEnd time.Time) (any, bool) {
	key := c.generateCacheKey(operation, ev, rangeStart, rangeEnd)

	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, exists := c.entries[key]
	if !exists {
		return nil, false
	}

	now := time.Now()
	if now.After(entry.ExpiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	entry.AccessedAt = now

	return entry.Result, true
}

// Set stores a result in the cache
func (c *RecurrenceCache) Set(operation string, ev *EventRecurrence, rangeStart, rangeEnd time.Time, result any) {
	key := c.generateCacheKey(operation, ev, rangeStart, rangeEnd)
	now := time.Now()

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries[key] = &CacheEntry{
		Result:     result,
		ExpiresAt:  now.Add(c.ttl),
		AccessedAt: now,
	}

	if len(c.entries) > c.maxEntries {
		c.cleanup()
	}
}

// cleanup removes expired entries, then the least recently accessed ones
// while over the limit. The caller holds the write lock.
func (c *RecurrenceCache) cleanup() {
	now := time.Now()

	for key, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			delete(c.entries, key)
		}
	}

	if len(c.entries) <= c.maxEntries {
		return
	}

	type keyAccess struct {
		key        string
		accessedAt time.Time
	}
	keys := make([]keyAccess, 0, len(c.entries))
	for key, entry := range c.entries {
		keys = append(keys, keyAccess{key: key, accessedAt: entry.AccessedAt})
	}
	slices.SortFunc(keys, func(a, b keyAccess) int {
		return a.accessedAt.Compare(b.accessedAt)
	})

	for _, k := range keys[:len(c.entries)-c.maxEntries] {
		delete(c.entries, k.key)
	}
}

func (c *RecurrenceCache) cleanupLoop() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mutex.Lock()
			c.cleanup()
			c.mutex.Unlock()
		case <-c.stopCleanup:
			return
		}
	}
}

// Close stops the cleanup goroutine and clears the cache. It is safe to call
// more than once.
func (c *RecurrenceCache) Close() {
	c.closeOnce.Do(func() { close(c.stopCleanup) })
	c.mutex.Lock()
	c.entries = make(map[string]*CacheEntry)
	c.mutex.Unlock()
}

// Stats returns cache statistics
func (c *RecurrenceCache) Stats() CacheStats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	now := time.Now()
	expired := 0
	for _, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			expired++
		}
	}

	return CacheStats{
		TotalEntries:   len(c.entries),
		ExpiredEntries: expired,
		ActiveEntries:  len(c.entries) - expired,
	}
}

// CacheStats provides information about cache contents
type CacheStats struct {
	TotalEntries   int
	ExpiredEntries int
	ActiveEntries  int
}
