package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/realty/backend/internal/domain/listing"
	"github.com/realty/backend/internal/domain/shared"
)

const (
	defaultCleanupInterval = 30 * time.Second
	defaultLocalMaxEntries = 1024
)

// LocalSearchCache keeps search pages in process memory. It serves a single
// instance; use RedisSearchCache when several instances share a database.
type LocalSearchCache struct {
	mu         sync.Mutex
	entries    map[string]cacheEntry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	logger     *zap.Logger

	stopCh   chan struct{}
	stopOnce sync.Once

	hits   int64
	misses int64
}

type cacheEntry struct {
	page      *shared.Paginated[listing.Property]
	expiresAt time.Time
}

// LocalSearchCacheOption configures a LocalSearchCache
type LocalSearchCacheOption func(*LocalSearchCache)

// WithLocalTTL sets the lifetime of cached pages
func WithLocalTTL(ttl time.Duration) LocalSearchCacheOption {
	return func(c *LocalSearchCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithMaxEntries bounds the number of cached pages
func WithMaxEntries(n int) LocalSearchCacheOption {
	return func(c *LocalSearchCache) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// WithLocalLogger sets the logger
func WithLocalLogger(logger *zap.Logger) LocalSearchCacheOption {
	return func(c *LocalSearchCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// withClock replaces the clock in tests
func withClock(now func() time.Time) LocalSearchCacheOption {
	return func(c *LocalSearchCache) {
		c.now = now
	}
}

// NewLocalSearchCache creates the cache and starts its cleanup goroutine;
// call Close to stop it
func NewLocalSearchCache(opts ...LocalSearchCacheOption) *LocalSearchCache {
	c := &LocalSearchCache{
		entries:    make(map[string]cacheEntry),
		ttl:        defaultSearchTTL,
		maxEntries: defaultLocalMaxEntries,
		now:        time.Now,
		logger:     zap.NewNop(),
		stopCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.cleanupExpired()
	return c
}

// Get returns a live cached page
func (c *LocalSearchCache) Get(_ context.Context, key string) (*shared.Paginated[listing.Property], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if ok && c.now().Before(entry.expiresAt) {
		atomic.AddInt64(&c.hits, 1)
		return entry.page, true
	}
	if ok {
		delete(c.entries, key)
	}
	atomic.AddInt64(&c.misses, 1)
	return nil, false
}

// Set stores a page. When full, expired entries are swept first and the
// cache is emptied if that frees nothing.
func (c *LocalSearchCache) Set(_ context.Context, key string, page *shared.Paginated[listing.Property]) {
	if page == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.sweepLocked()
		if len(c.entries) >= c.maxEntries {
			c.entries = make(map[string]cacheEntry)
		}
	}
	c.entries[key] = cacheEntry{page: page, expiresAt: c.now().Add(c.ttl)}
}

// Invalidate drops every entry
func (c *LocalSearchCache) Invalidate(context.Context) error {
	c.mu.Lock()
	dropped := len(c.entries)
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()

	c.logger.Debug("search cache invalidated", zap.Int("dropped", dropped))
	return nil
}

// Len is the number of stored entries, live or not yet swept
func (c *LocalSearchCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns hit and miss counts
func (c *LocalSearchCache) Stats() (hits, misses int64) {
	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses)
}

// Close stops the cleanup goroutine
func (c *LocalSearchCache) Close() error {
	c.stopOnce.Do(func() { close(c.stopCh) })
	return nil
}

func (c *LocalSearchCache) cleanupExpired() {
	ticker := time.NewTicker(defaultCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.mu.Lock()
			c.sweepLocked()
			c.mu.Unlock()
		}
	}
}

func (c *LocalSearchCache) sweepLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

var _ listing.SearchCache = (*LocalSearchCache)(nil)
