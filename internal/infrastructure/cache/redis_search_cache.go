package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/realty/backend/internal/domain/listing"
	"github.com/realty/backend/internal/domain/shared"
)

const (
	defaultSearchKeyPrefix = "realty:search:"
	defaultSearchTTL       = 5 * time.Minute
)

// RedisSearchCache stores search pages in Redis under versioned keys.
// Invalidate bumps the version, so every earlier entry becomes unreachable
// at once and expires on its own TTL; no key scan is needed.
type RedisSearchCache struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
	logger    *zap.Logger
}

// RedisSearchCacheOption configures a RedisSearchCache
type RedisSearchCacheOption func(*RedisSearchCache)

// WithKeyPrefix sets the namespace of every key
func WithKeyPrefix(prefix string) RedisSearchCacheOption {
	return func(c *RedisSearchCache) {
		if prefix != "" {
			c.keyPrefix = prefix
		}
	}
}

// WithTTL sets the lifetime of cached pages
func WithTTL(ttl time.Duration) RedisSearchCacheOption {
	return func(c *RedisSearchCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithRedisLogger sets the logger
func WithRedisLogger(logger *zap.Logger) RedisSearchCacheOption {
	return func(c *RedisSearchCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewRedisSearchCache creates a cache on an existing client
func NewRedisSearchCache(client redis.UniversalClient, opts ...RedisSearchCacheOption) *RedisSearchCache {
	c := &RedisSearchCache{
		client:    client,
		keyPrefix: defaultSearchKeyPrefix,
		ttl:       defaultSearchTTL,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewRedisClient connects and pings
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c *RedisSearchCache) versionKey() string {
	return c.keyPrefix + "version"
}

func (c *RedisSearchCache) entryKey(version int64, key string) string {
	return fmt.Sprintf("%sv%d:%s", c.keyPrefix, version, key)
}

func (c *RedisSearchCache) version(ctx context.Context) (int64, error) {
	v, err := c.client.Get(ctx, c.versionKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// Get returns a cached page. Redis errors are logged and read as a miss.
func (c *RedisSearchCache) Get(ctx context.Context, key string) (*shared.Paginated[listing.Property], bool) {
	version, err := c.version(ctx)
	if err != nil {
		c.logger.Debug("search cache version lookup failed", zap.Error(err))
		return nil, false
	}

	data, err := c.client.Get(ctx, c.entryKey(version, key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Debug("search cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	var page shared.Paginated[listing.Property]
	if err := json.Unmarshal(data, &page); err != nil {
		c.logger.Warn("search cache entry is corrupt", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return &page, true
}

// Set stores a page under the current version
func (c *RedisSearchCache) Set(ctx context.Context, key string, page *shared.Paginated[listing.Property]) {
	if page == nil {
		return
	}
	version, err := c.version(ctx)
	if err != nil {
		c.logger.Debug("search cache version lookup failed", zap.Error(err))
		return
	}
	data, err := json.Marshal(page)
	if err != nil {
		c.logger.Warn("search page is not serializable", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, c.entryKey(version, key), data, c.ttl).Err(); err != nil {
		c.logger.Debug("search cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate moves every reader to a fresh version
func (c *RedisSearchCache) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, c.versionKey()).Err(); err != nil {
		return fmt.Errorf("failed to bump search cache version: %w", err)
	}
	return nil
}

// Close closes the underlying client
func (c *RedisSearchCache) Close() error {
	return c.client.Close()
}

var _ listing.SearchCache = (*RedisSearchCache)(nil)
