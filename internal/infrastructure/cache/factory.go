package cache

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/realty/backend/internal/domain/listing"
	"github.com/realty/backend/internal/infrastructure/config"
)

// SearchCache is a listing.SearchCache that owns resources
type SearchCache interface {
	listing.SearchCache
	io.Closer
}

// SearchCacheFactory picks the search cache backend from configuration
type SearchCacheFactory struct {
	redisConfig        config.RedisConfig
	logger             *zap.Logger
	allowLocalFallback bool
}

// SearchCacheFactoryOption is a functional option for configuring the factory
type SearchCacheFactoryOption func(*SearchCacheFactory)

// WithLogger sets the logger for the factory and the caches it builds
func WithLogger(logger *zap.Logger) SearchCacheFactoryOption {
	return func(f *SearchCacheFactory) {
		f.logger = logger
	}
}

// WithLocalFallback controls whether an unreachable Redis degrades to the
// in-process cache. Default is true.
func WithLocalFallback(allow bool) SearchCacheFactoryOption {
	return func(f *SearchCacheFactory) {
		f.allowLocalFallback = allow
	}
}

// NewSearchCacheFactory creates a new factory
func NewSearchCacheFactory(cfg config.RedisConfig, opts ...SearchCacheFactoryOption) *SearchCacheFactory {
	f := &SearchCacheFactory{
		redisConfig:        cfg,
		logger:             zap.NewNop(),
		allowLocalFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateRedisCache connects to Redis and builds a versioned-key cache
func (f *SearchCacheFactory) CreateRedisCache(ctx context.Context) (*RedisSearchCache, error) {
	client, err := NewRedisClient(ctx, RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis search cache: %w", err)
	}
	return NewRedisSearchCache(client,
		WithTTL(f.redisConfig.CacheTTL),
		WithRedisLogger(f.logger),
	), nil
}

// CreateLocalCache builds the in-process cache
func (f *SearchCacheFactory) CreateLocalCache() *LocalSearchCache {
	return NewLocalSearchCache(
		WithLocalTTL(f.redisConfig.CacheTTL),
		WithLocalLogger(f.logger),
	)
}

// CreateCache uses Redis when enabled and reachable, otherwise the local
// cache if fallback is allowed
func (f *SearchCacheFactory) CreateCache(ctx context.Context) (SearchCache, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("Redis disabled, using in-process search cache")
		return f.CreateLocalCache(), nil
	}

	c, err := f.CreateRedisCache(ctx)
	if err == nil {
		f.logger.Info("using Redis search cache")
		return c, nil
	}
	if !f.allowLocalFallback {
		return nil, fmt.Errorf("Redis required for search cache but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-process search cache. "+
		"Instances will not share invalidations.",
		zap.Error(err),
	)
	return f.CreateLocalCache(), nil
}
