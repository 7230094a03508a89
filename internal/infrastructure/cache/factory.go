package cache

import (
	"fmt"
	"io"

	"github.com/pos/analytics/internal/application/analytics"
	"github.com/pos/analytics/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Cache is a report cache that holds resources to release
type Cache interface {
	analytics.ReportCache
	io.Closer
}

// ReportCacheFactory creates report caches based on configuration
type ReportCacheFactory struct {
	redisConfig           config.RedisConfig
	cacheConfig           config.CacheConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// ReportCacheFactoryOption is a functional option for configuring the factory
type ReportCacheFactoryOption func(*ReportCacheFactory)

// WithLogger sets the logger for the factory and the caches it creates
func WithLogger(logger *zap.Logger) ReportCacheFactoryOption {
	return func(f *ReportCacheFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to the in-memory cache when Redis is unavailable.
// Default is the cache config's AllowInMemoryFallback.
func WithInMemoryFallback(allow bool) ReportCacheFactoryOption {
	return func(f *ReportCacheFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewReportCacheFactory creates a new factory
func NewReportCacheFactory(redisCfg config.RedisConfig, cacheCfg config.CacheConfig, opts ...ReportCacheFactoryOption) *ReportCacheFactory {
	f := &ReportCacheFactory{
		redisConfig:           redisCfg,
		cacheConfig:           cacheCfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: cacheCfg.AllowInMemoryFallback,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateRedisCache creates a Redis-backed report cache
func (f *ReportCacheFactory) CreateRedisCache() (*RedisReportCache, error) {
	c, err := NewRedisReportCache(f.redisConfig, WithRedisLogger(f.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis report cache: %w", err)
	}
	return c, nil
}

// CreateInMemoryCache creates an in-memory report cache.
// In-memory caches are not shared across processes, so invalidation only
// reaches the process that applied the payment.
func (f *ReportCacheFactory) CreateInMemoryCache() *InMemoryReportCache {
	return NewInMemoryReportCache(WithCleanupInterval(f.cacheConfig.CleanupInterval))
}

// CreateCache creates the cache selected by the configured backend.
// A redis backend falls back to in-memory when Redis is unreachable and
// fallback is allowed.
func (f *ReportCacheFactory) CreateCache() (Cache, error) {
	if f.cacheConfig.Backend != "redis" {
		f.logger.Info("using in-memory report cache")
		return f.CreateInMemoryCache(), nil
	}

	c, err := f.CreateRedisCache()
	if err == nil {
		f.logger.Info("using Redis report cache", zap.String("addr", f.redisConfig.Addr()))
		return c, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for report cache but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory report cache. "+
		"Payments applied by other instances will not invalidate cached reports here.",
		zap.Error(err),
	)
	return f.CreateInMemoryCache(), nil
}
