package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pos/analytics/internal/application/analytics"
	"github.com/pos/analytics/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultScanBatchSize = 100
	defaultPingTimeout   = 5 * time.Second
)

// RedisReportCache implements analytics.ReportCache using Redis.
// This is suitable for distributed deployments where several report
// workers share cached results.
type RedisReportCache struct {
	client     *redis.Client
	ownsClient bool // true if we created the client and should close it
	logger     *zap.Logger
}

// RedisOption is a functional option for configuring the cache
type RedisOption func(*RedisReportCache)

// WithRedisLogger sets the logger for the cache
func WithRedisLogger(logger *zap.Logger) RedisOption {
	return func(c *RedisReportCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewRedisReportCache connects to Redis and verifies the connection with a ping
func NewRedisReportCache(cfg config.RedisConfig, opts ...RedisOption) (*RedisReportCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), defaultPingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	c := &RedisReportCache{
		client:     client,
		ownsClient: true,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewRedisReportCacheWithClient creates a cache with an existing Redis client.
// The caller retains ownership of the client and is responsible for closing it.
func NewRedisReportCacheWithClient(client *redis.Client, opts ...RedisOption) *RedisReportCache {
	c := &RedisReportCache{
		client: client,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get retrieves a cached report
func (c *RedisReportCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.logger.Debug("Cache miss for report", zap.String("key", key))
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get report from cache: %w", err)
	}
	return data, true, nil
}

// Set stores a report. A non-positive ttl stores the key without expiry.
func (c *RedisReportCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set report in cache: %w", err)
	}
	return nil
}

// InvalidatePrefix deletes every key under prefix.
// Uses SCAN rather than KEYS so a large keyspace does not block Redis.
func (c *RedisReportCache) InvalidatePrefix(ctx context.Context, prefix string) error {
	var cursor uint64
	var deletedCount int64
	pattern := prefix + "*"

	for {
		var keys []string
		var err error
		keys, cursor, err = c.client.Scan(ctx, cursor, pattern, defaultScanBatchSize).Result()
		if err != nil {
			return fmt.Errorf("failed to scan cache keys: %w", err)
		}

		if len(keys) > 0 {
			deleted, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				return fmt.Errorf("failed to delete cache keys: %w", err)
			}
			deletedCount += deleted
		}

		if cursor == 0 {
			break
		}
	}

	c.logger.Debug("Invalidated cached reports",
		zap.String("prefix", prefix),
		zap.Int64("deleted", deletedCount))
	return nil
}

// Close closes the Redis client if this cache created it
func (c *RedisReportCache) Close() error {
	if !c.ownsClient {
		return nil
	}
	return c.client.Close()
}

// Client returns the underlying Redis client (for testing/monitoring)
func (c *RedisReportCache) Client() *redis.Client {
	return c.client
}

var _ analytics.ReportCache = (*RedisReportCache)(nil)
