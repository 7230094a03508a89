package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pos/analytics/internal/domain/credit"
	"github.com/pos/analytics/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// DefaultCacheTTL bounds how long a cached result is served
const DefaultCacheTTL = 5 * time.Minute

// DefaultKeyPrefix namespaces cache keys
const DefaultKeyPrefix = "pos:analytics"

// ReportCache stores serialized results with a time-to-live
type ReportCache interface {
	// Get returns the cached value and whether it was found
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// InvalidatePrefix removes every key starting with prefix
	InvalidatePrefix(ctx context.Context, prefix string) error
}

// CachedService serves results from a ReportCache and computes them through
// a Service on a miss. Cache failures degrade to computing; they never fail a call.
type CachedService struct {
	svc    *Service
	cache  ReportCache
	ttl    time.Duration
	prefix string
	logger *zap.Logger
}

// CacheOption configures a CachedService
type CacheOption func(*CachedService)

// WithTTL sets the time-to-live of cached results
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *CachedService) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithKeyPrefix sets the namespace of cache keys
func WithKeyPrefix(prefix string) CacheOption {
	return func(c *CachedService) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}

// WithCacheLogger sets the logger
func WithCacheLogger(logger *zap.Logger) CacheOption {
	return func(c *CachedService) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCachedService wraps svc with cache
func NewCachedService(svc *Service, cache ReportCache, opts ...CacheOption) *CachedService {
	c := &CachedService{
		svc:    svc,
		cache:  cache,
		ttl:    DefaultCacheTTL,
		prefix: DefaultKeyPrefix,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run returns the cached result for the query within scope, or loads the
// snapshot from source, computes and caches it. Scope identifies the data
// set, such as a tenant or a snapshot file.
func (c *CachedService) Run(ctx context.Context, scope string, source SnapshotSource, q Query) (*Result, error) {
	p, err := c.svc.plan(q)
	if err != nil {
		return nil, err
	}
	key := c.key(scope, p)
	ctx, _ = logger.WithScope(ctx, c.logger, scope)
	ctx = c.svc.beginRun(ctx)

	if data, ok, err := c.cache.Get(ctx, key); err != nil {
		c.logger.Warn("Failed to read cached report", zap.String("key", key), zap.Error(err))
	} else if ok {
		var res Result
		if err := json.Unmarshal(data, &res); err == nil {
			c.logger.Debug("Serving cached report", zap.String("key", key))
			return &res, nil
		}
		c.logger.Warn("Discarding undecodable cached report", zap.String("key", key))
	}

	snapshot, err := source.LoadSnapshot(ctx, p.window)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	res, err := c.svc.compute(ctx, c.svc.normalize(snapshot), p)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(res)
	if err != nil {
		c.logger.Warn("Failed to encode report for cache", zap.String("key", key), zap.Error(err))
		return res, nil
	}
	if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("Failed to cache report", zap.String("key", key), zap.Error(err))
	}
	return res, nil
}

// ApplyPayment applies a payment and drops every cached result of scope
func (c *CachedService) ApplyPayment(ctx context.Context, scope string, rec credit.Record, event credit.PaymentEvent) (credit.Record, credit.ClampEvent, error) {
	next, outcome, err := c.svc.ApplyPayment(ctx, rec, event)
	if err != nil {
		return next, outcome, err
	}
	c.Invalidate(ctx, scope)
	return next, outcome, nil
}

// Invalidate drops every cached result of scope
func (c *CachedService) Invalidate(ctx context.Context, scope string) {
	prefix := c.scopePrefix(scope)
	if err := c.cache.InvalidatePrefix(ctx, prefix); err != nil {
		c.logger.Warn("Failed to invalidate cached reports", zap.String("prefix", prefix), zap.Error(err))
	}
}

func (c *CachedService) scopePrefix(scope string) string {
	return c.prefix + ":" + escapeKeyPart(scope) + ":"
}

// key is built from every field that changes a result
func (c *CachedService) key(scope string, p queryPlan) string {
	return fmt.Sprintf("%s%s|%s|%s|rank=%d|now=%s|%s",
		c.scopePrefix(scope),
		p.grouping,
		p.window.Start.UTC().Format(time.RFC3339Nano),
		p.window.End.UTC().Format(time.RFC3339Nano),
		p.query.RankTopN,
		p.now.UTC().Format("2006-01-02"),
		p.options.Fingerprint(),
	)
}

func escapeKeyPart(s string) string {
	return strings.NewReplacer(":", "_", "*", "_", "?", "_", "[", "_", "]", "_").Replace(s)
}
