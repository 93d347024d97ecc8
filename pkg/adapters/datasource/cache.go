package datasource

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdata/pkg/models"
)

const schemaCacheKey = "schema"

// CachingIntrospector serves a discovered schema from memory until the TTL
// expires. Callers receive a deep copy so they may not mutate the cached value.
type CachingIntrospector struct {
	next   SchemaIntrospector
	cache  *ttlcache.Cache[string, models.Schema]
	logger *zap.Logger
}

// NewCachingIntrospector wraps next with a TTL cache.
func NewCachingIntrospector(next SchemaIntrospector, ttl time.Duration, logger *zap.Logger) *CachingIntrospector {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, models.Schema](ttl),
		ttlcache.WithDisableTouchOnHit[string, models.Schema](),
	)
	return &CachingIntrospector{
		next:   next,
		cache:  cache,
		logger: logger.Named("schema_cache"),
	}
}

// Discover implements SchemaIntrospector.
func (c *CachingIntrospector) Discover(ctx context.Context) (models.Schema, error) {
	if item := c.cache.Get(schemaCacheKey); item != nil {
		c.logger.Debug("Schema cache hit", zap.Time("expires_at", item.ExpiresAt()))
		return item.Value().Clone(), nil
	}

	schema, err := c.next.Discover(ctx)
	if err != nil {
		return nil, err
	}

	c.cache.Set(schemaCacheKey, schema.Clone(), ttlcache.DefaultTTL)
	return schema, nil
}

// Invalidate drops the cached schema.
func (c *CachingIntrospector) Invalidate() {
	c.cache.Delete(schemaCacheKey)
}

var _ SchemaIntrospector = (*CachingIntrospector)(nil)
