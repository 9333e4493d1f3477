package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// defaultCacheTTL keeps pricing snapshots hot for a minute; cost
// computation is intentionally non-retroactive, so slightly stale
// prices are acceptable.
const defaultCacheTTL = time.Minute

// CachedCatalog is a read-through cache in front of another Catalog.
// Any cache failure falls back to a direct read: pricing lookups must
// never fail because Redis is down.
type CachedCatalog struct {
	inner Catalog
	rdb   *redis.Client
	ttl   time.Duration
}

// NewCachedCatalog wraps a catalog with a Redis read-through cache.
// A nil client disables caching and passes reads straight through.
func NewCachedCatalog(inner Catalog, rdb *redis.Client) *CachedCatalog {
	return &CachedCatalog{inner: inner, rdb: rdb, ttl: defaultCacheTTL}
}

// GetPricing serves a cached snapshot when available, otherwise reads
// through and populates the cache.
func (c *CachedCatalog) GetPricing(ctx context.Context, modelID string) (Snapshot, error) {
	if c == nil || c.inner == nil {
		return Snapshot{}, errors.New("pricing: nil cached catalog")
	}
	if c.rdb == nil {
		return c.inner.GetPricing(ctx, modelID)
	}

	key := cacheKey(modelID)
	if payload, errGet := c.rdb.Get(ctx, key).Bytes(); errGet == nil {
		var snapshot Snapshot
		if errUnmarshal := json.Unmarshal(payload, &snapshot); errUnmarshal == nil {
			return snapshot, nil
		}
		// Corrupt entry: drop it and read through.
		_ = c.rdb.Del(ctx, key).Err()
	} else if !errors.Is(errGet, redis.Nil) {
		log.WithError(errGet).Debug("pricing cache: read failed, falling back to catalog")
	}

	snapshot, errInner := c.inner.GetPricing(ctx, modelID)
	if errInner != nil {
		return snapshot, errInner
	}

	if payload, errMarshal := json.Marshal(snapshot); errMarshal == nil {
		if errSet := c.rdb.Set(ctx, key, payload, c.ttl).Err(); errSet != nil {
			log.WithError(errSet).Debug("pricing cache: write failed")
		}
	}
	return snapshot, nil
}

func cacheKey(modelID string) string {
	return "pricing:model:" + modelID
}

// Ensure both implementations satisfy Catalog.
var (
	_ Catalog = (*GormCatalog)(nil)
	_ Catalog = (*CachedCatalog)(nil)
)
