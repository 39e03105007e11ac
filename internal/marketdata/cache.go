package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
)

const cachePrefix = "autotrade:"

// CachedProvider puts a short-TTL Redis cache in front of another provider,
// so a poll cycle touching many actions on the same symbol costs one
// upstream call. Cache failures fall through to the upstream; the cache is
// never authoritative.
type CachedProvider struct {
	upstream Provider
	rdb      *redis.Client
	ttl      time.Duration
}

func NewCachedProvider(upstream Provider, rdb *redis.Client, ttl time.Duration) *CachedProvider {
	return &CachedProvider{upstream: upstream, rdb: rdb, ttl: ttl}
}

func (c *CachedProvider) GetQuote(ctx context.Context, symbol string) (Quote, error) {
	key := fmt.Sprintf("%squote:%s", cachePrefix, symbol)

	if data, err := c.rdb.Get(ctx, key).Result(); err == nil {
		var q Quote
		if err := json.Unmarshal([]byte(data), &q); err == nil {
			return q, nil
		}
	} else if err != redis.Nil {
		log.Warnf("quote cache read failed for %s: %v", symbol, err)
	}

	q, err := c.upstream.GetQuote(ctx, symbol)
	if err != nil {
		return Quote{}, err
	}
	c.set(ctx, key, q)
	return q, nil
}

func (c *CachedProvider) GetChangePercent(ctx context.Context, symbol string) (float64, error) {
	key := fmt.Sprintf("%schange:%s", cachePrefix, symbol)

	if data, err := c.rdb.Get(ctx, key).Result(); err == nil {
		var pct float64
		if err := json.Unmarshal([]byte(data), &pct); err == nil {
			return pct, nil
		}
	} else if err != redis.Nil {
		log.Warnf("change cache read failed for %s: %v", symbol, err)
	}

	pct, err := c.upstream.GetChangePercent(ctx, symbol)
	if err != nil {
		return 0, err
	}
	c.set(ctx, key, pct)
	return pct, nil
}

func (c *CachedProvider) set(ctx context.Context, key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		log.Warnf("cache write failed for %s: %v", key, err)
	}
}
