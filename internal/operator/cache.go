package operator

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CacheClient is the subset of go-redis used by Cache. *redis.Client satisfies it.
type CacheClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

const cacheKeyPrefix = "cdr:operator:"

// Cache is a read-through Redis cache in front of another Lookup.
//
// Only successful lookups are cached. Redis errors never fail a lookup; they fall through
// to the wrapped service.
type Cache struct {
	next Lookup
	rdb  CacheClient
	ttl  time.Duration
}

// WithCache wraps next with a Redis cache. A nil client or ttl <= 0 leaves next unwrapped.
func WithCache(next Lookup, rdb CacheClient, ttl time.Duration) Lookup {
	if rdb == nil || ttl <= 0 {
		return next
	}
	return &Cache{next: next, rdb: rdb, ttl: ttl}
}

func (c *Cache) Lookup(ctx context.Context, number, dateKey string) (Info, error) {
	key := cacheKey(number, dateKey)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var info Info
		if jerr := json.Unmarshal(raw, &info); jerr == nil {
			return info, nil
		}
		zap.L().Warn("operator cache entry unreadable", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		zap.L().Warn("operator cache read failed", zap.String("key", key), zap.Error(err))
	}

	info, err := c.next.Lookup(ctx, number, dateKey)
	if err != nil {
		return Info{}, err
	}

	if b, jerr := json.Marshal(info); jerr == nil {
		if serr := c.rdb.Set(ctx, key, b, c.ttl).Err(); serr != nil {
			zap.L().Warn("operator cache write failed", zap.String("key", key), zap.Error(serr))
		}
	}
	return info, nil
}

func cacheKey(number, dateKey string) string {
	return cacheKeyPrefix + dateKey + ":" + number
}
