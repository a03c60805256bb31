// Package rankcache is a small Redis read-cache for ranking responses.
// Ranking a need re-scores every live offer, so the result is cached per
// need and dropped whenever one of its offers changes. The cache is
// optional: a nil *Cache misses on every read and ignores writes.
package rankcache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds staleness when an invalidation is missed.
const DefaultTTL = 2 * time.Minute

type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New creates a cache over the given client; ttl <= 0 uses DefaultTTL.
func New(rdb *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{rdb: rdb, ttl: ttl}
}

func key(needID string) string { return "ranking:" + needID }

// Get loads the cached ranking for a need into dest, reporting whether a
// cached value was present. Redis failures degrade to a miss.
func (c *Cache) Get(ctx context.Context, needID string, dest interface{}) bool {
	if c == nil || c.rdb == nil {
		return false
	}
	data, err := c.rdb.Get(ctx, key(needID)).Bytes()
	if err != nil {
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false
	}
	return true
}

// Set caches a ranking result for the need.
func (c *Cache) Set(ctx context.Context, needID string, v interface{}) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key(needID), data, c.ttl).Err()
}

// Invalidate drops the cached ranking for a need. Called after every
// offer transition touching the need.
func (c *Cache) Invalidate(ctx context.Context, needID string) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	err := c.rdb.Del(ctx, key(needID)).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}
