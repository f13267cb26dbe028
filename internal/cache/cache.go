// Package cache holds the redis-backed read cache for the public listing
// pages. The cache is strictly best-effort: every failure falls through to
// the store and is logged, never surfaced to the caller.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/wanderhq/wanderlust/internal/logging"
)

// Cache wraps a redis client. A nil *Cache (or one built from a nil
// client) is valid and disables caching entirely.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
	log zerolog.Logger
}

// Invalidation bumps a namespace version instead of scanning for keys:
// every cached page key embeds the current version, so one INCR orphans
// the whole namespace at once.
const versionKey = "listings:version"

// New creates a cache over rdb. Pass nil to disable caching.
func New(rdb *redis.Client, ttl time.Duration) *Cache {
	return &Cache{
		rdb: rdb,
		ttl: ttl,
		log: logging.NewLogger("cache"),
	}
}

func (c *Cache) enabled() bool {
	return c != nil && c.rdb != nil
}

func (c *Cache) pageKey(ctx context.Context, key string) (string, error) {
	version, err := c.rdb.Get(ctx, versionKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	return fmt.Sprintf("listings:v%d:%s", version, key), nil
}

// GetListingPage loads a cached page into dest. Returns false on miss or
// any redis/decoding failure.
func (c *Cache) GetListingPage(ctx context.Context, key string, dest any) bool {
	if !c.enabled() {
		return false
	}

	fullKey, err := c.pageKey(ctx, key)
	if err != nil {
		c.log.Warn().Err(err).Msg("cache version lookup failed")
		return false
	}

	raw, err := c.rdb.Get(ctx, fullKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn().Err(err).Str("key", fullKey).Msg("cache read failed")
		}
		return false
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		c.log.Warn().Err(err).Str("key", fullKey).Msg("cache decode failed")
		return false
	}
	return true
}

// SetListingPage stores a page under the current namespace version.
func (c *Cache) SetListingPage(ctx context.Context, key string, value any) {
	if !c.enabled() {
		return
	}

	fullKey, err := c.pageKey(ctx, key)
	if err != nil {
		c.log.Warn().Err(err).Msg("cache version lookup failed")
		return
	}

	raw, err := json.Marshal(value)
	if err != nil {
		c.log.Warn().Err(err).Str("key", fullKey).Msg("cache encode failed")
		return
	}

	if err := c.rdb.Set(ctx, fullKey, raw, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", fullKey).Msg("cache write failed")
	}
}

// InvalidateListings orphans every cached listing page. Called after any
// mutation that can change what the public sees.
func (c *Cache) InvalidateListings(ctx context.Context) {
	if !c.enabled() {
		return
	}
	if err := c.rdb.Incr(ctx, versionKey).Err(); err != nil {
		c.log.Warn().Err(err).Msg("cache invalidation failed")
	}
}
