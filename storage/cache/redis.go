// Package cache keeps generated results in Redis.
package cache

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/etudier/etudier/core"
	"github.com/etudier/etudier/core/generate"
)

const modulesPrefix = "etudier:modules:"

// SearchCache is a generate.SearchCache on Redis. Failures are logged and treated as misses.
type SearchCache struct {
	rdb    redis.UniversalClient
	ttl    time.Duration
	logger core.Logger
}

var _ generate.SearchCache = (*SearchCache)(nil)

func NewSearchCache(rdb redis.UniversalClient, ttl time.Duration, logger core.Logger) *SearchCache {
	return &SearchCache{rdb: rdb, ttl: ttl, logger: logger}
}

func (c *SearchCache) GetModules(ctx context.Context, key string) ([]generate.ModuleSuggestion, bool) {
	data, err := c.rdb.Get(ctx, modulesPrefix+key).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("reading module search cache", err)
		}
		return nil, false
	}

	var mods []generate.ModuleSuggestion
	if err = sonic.UnmarshalString(data, &mods); err != nil {
		c.logger.Warn("decoding module search cache", err)
		return nil, false
	}
	return mods, true
}

func (c *SearchCache) SetModules(ctx context.Context, key string, mods []generate.ModuleSuggestion) {
	data, err := sonic.MarshalString(mods)
	if err != nil {
		c.logger.Warn("encoding module search cache", err)
		return
	}
	if err = c.rdb.Set(ctx, modulesPrefix+key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("writing module search cache", err)
	}
}
