package cache

import (
	"context"
	"strings"
	"time"

	"github.com/assistly/billing/internal/config"
	"github.com/assistly/billing/internal/logger"
	goCache "github.com/patrickmn/go-cache"
)

// DefaultExpiration is the default expiration time for cache entries
const DefaultExpiration = 30 * time.Second

// DefaultCleanupInterval is how often expired items are removed from the cache
const DefaultCleanupInterval = 5 * time.Minute

// InMemoryCache implements the Cache interface using github.com/patrickmn/go-cache.
// When caching is disabled in config every call is a miss or a no-op.
type InMemoryCache struct {
	cache   *goCache.Cache
	enabled bool
}

// NewInMemoryCache builds the process-local cache from config
func NewInMemoryCache(cfg *config.Configuration, log *logger.Logger) Cache {
	ttl := cfg.Coupon.CacheTTL
	if ttl <= 0 {
		ttl = DefaultExpiration
	}

	if !cfg.Cache.Enabled {
		log.Info("cache is disabled")
	}

	return &InMemoryCache{
		cache:   goCache.New(ttl, DefaultCleanupInterval),
		enabled: cfg.Cache.Enabled,
	}
}

// Get retrieves a value from the cache
func (c *InMemoryCache) Get(_ context.Context, key string) (interface{}, bool) {
	if !c.enabled {
		return nil, false
	}
	return c.cache.Get(key)
}

// Set adds a value to the cache with the specified expiration
func (c *InMemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) {
	if !c.enabled {
		return
	}
	if expiration == 0 {
		expiration = goCache.DefaultExpiration
	}
	c.cache.Set(key, value, expiration)
}

// Delete removes a key from the cache
func (c *InMemoryCache) Delete(_ context.Context, key string) {
	if !c.enabled {
		return
	}
	c.cache.Delete(key)
}

// DeleteByPrefix removes all keys with the given prefix
func (c *InMemoryCache) DeleteByPrefix(_ context.Context, prefix string) {
	if !c.enabled {
		return
	}
	for k := range c.cache.Items() {
		if strings.HasPrefix(k, prefix) {
			c.cache.Delete(k)
		}
	}
}

// Flush removes all items from the cache
func (c *InMemoryCache) Flush(_ context.Context) {
	if !c.enabled {
		return
	}
	c.cache.Flush()
}
