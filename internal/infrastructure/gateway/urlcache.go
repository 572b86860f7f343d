package gateway

import (
	"context"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// URLCache is the positive cache in front of display-URL resolution.
type URLCache interface {
	Get(key string) (string, bool)
	Set(key, value string, ttl time.Duration)
}

// MemoryURLCache keeps resolved URLs in process.
type MemoryURLCache struct {
	cache *gocache.Cache
}

func NewMemoryURLCache() *MemoryURLCache {
	return &MemoryURLCache{cache: gocache.New(10*time.Minute, 15*time.Minute)}
}

func (c *MemoryURLCache) Get(key string) (string, bool) {
	if v, found := c.cache.Get(key); found {
		return v.(string), true
	}
	return "", false
}

func (c *MemoryURLCache) Set(key, value string, ttl time.Duration) {
	c.cache.Set(key, value, ttl)
}

// RedisURLCache shares resolved URLs across processes.
type RedisURLCache struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisURLCache(rdb *redis.Client) *RedisURLCache {
	return &RedisURLCache{rdb: rdb, prefix: "displayurl:"}
}

func (c *RedisURLCache) Get(key string) (string, bool) {
	v, err := c.rdb.Get(context.Background(), c.prefix+key).Result()
	if err != nil {
		return "", false
	}
	return v, true
}

func (c *RedisURLCache) Set(key, value string, ttl time.Duration) {
	c.rdb.Set(context.Background(), c.prefix+key, value, ttl)
}

// MemcachedURLCache is the memcached-backed variant.
type MemcachedURLCache struct {
	mc *memcache.Client
}

func NewMemcachedURLCache(mc *memcache.Client) *MemcachedURLCache {
	return &MemcachedURLCache{mc: mc}
}

func (c *MemcachedURLCache) Get(key string) (string, bool) {
	item, err := c.mc.Get(key)
	if err != nil {
		return "", false
	}
	return string(item.Value), true
}

func (c *MemcachedURLCache) Set(key, value string, ttl time.Duration) {
	_ = c.mc.Set(&memcache.Item{
		Key:        key,
		Value:      []byte(value),
		Expiration: int32(ttl / time.Second),
	})
}
