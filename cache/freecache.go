package cache

import (
	"context"
	"time"

	"github.com/coocood/freecache"
	"github.com/pkg/errors"
)

type FreeCacheOptions struct {
	// 缓存容量（字节），freecache 最小 512KB
	Size       int           `cfg:"size" def:"33554432"`
	DefaultTTL time.Duration `cfg:"defaultTTL"`
}

type FreeCache struct {
	cache      *freecache.Cache
	defaultTTL time.Duration
}

func NewFreeCacheWithOptions(options *FreeCacheOptions) (*FreeCache, error) {
	if options == nil {
		return nil, errors.New("options cannot be nil")
	}
	return &FreeCache{
		cache:      freecache.NewCache(options.Size),
		defaultTTL: options.DefaultTTL,
	}, nil
}

func (c *FreeCache) Get(ctx context.Context, key string) ([]byte, error) {
	buf, err := c.cache.Get([]byte(key))
	if errors.Is(err, freecache.ErrNotFound) {
		return nil, ErrNotFound
	}
	return buf, err
}

func (c *FreeCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	// freecache 以秒为单位，0 表示永不过期
	expire := 0
	if ttl > 0 {
		expire = int((ttl + time.Second - 1) / time.Second)
	}
	return c.cache.Set([]byte(key), value, expire)
}

func (c *FreeCache) Delete(ctx context.Context, key string) error {
	c.cache.Del([]byte(key))
	return nil
}

func (c *FreeCache) Close() error {
	c.cache.Clear()
	return nil
}
