// Package cache 查询结果与元数据缓存
package cache

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("cache: key not found")

// Cache 字节级缓存后端
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// ttl 为 0 时使用后端的默认过期时间
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

type Options struct {
	// 后端类型：memory, freecache, redis
	Type       string           `cfg:"type" def:"memory" validate:"oneof=memory freecache redis"`
	DefaultTTL time.Duration    `cfg:"defaultTTL"`
	FreeCache  FreeCacheOptions `cfg:"freecache"`
	Redis      RedisOptions     `cfg:"redis"`
}

func NewCacheWithOptions(options *Options) (Cache, error) {
	if options == nil {
		return NewMemoryCache(0), nil
	}
	switch options.Type {
	case "", "memory":
		return NewMemoryCache(options.DefaultTTL), nil
	case "freecache":
		opts := options.FreeCache
		if opts.DefaultTTL == 0 {
			opts.DefaultTTL = options.DefaultTTL
		}
		return NewFreeCacheWithOptions(&opts)
	case "redis":
		opts := options.Redis
		if opts.DefaultTTL == 0 {
			opts.DefaultTTL = options.DefaultTTL
		}
		return NewRedisCacheWithOptions(&opts)
	default:
		return nil, errors.Errorf("unknown cache type %q", options.Type)
	}
}

// Remember 读取 key 对应的值，未命中（或无法解码）时调用 load 计算并写回
func Remember[T any](ctx context.Context, c Cache, s Serializer[T], key string, ttl time.Duration, load func(ctx context.Context) (T, error)) (T, error) {
	buf, err := c.Get(ctx, key)
	switch {
	case err == nil:
		if v, err := s.Unmarshal(buf); err == nil {
			return v, nil
		}
	case !errors.Is(err, ErrNotFound):
		var zero T
		return zero, errors.WithMessagef(err, "cache get %s", key)
	}

	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	buf, err = s.Marshal(v)
	if err != nil {
		return v, errors.WithMessagef(err, "cache marshal %s", key)
	}
	if err := c.Set(ctx, key, buf, ttl); err != nil {
		return v, errors.WithMessagef(err, "cache set %s", key)
	}
	return v, nil
}
