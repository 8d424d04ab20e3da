package cache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

type RedisOptions struct {
	// host:port 地址
	Endpoint string `cfg:"endpoint" def:"localhost:6379"`
	Username string `cfg:"username"`
	Password string `cfg:"password"`
	DB       int    `cfg:"db"`
	// 所有键的前缀，多个应用共享实例时区分命名空间
	KeyPrefix    string        `cfg:"keyPrefix"`
	DefaultTTL   time.Duration `cfg:"defaultTTL"`
	DialTimeout  time.Duration `cfg:"dialTimeout" def:"5s"`
	ReadTimeout  time.Duration `cfg:"readTimeout" def:"3s"`
	WriteTimeout time.Duration `cfg:"writeTimeout" def:"3s"`
	PoolSize     int           `cfg:"poolSize" def:"100"`
}

type RedisCache struct {
	client     redis.UniversalClient
	prefix     string
	defaultTTL time.Duration
}

// NewRedisCacheWithOptions 创建客户端并 Ping 确认可用
func NewRedisCacheWithOptions(options *RedisOptions) (*RedisCache, error) {
	if options == nil {
		return nil, errors.New("options cannot be nil")
	}
	client := redis.NewClient(&redis.Options{
		Addr:         options.Endpoint,
		Username:     options.Username,
		Password:     options.Password,
		DB:           options.DB,
		DialTimeout:  options.DialTimeout,
		ReadTimeout:  options.ReadTimeout,
		WriteTimeout: options.WriteTimeout,
		PoolSize:     options.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "ping redis %s", options.Endpoint)
	}

	return NewRedisCache(client, options.KeyPrefix, options.DefaultTTL), nil
}

// NewRedisCache 使用已有客户端
func NewRedisCache(client redis.UniversalClient, prefix string, defaultTTL time.Duration) *RedisCache {
	return &RedisCache{client: client, prefix: prefix, defaultTTL: defaultTTL}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	buf, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return buf, errors.Wrap(err, "redis get")
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	return errors.Wrap(c.client.Set(ctx, c.prefix+key, value, ttl).Err(), "redis set")
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return errors.Wrap(c.client.Del(ctx, c.prefix+key).Err(), "redis del")
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
