package database

import (
	"context"
	"sync"
	"time"

	"github.com/hatlonely/mongodm/cache"
	"github.com/hatlonely/mongodm/schema"
	"github.com/hatlonely/mongodm/types"
)

type ConnectionOption func(c *Connection)

// WithMetadataCache 表结构缓存，仅在 cacheMetadata 开启时生效
func WithMetadataCache(c cache.Cache, ttl time.Duration) ConnectionOption {
	return func(conn *Connection) {
		conn.metadataCache = c
		conn.metadataTTL = ttl
	}
}

func WithTypes(registry *types.Registry) ConnectionOption {
	return func(conn *Connection) { conn.types = registry }
}

// Connection 一个具名数据源
type Connection struct {
	name   string
	driver *Driver
	types  *types.Registry

	metadataCache cache.Cache
	metadataTTL   time.Duration

	mu        sync.Mutex
	reflector schema.Reflector
}

func NewConnection(name string, driver *Driver, opts ...ConnectionOption) *Connection {
	c := &Connection{name: name, driver: driver}
	for _, opt := range opts {
		opt(c)
	}
	if c.types == nil {
		c.types = types.NewRegistry()
	}
	return c
}

func (c *Connection) ConfigName() string {
	return c.name
}

func (c *Connection) Driver() *Driver {
	return c.driver
}

func (c *Connection) Types() *types.Registry {
	return c.types
}

func (c *Connection) Run(ctx context.Context, q Query) (*Statement, error) {
	return c.driver.Run(ctx, q)
}

// SchemaCollection 表结构反射器，首次调用时创建
func (c *Connection) SchemaCollection() schema.Reflector {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.reflector != nil {
		return c.reflector
	}
	var reflector schema.Reflector = schema.NewCollection(c.driver.SchemaDialect())
	if c.driver.Options().CacheMetadata && c.metadataCache != nil {
		reflector = schema.NewCachedCollection(reflector, c.metadataCache, "mongodm_model_"+c.name, c.metadataTTL)
	}
	c.reflector = reflector
	return reflector
}

// Transactional 不支持事务，fn 不会被调用
func (c *Connection) Transactional(ctx context.Context, fn func(ctx context.Context, conn *Connection) error) (bool, error) {
	return false, nil
}

// DisableConstraints 没有可禁用的约束，fn 不会被调用
func (c *Connection) DisableConstraints(ctx context.Context, fn func(ctx context.Context, conn *Connection) error) (bool, error) {
	return false, nil
}

func (c *Connection) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}
