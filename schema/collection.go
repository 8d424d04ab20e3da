package schema

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/hatlonely/mongodm/cache"
)

type ColumnDescription struct {
	Name string
	Column
}

type IndexDescription struct {
	Name string
	Index
}

type ForeignKeyDescription struct {
	Name       string
	Columns    []string
	References string
}

// Dialect 数据源的结构反射能力
type Dialect interface {
	ListTables(ctx context.Context) ([]string, error)
	DescribeColumns(ctx context.Context, table string) ([]ColumnDescription, error)
	DescribeIndexes(ctx context.Context, table string) ([]IndexDescription, error)
	DescribeForeignKeys(ctx context.Context, table string) ([]ForeignKeyDescription, error)
	DescribeOptions(ctx context.Context, table string) (map[string]any, error)
}

// Reflector 按表名获取表结构
type Reflector interface {
	ListTables(ctx context.Context) ([]string, error)
	Describe(ctx context.Context, table string) (*TableSchema, error)
}

// Collection 基于 Dialect 的反射器，反射结果没有主键时补齐 _id 列与 primary 约束
type Collection struct {
	dialect Dialect
}

func NewCollection(dialect Dialect) *Collection {
	return &Collection{dialect: dialect}
}

func (c *Collection) ListTables(ctx context.Context) ([]string, error) {
	return c.dialect.ListTables(ctx)
}

func (c *Collection) Describe(ctx context.Context, table string) (*TableSchema, error) {
	s := NewTableSchema(table)

	columns, err := c.dialect.DescribeColumns(ctx, table)
	if err != nil {
		return nil, errors.WithMessagef(err, "describe columns of %s", table)
	}
	for _, col := range columns {
		s.AddColumn(col.Name, col.Column)
	}

	indexes, err := c.dialect.DescribeIndexes(ctx, table)
	if err != nil {
		return nil, errors.WithMessagef(err, "describe indexes of %s", table)
	}
	for _, idx := range indexes {
		if idx.Type == ConstraintPrimary || idx.Type == ConstraintUnique {
			err = s.AddConstraint(idx.Name, Constraint{Type: idx.Type, Columns: idx.Columns})
		} else {
			err = s.AddIndex(idx.Name, idx.Index)
		}
		if err != nil {
			return nil, err
		}
	}

	foreignKeys, err := c.dialect.DescribeForeignKeys(ctx, table)
	if err != nil {
		return nil, errors.WithMessagef(err, "describe foreign keys of %s", table)
	}
	for _, fk := range foreignKeys {
		if err := s.AddConstraint(fk.Name, Constraint{Type: ConstraintForeign, Columns: fk.Columns}); err != nil {
			return nil, err
		}
	}

	options, err := c.dialect.DescribeOptions(ctx, table)
	if err != nil {
		return nil, errors.WithMessagef(err, "describe options of %s", table)
	}
	s.SetOptions(options)

	EnsureIdentifier(s)
	return s, nil
}

// EnsureIdentifier 保证表结构至少有一列标识与一个主键约束
func EnsureIdentifier(s *TableSchema) {
	if len(s.PrimaryKey()) > 0 {
		return
	}
	if !s.HasColumn("_id") {
		s.AddColumn("_id", Column{Type: "string", Null: false})
	}
	_ = s.AddConstraint(ConstraintPrimary, Constraint{Type: ConstraintPrimary, Columns: []string{"_id"}})
}

// CachedCollection 将反射结果缓存在 cache 中，键为 {prefix}_{table}
type CachedCollection struct {
	Reflector
	cache  cache.Cache
	prefix string
	ttl    time.Duration
}

func NewCachedCollection(reflector Reflector, c cache.Cache, prefix string, ttl time.Duration) *CachedCollection {
	return &CachedCollection{Reflector: reflector, cache: c, prefix: prefix, ttl: ttl}
}

func (c *CachedCollection) CacheKey(table string) string {
	return c.prefix + "_" + table
}

func (c *CachedCollection) Describe(ctx context.Context, table string) (*TableSchema, error) {
	return cache.Remember(ctx, c.cache, cache.JSONSerializer[*TableSchema]{}, c.CacheKey(table), c.ttl,
		func(ctx context.Context) (*TableSchema, error) {
			return c.Reflector.Describe(ctx, table)
		})
}
