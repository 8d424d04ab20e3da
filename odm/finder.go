package odm

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/pkg/errors"

	"github.com/hatlonely/mongodm/cache"
)

// Finder 具名的查询预设
type Finder func(q *SelectQuery, options map[string]any) (*SelectQuery, error)

// FindAll 不修改查询
func FindAll(q *SelectQuery, options map[string]any) (*SelectQuery, error) {
	return q, nil
}

// FindList 只投影 keyField 与 valueField；keyField 默认为主键（复合主键投影全部主键字段），valueField 默认与 keyField 相同
func FindList(q *SelectQuery, options map[string]any) (*SelectQuery, error) {
	keyField, _ := options["keyField"].(string)
	valueField, _ := options["valueField"].(string)
	var fields []string
	if keyField != "" {
		fields = append(fields, keyField)
	} else {
		key, err := q.repository.PrimaryKey(context.Background())
		if err != nil {
			return nil, err
		}
		fields = append(fields, key...)
	}
	if valueField != "" && !slices.Contains(fields, valueField) {
		fields = append(fields, valueField)
	}
	return q.Select(fields...), nil
}

// AddFinder 注册或覆盖查找器
func (c *Collection) AddFinder(name string, finder Finder) *Collection {
	c.finders[name] = finder
	return c
}

func (c *Collection) HasFinder(name string) bool {
	_, ok := c.finders[name]
	return ok
}

func (c *Collection) applyFinder(q *SelectQuery, name string, options map[string]any) (*SelectQuery, error) {
	finder, ok := c.finders[name]
	if !ok {
		return nil, errors.WithMessagef(ErrUnknownFinder, "finder `%s` on collection `%s`", name, c.alias)
	}
	return finder(q, options)
}

// Find 返回应用了查找器的查询
func (c *Collection) Find(finder string, options map[string]any) (*SelectQuery, error) {
	if finder == "" {
		finder = "all"
	}
	q, err := c.applyFinder(c.SelectQuery(), finder, options)
	if err != nil {
		return nil, err
	}
	if q.err != nil {
		return nil, q.err
	}
	return q, nil
}

type getOptions struct {
	finder        string
	finderOptions map[string]any
	cache         cache.Cache
	cacheKey      string
	cacheTTL      time.Duration
}

type GetOption func(o *getOptions)

func WithFinder(finder string, options map[string]any) GetOption {
	return func(o *getOptions) {
		o.finder = finder
		o.finderOptions = options
	}
}

// WithCache 结果缓存，键默认为 get-{连接名}-{集合名}-{主键 JSON}
func WithCache(c cache.Cache) GetOption {
	return func(o *getOptions) { o.cache = c }
}

func WithCacheKey(key string) GetOption {
	return func(o *getOptions) { o.cacheKey = key }
}

func WithCacheTTL(ttl time.Duration) GetOption {
	return func(o *getOptions) { o.cacheTTL = ttl }
}

// Get 按主键获取一条记录，主键个数不匹配时不会发起查询
func (c *Collection) Get(ctx context.Context, primaryKey any, opts ...GetOption) (*Entity, error) {
	options := &getOptions{finder: "all"}
	for _, opt := range opts {
		opt(options)
	}

	values := primaryKeyValues(primaryKey)
	keyJSON, err := json.Marshal(values)
	if err != nil {
		return nil, errors.Wrap(err, "json.Marshal primary key failed")
	}
	if primaryKey == nil {
		return nil, &NotFoundError{Table: c.table, Key: string(keyJSON)}
	}

	key, err := c.PrimaryKey(ctx)
	if err != nil {
		return nil, err
	}
	if len(key) != len(values) {
		return nil, &NotFoundError{Table: c.table, Key: string(keyJSON)}
	}
	keyValues := make(map[string]any, len(key))
	for i, k := range key {
		keyValues[k] = values[i]
	}
	conditions, err := c.typedConditions(ctx, keyValues)
	if err != nil {
		return nil, err
	}

	q, err := c.Find(options.finder, options.finderOptions)
	if err != nil {
		return nil, err
	}
	q.Where(conditions)

	if options.cache != nil {
		cacheKey := options.cacheKey
		if cacheKey == "" {
			conn, err := c.Connection()
			if err != nil {
				return nil, err
			}
			cacheKey = fmt.Sprintf("get-%s-%s-%s", conn.ConfigName(), c.table, keyJSON)
		}
		q.Cache(cacheKey, options.cache, options.cacheTTL)
	}

	entity, err := q.First(ctx)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, &NotFoundError{Table: c.table, Key: string(keyJSON)}
	}
	return entity, nil
}

func primaryKeyValues(primaryKey any) []any {
	switch v := primaryKey.(type) {
	case nil:
		return []any{nil}
	case []any:
		return v
	case []string:
		values := make([]any, len(v))
		for i, s := range v {
			values[i] = s
		}
		return values
	default:
		return []any{v}
	}
}

// Exists 是否存在满足条件的记录
func (c *Collection) Exists(ctx context.Context, conditions map[string]any) (bool, error) {
	q, err := c.Find("all", nil)
	if err != nil {
		return false, err
	}
	entity, err := q.Where(conditions).Limit(1).First(ctx)
	if err != nil {
		return false, err
	}
	return entity != nil, nil
}

// UpdateAll 返回匹配的记录数
func (c *Collection) UpdateAll(ctx context.Context, fields map[string]any, conditions map[string]any) (int64, error) {
	stmt, err := c.UpdateQuery().Set(fields).Where(conditions).Execute(ctx)
	if err != nil {
		return 0, err
	}
	return stmt.RowCount(), nil
}

// DeleteAll 返回删除的记录数，不派发删除事件
func (c *Collection) DeleteAll(ctx context.Context, conditions map[string]any) (int64, error) {
	stmt, err := c.DeleteQuery().Where(conditions).Execute(ctx)
	if err != nil {
		return 0, err
	}
	return stmt.RowCount(), nil
}
