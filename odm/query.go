package odm

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hatlonely/mongodm/cache"
	"github.com/hatlonely/mongodm/database"
	"github.com/hatlonely/mongodm/query"
)

// baseQuery 绑定到一个集合的查询，子句只追加
type baseQuery struct {
	repository *Collection
	typ        database.QueryType
	parts      database.Parts
	decorators []database.RowDecorator
	executed   bool
	err        error
}

func (q *baseQuery) Type() database.QueryType { return q.typ }

func (q *baseQuery) Collection() string { return q.repository.Table() }

func (q *baseQuery) Alias() string { return q.repository.Alias() }

func (q *baseQuery) Parts() *database.Parts { return &q.parts }

func (q *baseQuery) Decorators() []database.RowDecorator { return q.decorators }

func (q *baseQuery) Repository() *Collection { return q.repository }

// where 与已有条件按 conjunction 组合
func (q *baseQuery) where(conditions map[string]any, conjunction string) {
	if q.err != nil || len(conditions) == 0 {
		return
	}
	cond, err := query.Conditions(conditions)
	if err != nil {
		q.err = errors.WithMessage(err, "invalid conditions")
		return
	}
	q.whereQuery(cond, conjunction)
}

func (q *baseQuery) whereQuery(cond query.Query, conjunction string) {
	q.parts.Touch(database.ClauseWhere)
	if q.parts.Where == nil {
		q.parts.Where = cond
		return
	}
	if conjunction == "OR" {
		q.parts.Where = query.Or(q.parts.Where, cond)
		return
	}
	q.parts.Where = query.And(q.parts.Where, cond)
}

func (q *baseQuery) execute(ctx context.Context) (*database.Statement, error) {
	if q.err != nil {
		return nil, q.err
	}
	if q.executed {
		return nil, ErrQueryExecuted
	}
	q.executed = true
	conn, err := q.repository.Connection()
	if err != nil {
		return nil, err
	}
	return conn.Run(ctx, q)
}

// SelectQuery 通过聚合管道执行的查询
type SelectQuery struct {
	baseQuery

	cacheKey   string
	cache      cache.Cache
	cacheTTL   time.Duration
	beforeFind bool
}

// Select 投影字段，已带集合别名前缀的字段原样使用，其余（包括 profile.name 这样的嵌套路径）加上别名；输出名为去掉别名的路径
func (q *SelectQuery) Select(fields ...string) *SelectQuery {
	q.parts.Touch(database.ClauseSelect)
	for _, f := range fields {
		qualified := q.qualify(f)
		_, name, _ := strings.Cut(qualified, ".")
		q.parts.Select = append(q.parts.Select, database.Field{Alias: name, Name: qualified})
	}
	return q
}

// SelectAs 以 alias 作为输出名投影 field
func (q *SelectQuery) SelectAs(alias string, field string) *SelectQuery {
	q.parts.Touch(database.ClauseSelect)
	q.parts.Select = append(q.parts.Select, database.Field{Alias: alias, Name: q.qualify(field)})
	return q
}

func (q *SelectQuery) qualify(field string) string {
	prefix := q.repository.Alias() + "."
	if strings.HasPrefix(field, prefix) {
		return field
	}
	return prefix + field
}

// Where 条件之间为 AND 关系
func (q *SelectQuery) Where(conditions map[string]any) *SelectQuery {
	q.where(conditions, "AND")
	return q
}

func (q *SelectQuery) AndWhere(conditions map[string]any) *SelectQuery {
	q.where(conditions, "AND")
	return q
}

// OrWhere 与已有条件为 OR 关系
func (q *SelectQuery) OrWhere(conditions map[string]any) *SelectQuery {
	q.where(conditions, "OR")
	return q
}

func (q *SelectQuery) WhereQuery(cond query.Query) *SelectQuery {
	if cond != nil {
		q.whereQuery(cond, "AND")
	}
	return q
}

func (q *SelectQuery) Order(field string) *SelectQuery {
	q.parts.Touch(database.ClauseOrder)
	q.parts.Order = append(q.parts.Order, database.Order{Field: field})
	return q
}

func (q *SelectQuery) OrderDesc(field string) *SelectQuery {
	q.parts.Touch(database.ClauseOrder)
	q.parts.Order = append(q.parts.Order, database.Order{Field: field, Desc: true})
	return q
}

func (q *SelectQuery) Limit(limit int64) *SelectQuery {
	q.parts.Touch(database.ClauseLimit)
	q.parts.Limit = limit
	return q
}

func (q *SelectQuery) Offset(offset int64) *SelectQuery {
	q.parts.Touch(database.ClauseOffset)
	q.parts.Offset = offset
	return q
}

// Page 从 1 开始的分页
func (q *SelectQuery) Page(page int64, limit int64) *SelectQuery {
	if page < 1 {
		page = 1
	}
	q.Offset((page - 1) * limit)
	return q.Limit(limit)
}

// Find 应用集合上注册的查找器
func (q *SelectQuery) Find(finder string, options map[string]any) *SelectQuery {
	if q.err != nil {
		return q
	}
	if _, err := q.repository.applyFinder(q, finder, options); err != nil {
		q.err = err
	}
	return q
}

// FormatResults 追加行装饰器，按追加顺序执行
func (q *SelectQuery) FormatResults(decorator database.RowDecorator) *SelectQuery {
	q.decorators = append(q.decorators, decorator)
	return q
}

// Cache 结果行缓存在 c 中，ttl 为 0 时使用缓存的默认过期时间
func (q *SelectQuery) Cache(key string, c cache.Cache, ttl ...time.Duration) *SelectQuery {
	q.cacheKey = key
	q.cache = c
	if len(ttl) > 0 {
		q.cacheTTL = ttl[0]
	}
	return q
}

// Execute 执行前派发一次 beforeFind
func (q *SelectQuery) Execute(ctx context.Context) (*database.Statement, error) {
	if err := q.triggerBeforeFind(ctx); err != nil {
		return nil, err
	}
	return q.execute(ctx)
}

func (q *SelectQuery) triggerBeforeFind(ctx context.Context) error {
	if q.beforeFind || q.err != nil {
		return q.err
	}
	q.beforeFind = true
	q.repository.events.Dispatch(ctx, &Event{Name: EventBeforeFind, Subject: q.repository, Query: q})
	return q.err
}

// Rows 执行并读取全部结果行，设置了缓存时优先读缓存
func (q *SelectQuery) Rows(ctx context.Context) ([]database.Row, error) {
	if q.cache == nil {
		return q.fetch(ctx)
	}
	serializer, err := cache.NewSerializer[[]map[string]any](q.repository.cacheSerializer)
	if err != nil {
		return nil, err
	}
	rows, err := cache.Remember(ctx, q.cache, serializer, q.cacheKey, q.cacheTTL, func(ctx context.Context) ([]map[string]any, error) {
		return q.fetch(ctx)
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (q *SelectQuery) fetch(ctx context.Context) ([]database.Row, error) {
	decorator, err := q.repository.hydrator(ctx)
	if err != nil {
		return nil, err
	}
	q.decorators = append([]database.RowDecorator{decorator}, q.decorators...)

	stmt, err := q.Execute(ctx)
	if err != nil {
		return nil, err
	}
	defer stmt.Close(ctx)
	return stmt.FetchAll(ctx)
}

// All 结果行转换为实体
func (q *SelectQuery) All(ctx context.Context) ([]*Entity, error) {
	rows, err := q.Rows(ctx)
	if err != nil {
		return nil, err
	}
	entities := make([]*Entity, 0, len(rows))
	for _, row := range rows {
		entities = append(entities, HydrateEntity(row, q.repository.RegistryAlias()))
	}
	return entities, nil
}

// First 没有结果时返回 nil
func (q *SelectQuery) First(ctx context.Context) (*Entity, error) {
	if !q.parts.Has(database.ClauseLimit) {
		q.Limit(1)
	}
	entities, err := q.All(ctx)
	if err != nil || len(entities) == 0 {
		return nil, err
	}
	return entities[0], nil
}

// FirstOrFail 没有结果时返回 NotFoundError
func (q *SelectQuery) FirstOrFail(ctx context.Context) (*Entity, error) {
	entity, err := q.First(ctx)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, &NotFoundError{Table: q.repository.Table()}
	}
	return entity, nil
}

// Count 只保留过滤条件计数，不执行当前查询
func (q *SelectQuery) Count(ctx context.Context) (int64, error) {
	if err := q.triggerBeforeFind(ctx); err != nil {
		return 0, err
	}
	counter := &baseQuery{repository: q.repository, typ: database.QueryTypeSelect}
	if q.parts.Where != nil {
		counter.whereQuery(q.parts.Where, "AND")
	}
	counter.parts.Touch(database.ClauseGroup)
	counter.parts.Count = "count"

	stmt, err := counter.execute(ctx)
	if err != nil {
		return 0, err
	}
	rows, err := stmt.FetchAll(ctx)
	if err != nil || len(rows) == 0 {
		return 0, err
	}
	return toInt64(rows[0]["count"]), nil
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	}
	return 0
}

// InsertQuery 通过 insertMany 执行
type InsertQuery struct {
	baseQuery
}

// Insert 插入的字段，为空时插入每行的全部字段
func (q *InsertQuery) Insert(columns ...string) *InsertQuery {
	q.parts.Columns = append(q.parts.Columns, columns...)
	return q
}

func (q *InsertQuery) Values(rows ...map[string]any) *InsertQuery {
	q.parts.Touch(database.ClauseValues)
	q.parts.Values = append(q.parts.Values, rows...)
	return q
}

func (q *InsertQuery) Execute(ctx context.Context) (*database.Statement, error) {
	return q.execute(ctx)
}

// UpdateQuery 通过 updateMany 与 $set 执行
type UpdateQuery struct {
	baseQuery
}

func (q *UpdateQuery) Set(fields map[string]any) *UpdateQuery {
	q.parts.Touch(database.ClauseSet)
	if q.parts.Set == nil {
		q.parts.Set = map[string]any{}
	}
	for k, v := range fields {
		q.parts.Set[k] = v
	}
	return q
}

func (q *UpdateQuery) Where(conditions map[string]any) *UpdateQuery {
	q.where(conditions, "AND")
	return q
}

func (q *UpdateQuery) Execute(ctx context.Context) (*database.Statement, error) {
	return q.execute(ctx)
}

// DeleteQuery 通过 deleteMany 执行
type DeleteQuery struct {
	baseQuery
}

func (q *DeleteQuery) Where(conditions map[string]any) *DeleteQuery {
	q.where(conditions, "AND")
	return q
}

func (q *DeleteQuery) Execute(ctx context.Context) (*database.Statement, error) {
	return q.execute(ctx)
}
