package odm

import (
	"context"
	"strings"
	"unicode"

	"github.com/pkg/errors"

	"github.com/hatlonely/mongodm/database"
	"github.com/hatlonely/mongodm/log"
	"github.com/hatlonely/mongodm/schema"
	"github.com/hatlonely/mongodm/types"
)

const DefaultConnectionName = "default"

type CollectionOptions struct {
	// Table 集合名，为空时由 ClassName 或 Alias 推导
	Table string
	// Alias 字段限定别名，为空时由 ClassName 或 Table 推导
	Alias string
	// RegistryAlias 保存成功后写入实体的来源，默认为 Alias
	RegistryAlias string
	// ClassName 形如 UsersCollection，用于推导 Table 与 Alias
	ClassName string

	// Connection 为空时从 Manager 中按 ConnectionName 获取
	Connection     *database.Connection
	Manager        *database.ConnectionManager
	ConnectionName string

	PrimaryKey []string
	Schema     *schema.TableSchema
	// Model 带 bson/odm 标签的结构体，Schema 为空时用于生成表结构
	Model any

	Events *EventManager
	Rules  RulesChecker
	// Validator 字段 -> validator 标签，NewEntity 与 PatchEntity 时校验
	Validator map[string]string
	Finders   map[string]Finder
	// Hooks 实现了任意钩子接口的对象
	Hooks  any
	Logger log.Logger

	// CacheSerializer 查询结果缓存的编码：msgpack（默认）, json, bson
	CacheSerializer string
}

// Collection 一个文档集合的表式访问入口
type Collection struct {
	table         string
	alias         string
	registryAlias string

	connection     *database.Connection
	manager        *database.ConnectionManager
	connectionName string

	primaryKey []string
	schema     *schema.TableSchema
	model      any

	events          *EventManager
	rules           RulesChecker
	validator       map[string]string
	finders         map[string]Finder
	logger          log.Logger
	cacheSerializer string
}

func NewCollectionWithOptions(options *CollectionOptions) (*Collection, error) {
	if options == nil {
		options = &CollectionOptions{}
	}

	table, alias := options.Table, options.Alias
	base := strings.TrimSuffix(options.ClassName, "Collection")
	if alias == "" {
		alias = base
	}
	if alias == "" {
		alias = table
	}
	if table == "" {
		table = base
		if table == "" {
			table = alias
		}
		table = Underscore(table)
	}
	if table == "" || alias == "" {
		return nil, database.NewStructuralError("You must specify either the `alias` or the `table` option for the constructor.")
	}

	c := &Collection{
		table:           table,
		alias:           alias,
		registryAlias:   options.RegistryAlias,
		connection:      options.Connection,
		manager:         options.Manager,
		connectionName:  options.ConnectionName,
		primaryKey:      options.PrimaryKey,
		schema:          options.Schema,
		model:           options.Model,
		events:          options.Events,
		rules:           options.Rules,
		validator:       options.Validator,
		finders:         map[string]Finder{"all": FindAll, "list": FindList},
		logger:          options.Logger,
		cacheSerializer: options.CacheSerializer,
	}
	if c.registryAlias == "" {
		c.registryAlias = alias
	}
	if c.connectionName == "" {
		c.connectionName = DefaultConnectionName
	}
	if c.events == nil {
		c.events = NewEventManager()
	}
	if c.rules == nil {
		c.rules = NewRules()
	}
	if c.logger == nil {
		c.logger = log.Default()
	}
	c.logger = c.logger.WithGroup("collection").With("table", table)
	for name, finder := range options.Finders {
		c.finders[name] = finder
	}
	registerHooks(c.events, options.Hooks)
	return c, nil
}

func (c *Collection) Table() string { return c.table }

func (c *Collection) Alias() string { return c.alias }

func (c *Collection) RegistryAlias() string { return c.registryAlias }

// AliasField 已带限定前缀的字段原样返回
func (c *Collection) AliasField(field string) string {
	if strings.Contains(field, ".") {
		return field
	}
	return c.alias + "." + field
}

func (c *Collection) Events() *EventManager { return c.events }

func (c *Collection) RulesChecker() RulesChecker { return c.rules }

// Connection 没有显式设置时从连接管理器获取
func (c *Collection) Connection() (*database.Connection, error) {
	if c.connection != nil {
		return c.connection, nil
	}
	if c.manager == nil {
		return nil, database.NewStructuralError("Collection `%s` has no connection.", c.alias)
	}
	conn, err := c.manager.Get(c.connectionName)
	if err != nil {
		return nil, err
	}
	c.connection = conn
	return conn, nil
}

// Schema 首次调用时获取并缓存，_id 列的类型固定为 uuid
func (c *Collection) Schema(ctx context.Context) (*schema.TableSchema, error) {
	if c.schema == nil {
		var (
			s   *schema.TableSchema
			err error
		)
		if c.model != nil {
			s, err = schema.FromStruct(c.table, c.model)
			if err == nil {
				schema.EnsureIdentifier(s)
			}
		} else {
			var conn *database.Connection
			if conn, err = c.Connection(); err == nil {
				s, err = conn.SchemaCollection().Describe(ctx, c.table)
			}
		}
		if err != nil {
			return nil, errors.WithMessagef(err, "describe schema of `%s` failed", c.table)
		}
		c.schema = s
	}
	c.schema.SetColumnType("_id", "uuid")
	return c.schema, nil
}

// SetSchema 替换表结构
func (c *Collection) SetSchema(s *schema.TableSchema) *Collection {
	c.schema = s
	return c
}

func (c *Collection) HasField(ctx context.Context, field string) (bool, error) {
	s, err := c.Schema(ctx)
	if err != nil {
		return false, err
	}
	return s.HasColumn(field), nil
}

// PrimaryKey 没有显式设置时取表结构的主键约束，仍为空时为 _id
func (c *Collection) PrimaryKey(ctx context.Context) ([]string, error) {
	if c.primaryKey == nil {
		s, err := c.Schema(ctx)
		if err != nil {
			return nil, err
		}
		key := s.PrimaryKey()
		if len(key) == 0 {
			key = []string{"_id"}
		}
		c.primaryKey = key
	}
	return append([]string(nil), c.primaryKey...), nil
}

func (c *Collection) SetPrimaryKey(key ...string) *Collection {
	c.primaryKey = key
	return c
}

func (c *Collection) SelectQuery() *SelectQuery {
	return &SelectQuery{baseQuery: baseQuery{repository: c, typ: database.QueryTypeSelect}}
}

// Query 与 SelectQuery 相同
func (c *Collection) Query() *SelectQuery {
	return c.SelectQuery()
}

func (c *Collection) InsertQuery() *InsertQuery {
	return &InsertQuery{baseQuery: baseQuery{repository: c, typ: database.QueryTypeInsert}}
}

func (c *Collection) UpdateQuery() *UpdateQuery {
	return &UpdateQuery{baseQuery: baseQuery{repository: c, typ: database.QueryTypeUpdate}}
}

func (c *Collection) DeleteQuery() *DeleteQuery {
	return &DeleteQuery{baseQuery: baseQuery{repository: c, typ: database.QueryTypeDelete}}
}

// hydrator 去掉 Alias__ 前缀并按列类型转换字段值
func (c *Collection) hydrator(ctx context.Context) (database.RowDecorator, error) {
	s, err := c.Schema(ctx)
	if err != nil {
		return nil, err
	}
	conn, err := c.Connection()
	if err != nil {
		return nil, err
	}
	typeMap := s.TypeMap()
	registry := conn.Types()
	prefix := c.alias + "__"

	return func(row database.Row) (database.Row, error) {
		out := make(database.Row, len(row))
		for k, v := range row {
			field := strings.TrimPrefix(k, prefix)
			if name, ok := typeMap[field]; ok && registry.Has(name) {
				typ, err := registry.Build(name)
				if err != nil {
					return nil, err
				}
				if v, err = typ.ToGo(v); err != nil {
					return nil, errors.WithMessagef(err, "convert field `%s`", field)
				}
			}
			out[field] = v
		}
		return out, nil
	}, nil
}

// columnType 字段未声明类型或类型未注册时返回 nil
func (c *Collection) columnType(ctx context.Context, field string) (types.Type, error) {
	s, err := c.Schema(ctx)
	if err != nil {
		return nil, err
	}
	conn, err := c.Connection()
	if err != nil {
		return nil, err
	}
	name := s.ColumnType(field)
	if name == "" || !conn.Types().Has(name) {
		return nil, nil
	}
	return conn.Types().Build(name)
}

// toDatabase 按列类型把实体字段转换为存储值
func (c *Collection) toDatabase(ctx context.Context, data map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(data))
	for field, v := range data {
		typ, err := c.columnType(ctx, field)
		if err != nil {
			return nil, err
		}
		if typ != nil {
			if v, err = typ.ToDatabase(v); err != nil {
				return nil, errors.WithMessagef(err, "convert field `%s`", field)
			}
		}
		out[field] = v
	}
	return out, nil
}

// typedConditions 按列类型把字段值转换为带别名的等值条件，存储形式不唯一时使用 IN
func (c *Collection) typedConditions(ctx context.Context, values map[string]any) (map[string]any, error) {
	conditions := make(map[string]any, len(values))
	for field, v := range values {
		typ, err := c.columnType(ctx, field)
		if err != nil {
			return nil, err
		}
		if typ == nil {
			conditions[c.AliasField(field)] = v
			continue
		}
		if matcher, ok := typ.(types.KeyMatcher); ok {
			candidates, err := matcher.MatchValues(v)
			if err != nil {
				return nil, errors.WithMessagef(err, "convert key `%s`", field)
			}
			if len(candidates) > 1 {
				conditions[c.AliasField(field)+" IN"] = candidates
				continue
			}
			if len(candidates) == 1 {
				conditions[c.AliasField(field)] = candidates[0]
				continue
			}
		}
		if v, err = typ.ToDatabase(v); err != nil {
			return nil, errors.WithMessagef(err, "convert key `%s`", field)
		}
		conditions[c.AliasField(field)] = v
	}
	return conditions, nil
}

// Underscore BlogPosts -> blog_posts
func Underscore(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1]) ||
				(i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		if r == '-' || r == ' ' {
			b.WriteByte('_')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
