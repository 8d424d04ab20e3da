package database

import (
	"github.com/hatlonely/mongodm/query"
)

type QueryType string

const (
	QueryTypeSelect QueryType = "select"
	QueryTypeInsert QueryType = "insert"
	QueryTypeUpdate QueryType = "update"
	QueryTypeDelete QueryType = "delete"
)

// Clause 子句名
type Clause string

const (
	ClauseSelect Clause = "select"
	ClauseWhere  Clause = "where"
	ClauseOrder  Clause = "order"
	ClauseOffset Clause = "offset"
	ClauseLimit  Clause = "limit"
	ClauseGroup  Clause = "group"
	ClauseValues Clause = "values"
	ClauseSet    Clause = "set"
)

// Field 投影项：输出别名 -> 带表别名的源字段（Users.email）
type Field struct {
	Alias string
	Name  string
}

type Order struct {
	Field string
	Desc  bool
}

// Row 一条文档
type Row = map[string]any

// RowDecorator 结果行的后处理函数
type RowDecorator func(row Row) (Row, error)

// Parts 查询子句，只追加，并记录每个子句第一次出现的顺序
type Parts struct {
	clauses []Clause

	Select []Field
	Where  query.Query
	Order  []Order
	Offset int64
	Limit  int64
	// Count 非空时输出 {Count: 文档数}
	Count   string
	Columns []string
	Values  []map[string]any
	Set     map[string]any
}

// Touch 记录子句出现，重复出现不改变顺序
func (p *Parts) Touch(clause Clause) {
	for _, c := range p.clauses {
		if c == clause {
			return
		}
	}
	p.clauses = append(p.clauses, clause)
}

// Clauses 子句的注册顺序
func (p *Parts) Clauses() []Clause {
	return append([]Clause(nil), p.clauses...)
}

func (p *Parts) Has(clause Clause) bool {
	for _, c := range p.clauses {
		if c == clause {
			return true
		}
	}
	return false
}

// Query 可被驱动执行的查询
type Query interface {
	Type() QueryType
	// Collection 目标集合名
	Collection() string
	// Alias 字段限定用的别名
	Alias() string
	Parts() *Parts
	Decorators() []RowDecorator
}
