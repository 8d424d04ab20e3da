package database

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// Pipeline 聚合管道，每个元素是一个阶段
type Pipeline []bson.D

// Compiler 把查询子句编译为原生管道，不修改查询本身
type Compiler struct{}

func NewCompiler() *Compiler {
	return &Compiler{}
}

// Compile 每个子句对应一个阶段，阶段顺序与子句注册顺序一致
func (c *Compiler) Compile(q Query) (Pipeline, error) {
	if q.Type() != QueryTypeSelect {
		return nil, &MalformedQueryError{Clause: string(q.Type()), Reason: "only select queries compile to a pipeline"}
	}

	parts := q.Parts()
	pipeline := Pipeline{}
	for _, clause := range parts.Clauses() {
		var (
			stage bson.D
			err   error
		)
		switch clause {
		case ClauseSelect:
			stage, err = c.project(parts.Select)
		case ClauseWhere:
			stage, err = c.match(q)
		case ClauseOrder:
			stage = c.sort(q, parts.Order)
		case ClauseGroup:
			if parts.Count != "" {
				stage = bson.D{{Key: "$group", Value: bson.D{
					{Key: "_id", Value: nil},
					{Key: parts.Count, Value: bson.D{{Key: "$sum", Value: 1}}},
				}}}
			}
		case ClauseOffset:
			if parts.Offset > 0 {
				stage = bson.D{{Key: "$skip", Value: parts.Offset}}
			}
		case ClauseLimit:
			if parts.Limit > 0 {
				stage = bson.D{{Key: "$limit", Value: parts.Limit}}
			}
		}
		if err != nil {
			return nil, err
		}
		if stage != nil {
			pipeline = append(pipeline, stage)
		}
	}
	return pipeline, nil
}

// Filter 只编译 where 子句，用于更新与删除
func (c *Compiler) Filter(q Query) (bson.M, error) {
	where := q.Parts().Where
	if where == nil {
		return bson.M{}, nil
	}
	filter, err := where.ToMongo(FieldMapper(q.Alias()))
	if err != nil {
		return nil, err
	}
	return filter, nil
}

func (c *Compiler) project(fields []Field) (bson.D, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	projection := make(bson.D, 0, len(fields))
	for _, f := range fields {
		name, err := unqualify(f.Name)
		if err != nil {
			return nil, err
		}
		alias := f.Alias
		if alias == "" {
			alias = name
		}
		projection = append(projection, bson.E{Key: alias, Value: "$" + name})
	}
	return bson.D{{Key: "$project", Value: projection}}, nil
}

func (c *Compiler) match(q Query) (bson.D, error) {
	filter, err := c.Filter(q)
	if err != nil {
		return nil, err
	}
	if len(filter) == 0 {
		return nil, nil
	}
	return bson.D{{Key: "$match", Value: filter}}, nil
}

func (c *Compiler) sort(q Query, orders []Order) bson.D {
	if len(orders) == 0 {
		return nil
	}
	mapper := FieldMapper(q.Alias())
	spec := make(bson.D, 0, len(orders))
	for _, o := range orders {
		name, _ := mapper(o.Field)
		dir := 1
		if o.Desc {
			dir = -1
		}
		spec = append(spec, bson.E{Key: name, Value: dir})
	}
	return bson.D{{Key: "$sort", Value: spec}}
}

// unqualify 投影字段必须是 qualifier.field 形式
func unqualify(field string) (string, error) {
	qualifier, name, ok := strings.Cut(field, ".")
	if !ok || qualifier == "" || name == "" {
		return "", &MalformedQueryError{Clause: string(ClauseSelect), Field: field, Reason: "is not in qualifier.field form"}
	}
	return name, nil
}

// FieldMapper 去掉 alias. 前缀，其余字段名（包括嵌套路径）保持不变
func FieldMapper(alias string) func(string) (string, error) {
	prefix := alias + "."
	return func(field string) (string, error) {
		if alias != "" && strings.HasPrefix(field, prefix) {
			field = field[len(prefix):]
		}
		if field == "" {
			return "", &MalformedQueryError{Clause: string(ClauseWhere), Field: field, Reason: "is empty"}
		}
		return field, nil
	}
}
