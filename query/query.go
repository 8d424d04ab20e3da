// Package query 过滤条件节点，编译为 MongoDB 过滤文档
package query

import (
	"go.mongodb.org/mongo-driver/bson"
)

// QueryType 查询类型
type QueryType string

const (
	QueryTypeBool     QueryType = "bool"
	QueryTypeTerm     QueryType = "term"
	QueryTypeTerms    QueryType = "terms"
	QueryTypeRange    QueryType = "range"
	QueryTypeExists   QueryType = "exists"
	QueryTypePrefix   QueryType = "prefix"
	QueryTypeRegexp   QueryType = "regexp"
	QueryTypeWildcard QueryType = "wildcard"
	QueryTypeLike     QueryType = "like"
)

// FieldMapper 将查询中的字段名（可能带有表别名前缀）映射为文档字段名
type FieldMapper func(field string) (string, error)

// Identity 原样返回字段名
func Identity(field string) (string, error) {
	return field, nil
}

// Query 查询节点接口
type Query interface {
	Type() QueryType
	ToMongo(mapper FieldMapper) (bson.M, error)
}

func mapField(mapper FieldMapper, field string) (string, error) {
	if mapper == nil {
		return field, nil
	}
	return mapper(field)
}
