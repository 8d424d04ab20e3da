package query

import (
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// PrefixQuery 前缀匹配，忽略大小写
type PrefixQuery struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

func (q *PrefixQuery) Type() QueryType { return QueryTypePrefix }

func (q *PrefixQuery) ToMongo(mapper FieldMapper) (bson.M, error) {
	return regexCondition(mapper, q.Field, "^"+regexp.QuoteMeta(q.Value), "i")
}

// RegexpQuery 正则匹配，忽略大小写
type RegexpQuery struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

func (q *RegexpQuery) Type() QueryType { return QueryTypeRegexp }

func (q *RegexpQuery) ToMongo(mapper FieldMapper) (bson.M, error) {
	if _, err := regexp.Compile(q.Value); err != nil {
		return nil, err
	}
	return regexCondition(mapper, q.Field, q.Value, "i")
}

// WildcardQuery 通配符匹配：* 任意个字符，? 单个字符
type WildcardQuery struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

func (q *WildcardQuery) Type() QueryType { return QueryTypeWildcard }

func (q *WildcardQuery) ToMongo(mapper FieldMapper) (bson.M, error) {
	return regexCondition(mapper, q.Field, "^"+translatePattern(q.Value, '*', '?')+"$", "i")
}

// LikeQuery SQL LIKE 语义：% 任意个字符，_ 单个字符，区分大小写
type LikeQuery struct {
	Field string `json:"field"`
	Value string `json:"value"`
	Not   bool   `json:"not,omitempty"`
}

func (q *LikeQuery) Type() QueryType { return QueryTypeLike }

func (q *LikeQuery) ToMongo(mapper FieldMapper) (bson.M, error) {
	cond, err := regexCondition(mapper, q.Field, "^"+translatePattern(q.Value, '%', '_')+"$", "")
	if err != nil || !q.Not {
		return cond, err
	}
	for field, v := range cond {
		return bson.M{field: bson.M{"$not": v}}, nil
	}
	return cond, nil
}

func translatePattern(pattern string, many, one rune) string {
	var sb strings.Builder
	for _, r := range pattern {
		switch r {
		case many:
			sb.WriteString(".*")
		case one:
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	return sb.String()
}

func regexCondition(mapper FieldMapper, field, pattern, options string) (bson.M, error) {
	name, err := mapField(mapper, field)
	if err != nil {
		return nil, err
	}
	cond := bson.M{"$regex": pattern}
	if options != "" {
		cond["$options"] = options
	}
	return bson.M{name: cond}, nil
}
