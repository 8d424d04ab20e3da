package query

import (
	"go.mongodb.org/mongo-driver/bson"
)

// TermQuery 精确匹配，Not 为 true 时取反（$ne）
type TermQuery struct {
	Field string `json:"field"`
	Value any    `json:"value"`
	Not   bool   `json:"not,omitempty"`
}

func (q *TermQuery) Type() QueryType { return QueryTypeTerm }

func (q *TermQuery) ToMongo(mapper FieldMapper) (bson.M, error) {
	field, err := mapField(mapper, q.Field)
	if err != nil {
		return nil, err
	}
	if q.Not {
		return bson.M{field: bson.M{"$ne": q.Value}}, nil
	}
	return bson.M{field: q.Value}, nil
}

// TermsQuery 集合匹配（$in / $nin）
type TermsQuery struct {
	Field  string `json:"field"`
	Values []any  `json:"values"`
	Not    bool   `json:"not,omitempty"`
}

func (q *TermsQuery) Type() QueryType { return QueryTypeTerms }

func (q *TermsQuery) ToMongo(mapper FieldMapper) (bson.M, error) {
	field, err := mapField(mapper, q.Field)
	if err != nil {
		return nil, err
	}
	values := bson.A{}
	for _, v := range q.Values {
		values = append(values, v)
	}
	op := "$in"
	if q.Not {
		op = "$nin"
	}
	return bson.M{field: bson.M{op: values}}, nil
}

// ExistsQuery 字段存在查询
type ExistsQuery struct {
	Field  string `json:"field"`
	Absent bool   `json:"absent,omitempty"`
}

func (q *ExistsQuery) Type() QueryType { return QueryTypeExists }

func (q *ExistsQuery) ToMongo(mapper FieldMapper) (bson.M, error) {
	field, err := mapField(mapper, q.Field)
	if err != nil {
		return nil, err
	}
	return bson.M{field: bson.M{"$exists": !q.Absent}}, nil
}
