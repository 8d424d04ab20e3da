package query

import (
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
)

// RangeQuery 范围查询，至少需要一个边界
type RangeQuery struct {
	Field string `json:"field"`
	Gt    any    `json:"gt,omitempty"`
	Gte   any    `json:"gte,omitempty"`
	Lt    any    `json:"lt,omitempty"`
	Lte   any    `json:"lte,omitempty"`
}

func (q *RangeQuery) Type() QueryType { return QueryTypeRange }

func (q *RangeQuery) ToMongo(mapper FieldMapper) (bson.M, error) {
	field, err := mapField(mapper, q.Field)
	if err != nil {
		return nil, err
	}

	condition := bson.M{}
	if q.Gt != nil {
		condition["$gt"] = q.Gt
	}
	if q.Gte != nil {
		condition["$gte"] = q.Gte
	}
	if q.Lt != nil {
		condition["$lt"] = q.Lt
	}
	if q.Lte != nil {
		condition["$lte"] = q.Lte
	}
	if len(condition) == 0 {
		return nil, errors.Errorf("range query on %q has no bound", q.Field)
	}
	return bson.M{field: condition}, nil
}
