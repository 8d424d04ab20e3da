package query

import (
	"go.mongodb.org/mongo-driver/bson"
)

// BoolQuery 布尔组合：Must 与 Filter 为 $and，Should 为 $or，MustNot 为 $nor
type BoolQuery struct {
	Must    []Query `json:"must,omitempty"`
	Should  []Query `json:"should,omitempty"`
	MustNot []Query `json:"must_not,omitempty"`
	Filter  []Query `json:"filter,omitempty"`
}

// And 所有条件同时满足
func And(queries ...Query) *BoolQuery {
	return &BoolQuery{Must: queries}
}

// Or 任一条件满足
func Or(queries ...Query) *BoolQuery {
	return &BoolQuery{Should: queries}
}

// Not 所有条件都不满足
func Not(queries ...Query) *BoolQuery {
	return &BoolQuery{MustNot: queries}
}

func (q *BoolQuery) Type() QueryType { return QueryTypeBool }

// Empty 没有任何子条件
func (q *BoolQuery) Empty() bool {
	return len(q.Must)+len(q.Should)+len(q.MustNot)+len(q.Filter) == 0
}

func (q *BoolQuery) ToMongo(mapper FieldMapper) (bson.M, error) {
	var and bson.A

	for _, group := range [][]Query{q.Must, q.Filter} {
		conditions, err := compileAll(group, mapper)
		if err != nil {
			return nil, err
		}
		and = append(and, conditions...)
	}

	if len(q.Should) > 0 {
		conditions, err := compileAll(q.Should, mapper)
		if err != nil {
			return nil, err
		}
		if len(conditions) == 1 {
			and = append(and, conditions[0])
		} else {
			and = append(and, bson.M{"$or": conditions})
		}
	}

	if len(q.MustNot) > 0 {
		conditions, err := compileAll(q.MustNot, mapper)
		if err != nil {
			return nil, err
		}
		and = append(and, bson.M{"$nor": conditions})
	}

	switch len(and) {
	case 0:
		return bson.M{}, nil
	case 1:
		return and[0].(bson.M), nil
	default:
		return bson.M{"$and": and}, nil
	}
}

func compileAll(queries []Query, mapper FieldMapper) (bson.A, error) {
	conditions := make(bson.A, 0, len(queries))
	for _, q := range queries {
		if q == nil {
			continue
		}
		condition, err := q.ToMongo(mapper)
		if err != nil {
			return nil, err
		}
		if len(condition) == 0 {
			continue
		}
		conditions = append(conditions, condition)
	}
	return conditions, nil
}
