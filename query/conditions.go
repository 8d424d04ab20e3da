package query

import (
	"reflect"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Conditions 将 "字段 操作符" => 值 形式的条件表解析为查询树
//
//	{"Users.email": "a@b.com", "Users.age >=": 18, "Users._id IN": []string{"1", "2"}}
//
// 键 "AND"、"OR"、"NOT" 的值为嵌套条件表（或条件表切片）。
// 同级条件之间为 AND 关系，按键排序以保证编译结果稳定。
func Conditions(conditions map[string]any) (Query, error) {
	return parseGroup(conditions, "AND")
}

// ParseCondition 解析单个 "字段 操作符" 条件
func ParseCondition(key string, value any) (Query, error) {
	field, op := splitOperator(key)
	if field == "" {
		return nil, errors.Errorf("invalid condition key %q", key)
	}

	switch op {
	case "", "=", "==":
		if values, ok := toSlice(value); ok {
			return &TermsQuery{Field: field, Values: values}, nil
		}
		return &TermQuery{Field: field, Value: value}, nil
	case "!=", "<>":
		if values, ok := toSlice(value); ok {
			return &TermsQuery{Field: field, Values: values, Not: true}, nil
		}
		return &TermQuery{Field: field, Value: value, Not: true}, nil
	case "IS":
		return &TermQuery{Field: field, Value: value}, nil
	case "IS NOT":
		return &TermQuery{Field: field, Value: value, Not: true}, nil
	case ">":
		return &RangeQuery{Field: field, Gt: value}, nil
	case ">=":
		return &RangeQuery{Field: field, Gte: value}, nil
	case "<":
		return &RangeQuery{Field: field, Lt: value}, nil
	case "<=":
		return &RangeQuery{Field: field, Lte: value}, nil
	case "IN", "NOT IN":
		values, ok := toSlice(value)
		if !ok {
			values = []any{value}
		}
		if len(values) == 0 {
			return nil, errors.Errorf("impossible to generate condition with empty list of values for field (%s)", field)
		}
		return &TermsQuery{Field: field, Values: values, Not: op == "NOT IN"}, nil
	case "LIKE", "NOT LIKE":
		s, ok := value.(string)
		if !ok {
			return nil, errors.Errorf("LIKE condition on %q expects a string, got %T", field, value)
		}
		return &LikeQuery{Field: field, Value: s, Not: op == "NOT LIKE"}, nil
	default:
		return nil, errors.Errorf("unsupported operator %q in condition %q", op, key)
	}
}

var operators = []string{"NOT LIKE", "NOT IN", "IS NOT", "LIKE", "IN", "IS", ">=", "<=", "!=", "<>", "==", "=", ">", "<"}

func splitOperator(key string) (string, string) {
	key = strings.TrimSpace(key)
	upper := strings.ToUpper(key)
	for _, op := range operators {
		if strings.HasSuffix(upper, " "+op) || (!isWordOperator(op) && strings.HasSuffix(upper, op)) {
			return strings.TrimSpace(key[:len(key)-len(op)]), op
		}
	}
	return key, ""
}

func isWordOperator(op string) bool {
	return op[0] >= 'A' && op[0] <= 'Z'
}

func parseGroup(conditions map[string]any, conjunction string) (Query, error) {
	keys := make([]string, 0, len(conditions))
	for k := range conditions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	queries := make([]Query, 0, len(keys))
	for _, key := range keys {
		value := conditions[key]
		var (
			q   Query
			err error
		)
		switch strings.ToUpper(key) {
		case "AND", "OR", "NOT":
			q, err = parseNested(strings.ToUpper(key), value)
		default:
			q, err = ParseCondition(key, value)
		}
		if err != nil {
			return nil, err
		}
		queries = append(queries, q)
	}

	switch conjunction {
	case "OR":
		return Or(queries...), nil
	case "NOT":
		return Not(queries...), nil
	default:
		if len(queries) == 1 {
			return queries[0], nil
		}
		return And(queries...), nil
	}
}

func parseNested(conjunction string, value any) (Query, error) {
	switch v := value.(type) {
	case map[string]any:
		return parseGroup(v, conjunction)
	case []map[string]any:
		queries := make([]Query, 0, len(v))
		for _, m := range v {
			q, err := parseGroup(m, "AND")
			if err != nil {
				return nil, err
			}
			queries = append(queries, q)
		}
		switch conjunction {
		case "OR":
			return Or(queries...), nil
		case "NOT":
			return Not(queries...), nil
		default:
			return And(queries...), nil
		}
	default:
		return nil, errors.Errorf("%s expects nested conditions, got %T", conjunction, value)
	}
}

// toSlice 字节切片按标量处理
func toSlice(value any) ([]any, bool) {
	if value == nil {
		return nil, false
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	values := make([]any, rv.Len())
	for i := range values {
		values[i] = rv.Index(i).Interface()
	}
	return values, true
}
