package memdb

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/hatlonely/mongodm/database"
)

// aggregate 依次执行 $match $project $sort $skip $limit $count $group 阶段
func aggregate(docs []bson.M, pipeline database.Pipeline) ([]bson.M, error) {
	for _, stage := range pipeline {
		if len(stage) != 1 {
			return nil, errors.Errorf("a pipeline stage specification object must contain exactly one field")
		}
		var err error
		name, arg := stage[0].Key, stage[0].Value
		switch name {
		case "$match":
			docs, err = matchStage(docs, arg)
		case "$project":
			docs, err = projectStage(docs, arg)
		case "$sort":
			docs, err = sortStage(docs, arg)
		case "$skip":
			n, ok := toFloat(arg)
			if !ok || n < 0 {
				return nil, errors.Errorf("$skip needs a non-negative number")
			}
			if int(n) >= len(docs) {
				docs = []bson.M{}
			} else {
				docs = docs[int(n):]
			}
		case "$limit":
			n, ok := toFloat(arg)
			if !ok || n <= 0 {
				return nil, errors.Errorf("$limit needs a positive number")
			}
			if int(n) < len(docs) {
				docs = docs[:int(n)]
			}
		case "$count":
			field, ok := arg.(string)
			if !ok || field == "" {
				return nil, errors.Errorf("$count needs a field name")
			}
			if len(docs) == 0 {
				docs = []bson.M{}
			} else {
				docs = []bson.M{{field: int32(len(docs))}}
			}
		case "$group":
			docs, err = groupStage(docs, arg)
		default:
			return nil, errors.Errorf("unrecognized pipeline stage name: %s", name)
		}
		if err != nil {
			return nil, err
		}
	}
	return docs, nil
}

func matchStage(docs []bson.M, arg any) ([]bson.M, error) {
	filter, ok := asDoc(arg)
	if !ok {
		return nil, errors.Errorf("$match needs a document")
	}
	out := make([]bson.M, 0, len(docs))
	for _, doc := range docs {
		ok, err := matches(doc, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

// projectStage 字段值为 "$path" 时取表达式，1/true 时包含，0/false 时排除；_id 默认保留
func projectStage(docs []bson.M, arg any) ([]bson.M, error) {
	spec, ok := arg.(bson.D)
	if !ok {
		m, isDoc := asDoc(arg)
		if !isDoc {
			return nil, errors.Errorf("$project needs a document")
		}
		for k, v := range m {
			spec = append(spec, bson.E{Key: k, Value: v})
		}
	}
	if len(spec) == 0 {
		return nil, errors.Errorf("$project specification must have at least one field")
	}

	keepID := true
	var exclude []string
	for _, e := range spec {
		if isFalse(e.Value) {
			if e.Key == "_id" {
				keepID = false
			} else {
				exclude = append(exclude, e.Key)
			}
		}
	}

	out := make([]bson.M, 0, len(docs))
	for _, doc := range docs {
		if len(exclude) > 0 {
			projected := copyDoc(doc)
			for _, k := range exclude {
				delete(projected, k)
			}
			if !keepID {
				delete(projected, "_id")
			}
			out = append(out, projected)
			continue
		}
		projected := bson.M{}
		if id, ok := doc["_id"]; ok && keepID {
			projected["_id"] = id
		}
		for _, e := range spec {
			if isFalse(e.Value) {
				continue
			}
			if path, ok := e.Value.(string); ok && strings.HasPrefix(path, "$") {
				if v, exists := lookup(doc, path[1:]); exists {
					setPath(projected, e.Key, v)
				}
				continue
			}
			if v, exists := lookup(doc, e.Key); exists {
				setPath(projected, e.Key, v)
			}
		}
		out = append(out, projected)
	}
	return out, nil
}

func isFalse(v any) bool {
	if b, ok := v.(bool); ok {
		return !b
	}
	if n, ok := toFloat(v); ok {
		return n == 0
	}
	return false
}

// sortStage 稳定排序，缺失字段排在最前
func sortStage(docs []bson.M, arg any) ([]bson.M, error) {
	spec, ok := arg.(bson.D)
	if !ok || len(spec) == 0 {
		return nil, errors.Errorf("$sort needs an ordered nonempty document")
	}
	out := append([]bson.M(nil), docs...)
	sort.SliceStable(out, func(i, j int) bool {
		for _, e := range spec {
			dir, _ := toFloat(e.Value)
			a, aok := lookup(out[i], e.Key)
			b, bok := lookup(out[j], e.Key)
			var c int
			switch {
			case !aok && !bok:
				c = 0
			case !aok:
				c = -1
			case !bok:
				c = 1
			default:
				c, _ = compare(a, b)
			}
			if c != 0 {
				if dir < 0 {
					return c > 0
				}
				return c < 0
			}
		}
		return false
	})
	return out, nil
}

// groupStage 只支持 _id: null 与 $sum 累加器
func groupStage(docs []bson.M, arg any) ([]bson.M, error) {
	spec, ok := asDoc(arg)
	if !ok {
		return nil, errors.Errorf("$group needs a document")
	}
	if id, ok := spec["_id"]; !ok || id != nil {
		return nil, errors.Errorf("$group only supports _id: null")
	}
	if len(docs) == 0 {
		return []bson.M{}, nil
	}
	result := bson.M{"_id": nil}
	for field, acc := range spec {
		if field == "_id" {
			continue
		}
		ops, ok := asDoc(acc)
		if !ok {
			return nil, errors.Errorf("the field '%s' must be an accumulator object", field)
		}
		sumArg, ok := ops["$sum"]
		if !ok || len(ops) != 1 {
			return nil, errors.Errorf("$group only supports the $sum accumulator")
		}
		var sum float64
		for _, doc := range docs {
			if path, ok := sumArg.(string); ok && strings.HasPrefix(path, "$") {
				if v, exists := lookup(doc, path[1:]); exists {
					n, _ := toFloat(v)
					sum += n
				}
				continue
			}
			n, _ := toFloat(sumArg)
			sum += n
		}
		if sum == float64(int64(sum)) {
			result[field] = int64(sum)
		} else {
			result[field] = sum
		}
	}
	return []bson.M{result}, nil
}
