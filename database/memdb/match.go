package memdb

import (
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// matches 判断文档是否满足过滤条件，支持比较、集合、存在性、正则与逻辑操作符
func matches(doc bson.M, filter bson.M) (bool, error) {
	for key, cond := range filter {
		var (
			ok  bool
			err error
		)
		switch key {
		case "$and", "$or", "$nor":
			ok, err = matchLogical(doc, key, cond)
		default:
			if strings.HasPrefix(key, "$") {
				return false, errors.Errorf("unknown top level operator %s", key)
			}
			value, exists := lookup(doc, key)
			ok, err = matchField(value, exists, cond)
		}
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchLogical(doc bson.M, op string, cond any) (bool, error) {
	items, ok := asArray(cond)
	if !ok || len(items) == 0 {
		return false, errors.Errorf("%s must be a nonempty array", op)
	}
	for _, item := range items {
		sub, ok := asDoc(item)
		if !ok {
			return false, errors.Errorf("%s entries must be documents", op)
		}
		matched, err := matches(doc, sub)
		if err != nil {
			return false, err
		}
		switch {
		case op == "$and" && !matched:
			return false, nil
		case op == "$or" && matched:
			return true, nil
		case op == "$nor" && matched:
			return false, nil
		}
	}
	return op != "$or", nil
}

func matchField(value any, exists bool, cond any) (bool, error) {
	if re, ok := cond.(primitive.Regex); ok {
		return matchRegex(value, re.Pattern, re.Options)
	}
	ops, ok := asDoc(cond)
	if !ok || !isOperatorDoc(ops) {
		return matchEqual(value, exists, cond), nil
	}

	for op, arg := range ops {
		var (
			ok  bool
			err error
		)
		switch op {
		case "$eq":
			ok = matchEqual(value, exists, arg)
		case "$ne":
			ok = !matchEqual(value, exists, arg)
		case "$gt", "$gte", "$lt", "$lte":
			ok = matchCompare(value, exists, op, arg)
		case "$in", "$nin":
			items, isArray := asArray(arg)
			if !isArray {
				return false, errors.Errorf("%s needs an array", op)
			}
			found := false
			for _, item := range items {
				if matchEqual(value, exists, item) {
					found = true
					break
				}
			}
			ok = found == (op == "$in")
		case "$exists":
			want, _ := arg.(bool)
			ok = exists == want
		case "$regex":
			options, _ := ops["$options"].(string)
			pattern, isString := arg.(string)
			if !isString {
				return false, errors.Errorf("$regex has to be a string")
			}
			ok, err = matchRegex(value, pattern, options)
		case "$options":
			ok = true
		case "$not":
			var matched bool
			matched, err = matchField(value, exists, arg)
			ok = !matched
		default:
			return false, errors.Errorf("unknown operator %s", op)
		}
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func isOperatorDoc(doc bson.M) bool {
	if len(doc) == 0 {
		return false
	}
	for k := range doc {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}
	return true
}

// matchEqual nil 匹配缺失字段与 null，数组字段任一元素相等即匹配
func matchEqual(value any, exists bool, target any) bool {
	if target == nil {
		return !exists || value == nil
	}
	if !exists {
		return false
	}
	if equal(value, target) {
		return true
	}
	if items, ok := asArray(value); ok {
		for _, item := range items {
			if equal(item, target) {
				return true
			}
		}
	}
	return false
}

func matchCompare(value any, exists bool, op string, target any) bool {
	if !exists {
		return false
	}
	c, ok := compare(value, target)
	if !ok {
		return false
	}
	switch op {
	case "$gt":
		return c > 0
	case "$gte":
		return c >= 0
	case "$lt":
		return c < 0
	default:
		return c <= 0
	}
}

func matchRegex(value any, pattern string, options string) (bool, error) {
	s, ok := value.(string)
	if !ok {
		return false, nil
	}
	if strings.Contains(options, "i") {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, errors.Wrapf(err, "invalid regex %q", pattern)
	}
	return re.MatchString(s), nil
}

// lookup 支持 a.b 形式的嵌套路径
func lookup(doc bson.M, path string) (any, bool) {
	var current any = doc
	for _, segment := range strings.Split(path, ".") {
		m, ok := asDoc(current)
		if !ok {
			return nil, false
		}
		if current, ok = m[segment]; !ok {
			return nil, false
		}
	}
	return current, true
}

// setPath 按点号路径写入，中间层不存在时创建子文档
func setPath(doc bson.M, path string, v any) {
	segments := strings.Split(path, ".")
	current := doc
	for _, segment := range segments[:len(segments)-1] {
		next, ok := current[segment].(bson.M)
		if !ok {
			next = bson.M{}
			current[segment] = next
		}
		current = next
	}
	current[segments[len(segments)-1]] = v
}

func asArray(v any) ([]any, bool) {
	switch a := v.(type) {
	case bson.A:
		return a, true
	case []any:
		return a, true
	case []string:
		out := make([]any, len(a))
		for i, s := range a {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

func equal(a, b any) bool {
	if c, ok := compare(a, b); ok {
		return c == 0
	}
	if da, ok := asDoc(a); ok {
		db, ok := asDoc(b)
		if !ok || len(da) != len(db) {
			return false
		}
		for k, v := range da {
			if w, ok := db[k]; !ok || !equal(v, w) {
				return false
			}
		}
		return true
	}
	if aa, ok := asArray(a); ok {
		ab, ok := asArray(b)
		if !ok || len(aa) != len(ab) {
			return false
		}
		for i := range aa {
			if !equal(aa[i], ab[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

// compare 只比较同一类别的值：数字、字符串、时间、ObjectID、布尔
func compare(a, b any) (int, bool) {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		return cmp(fa < fb, fa > fb), true
	}
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(x, y), true
	case bool:
		y, ok := b.(bool)
		if !ok {
			return 0, false
		}
		return cmp(!x && y, x && !y), true
	case primitive.ObjectID:
		y, ok := b.(primitive.ObjectID)
		if !ok {
			return 0, false
		}
		return strings.Compare(x.Hex(), y.Hex()), true
	}
	if ta, ok := toTime(a); ok {
		tb, ok := toTime(b)
		if !ok {
			return 0, false
		}
		return ta.Compare(tb), true
	}
	return 0, false
}

func cmp(less, greater bool) int {
	switch {
	case less:
		return -1
	case greater:
		return 1
	default:
		return 0
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case primitive.DateTime:
		return t.Time(), true
	}
	return time.Time{}, false
}
