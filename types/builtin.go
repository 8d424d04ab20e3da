package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/hatlonely/mongodm/uid"
)

func builtins() []Type {
	return []Type{
		&StringType{name: "string"},
		&StringType{name: "text"},
		&UUIDType{gen: uid.NewUUIDGeneratorWithOptions(nil)},
		&ObjectIDType{},
		&IntegerType{name: "integer"},
		&IntegerType{name: "biginteger", gen: uid.NewSnowflakeGenerator(nil)},
		&FloatType{},
		&BooleanType{},
		&DateTimeType{},
		&JSONType{},
	}
}

type StringType struct {
	name string
}

func (t *StringType) Name() string { return t.name }
func (t *StringType) NewID() any   { return nil }

func (t *StringType) ToGo(v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		return val, nil
	case primitive.ObjectID:
		return val.Hex(), nil
	case []byte:
		return string(val), nil
	default:
		return fmt.Sprint(val), nil
	}
}

func (t *StringType) ToDatabase(v any) (any, error) {
	return t.ToGo(v)
}

// UUIDType 字符串存储的 UUID，NewID 生成 v4
type UUIDType struct {
	gen uid.StrGenerator
}

func NewUUIDType(gen uid.StrGenerator) *UUIDType {
	return &UUIDType{gen: gen}
}

func (t *UUIDType) Name() string { return "uuid" }
func (t *UUIDType) NewID() any   { return t.gen.Generate() }

func (t *UUIDType) ToGo(v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		return val, nil
	case primitive.ObjectID:
		return val.Hex(), nil
	case primitive.Binary:
		return fmt.Sprintf("%x-%x-%x-%x-%x", val.Data[0:4], val.Data[4:6], val.Data[6:8], val.Data[8:10], val.Data[10:16]), nil
	default:
		return fmt.Sprint(val), nil
	}
}

func (t *UUIDType) ToDatabase(v any) (any, error) {
	if b, ok := v.(primitive.Binary); ok && len(b.Data) != 16 {
		return nil, errors.Errorf("invalid uuid binary of length %d", len(b.Data))
	}
	return t.ToGo(v)
}

// MatchValues 十六进制形式的 ObjectID 读出后也是字符串，条件需要同时匹配两种存储形式
func (t *UUIDType) MatchValues(v any) ([]any, error) {
	dv, err := t.ToDatabase(v)
	if err != nil {
		return nil, err
	}
	s, ok := dv.(string)
	if !ok || len(s) != 24 {
		return []any{dv}, nil
	}
	id, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return []any{dv}, nil
	}
	return []any{s, id}, nil
}

// ObjectIDType 原生 ObjectID 主键
type ObjectIDType struct{}

func (t *ObjectIDType) Name() string { return "objectid" }
func (t *ObjectIDType) NewID() any   { return primitive.NewObjectID() }

// ToGo 统一转换为十六进制字符串
func (t *ObjectIDType) ToGo(v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case primitive.ObjectID:
		return val.Hex(), nil
	case string:
		return val, nil
	default:
		return nil, errors.Errorf("cannot convert %T to objectid", v)
	}
}

func (t *ObjectIDType) ToDatabase(v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case primitive.ObjectID:
		return val, nil
	case string:
		id, err := primitive.ObjectIDFromHex(val)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid objectid %q", val)
		}
		return id, nil
	default:
		return nil, errors.Errorf("cannot convert %T to objectid", v)
	}
}

// IntegerType biginteger 使用 snowflake 生成主键
type IntegerType struct {
	name string
	gen  uid.IntGenerator
}

func (t *IntegerType) Name() string { return t.name }

func (t *IntegerType) NewID() any {
	if t.gen == nil {
		return nil
	}
	return t.gen.Generate()
}

func (t *IntegerType) ToGo(v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case int:
		return int64(val), nil
	case int8:
		return int64(val), nil
	case int16:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case int64:
		return val, nil
	case uint8:
		return int64(val), nil
	case uint16:
		return int64(val), nil
	case uint32:
		return int64(val), nil
	case uint64:
		return int64(val), nil
	case float64:
		return int64(val), nil
	case string:
		i, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid integer %q", val)
		}
		return i, nil
	default:
		return nil, errors.Errorf("cannot convert %T to integer", v)
	}
}

func (t *IntegerType) ToDatabase(v any) (any, error) {
	return t.ToGo(v)
}

type FloatType struct{}

func (t *FloatType) Name() string { return "float" }
func (t *FloatType) NewID() any   { return nil }

func (t *FloatType) ToGo(v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case float64:
		return val, nil
	case float32:
		return float64(val), nil
	case int:
		return float64(val), nil
	case int32:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case string:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid float %q", val)
		}
		return f, nil
	default:
		return nil, errors.Errorf("cannot convert %T to float", v)
	}
}

func (t *FloatType) ToDatabase(v any) (any, error) {
	return t.ToGo(v)
}

type BooleanType struct{}

func (t *BooleanType) Name() string { return "boolean" }
func (t *BooleanType) NewID() any   { return nil }

func (t *BooleanType) ToGo(v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case bool:
		return val, nil
	case string:
		b, err := strconv.ParseBool(val)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid boolean %q", val)
		}
		return b, nil
	case int, int32, int64:
		return fmt.Sprint(val) != "0", nil
	default:
		return nil, errors.Errorf("cannot convert %T to boolean", v)
	}
}

func (t *BooleanType) ToDatabase(v any) (any, error) {
	return t.ToGo(v)
}

// DateTimeType Go 侧为 time.Time，存储为 BSON 日期
type DateTimeType struct{}

func (t *DateTimeType) Name() string { return "datetime" }
func (t *DateTimeType) NewID() any   { return nil }

func (t *DateTimeType) ToGo(v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return val, nil
	case primitive.DateTime:
		return val.Time(), nil
	case string:
		tm, err := time.Parse(time.RFC3339Nano, val)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid datetime %q", val)
		}
		return tm, nil
	case int64:
		return time.UnixMilli(val), nil
	default:
		return nil, errors.Errorf("cannot convert %T to datetime", v)
	}
}

func (t *DateTimeType) ToDatabase(v any) (any, error) {
	tm, err := t.ToGo(v)
	if err != nil || tm == nil {
		return nil, err
	}
	return primitive.NewDateTimeFromTime(tm.(time.Time)), nil
}

// JSONType 文档库原生支持嵌套结构，字符串形式的 JSON 会被解析
type JSONType struct{}

func (t *JSONType) Name() string { return "json" }
func (t *JSONType) NewID() any   { return nil }

func (t *JSONType) ToGo(v any) (any, error) {
	if s, ok := v.(string); ok {
		var out any
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return nil, errors.Wrap(err, "invalid json")
		}
		return out, nil
	}
	return v, nil
}

func (t *JSONType) ToDatabase(v any) (any, error) {
	return t.ToGo(v)
}
