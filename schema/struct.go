package schema

import (
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	timeType     = reflect.TypeOf(time.Time{})
	objectIDType = reflect.TypeOf(primitive.ObjectID{})
)

// FromStruct 从结构体构建表结构
// 列名取 bson tag（与 Entity.Scan 一致），行为由 odm tag 描述：
//
//	ID    string `bson:"_id" odm:"type=uuid,primary"`
//	Email string `bson:"email" odm:"required,unique"`
//	Age   int    `bson:"age,omitempty" odm:"default=18"`
//
// 支持 type=、length=、default=、primary、required、unique、index、autoIncrement，odm:"-" 跳过字段
func FromStruct(table string, v any) (*TableSchema, error) {
	rt := reflect.TypeOf(v)
	for rt != nil && rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	if rt == nil || rt.Kind() != reflect.Struct {
		return nil, errors.Errorf("expected struct, got %T", v)
	}

	s := NewTableSchema(table)
	var primary, unique, indexed []string
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		tag := field.Tag.Get("odm")
		if tag == "-" {
			continue
		}
		name := columnName(field)
		if name == "-" {
			continue
		}

		column := Column{Type: inferType(field.Type), Null: true}
		for _, part := range strings.Split(tag, ",") {
			part = strings.TrimSpace(part)
			key, value, hasValue := strings.Cut(part, "=")
			switch {
			case part == "":
			case hasValue && key == "type":
				column.Type = value
			case hasValue && key == "length":
				n, err := strconv.Atoi(value)
				if err != nil {
					return nil, errors.Wrapf(err, "field %s: invalid length", field.Name)
				}
				column.Length = n
			case hasValue && key == "default":
				column.Default = value
			case part == "primary" || part == "pk":
				column.Null = false
				primary = append(primary, name)
			case part == "required":
				column.Null = false
			case part == "autoIncrement":
				column.AutoIncrement = true
			case part == "unique":
				unique = append(unique, name)
			case part == "index":
				indexed = append(indexed, name)
			default:
				return nil, errors.Errorf("field %s: unknown odm tag option %q", field.Name, part)
			}
		}
		s.AddColumn(name, column)
	}

	if len(primary) > 0 {
		if err := s.AddConstraint(ConstraintPrimary, Constraint{Type: ConstraintPrimary, Columns: primary}); err != nil {
			return nil, err
		}
	}
	for _, name := range unique {
		if err := s.AddConstraint(name+"_unique", Constraint{Type: ConstraintUnique, Columns: []string{name}}); err != nil {
			return nil, err
		}
	}
	for _, name := range indexed {
		if err := s.AddIndex(name+"_idx", Index{Type: IndexIndex, Columns: []string{name}}); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func columnName(field reflect.StructField) string {
	if tag := field.Tag.Get("bson"); tag != "" {
		if name := strings.Split(tag, ",")[0]; name != "" {
			return name
		}
	}
	return strings.ToLower(field.Name)
}

func inferType(t reflect.Type) string {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t {
	case timeType:
		return "datetime"
	case objectIDType:
		return "objectid"
	}
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int64, reflect.Uint64:
		return "biginteger"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "float"
	case reflect.Bool:
		return "boolean"
	default:
		return "json"
	}
}
