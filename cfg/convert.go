package cfg

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ConvertTo 将解码后的通用结构写入 object
// 结构体字段名取 cfg tag，其次 json/yaml tag，最后不区分大小写匹配字段名
func ConvertTo(src any, object any) error {
	rv := reflect.ValueOf(object)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errors.New("object must be a non-nil pointer")
	}
	return convert(src, rv.Elem())
}

func convert(src any, dst reflect.Value) error {
	if src == nil {
		return nil
	}

	if dst.Kind() == reflect.Ptr {
		if dst.IsNil() {
			dst.Set(reflect.New(dst.Type().Elem()))
			if err := setDefaults(dst.Elem()); err != nil {
				return err
			}
		}
		return convert(src, dst.Elem())
	}

	if dst.Kind() == reflect.Interface {
		dst.Set(reflect.ValueOf(src))
		return nil
	}

	// ini 与 def 一样以字符串形式给出标量
	if s, ok := src.(string); ok && dst.Kind() != reflect.String {
		return setValue(dst, s)
	}

	sv := reflect.ValueOf(src)
	switch dst.Kind() {
	case reflect.Struct:
		if dst.Type() == timeType {
			if t, ok := src.(time.Time); ok {
				dst.Set(reflect.ValueOf(t))
				return nil
			}
			return errors.Errorf("cannot convert %T to time.Time", src)
		}
		return convertStruct(sv, dst)
	case reflect.Map:
		return convertMap(sv, dst)
	case reflect.Slice:
		return convertSlice(sv, dst)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		switch {
		case sv.CanInt():
			dst.SetInt(sv.Int())
		case sv.CanUint():
			dst.SetInt(int64(sv.Uint()))
		case sv.CanFloat():
			dst.SetInt(int64(sv.Float()))
		default:
			return errors.Errorf("cannot convert %T to %s", src, dst.Type())
		}
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		switch {
		case sv.CanInt():
			dst.SetUint(uint64(sv.Int()))
		case sv.CanUint():
			dst.SetUint(sv.Uint())
		case sv.CanFloat():
			dst.SetUint(uint64(sv.Float()))
		default:
			return errors.Errorf("cannot convert %T to %s", src, dst.Type())
		}
		return nil
	case reflect.Float32, reflect.Float64:
		switch {
		case sv.CanFloat():
			dst.SetFloat(sv.Float())
		case sv.CanInt():
			dst.SetFloat(float64(sv.Int()))
		default:
			return errors.Errorf("cannot convert %T to %s", src, dst.Type())
		}
		return nil
	case reflect.String:
		dst.SetString(fmt.Sprint(src))
		return nil
	}

	if sv.Type().ConvertibleTo(dst.Type()) {
		dst.Set(sv.Convert(dst.Type()))
		return nil
	}
	return errors.Errorf("cannot convert %T to %s", src, dst.Type())
}

func convertStruct(sv, dst reflect.Value) error {
	if sv.Kind() != reflect.Map {
		return errors.Errorf("cannot convert %s to struct %s", sv.Type(), dst.Type())
	}

	keys := make(map[string]reflect.Value, sv.Len())
	for _, k := range sv.MapKeys() {
		keys[strings.ToLower(fmt.Sprint(k.Interface()))] = sv.MapIndex(k)
	}

	rt := dst.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		fv := dst.Field(i)
		if !fv.CanSet() {
			continue
		}
		name := fieldName(field)
		if name == "-" {
			continue
		}
		v, ok := keys[strings.ToLower(name)]
		if !ok {
			continue
		}
		if err := convert(v.Interface(), fv); err != nil {
			return errors.WithMessagef(err, "field %s", name)
		}
	}
	return nil
}

func fieldName(field reflect.StructField) string {
	for _, key := range []string{"cfg", "json", "yaml"} {
		if tag := field.Tag.Get(key); tag != "" {
			if name := strings.Split(tag, ",")[0]; name != "" {
				return name
			}
		}
	}
	return field.Name
}

func convertMap(sv, dst reflect.Value) error {
	if sv.Kind() != reflect.Map {
		return errors.Errorf("cannot convert %s to map", sv.Type())
	}
	if dst.IsNil() {
		dst.Set(reflect.MakeMap(dst.Type()))
	}
	for _, k := range sv.MapKeys() {
		key := reflect.New(dst.Type().Key()).Elem()
		if err := convert(k.Interface(), key); err != nil {
			return err
		}
		val := reflect.New(dst.Type().Elem()).Elem()
		if err := setDefaults(val); err != nil {
			return err
		}
		if err := convert(sv.MapIndex(k).Interface(), val); err != nil {
			return errors.WithMessagef(err, "key %v", k.Interface())
		}
		dst.SetMapIndex(key, val)
	}
	return nil
}

func convertSlice(sv, dst reflect.Value) error {
	if sv.Kind() != reflect.Slice && sv.Kind() != reflect.Array {
		return errors.Errorf("cannot convert %s to slice", sv.Type())
	}
	slice := reflect.MakeSlice(dst.Type(), sv.Len(), sv.Len())
	for i := 0; i < sv.Len(); i++ {
		if err := convert(sv.Index(i).Interface(), slice.Index(i)); err != nil {
			return errors.WithMessagef(err, "index %d", i)
		}
	}
	dst.Set(slice)
	return nil
}
