package odm

import (
	"reflect"
	"sort"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
)

// Entity 一条文档，记录新建标记、脏字段与校验错误
type Entity struct {
	fields   map[string]any
	original map[string]any
	dirty    map[string]struct{}
	errors   map[string][]string
	isNew    bool
	source   string
}

// NewEntity 新建实体，所有字段都是脏字段
func NewEntity(fields map[string]any) *Entity {
	e := &Entity{
		fields:   map[string]any{},
		original: map[string]any{},
		dirty:    map[string]struct{}{},
		errors:   map[string][]string{},
		isNew:    true,
	}
	e.SetMany(fields)
	return e
}

// HydrateEntity 从查询结果构造的实体，非新建且没有脏字段
func HydrateEntity(fields map[string]any, source string) *Entity {
	e := NewEntity(fields)
	e.Clean()
	e.isNew = false
	e.source = source
	return e
}

func (e *Entity) Get(field string) any {
	return e.fields[field]
}

// ID _id 字段的值
func (e *Entity) ID() any {
	return e.fields["_id"]
}

// Set 值与当前值相同时不标记为脏字段
func (e *Entity) Set(field string, value any) *Entity {
	current, exists := e.fields[field]
	if exists && reflect.DeepEqual(current, value) {
		return e
	}
	if _, recorded := e.original[field]; !recorded && exists {
		if _, dirty := e.dirty[field]; !dirty {
			e.original[field] = current
		}
	}
	e.fields[field] = value
	e.dirty[field] = struct{}{}
	return e
}

func (e *Entity) SetMany(fields map[string]any) *Entity {
	for _, k := range sortedKeys(fields) {
		e.Set(k, fields[k])
	}
	return e
}

// Has 所有字段都存在且不为 nil
func (e *Entity) Has(fields ...string) bool {
	if len(fields) == 0 {
		return false
	}
	for _, f := range fields {
		if v, ok := e.fields[f]; !ok || v == nil {
			return false
		}
	}
	return true
}

func (e *Entity) Unset(fields ...string) *Entity {
	for _, f := range fields {
		delete(e.fields, f)
		delete(e.dirty, f)
	}
	return e
}

// Extract 取出指定字段，onlyDirty 为 true 时只取脏字段
func (e *Entity) Extract(fields []string, onlyDirty bool) map[string]any {
	out := map[string]any{}
	for _, f := range fields {
		if onlyDirty && !e.IsDirty(f) {
			continue
		}
		out[f] = e.fields[f]
	}
	return out
}

func (e *Entity) ToMap() map[string]any {
	out := make(map[string]any, len(e.fields))
	for k, v := range e.fields {
		out[k] = v
	}
	return out
}

// Fields 字段名，按字典序
func (e *Entity) Fields() []string {
	return sortedKeys(e.fields)
}

func (e *Entity) IsNew() bool {
	return e.isNew
}

func (e *Entity) SetNew(isNew bool) *Entity {
	e.isNew = isNew
	return e
}

// IsDirty 不传字段时判断是否存在任一脏字段
func (e *Entity) IsDirty(fields ...string) bool {
	if len(fields) == 0 {
		return len(e.dirty) > 0
	}
	for _, f := range fields {
		if _, ok := e.dirty[f]; ok {
			return true
		}
	}
	return false
}

func (e *Entity) Dirty() []string {
	fields := make([]string, 0, len(e.dirty))
	for f := range e.dirty {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

func (e *Entity) SetDirty(field string, dirty bool) *Entity {
	if dirty {
		e.dirty[field] = struct{}{}
	} else {
		delete(e.dirty, field)
		delete(e.original, field)
	}
	return e
}

// Clean 清空脏字段、原始值与校验错误
func (e *Entity) Clean() *Entity {
	e.dirty = map[string]struct{}{}
	e.original = map[string]any{}
	e.errors = map[string][]string{}
	return e
}

// Original 字段在第一次修改前的值
func (e *Entity) Original(field string) any {
	if v, ok := e.original[field]; ok {
		return v
	}
	return e.fields[field]
}

func (e *Entity) Errors() map[string][]string {
	out := make(map[string][]string, len(e.errors))
	for k, v := range e.errors {
		out[k] = append([]string(nil), v...)
	}
	return out
}

func (e *Entity) SetError(field string, messages ...string) *Entity {
	e.errors[field] = append(e.errors[field], messages...)
	return e
}

func (e *Entity) SetErrors(errs map[string][]string) *Entity {
	for field, messages := range errs {
		e.SetError(field, messages...)
	}
	return e
}

func (e *Entity) HasErrors() bool {
	for _, messages := range e.errors {
		if len(messages) > 0 {
			return true
		}
	}
	return false
}

func (e *Entity) FieldErrors(field string) []string {
	return e.errors[field]
}

// ErrorFields 有校验错误的字段，按字典序
func (e *Entity) ErrorFields() []string {
	var fields []string
	for f, messages := range e.errors {
		if len(messages) > 0 {
			fields = append(fields, f)
		}
	}
	sort.Strings(fields)
	return fields
}

// Source 实体所属集合的注册别名
func (e *Entity) Source() string {
	return e.source
}

func (e *Entity) SetSource(source string) *Entity {
	e.source = source
	return e
}

// Scan 按 bson 标签把字段绑定到结构体
func (e *Entity) Scan(dest any) error {
	buf, err := bson.Marshal(bson.M(e.fields))
	if err != nil {
		return errors.Wrap(err, "bson.Marshal failed")
	}
	if err := bson.Unmarshal(buf, dest); err != nil {
		return errors.Wrap(err, "bson.Unmarshal failed")
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
