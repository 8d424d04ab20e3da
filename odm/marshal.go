package odm

import (
	"context"
	"fmt"
)

// MarshalOptions 从请求数据构造实体时的选项
type MarshalOptions struct {
	// Fields 允许赋值的字段，为空时全部允许
	Fields []string
	// NoValidate 跳过校验
	NoValidate bool
	// Validator 替换集合上配置的校验标签
	Validator map[string]string
}

// NewEmptyEntity 没有任何字段的新实体
func (c *Collection) NewEmptyEntity() *Entity {
	return NewEntity(nil).SetSource(c.registryAlias)
}

// NewEntity 依次派发 beforeMarshal, buildValidator 与 afterMarshal，校验失败的字段不会赋值
func (c *Collection) NewEntity(ctx context.Context, data map[string]any, options *MarshalOptions) *Entity {
	entity := c.NewEmptyEntity()
	c.marshal(ctx, entity, data, options, true)
	return entity
}

func (c *Collection) NewEntities(ctx context.Context, data []map[string]any, options *MarshalOptions) []*Entity {
	entities := make([]*Entity, 0, len(data))
	for _, d := range data {
		entities = append(entities, c.NewEntity(ctx, d, options))
	}
	return entities
}

// PatchEntity 合并数据到已有实体，只校验出现的字段
func (c *Collection) PatchEntity(ctx context.Context, entity *Entity, data map[string]any, options *MarshalOptions) *Entity {
	c.marshal(ctx, entity, data, options, false)
	return entity
}

// PatchEntities 按主键把 data 合并到对应的实体，找不到实体的数据构造为新实体；结果与 data 一一对应
func (c *Collection) PatchEntities(ctx context.Context, entities []*Entity, data []map[string]any, options *MarshalOptions) ([]*Entity, error) {
	key, err := c.PrimaryKey(ctx)
	if err != nil {
		return nil, err
	}
	keyOf := func(values []any) string {
		return fmt.Sprintf("%v", values)
	}

	indexed := make(map[string]*Entity, len(entities))
	for _, e := range entities {
		if !e.Has(key...) {
			continue
		}
		values := make([]any, len(key))
		for i, k := range key {
			values[i] = e.Get(k)
		}
		indexed[keyOf(values)] = e
	}

	patched := make([]*Entity, 0, len(data))
	for _, d := range data {
		values := make([]any, 0, len(key))
		for _, k := range key {
			if v, ok := d[k]; ok && v != nil {
				values = append(values, v)
			}
		}
		if len(values) == len(key) {
			if e, ok := indexed[keyOf(values)]; ok {
				delete(indexed, keyOf(values))
				patched = append(patched, c.PatchEntity(ctx, e, d, options))
				continue
			}
		}
		patched = append(patched, c.NewEntity(ctx, d, options))
	}
	return patched, nil
}

func (c *Collection) marshal(ctx context.Context, entity *Entity, data map[string]any, options *MarshalOptions, isNew bool) {
	if options == nil {
		options = &MarshalOptions{}
	}
	copied := make(map[string]any, len(data))
	for k, v := range data {
		copied[k] = v
	}

	event := c.events.Dispatch(ctx, &Event{Name: EventBeforeMarshal, Subject: c, Entity: entity, Data: copied})
	data = event.Data

	if len(options.Fields) > 0 {
		allowed := make(map[string]struct{}, len(options.Fields))
		for _, f := range options.Fields {
			allowed[f] = struct{}{}
		}
		for k := range data {
			if _, ok := allowed[k]; !ok {
				delete(data, k)
			}
		}
	}

	errs := map[string][]string{}
	if !options.NoValidate {
		tags := options.Validator
		if tags == nil {
			tags = c.validator
		}
		validator := make(map[string]string, len(tags))
		for field, tag := range tags {
			validator[field] = tag
		}
		event = c.events.Dispatch(ctx, &Event{Name: EventBuildValidator, Subject: c, Entity: entity, Data: data, Validator: validator})
		validator = event.Validator

		if !isNew {
			for field := range validator {
				if _, ok := data[field]; !ok {
					delete(validator, field)
				}
			}
		}
		if len(validator) > 0 {
			errs = ValidateMap(data, validator)
		}
	}

	for _, k := range sortedKeys(data) {
		if _, invalid := errs[k]; invalid {
			continue
		}
		entity.Set(k, data[k])
	}
	entity.SetErrors(errs)

	c.events.Dispatch(ctx, &Event{Name: EventAfterMarshal, Subject: c, Entity: entity, Data: data})
}
