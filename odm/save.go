package odm

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/hatlonely/mongodm/database"
)

// SaveOptions 保存选项，全部默认为 true
type SaveOptions struct {
	// Atomic 为 false 时由调用方负责清理实体状态，SaveMany 使用
	Atomic bool
	// CheckRules 保存前执行规则检查
	CheckRules bool
	// CheckExisting 新实体带有完整主键时先查询是否已存在
	CheckExisting bool
	// Primary 是否为最外层的保存
	Primary bool
	// CleanOnSuccess 保存成功后清理脏字段并标记为非新建
	CleanOnSuccess bool
	// Extra 透传给事件与规则的自定义选项
	Extra map[string]any
}

type SaveOption func(o *SaveOptions)

func Atomic(atomic bool) SaveOption {
	return func(o *SaveOptions) { o.Atomic = atomic }
}

func CheckRules(check bool) SaveOption {
	return func(o *SaveOptions) { o.CheckRules = check }
}

func CheckExisting(check bool) SaveOption {
	return func(o *SaveOptions) { o.CheckExisting = check }
}

func Primary(primary bool) SaveOption {
	return func(o *SaveOptions) { o.Primary = primary }
}

func CleanOnSuccess(clean bool) SaveOption {
	return func(o *SaveOptions) { o.CleanOnSuccess = clean }
}

func WithExtra(key string, value any) SaveOption {
	return func(o *SaveOptions) {
		if o.Extra == nil {
			o.Extra = map[string]any{}
		}
		o.Extra[key] = value
	}
}

func newSaveOptions(opts []SaveOption) *SaveOptions {
	options := &SaveOptions{
		Atomic:         true,
		CheckRules:     true,
		CheckExisting:  true,
		Primary:        true,
		CleanOnSuccess: true,
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// Save 新实体插入，已有实体只更新脏字段；返回的实体可能被 beforeSave 替换
//
// 校验或规则失败、事件中止、没有影响任何记录时返回 false 且 err 为 nil；
// 结构错误与执行错误通过 err 返回，此时实体状态已恢复
func (c *Collection) Save(ctx context.Context, entity *Entity, opts ...SaveOption) (*Entity, bool, error) {
	options := newSaveOptions(opts)
	if entity.HasErrors() {
		return entity, false, nil
	}
	if !entity.IsNew() && !entity.IsDirty() {
		return entity, true, nil
	}

	result, ok, err := c.processSave(ctx, entity, options)
	if err != nil {
		c.logger.WarnContext(ctx, "save failed", "alias", c.alias, "error", err)
		return entity, false, err
	}
	if !ok {
		c.logger.WarnContext(ctx, "save rejected", "alias", c.alias, "errors", entity.Errors())
		return result, false, nil
	}
	if options.Atomic || options.Primary {
		if options.CleanOnSuccess {
			result.Clean()
			result.SetNew(false)
		}
		result.SetSource(c.registryAlias)
	}
	return result, true, nil
}

// SaveOrFail 保存失败时返回 PersistenceFailedError
func (c *Collection) SaveOrFail(ctx context.Context, entity *Entity, opts ...SaveOption) (*Entity, error) {
	result, ok, err := c.Save(ctx, entity, opts...)
	if err != nil || !ok {
		return nil, &PersistenceFailedError{Entity: entity, Operations: []string{"save"}, Cause: err}
	}
	return result, nil
}

func (c *Collection) processSave(ctx context.Context, entity *Entity, options *SaveOptions) (*Entity, bool, error) {
	key, err := c.PrimaryKey(ctx)
	if err != nil {
		return entity, false, err
	}

	if options.CheckExisting && entity.IsNew() && entity.Has(key...) {
		conditions, err := c.typedConditions(ctx, entity.Extract(key, false))
		if err != nil {
			return entity, false, err
		}
		exists, err := c.Exists(ctx, conditions)
		if err != nil {
			return entity, false, err
		}
		entity.SetNew(!exists)
	}

	mode := RuleUpdate
	if entity.IsNew() {
		mode = RuleCreate
	}
	if options.CheckRules {
		passed, err := c.checkRules(ctx, entity, mode, options)
		if err != nil || !passed {
			return entity, false, err
		}
	}

	event := c.events.Dispatch(ctx, &Event{Name: EventBeforeSave, Subject: c, Entity: entity, Options: options})
	if event.IsStopped() {
		switch result := event.Result().(type) {
		case *Entity:
			return result, true, nil
		case bool:
			return entity, result, nil
		default:
			return entity, false, nil
		}
	}

	data := entity.ToMap()
	isNew := entity.IsNew()
	var present []string
	if isNew {
		for _, k := range key {
			if entity.Has(k) {
				present = append(present, k)
			}
		}
	}

	var ok bool
	if isNew {
		ok, err = c.insert(ctx, entity, key, data)
	} else {
		ok, err = c.update(ctx, entity, key, data)
	}
	if err != nil || !ok {
		if isNew {
			c.restoreKeys(entity, key, present)
		}
		return entity, false, err
	}

	c.onSaveSuccess(ctx, entity, options)
	return entity, true, nil
}

// checkRules 派发 beforeRules 与 afterRules，事件中止时以事件结果为准
func (c *Collection) checkRules(ctx context.Context, entity *Entity, mode RuleMode, options *SaveOptions) (bool, error) {
	event := c.events.Dispatch(ctx, &Event{Name: EventBeforeRules, Subject: c, Entity: entity, Options: options, Mode: mode})
	if event.IsStopped() {
		passed, _ := event.Result().(bool)
		return passed, nil
	}

	passed, err := c.rules.Check(ctx, entity, mode, options)
	if err != nil {
		return false, err
	}

	event = c.events.Dispatch(ctx, &Event{Name: EventAfterRules, Subject: c, Entity: entity, Options: options, Mode: mode, Passed: passed})
	if event.IsStopped() {
		passed, _ = event.Result().(bool)
	}
	return passed, nil
}

func (c *Collection) insert(ctx context.Context, entity *Entity, key []string, data map[string]any) (bool, error) {
	if len(key) == 0 {
		return false, database.NewStructuralError("Cannot insert row in `%s` collection, it has no primary key.", c.table)
	}

	generated := map[string]any{}
	if len(key) == 1 {
		if v, ok := data[key[0]]; !ok || v == nil {
			id, err := c.newID(ctx, key[0])
			if err != nil {
				return false, err
			}
			if id != nil {
				generated[key[0]] = id
				data[key[0]] = id
			}
		}
	} else {
		s, err := c.Schema(ctx)
		if err != nil {
			return false, err
		}
		var got []string
		missing := false
		for _, k := range key {
			v, ok := data[k]
			if ok && v != nil {
				got = append(got, fmt.Sprint(v))
				continue
			}
			if !s.IsAutoIncrement(k) {
				missing = true
			}
		}
		if missing {
			return false, database.NewStructuralError(
				"Cannot insert row, some of the primary key values are missing. Got (%s), expecting (%s)",
				strings.Join(got, ", "), strings.Join(key, ", "))
		}
	}

	doc, err := c.toDatabase(ctx, data)
	if err != nil {
		return false, err
	}
	stmt, err := c.InsertQuery().Insert(sortedKeys(doc)...).Values(doc).Execute(ctx)
	if err != nil {
		return false, err
	}
	if stmt.RowCount() == 0 {
		return false, nil
	}

	for k, v := range generated {
		id, err := c.convertID(ctx, k, v)
		if err != nil {
			return false, err
		}
		entity.Set(k, id)
	}
	if len(key) == 1 && !entity.Has(key[0]) {
		id, err := c.convertID(ctx, key[0], stmt.LastInsertID())
		if err != nil {
			return false, err
		}
		entity.Set(key[0], id)
	}
	return true, nil
}

func (c *Collection) update(ctx context.Context, entity *Entity, key []string, data map[string]any) (bool, error) {
	changes := entity.Extract(entity.Dirty(), true)
	for _, k := range key {
		delete(changes, k)
	}
	if len(changes) == 0 {
		return true, nil
	}

	var missing []string
	for _, k := range key {
		if !entity.Has(k) {
			missing = append(missing, k)
		}
	}
	if len(key) == 0 || len(missing) > 0 {
		return false, database.NewStructuralError(
			"All primary key value(s) are needed for updating, `%s` is missing `%s`", c.alias, strings.Join(missing, ", "))
	}

	changes, err := c.toDatabase(ctx, changes)
	if err != nil {
		return false, err
	}
	conditions, err := c.typedConditions(ctx, entity.Extract(key, false))
	if err != nil {
		return false, err
	}
	stmt, err := c.UpdateQuery().Set(changes).Where(conditions).Execute(ctx)
	if err != nil {
		return false, err
	}
	return stmt.RowCount() > 0, nil
}

// newID 按主键列的类型生成新标识，类型不支持时返回 nil
func (c *Collection) newID(ctx context.Context, field string) (any, error) {
	typ, err := c.columnType(ctx, field)
	if err != nil || typ == nil {
		return nil, err
	}
	return typ.NewID(), nil
}

func (c *Collection) convertID(ctx context.Context, field string, id any) (any, error) {
	typ, err := c.columnType(ctx, field)
	if err != nil || typ == nil {
		return id, err
	}
	return typ.ToGo(id)
}

// restoreKeys 插入失败时移除本次生成的主键并恢复新建标记
func (c *Collection) restoreKeys(entity *Entity, key []string, present []string) {
	keep := map[string]struct{}{}
	for _, k := range present {
		keep[k] = struct{}{}
	}
	for _, k := range key {
		if _, ok := keep[k]; !ok {
			entity.Unset(k)
		}
	}
	entity.SetNew(true)
}

func (c *Collection) onSaveSuccess(ctx context.Context, entity *Entity, options *SaveOptions) {
	c.events.Dispatch(ctx, &Event{Name: EventAfterSave, Subject: c, Entity: entity, Options: options})
	if !options.Atomic && !options.Primary {
		entity.Clean()
		entity.SetNew(false)
		entity.SetSource(c.registryAlias)
	}
}

// SaveMany 逐个保存，遇到失败即停止：之前已写入的实体标记为已保存，失败的实体恢复新建标记与生成的主键
func (c *Collection) SaveMany(ctx context.Context, entities []*Entity, opts ...SaveOption) (bool, error) {
	key, err := c.PrimaryKey(ctx)
	if err != nil {
		return false, err
	}

	persisted := func(n int) {
		for _, e := range entities[:n] {
			e.Clean()
			e.SetNew(false)
			e.SetSource(c.registryAlias)
		}
	}

	opts = append(opts, Atomic(false), CleanOnSuccess(false))
	for i, e := range entities {
		isNew := e.IsNew()
		var present []string
		for _, k := range key {
			if e.Has(k) {
				present = append(present, k)
			}
		}
		_, ok, err := c.Save(ctx, e, opts...)
		if err != nil || !ok {
			persisted(i)
			if isNew {
				c.restoreKeys(e, key, present)
			}
			e.SetNew(isNew)
			return false, err
		}
	}

	persisted(len(entities))
	return true, nil
}

// SaveManyOrFail SaveMany 失败时返回 PersistenceFailedError
func (c *Collection) SaveManyOrFail(ctx context.Context, entities []*Entity, opts ...SaveOption) error {
	ok, err := c.SaveMany(ctx, entities, opts...)
	if err != nil || !ok {
		var failed *Entity
		for _, e := range entities {
			if e.HasErrors() {
				failed = e
				break
			}
		}
		return &PersistenceFailedError{Entity: failed, Operations: []string{"save"}, Cause: err}
	}
	return nil
}

// Delete 按主键删除，需要完整的主键值
func (c *Collection) Delete(ctx context.Context, entity *Entity, opts ...SaveOption) (bool, error) {
	options := newSaveOptions(opts)
	key, err := c.PrimaryKey(ctx)
	if err != nil {
		return false, err
	}
	if !entity.Has(key...) {
		return false, database.NewStructuralError("Deleting requires all primary key values.")
	}

	if options.CheckRules {
		passed, err := c.checkRules(ctx, entity, RuleDelete, options)
		if err != nil || !passed {
			return false, err
		}
	}

	event := c.events.Dispatch(ctx, &Event{Name: EventBeforeDelete, Subject: c, Entity: entity, Options: options})
	if event.IsStopped() {
		ok, _ := event.Result().(bool)
		return ok, nil
	}

	conditions, err := c.typedConditions(ctx, entity.Extract(key, false))
	if err != nil {
		return false, err
	}
	stmt, err := c.DeleteQuery().Where(conditions).Execute(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "delete failed", "alias", c.alias, "error", err)
		return false, err
	}
	if stmt.RowCount() == 0 {
		return false, nil
	}

	c.events.Dispatch(ctx, &Event{Name: EventAfterDelete, Subject: c, Entity: entity, Options: options})
	return true, nil
}

// DeleteOrFail 删除失败时返回 PersistenceFailedError
func (c *Collection) DeleteOrFail(ctx context.Context, entity *Entity, opts ...SaveOption) error {
	ok, err := c.Delete(ctx, entity, opts...)
	if err != nil || !ok {
		return &PersistenceFailedError{Entity: entity, Operations: []string{"delete"}, Cause: errors.WithStack(err)}
	}
	return nil
}
