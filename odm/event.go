package odm

import (
	"context"
	"sync"
)

const (
	EventBeforeMarshal  = "Model.beforeMarshal"
	EventAfterMarshal   = "Model.afterMarshal"
	EventBuildValidator = "Model.buildValidator"
	EventBeforeFind     = "Model.beforeFind"
	EventBeforeSave     = "Model.beforeSave"
	EventAfterSave      = "Model.afterSave"
	EventBeforeDelete   = "Model.beforeDelete"
	EventAfterDelete    = "Model.afterDelete"
	EventBeforeRules    = "Model.beforeRules"
	EventAfterRules     = "Model.afterRules"
)

// Event 生命周期事件，只有与事件相关的字段有值
type Event struct {
	Name    string
	Subject *Collection

	Entity    *Entity
	Options   *SaveOptions
	Query     *SelectQuery
	Data      map[string]any
	Validator map[string]string
	Mode      RuleMode
	// afterRules 时为规则检查结果
	Passed bool

	stopped bool
	result  any
}

// Stop 停止后续监听器，结果为 nil
func (e *Event) Stop() {
	e.stopped = true
}

// StopWith 停止后续监听器并设置结果
func (e *Event) StopWith(result any) {
	e.stopped = true
	e.result = result
}

func (e *Event) IsStopped() bool {
	return e.stopped
}

func (e *Event) Result() any {
	return e.result
}

func (e *Event) SetResult(result any) {
	e.result = result
}

type Listener func(ctx context.Context, event *Event)

// EventManager 按事件名分发，监听器按注册顺序调用
type EventManager struct {
	mu        sync.RWMutex
	listeners map[string][]Listener
}

func NewEventManager() *EventManager {
	return &EventManager{listeners: map[string][]Listener{}}
}

func (m *EventManager) On(name string, listener Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners[name] = append(m.listeners[name], listener)
}

func (m *EventManager) Has(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.listeners[name]) > 0
}

// Dispatch 某个监听器停止事件后不再调用剩余监听器
func (m *EventManager) Dispatch(ctx context.Context, event *Event) *Event {
	m.mu.RLock()
	listeners := append([]Listener(nil), m.listeners[event.Name]...)
	m.mu.RUnlock()

	for _, listener := range listeners {
		listener(ctx, event)
		if event.stopped {
			break
		}
	}
	return event
}

type BeforeMarshalHook interface {
	BeforeMarshal(ctx context.Context, event *Event)
}

type AfterMarshalHook interface {
	AfterMarshal(ctx context.Context, event *Event)
}

type BuildValidatorHook interface {
	BuildValidator(ctx context.Context, event *Event)
}

type BeforeFindHook interface {
	BeforeFind(ctx context.Context, event *Event)
}

type BeforeSaveHook interface {
	BeforeSave(ctx context.Context, event *Event)
}

type AfterSaveHook interface {
	AfterSave(ctx context.Context, event *Event)
}

type BeforeDeleteHook interface {
	BeforeDelete(ctx context.Context, event *Event)
}

type AfterDeleteHook interface {
	AfterDelete(ctx context.Context, event *Event)
}

type BeforeRulesHook interface {
	BeforeRules(ctx context.Context, event *Event)
}

type AfterRulesHook interface {
	AfterRules(ctx context.Context, event *Event)
}

// registerHooks 把 hooks 实现的钩子接口注册为监听器
func registerHooks(m *EventManager, hooks any) {
	if hooks == nil {
		return
	}
	if h, ok := hooks.(BeforeMarshalHook); ok {
		m.On(EventBeforeMarshal, h.BeforeMarshal)
	}
	if h, ok := hooks.(AfterMarshalHook); ok {
		m.On(EventAfterMarshal, h.AfterMarshal)
	}
	if h, ok := hooks.(BuildValidatorHook); ok {
		m.On(EventBuildValidator, h.BuildValidator)
	}
	if h, ok := hooks.(BeforeFindHook); ok {
		m.On(EventBeforeFind, h.BeforeFind)
	}
	if h, ok := hooks.(BeforeSaveHook); ok {
		m.On(EventBeforeSave, h.BeforeSave)
	}
	if h, ok := hooks.(AfterSaveHook); ok {
		m.On(EventAfterSave, h.AfterSave)
	}
	if h, ok := hooks.(BeforeDeleteHook); ok {
		m.On(EventBeforeDelete, h.BeforeDelete)
	}
	if h, ok := hooks.(AfterDeleteHook); ok {
		m.On(EventAfterDelete, h.AfterDelete)
	}
	if h, ok := hooks.(BeforeRulesHook); ok {
		m.On(EventBeforeRules, h.BeforeRules)
	}
	if h, ok := hooks.(AfterRulesHook); ok {
		m.On(EventAfterRules, h.AfterRules)
	}
}
