// Package types 列的逻辑类型：主键生成与值转换
package types

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// Type 逻辑列类型
type Type interface {
	Name() string
	// NewID 生成新的标识值，不支持自动生成的类型返回 nil
	NewID() any
	// ToGo 将存储层的值转换为 Go 值
	ToGo(v any) (any, error)
	// ToDatabase 将 Go 值转换为存储层的值
	ToDatabase(v any) (any, error)
}

// KeyMatcher 同一个 Go 值在存储层可能有多种表示时实现，用于构造主键条件
type KeyMatcher interface {
	// MatchValues 返回与 v 等价的全部存储值
	MatchValues(v any) ([]any, error)
}

// Registry 类型注册表，每个连接持有一个
type Registry struct {
	mu    sync.RWMutex
	types map[string]Type
}

// NewRegistry 创建预置内建类型的注册表
func NewRegistry() *Registry {
	r := &Registry{types: map[string]Type{}}
	for _, t := range builtins() {
		r.types[t.Name()] = t
	}
	return r
}

// Register 注册或覆盖类型
func (r *Registry) Register(t Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[t.Name()] = t
}

// Build 按名称获取类型
func (r *Registry) Build(name string) (Type, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	if !ok {
		return nil, errors.Errorf("unknown type %q", name)
	}
	return t, nil
}

// Has 是否注册了该类型
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.types[name]
	return ok
}

// Names 已注册类型名，按字母序
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
