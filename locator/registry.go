package locator

import (
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/hatlonely/mongodm/odm"
)

// Constructor 按选项创建集合
type Constructor func(options *odm.CollectionOptions) (*odm.Collection, error)

// Registry 构造函数注册表，键形如 Model/Collection/UsersCollection
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

func NewRegistry() *Registry {
	return &Registry{constructors: map[string]Constructor{}}
}

// Register 重复注册同一个函数时忽略，注册不同函数时报错
func (r *Registry) Register(key string, constructor Constructor) error {
	if constructor == nil {
		return errors.Errorf("constructor for %s is nil", key)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.constructors[key]; ok {
		if isSameFunc(existing, constructor) {
			return nil
		}
		return errors.Errorf("constructor for %s already registered with different function", key)
	}
	r.constructors[key] = constructor
	return nil
}

func (r *Registry) MustRegister(key string, constructor Constructor) {
	if err := r.Register(key, constructor); err != nil {
		panic(err)
	}
}

func (r *Registry) Lookup(key string) (Constructor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	constructor, ok := r.constructors[key]
	return constructor, ok
}

// Keys 按字典序
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.constructors))
	for k := range r.constructors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func isSameFunc(f1, f2 Constructor) bool {
	return reflect.ValueOf(f1).Pointer() == reflect.ValueOf(f2).Pointer()
}

// Resolver 按 location 顺序在注册表中查找集合类
type Resolver struct {
	registry *Registry
}

func NewResolver(registry *Registry) *Resolver {
	return &Resolver{registry: registry}
}

// Resolve className 可以带插件前缀；已经是完整键时直接查找
func (r *Resolver) Resolve(className string, locations []string) (string, Constructor, bool) {
	if constructor, ok := r.registry.Lookup(className); ok {
		return className, constructor, true
	}
	plugin, name := SplitPlugin(className)
	if !strings.HasSuffix(name, "Collection") {
		name += "Collection"
	}
	for _, location := range locations {
		key := location + "/" + name
		if plugin != "" {
			key = plugin + "/" + key
		}
		if constructor, ok := r.registry.Lookup(key); ok {
			return key, constructor, true
		}
	}
	return "", nil, false
}

// SplitPlugin Blog.Posts -> (Blog, Posts)
func SplitPlugin(name string) (string, string) {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}
