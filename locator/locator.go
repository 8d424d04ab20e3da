// Package locator 按别名创建并复用集合实例
package locator

import (
	"sort"
	"strings"
	"sync"

	"github.com/hatlonely/mongodm/database"
	"github.com/hatlonely/mongodm/log"
	"github.com/hatlonely/mongodm/odm"
)

type Options struct {
	// Locations 查找集合类的位置，按顺序尝试
	Locations []string `cfg:"locations"`
	// AllowFallbackClass 找不到集合类时使用通用集合
	AllowFallbackClass bool `cfg:"allowFallbackClass" def:"true"`
}

// DefaultLocation 默认的集合类位置
const DefaultLocation = "Model/Collection"

type Option func(l *Locator)

func WithManager(manager *database.ConnectionManager) Option {
	return func(l *Locator) { l.manager = manager }
}

func WithRegistry(registry *Registry) Option {
	return func(l *Locator) { l.registry = registry }
}

func WithLogger(logger log.Logger) Option {
	return func(l *Locator) { l.logger = logger }
}

// Locator 别名 -> 集合实例，实例创建之后配置不可修改
type Locator struct {
	mu            sync.Mutex
	instances     map[string]*odm.Collection
	configs       map[string]*odm.CollectionOptions
	options       map[string]*odm.CollectionOptions
	locations     []string
	allowFallback bool

	registry *Registry
	resolver *Resolver
	manager  *database.ConnectionManager
	logger   log.Logger
}

func NewLocatorWithOptions(options *Options, opts ...Option) *Locator {
	if options == nil {
		options = &Options{AllowFallbackClass: true}
	}
	l := &Locator{
		instances:     map[string]*odm.Collection{},
		configs:       map[string]*odm.CollectionOptions{},
		options:       map[string]*odm.CollectionOptions{},
		allowFallback: options.AllowFallbackClass,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.registry == nil {
		l.registry = NewRegistry()
	}
	if l.logger == nil {
		l.logger = log.Default()
	}
	l.logger = l.logger.WithGroup("locator")
	l.resolver = NewResolver(l.registry)

	l.locations = []string{DefaultLocation}
	if len(options.Locations) > 0 {
		l.locations = nil
		for _, location := range options.Locations {
			l.AddLocation(location)
		}
	}
	return l
}

func (l *Locator) Registry() *Registry {
	return l.registry
}

// SetConfig 实例创建之后不可再配置
func (l *Locator) SetConfig(alias string, options *odm.CollectionOptions) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.instances[alias]; ok {
		return database.NewStructuralError("You cannot configure `%s`, it has already been constructed.", alias)
	}
	if options == nil {
		delete(l.configs, alias)
		return nil
	}
	copied := *options
	l.configs[alias] = &copied
	return nil
}

func (l *Locator) Config(alias string) (*odm.CollectionOptions, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	options, ok := l.configs[alias]
	if !ok {
		return nil, false
	}
	copied := *options
	return &copied, true
}

// Configured 已配置的别名，按字典序
func (l *Locator) Configured() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	aliases := make([]string, 0, len(l.configs))
	for alias := range l.configs {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	return aliases
}

// Get 返回别名对应的实例，首次获取时创建
//
// 已存在的实例不能以不同的选项再次获取；options 中未设置的字段取 SetConfig 的配置
func (l *Locator) Get(alias string, options *odm.CollectionOptions) (*odm.Collection, error) {
	l.mu.Lock()
	if c, ok := l.instances[alias]; ok {
		stored := l.options[alias]
		l.mu.Unlock()
		if options != nil && options != stored {
			return nil, database.NewStructuralError("You cannot configure `%s`, it already exists in the registry.", alias)
		}
		return c, nil
	}
	config := l.configs[alias]
	l.mu.Unlock()

	c, err := l.create(alias, options, config)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.instances[alias]; ok {
		return existing, nil
	}
	l.instances[alias] = c
	l.options[alias] = options
	return c, nil
}

func (l *Locator) create(alias string, options *odm.CollectionOptions, config *odm.CollectionOptions) (*odm.Collection, error) {
	merged := &odm.CollectionOptions{}
	if options != nil {
		*merged = *options
	}
	if config != nil {
		mergeOptions(merged, config)
	}

	_, name := SplitPlugin(alias)
	if merged.Alias == "" {
		merged.Alias = name
	}
	if merged.RegistryAlias == "" {
		merged.RegistryAlias = alias
	}
	if merged.Connection == nil && merged.Manager == nil {
		merged.Manager = l.manager
	}

	className := merged.ClassName
	if className == "" {
		className = alias
	}
	key, constructor, ok := l.resolver.Resolve(className, l.Locations())
	if ok {
		merged.ClassName = classBase(key)
		l.logger.Debug("collection class resolved", "alias", alias, "class", key)
		return constructor(merged)
	}

	if !l.AllowsFallbackClass() {
		return nil, &MissingClassError{Alias: alias, ClassName: className}
	}
	l.logger.Debug("collection class not found, use generic collection", "alias", alias)
	merged.ClassName = ""
	if merged.Table == "" {
		merged.Table = odm.Underscore(merged.Alias)
	}
	return odm.NewCollectionWithOptions(merged)
}

// classBase Model/Collection/UsersCollection -> UsersCollection
func classBase(key string) string {
	return key[strings.LastIndex(key, "/")+1:]
}

// mergeOptions 只填充 dst 中的零值字段
func mergeOptions(dst *odm.CollectionOptions, src *odm.CollectionOptions) {
	if dst.Table == "" {
		dst.Table = src.Table
	}
	if dst.Alias == "" {
		dst.Alias = src.Alias
	}
	if dst.RegistryAlias == "" {
		dst.RegistryAlias = src.RegistryAlias
	}
	if dst.ClassName == "" {
		dst.ClassName = src.ClassName
	}
	if dst.Connection == nil {
		dst.Connection = src.Connection
	}
	if dst.Manager == nil {
		dst.Manager = src.Manager
	}
	if dst.ConnectionName == "" {
		dst.ConnectionName = src.ConnectionName
	}
	if dst.PrimaryKey == nil {
		dst.PrimaryKey = src.PrimaryKey
	}
	if dst.Schema == nil {
		dst.Schema = src.Schema
	}
	if dst.Model == nil {
		dst.Model = src.Model
	}
	if dst.Events == nil {
		dst.Events = src.Events
	}
	if dst.Rules == nil {
		dst.Rules = src.Rules
	}
	if dst.Validator == nil {
		dst.Validator = src.Validator
	}
	if dst.Finders == nil {
		dst.Finders = src.Finders
	}
	if dst.Hooks == nil {
		dst.Hooks = src.Hooks
	}
	if dst.Logger == nil {
		dst.Logger = src.Logger
	}
	if dst.CacheSerializer == "" {
		dst.CacheSerializer = src.CacheSerializer
	}
}

func (l *Locator) Exists(alias string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.instances[alias]
	return ok
}

// Set 直接注册实例
func (l *Locator) Set(alias string, c *odm.Collection) *odm.Collection {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.instances[alias] = c
	delete(l.options, alias)
	return c
}

// Remove 移除实例与配置
func (l *Locator) Remove(alias string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.instances, alias)
	delete(l.configs, alias)
	delete(l.options, alias)
}

// Clear 移除全部实例与配置
func (l *Locator) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.instances = map[string]*odm.Collection{}
	l.configs = map[string]*odm.CollectionOptions{}
	l.options = map[string]*odm.CollectionOptions{}
}

func (l *Locator) AllowFallbackClass(allow bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.allowFallback = allow
}

func (l *Locator) AllowsFallbackClass() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.allowFallback
}

// AddLocation 去掉首尾的斜杠，重复的位置忽略
func (l *Locator) AddLocation(location string) *Locator {
	location = strings.Trim(location, "/\\")
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, existing := range l.locations {
		if existing == location {
			return l
		}
	}
	l.locations = append(l.locations, location)
	return l
}

func (l *Locator) Locations() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.locations...)
}
