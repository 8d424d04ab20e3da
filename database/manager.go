package database

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/hatlonely/mongodm/cfg"
)

// ManagerOptions 多数据源配置，可由 cfg.Load 从文件加载
type ManagerOptions struct {
	Connections map[string]*Options `cfg:"connections"`
}

type ManagerOption func(m *ConnectionManager)

// WithDriverOptions 创建驱动时附加的选项
func WithDriverOptions(opts ...DriverOption) ManagerOption {
	return func(m *ConnectionManager) { m.driverOptions = append(m.driverOptions, opts...) }
}

// WithConnectionOptions 创建连接时附加的选项
func WithConnectionOptions(opts ...ConnectionOption) ManagerOption {
	return func(m *ConnectionManager) { m.connectionOptions = append(m.connectionOptions, opts...) }
}

// ConnectionManager 按名称配置并懒加载连接
type ConnectionManager struct {
	mu          sync.Mutex
	configs     map[string]*Options
	aliases     map[string]string
	connections map[string]*Connection

	driverOptions     []DriverOption
	connectionOptions []ConnectionOption
}

func NewConnectionManagerWithOptions(options *ManagerOptions, opts ...ManagerOption) (*ConnectionManager, error) {
	m := &ConnectionManager{
		configs:     map[string]*Options{},
		aliases:     map[string]string{},
		connections: map[string]*Connection{},
	}
	for _, opt := range opts {
		opt(m)
	}
	if options != nil {
		for name, o := range options.Connections {
			if err := m.SetConfig(name, o); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// SetConfig 设置数据源配置，连接创建之后不可再修改
func (m *ConnectionManager) SetConfig(name string, options *Options) error {
	if options == nil {
		options = DefaultOptions()
	}
	if err := cfg.Validate(options); err != nil {
		return errors.WithMessagef(err, "invalid options for connection `%s`", name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.connections[name]; ok {
		return NewStructuralError("Cannot reconfigure existing connection `%s`, it has already been constructed.", name)
	}
	m.configs[name] = options
	return nil
}

func (m *ConnectionManager) Config(name string) (*Options, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.configs[m.resolve(name)]
	return o, ok
}

// Configured 已配置的数据源名称，按字典序
func (m *ConnectionManager) Configured() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.configs))
	for name := range m.configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Alias 让 alias 指向已配置的 source
func (m *ConnectionManager) Alias(alias string, source string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.configs[source]; !ok {
		if _, ok := m.connections[source]; !ok {
			return &MissingDatasourceError{Name: source}
		}
	}
	m.aliases[alias] = source
	return nil
}

// Get 返回具名连接，首次获取时创建，不会立即连接
func (m *ConnectionManager) Get(name string) (*Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name = m.resolve(name)
	if conn, ok := m.connections[name]; ok {
		return conn, nil
	}
	options, ok := m.configs[name]
	if !ok {
		return nil, &MissingDatasourceError{Name: name}
	}
	driver, err := NewDriverWithOptions(options, m.driverOptions...)
	if err != nil {
		return nil, errors.WithMessagef(err, "create driver for `%s` failed", name)
	}
	conn := NewConnection(name, driver, m.connectionOptions...)
	m.connections[name] = conn
	return conn, nil
}

// Set 直接注册一个已创建的连接
func (m *ConnectionManager) Set(name string, conn *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections[name] = conn
}

// Drop 移除配置与连接，已创建的连接会被关闭
func (m *ConnectionManager) Drop(ctx context.Context, name string) error {
	m.mu.Lock()
	conn := m.connections[name]
	delete(m.connections, name)
	delete(m.configs, name)
	for alias, source := range m.aliases {
		if source == name || alias == name {
			delete(m.aliases, alias)
		}
	}
	m.mu.Unlock()

	if conn != nil {
		return conn.Close(ctx)
	}
	return nil
}

// Close 关闭所有已创建的连接，配置保留
func (m *ConnectionManager) Close(ctx context.Context) error {
	m.mu.Lock()
	connections := m.connections
	m.connections = map[string]*Connection{}
	m.mu.Unlock()

	var errs []error
	for name, conn := range connections {
		if err := conn.Close(ctx); err != nil {
			errs = append(errs, errors.WithMessagef(err, "close `%s` failed", name))
		}
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func (m *ConnectionManager) resolve(name string) string {
	if source, ok := m.aliases[name]; ok {
		return source
	}
	return name
}
