package memdb

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/hatlonely/mongodm/database"
)

// Call 一次原生调用的记录
type Call struct {
	Operation  string
	Database   string
	Collection string
	Pipeline   database.Pipeline
	Documents  []bson.M
	Filter     bson.M
	Update     bson.M
}

// Client 内存实现的原生客户端，记录所有调用，可注入错误
type Client struct {
	mu        sync.Mutex
	databases map[string]*Database
	calls     []Call
	failures  map[string]error
	dialErr   error
	pingErr   error
	dsns      []string
	closed    bool
}

func NewClient() *Client {
	return &Client{
		databases: map[string]*Database{},
		failures:  map[string]error{},
	}
}

// Dialer 每次拨号都返回同一个客户端
func (c *Client) Dialer() database.Dialer {
	return func(ctx context.Context, dsn string, options *database.Options) (database.Client, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.dsns = append(c.dsns, dsn)
		if c.dialErr != nil {
			return nil, c.dialErr
		}
		if c.pingErr != nil {
			return nil, errors.Wrap(c.pingErr, "ping")
		}
		c.closed = false
		return c, nil
	}
}

// DSNs 拨号时收到的 DSN
func (c *Client) DSNs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.dsns...)
}

func (c *Client) SetDialError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dialErr = err
}

func (c *Client) SetPingError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pingErr = err
}

// Fail 之后的 operation 调用都返回 err，err 为 nil 时恢复
func (c *Client) Fail(operation string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.failures, operation)
		return
	}
	c.failures[operation] = err
}

func (c *Client) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

// CallsOf 指定操作的调用记录
func (c *Client) CallsOf(operation string) []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	var calls []Call
	for _, call := range c.calls {
		if call.Operation == operation {
			calls = append(calls, call)
		}
	}
	return calls
}

func (c *Client) ResetCalls() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = nil
}

func (c *Client) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) Database(name string) database.Database {
	return c.DB(name)
}

// DB 与 Database 相同，返回具体类型
func (c *Client) DB(name string) *Database {
	c.mu.Lock()
	defer c.mu.Unlock()
	db, ok := c.databases[name]
	if !ok {
		db = &Database{client: c, name: name, collections: map[string]*Collection{}}
		c.databases[name] = db
	}
	return db
}

func (c *Client) Ping(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pingErr
}

func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// record 调用方需持有锁
func (c *Client) record(call Call) error {
	c.calls = append(c.calls, call)
	return c.failures[call.Operation]
}

type Database struct {
	client      *Client
	name        string
	collections map[string]*Collection
}

func (d *Database) Name() string {
	return d.name
}

func (d *Database) Collection(name string) database.Collection {
	return d.C(name)
}

// C 与 Collection 相同，返回具体类型
func (d *Database) C(name string) *Collection {
	d.client.mu.Lock()
	defer d.client.mu.Unlock()
	coll, ok := d.collections[name]
	if !ok {
		coll = &Collection{db: d, name: name}
		d.collections[name] = coll
	}
	return coll
}
