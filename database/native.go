package database

import (
	"context"
)

// ResultKind 原生结果类型，在原生调用返回处确定
type ResultKind int

const (
	ResultKindNone ResultKind = iota
	ResultKindInsertOne
	ResultKindInsertMany
	ResultKindUpdate
	ResultKindDelete
	ResultKindCursor
)

func (k ResultKind) String() string {
	switch k {
	case ResultKindInsertOne:
		return "insertOne"
	case ResultKindInsertMany:
		return "insertMany"
	case ResultKindUpdate:
		return "update"
	case ResultKindDelete:
		return "delete"
	case ResultKindCursor:
		return "cursor"
	default:
		return "none"
	}
}

// Result 原生结果的统一表示，只有与 Kind 对应的字段有意义
type Result struct {
	Kind          ResultKind
	InsertedIDs   []any
	MatchedCount  int64
	ModifiedCount int64
	UpsertedCount int64
	DeletedCount  int64
	Cursor        Cursor
}

// Cursor 文档游标，*mongo.Cursor 直接满足该接口
type Cursor interface {
	Next(ctx context.Context) bool
	Decode(v any) error
	Err() error
	Close(ctx context.Context) error
}

// Collection 原生集合
type Collection interface {
	Name() string
	Aggregate(ctx context.Context, pipeline Pipeline) (*Result, error)
	InsertOne(ctx context.Context, document any) (*Result, error)
	InsertMany(ctx context.Context, documents []any) (*Result, error)
	UpdateOne(ctx context.Context, filter any, update any) (*Result, error)
	UpdateMany(ctx context.Context, filter any, update any) (*Result, error)
	DeleteOne(ctx context.Context, filter any) (*Result, error)
	DeleteMany(ctx context.Context, filter any) (*Result, error)
}

// Database 原生数据库
type Database interface {
	Name() string
	Collection(name string) Collection
}

// Client 原生客户端
type Client interface {
	Database(name string) Database
	Ping(ctx context.Context) error
	Disconnect(ctx context.Context) error
}

// Dialer 根据 DSN 建立客户端连接
type Dialer func(ctx context.Context, dsn string, options *Options) (Client, error)
