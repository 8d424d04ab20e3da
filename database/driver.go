package database

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.opentelemetry.io/otel/trace"

	"github.com/hatlonely/mongodm/cfg"
	"github.com/hatlonely/mongodm/log"
)

const DriverName = "Mongo"

type DriverOption func(d *Driver)

// WithDialer 替换原生连接方式，默认 MongoDialer
func WithDialer(dialer Dialer) DriverOption {
	return func(d *Driver) { d.dialer = dialer }
}

func WithLogger(logger log.Logger) DriverOption {
	return func(d *Driver) { d.logger = logger }
}

func WithMetrics(metrics *Metrics) DriverOption {
	return func(d *Driver) { d.metrics = metrics }
}

func WithTracer(tracer trace.Tracer) DriverOption {
	return func(d *Driver) { d.tracer = tracer }
}

// Driver 将查询翻译为原生调用，并把结果包装为 Statement
type Driver struct {
	options  *Options
	dialer   Dialer
	logger   log.Logger
	metrics  *Metrics
	tracer   trace.Tracer
	compiler *Compiler

	mu       sync.Mutex
	client   Client
	database Database
	dialect  *SchemaDialect
}

func NewDriverWithOptions(options *Options, opts ...DriverOption) (*Driver, error) {
	if options == nil {
		options = DefaultOptions()
	}
	if err := cfg.Validate(options); err != nil {
		return nil, errors.WithMessage(err, "invalid driver options")
	}

	d := &Driver{
		options:  options,
		dialer:   MongoDialer,
		logger:   log.Default(),
		compiler: NewCompiler(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.WithGroup("driver").With("host", options.Host, "database", options.Database)
	return d, nil
}

func (d *Driver) Options() *Options {
	return d.options
}

func (d *Driver) BuildDSN() string {
	return d.options.BuildDSN()
}

// Connect 建立连接，已连接时直接返回；失败时不保留任何连接状态
func (d *Driver) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.client != nil {
		return nil
	}

	start := time.Now()
	client, err := d.dialer(ctx, d.BuildDSN(), d.options)
	if err != nil {
		d.logger.WarnContext(ctx, "connect failed", "error", err.Error())
		return &ConnectionError{Driver: DriverName, Cause: err}
	}
	d.client = client
	d.database = client.Database(d.options.Database)
	d.logger.InfoContext(ctx, "connected", "duration", time.Since(start))
	return nil
}

func (d *Driver) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.client != nil
}

// Database 已连接的原生数据库，未连接时为 nil
func (d *Driver) Database() Database {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.database
}

// Run 执行查询，首次执行时建立连接
func (d *Driver) Run(ctx context.Context, q Query) (*Statement, error) {
	if err := d.Connect(ctx); err != nil {
		return nil, err
	}

	operation := string(q.Type())
	ctx, span := startSpan(ctx, d.tracer, "mongodm", operation, q.Collection())
	start := time.Now()

	stages, result, err := d.run(ctx, d.Database().Collection(q.Collection()), q)

	duration := time.Since(start)
	var rows int64
	if result != nil {
		rows = NewStatement(result).RowCount()
	}
	endSpan(span, duration, err)
	d.metrics.observe(operation, q.Collection(), duration, rows, err)
	if err != nil {
		d.logger.DebugContext(ctx, "run failed", "operation", operation, "collection", q.Collection(), "error", err.Error())
		return nil, err
	}
	d.logger.DebugContext(ctx, "run", "operation", operation, "collection", q.Collection(), "stages", stages, "duration", duration)

	return NewStatement(result, q.Decorators()...), nil
}

func (d *Driver) run(ctx context.Context, coll Collection, q Query) (int, *Result, error) {
	parts := q.Parts()
	switch q.Type() {
	case QueryTypeSelect:
		pipeline, err := d.compiler.Compile(q)
		if err != nil {
			return 0, nil, err
		}
		result, err := coll.Aggregate(ctx, pipeline)
		return len(pipeline), result, d.executionError("aggregate", q, err)
	case QueryTypeInsert:
		if len(parts.Values) == 0 {
			return 0, nil, &MalformedQueryError{Clause: string(ClauseValues), Reason: "has no rows to insert"}
		}
		documents := make([]any, 0, len(parts.Values))
		for _, row := range parts.Values {
			documents = append(documents, document(parts.Columns, row))
		}
		result, err := coll.InsertMany(ctx, documents)
		return 0, result, d.executionError("insertMany", q, err)
	case QueryTypeUpdate:
		if len(parts.Set) == 0 {
			return 0, nil, &MalformedQueryError{Clause: string(ClauseSet), Reason: "has no fields to update"}
		}
		filter, err := d.compiler.Filter(q)
		if err != nil {
			return 0, nil, err
		}
		result, err := coll.UpdateMany(ctx, filter, bson.M{"$set": bson.M(parts.Set)})
		return 0, result, d.executionError("updateMany", q, err)
	case QueryTypeDelete:
		filter, err := d.compiler.Filter(q)
		if err != nil {
			return 0, nil, err
		}
		result, err := coll.DeleteMany(ctx, filter)
		return 0, result, d.executionError("deleteMany", q, err)
	default:
		return 0, nil, &MalformedQueryError{Clause: string(q.Type()), Reason: "is not a supported query type"}
	}
}

func (d *Driver) executionError(operation string, q Query, err error) error {
	if err == nil {
		return nil
	}
	return &ExecutionError{Driver: DriverName, Operation: operation, Collection: q.Collection(), Cause: err}
}

// document 只保留 columns 中出现的字段，columns 为空时保留全部字段
func document(columns []string, row map[string]any) bson.M {
	doc := bson.M{}
	if len(columns) == 0 {
		for k, v := range row {
			doc[k] = v
		}
		return doc
	}
	for _, c := range columns {
		if v, ok := row[c]; ok {
			doc[c] = v
		}
	}
	return doc
}

func (d *Driver) Compiler() *Compiler {
	return d.compiler
}

// SchemaDialect 结构反射方言，首次调用时创建
func (d *Driver) SchemaDialect() *SchemaDialect {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dialect == nil {
		d.dialect = NewSchemaDialect()
	}
	return d.dialect
}

// 文档库没有 SQL 特性，以下能力查询均为否定结果

func (d *Driver) Supports(feature string) bool { return false }

func (d *Driver) SupportsDynamicConstraints() bool { return false }

func (d *Driver) SavePointSQL(name string) string { return "" }

func (d *Driver) ReleaseSavePointSQL(name string) string { return "" }

func (d *Driver) RollbackSavePointSQL(name string) string { return "" }

func (d *Driver) DisableForeignKeySQL() string { return "" }

func (d *Driver) EnableForeignKeySQL() string { return "" }

// QuoteIdentifier 字段名无需转义
func (d *Driver) QuoteIdentifier(identifier string) string { return identifier }

func (d *Driver) Enabled() bool { return true }

func (d *Driver) ShortName() string { return DriverName }

// Close 断开连接，之后的 Run 会重新连接
func (d *Driver) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.client == nil {
		return nil
	}
	err := d.client.Disconnect(ctx)
	d.client = nil
	d.database = nil
	if err != nil {
		return errors.Wrap(err, "disconnect failed")
	}
	return nil
}
