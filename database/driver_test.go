package database_test

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
	"go.mongodb.org/mongo-driver/bson"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/hatlonely/mongodm/database"
	"github.com/hatlonely/mongodm/database/memdb"
	"github.com/hatlonely/mongodm/log"
	"github.com/hatlonely/mongodm/query"
)

type runQuery struct {
	typ        database.QueryType
	collection string
	parts      database.Parts
	decorators []database.RowDecorator
}

func (q *runQuery) Type() database.QueryType            { return q.typ }
func (q *runQuery) Collection() string                  { return q.collection }
func (q *runQuery) Alias() string                       { return "Users" }
func (q *runQuery) Parts() *database.Parts              { return &q.parts }
func (q *runQuery) Decorators() []database.RowDecorator { return q.decorators }

func newDriver(client *memdb.Client, opts ...database.DriverOption) *database.Driver {
	opts = append([]database.DriverOption{database.WithDialer(client.Dialer()), database.WithLogger(log.Nop())}, opts...)
	d, err := database.NewDriverWithOptions(nil, opts...)
	So(err, ShouldBeNil)
	return d
}

func TestDriverConnect(t *testing.T) {
	Convey("建立连接", t, func() {
		ctx := context.Background()
		client := memdb.NewClient()

		Convey("重复连接只拨号一次", func() {
			d := newDriver(client)
			So(d.Connect(ctx), ShouldBeNil)
			So(d.Connect(ctx), ShouldBeNil)
			So(client.DSNs(), ShouldResemble, []string{"mongodb://root:@localhost:27017"})
			So(d.IsConnected(), ShouldBeTrue)
			So(d.Database().Name(), ShouldEqual, "cake")
		})

		Convey("连接失败返回 ConnectionError 且不保留连接", func() {
			client.SetDialError(errors.New("connection refused"))
			d := newDriver(client)

			err := d.Connect(ctx)
			var connErr *database.ConnectionError
			So(errors.As(err, &connErr), ShouldBeTrue)
			So(connErr.Driver, ShouldEqual, "Mongo")
			So(err.Error(), ShouldContainSubstring, "connection refused")
			So(d.IsConnected(), ShouldBeFalse)
			So(d.Database(), ShouldBeNil)

			client.SetDialError(nil)
			So(d.Connect(ctx), ShouldBeNil)
			So(d.IsConnected(), ShouldBeTrue)
		})

		Convey("关闭后重新连接", func() {
			d := newDriver(client)
			So(d.Connect(ctx), ShouldBeNil)
			So(d.Close(ctx), ShouldBeNil)
			So(client.Closed(), ShouldBeTrue)
			So(d.IsConnected(), ShouldBeFalse)
			So(d.Close(ctx), ShouldBeNil)
		})
	})
}

func TestDriverRun(t *testing.T) {
	Convey("执行查询", t, func() {
		ctx := context.Background()
		client := memdb.NewClient()
		d := newDriver(client)
		users := client.DB("cake").C("users")

		Convey("插入后查询", func() {
			stmt, err := d.Run(ctx, &runQuery{
				typ:        database.QueryTypeInsert,
				collection: "users",
				parts: database.Parts{
					Columns: []string{"_id", "email"},
					Values: []map[string]any{
						{"_id": "u1", "email": "a@example.com", "ignored": true},
						{"_id": "u2", "email": "b@example.com"},
					},
				},
			})
			So(err, ShouldBeNil)
			So(stmt.Kind(), ShouldEqual, database.ResultKindInsertMany)
			So(stmt.RowCount(), ShouldEqual, 2)
			So(stmt.LastInsertID(), ShouldEqual, "u2")
			So(client.CallsOf("insertMany")[0].Documents[0], ShouldResemble, bson.M{"_id": "u1", "email": "a@example.com"})

			q := &runQuery{typ: database.QueryTypeSelect, collection: "users"}
			q.parts.Touch(database.ClauseWhere)
			q.parts.Where = &query.TermQuery{Field: "Users.email", Value: "b@example.com"}
			q.parts.Touch(database.ClauseSelect)
			q.parts.Select = []database.Field{{Alias: "Users__email", Name: "Users.email"}}
			q.decorators = []database.RowDecorator{func(row database.Row) (database.Row, error) {
				row["decorated"] = true
				return row, nil
			}}

			stmt, err = d.Run(ctx, q)
			So(err, ShouldBeNil)
			So(stmt.RowCount(), ShouldEqual, 0)
			So(stmt.LastInsertID(), ShouldBeNil)
			rows, err := stmt.FetchAll(ctx)
			So(err, ShouldBeNil)
			So(rows, ShouldResemble, []database.Row{{"_id": "u2", "Users__email": "b@example.com", "decorated": true}})
		})

		Convey("空游标返回空切片", func() {
			stmt, err := d.Run(ctx, &runQuery{typ: database.QueryTypeSelect, collection: "users"})
			So(err, ShouldBeNil)
			rows, err := stmt.FetchAll(ctx)
			So(err, ShouldBeNil)
			So(rows, ShouldNotBeNil)
			So(rows, ShouldBeEmpty)
		})

		Convey("更新与删除", func() {
			So(users.Seed(bson.M{"_id": "u1", "age": 10}, bson.M{"_id": "u2", "age": 20}, bson.M{"_id": "u3", "age": 30}), ShouldBeNil)

			update := &runQuery{typ: database.QueryTypeUpdate, collection: "users"}
			update.parts.Where = &query.RangeQuery{Field: "Users.age", Gte: 20}
			update.parts.Set = map[string]any{"vip": true}
			stmt, err := d.Run(ctx, update)
			So(err, ShouldBeNil)
			So(stmt.Kind(), ShouldEqual, database.ResultKindUpdate)
			So(stmt.RowCount(), ShouldEqual, 2)
			So(client.CallsOf("updateMany")[0].Update, ShouldResemble, bson.M{"$set": bson.M{"vip": true}})

			del := &runQuery{typ: database.QueryTypeDelete, collection: "users"}
			del.parts.Where = &query.TermQuery{Field: "Users.vip", Value: true}
			stmt, err = d.Run(ctx, del)
			So(err, ShouldBeNil)
			So(stmt.RowCount(), ShouldEqual, 2)
			So(users.Documents(), ShouldResemble, []bson.M{{"_id": "u1", "age": 10}})
			rows, err := stmt.FetchAll(ctx)
			So(err, ShouldBeNil)
			So(rows, ShouldBeEmpty)
		})

		Convey("编译失败时不调用原生接口", func() {
			q := &runQuery{typ: database.QueryTypeSelect, collection: "users"}
			q.parts.Touch(database.ClauseSelect)
			q.parts.Select = []database.Field{{Alias: "email", Name: "email"}}

			_, err := d.Run(ctx, q)
			var malformed *database.MalformedQueryError
			So(errors.As(err, &malformed), ShouldBeTrue)
			So(client.Calls(), ShouldBeEmpty)
		})

		Convey("原生调用失败返回 ExecutionError", func() {
			cause := errors.New("boom")
			client.Fail("insertMany", cause)
			_, err := d.Run(ctx, &runQuery{
				typ:        database.QueryTypeInsert,
				collection: "users",
				parts:      database.Parts{Values: []map[string]any{{"_id": "u1"}}},
			})
			var execErr *database.ExecutionError
			So(errors.As(err, &execErr), ShouldBeTrue)
			So(execErr.Operation, ShouldEqual, "insertMany")
			So(execErr.Collection, ShouldEqual, "users")
			So(errors.Is(err, cause), ShouldBeTrue)
		})

		Convey("没有数据的插入与没有字段的更新", func() {
			_, err := d.Run(ctx, &runQuery{typ: database.QueryTypeInsert, collection: "users"})
			So(err, ShouldHaveSameTypeAs, &database.MalformedQueryError{})
			_, err = d.Run(ctx, &runQuery{typ: database.QueryTypeUpdate, collection: "users"})
			So(err, ShouldHaveSameTypeAs, &database.MalformedQueryError{})
		})
	})
}

func TestDriverCapabilities(t *testing.T) {
	Convey("能力查询", t, func() {
		d := newDriver(memdb.NewClient())
		So(d.Supports("cte"), ShouldBeFalse)
		So(d.SupportsDynamicConstraints(), ShouldBeFalse)
		So(d.SavePointSQL("sp1"), ShouldEqual, "")
		So(d.ReleaseSavePointSQL("sp1"), ShouldEqual, "")
		So(d.RollbackSavePointSQL("sp1"), ShouldEqual, "")
		So(d.DisableForeignKeySQL(), ShouldEqual, "")
		So(d.EnableForeignKeySQL(), ShouldEqual, "")
		So(d.QuoteIdentifier("user.name"), ShouldEqual, "user.name")
		So(d.Enabled(), ShouldBeTrue)
		So(d.ShortName(), ShouldEqual, "Mongo")
		So(d.SchemaDialect(), ShouldEqual, d.SchemaDialect())

		tables, err := d.SchemaDialect().ListTables(context.Background())
		So(err, ShouldBeNil)
		So(tables, ShouldBeEmpty)
	})
}

func TestDriverObservability(t *testing.T) {
	Convey("指标与追踪", t, func() {
		ctx := context.Background()
		reg := prometheus.NewRegistry()
		metrics := database.NewMetrics("mongodm_test", reg)
		client := memdb.NewClient()
		d := newDriver(client, database.WithMetrics(metrics), database.WithTracer(noop.NewTracerProvider().Tracer("test")))

		_, err := d.Run(ctx, &runQuery{
			typ:        database.QueryTypeInsert,
			collection: "users",
			parts:      database.Parts{Values: []map[string]any{{"_id": "u1"}}},
		})
		So(err, ShouldBeNil)
		client.Fail("deleteMany", errors.New("boom"))
		_, err = d.Run(ctx, &runQuery{typ: database.QueryTypeDelete, collection: "users"})
		So(err, ShouldNotBeNil)

		count, err := testutil.GatherAndCount(reg, "mongodm_test_operations_total")
		So(err, ShouldBeNil)
		So(count, ShouldEqual, 2)
		expected := `
# HELP mongodm_test_operations_total Total number of database operations
# TYPE mongodm_test_operations_total counter
mongodm_test_operations_total{collection="users",operation="delete",status="error"} 1
mongodm_test_operations_total{collection="users",operation="insert",status="success"} 1
`
		So(testutil.GatherAndCompare(reg, stringsReader(expected), "mongodm_test_operations_total"), ShouldBeNil)

		Convey("重复注册复用已有指标", func() {
			again := database.NewMetrics("mongodm_test", reg)
			So(again, ShouldNotBeNil)
		})
	})
}
