package schema

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/hatlonely/mongodm/cache"
)

type emptyDialect struct {
	describes int
	failOn    string
}

func (d *emptyDialect) ListTables(ctx context.Context) ([]string, error) { return nil, nil }

func (d *emptyDialect) DescribeColumns(ctx context.Context, table string) ([]ColumnDescription, error) {
	d.describes++
	if d.failOn == "columns" {
		return nil, errors.New("boom")
	}
	return nil, nil
}

func (d *emptyDialect) DescribeIndexes(ctx context.Context, table string) ([]IndexDescription, error) {
	return nil, nil
}

func (d *emptyDialect) DescribeForeignKeys(ctx context.Context, table string) ([]ForeignKeyDescription, error) {
	return nil, nil
}

func (d *emptyDialect) DescribeOptions(ctx context.Context, table string) (map[string]any, error) {
	return map[string]any{}, nil
}

func TestTableSchema(t *testing.T) {
	Convey("TableSchema", t, func() {
		s := NewTableSchema("users")
		s.AddColumn("_id", Column{Type: "uuid"}).AddColumn("email", Column{Type: "string", Null: true})

		Convey("列顺序与类型", func() {
			So(s.Columns(), ShouldResemble, []string{"_id", "email"})
			So(s.ColumnType("_id"), ShouldEqual, "uuid")
			So(s.ColumnType("missing"), ShouldEqual, "")
			So(s.SetColumnType("email", "text").TypeMap(), ShouldResemble, map[string]string{"_id": "uuid", "email": "text"})
			So(s.IsNullable("email"), ShouldBeTrue)
			So(s.IsNullable("_id"), ShouldBeFalse)
		})

		Convey("约束列必须存在", func() {
			So(s.AddConstraint("primary", Constraint{Type: ConstraintPrimary, Columns: []string{"_id"}}), ShouldBeNil)
			So(s.PrimaryKey(), ShouldResemble, []string{"_id"})
			So(s.AddConstraint("fk", Constraint{Type: ConstraintForeign, Columns: []string{"group_id"}}), ShouldNotBeNil)
			So(s.AddConstraint("empty", Constraint{Type: ConstraintUnique}), ShouldNotBeNil)
		})

		Convey("删除列", func() {
			s.RemoveColumn("email")
			So(s.Columns(), ShouldResemble, []string{"_id"})
			So(s.HasColumn("email"), ShouldBeFalse)
		})

		Convey("JSON 往返保持结构", func() {
			So(s.AddConstraint("primary", Constraint{Type: ConstraintPrimary, Columns: []string{"_id"}}), ShouldBeNil)
			So(s.AddIndex("email_idx", Index{Type: IndexIndex, Columns: []string{"email"}}), ShouldBeNil)
			buf, err := json.Marshal(s)
			So(err, ShouldBeNil)

			var out TableSchema
			So(json.Unmarshal(buf, &out), ShouldBeNil)
			So(out.Name(), ShouldEqual, "users")
			So(out.Columns(), ShouldResemble, s.Columns())
			So(out.PrimaryKey(), ShouldResemble, []string{"_id"})
			So(out.Indexes(), ShouldResemble, []string{"email_idx"})
		})
	})
}

func TestFromStruct(t *testing.T) {
	type user struct {
		ID        string    `bson:"_id" odm:"type=uuid,primary"`
		Email     string    `bson:"email" odm:"required,unique"`
		Age       int       `bson:"age,omitempty" odm:"default=18"`
		Score     float64   `bson:"score"`
		CreatedAt time.Time `bson:"created_at" odm:"index"`
		Secret    string    `bson:"-"`
		Ignored   string    `odm:"-"`
		internal  string
	}

	Convey("FromStruct", t, func() {
		s, err := FromStruct("users", &user{})
		So(err, ShouldBeNil)
		So(s.Columns(), ShouldResemble, []string{"_id", "email", "age", "score", "created_at"})
		So(s.TypeMap(), ShouldResemble, map[string]string{
			"_id": "uuid", "email": "string", "age": "integer", "score": "float", "created_at": "datetime",
		})
		So(s.PrimaryKey(), ShouldResemble, []string{"_id"})
		So(s.Constraints(), ShouldResemble, []string{"primary", "email_unique"})
		So(s.Indexes(), ShouldResemble, []string{"created_at_idx"})
		col, _ := s.Column("age")
		So(col.Default, ShouldEqual, "18")

		_, err = FromStruct("x", 1)
		So(err, ShouldNotBeNil)

		type bad struct {
			A string `odm:"weird"`
		}
		_, err = FromStruct("x", bad{})
		So(err, ShouldNotBeNil)
	})
}

func TestCollection(t *testing.T) {
	Convey("Collection", t, func() {
		ctx := context.Background()
		dialect := &emptyDialect{}

		Convey("空反射结果补齐 _id 主键", func() {
			s, err := NewCollection(dialect).Describe(ctx, "users")
			So(err, ShouldBeNil)
			So(s.Columns(), ShouldResemble, []string{"_id"})
			So(s.ColumnType("_id"), ShouldEqual, "string")
			So(s.PrimaryKey(), ShouldResemble, []string{"_id"})
			tables, err := NewCollection(dialect).ListTables(ctx)
			So(err, ShouldBeNil)
			So(tables, ShouldBeEmpty)
		})

		Convey("反射失败返回错误", func() {
			dialect.failOn = "columns"
			_, err := NewCollection(dialect).Describe(ctx, "users")
			So(err, ShouldNotBeNil)
		})

		Convey("CachedCollection 只反射一次", func() {
			cached := NewCachedCollection(NewCollection(dialect), cache.NewMemoryCache(0), "default", 0)
			So(cached.CacheKey("users"), ShouldEqual, "default_users")

			a, err := cached.Describe(ctx, "users")
			So(err, ShouldBeNil)
			b, err := cached.Describe(ctx, "users")
			So(err, ShouldBeNil)
			So(dialect.describes, ShouldEqual, 1)
			So(b.PrimaryKey(), ShouldResemble, a.PrimaryKey())
		})
	})
}
