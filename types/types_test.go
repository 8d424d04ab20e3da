package types

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestRegistry(t *testing.T) {
	Convey("Registry", t, func() {
		r := NewRegistry()

		Convey("内建类型", func() {
			So(r.Names(), ShouldResemble, []string{
				"biginteger", "boolean", "datetime", "float", "integer", "json", "objectid", "string", "text", "uuid",
			})
			_, err := r.Build("decimal")
			So(err, ShouldNotBeNil)
		})

		Convey("注册自定义类型覆盖内建类型", func() {
			r.Register(&StringType{name: "uuid"})
			typ, err := r.Build("uuid")
			So(err, ShouldBeNil)
			So(typ.NewID(), ShouldBeNil)
		})
	})
}

func TestNewID(t *testing.T) {
	Convey("NewID", t, func() {
		r := NewRegistry()

		Convey("uuid 生成 36 位字符串", func() {
			typ, _ := r.Build("uuid")
			id, ok := typ.NewID().(string)
			So(ok, ShouldBeTrue)
			So(id, ShouldHaveLength, 36)
			So(typ.NewID(), ShouldNotEqual, id)
		})

		Convey("objectid 生成原生 ObjectID", func() {
			typ, _ := r.Build("objectid")
			_, ok := typ.NewID().(primitive.ObjectID)
			So(ok, ShouldBeTrue)
		})

		Convey("biginteger 生成递增整数，integer 与 string 不生成", func() {
			typ, _ := r.Build("biginteger")
			a := typ.NewID().(int64)
			b := typ.NewID().(int64)
			So(b > a, ShouldBeTrue)

			typ, _ = r.Build("integer")
			So(typ.NewID(), ShouldBeNil)
			typ, _ = r.Build("string")
			So(typ.NewID(), ShouldBeNil)
		})
	})
}

func TestConversion(t *testing.T) {
	Convey("值转换", t, func() {
		r := NewRegistry()

		Convey("objectid", func() {
			typ, _ := r.Build("objectid")
			oid := primitive.NewObjectID()
			v, err := typ.ToGo(oid)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, oid.Hex())

			v, err = typ.ToDatabase(oid.Hex())
			So(err, ShouldBeNil)
			So(v, ShouldResemble, oid)

			_, err = typ.ToDatabase("not-hex")
			So(err, ShouldNotBeNil)
		})

		Convey("integer", func() {
			typ, _ := r.Build("integer")
			v, err := typ.ToGo(int32(7))
			So(err, ShouldBeNil)
			So(v, ShouldEqual, int64(7))
			v, err = typ.ToGo("42")
			So(err, ShouldBeNil)
			So(v, ShouldEqual, int64(42))
			_, err = typ.ToGo("x")
			So(err, ShouldNotBeNil)
		})

		Convey("datetime", func() {
			typ, _ := r.Build("datetime")
			now := time.Now().UTC().Truncate(time.Millisecond)
			v, err := typ.ToDatabase(now)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, primitive.NewDateTimeFromTime(now))
			back, err := typ.ToGo(v)
			So(err, ShouldBeNil)
			So(back.(time.Time).Equal(now), ShouldBeTrue)
		})

		Convey("json 解析字符串", func() {
			typ, _ := r.Build("json")
			v, err := typ.ToGo(`{"a":1}`)
			So(err, ShouldBeNil)
			So(v, ShouldResemble, map[string]any{"a": float64(1)})
		})

		Convey("string", func() {
			typ, _ := r.Build("string")
			v, _ := typ.ToGo(12)
			So(v, ShouldEqual, "12")
			v, _ = typ.ToGo(nil)
			So(v, ShouldBeNil)
		})
	})
}

func TestMatchValues(t *testing.T) {
	Convey("uuid 主键条件的存储形式", t, func() {
		typ, _ := NewRegistry().Build("uuid")
		matcher, ok := typ.(KeyMatcher)
		So(ok, ShouldBeTrue)

		Convey("ObjectID 的十六进制字符串同时匹配原生 ObjectID", func() {
			oid := primitive.NewObjectID()
			values, err := matcher.MatchValues(oid.Hex())
			So(err, ShouldBeNil)
			So(values, ShouldResemble, []any{oid.Hex(), oid})

			values, err = matcher.MatchValues(oid)
			So(err, ShouldBeNil)
			So(values, ShouldResemble, []any{oid.Hex(), oid})
		})

		Convey("普通 uuid 只有一种形式", func() {
			values, err := matcher.MatchValues("7f0c6f5e-4b9a-4f2e-9d43-0d8f3c1a2b3c")
			So(err, ShouldBeNil)
			So(values, ShouldResemble, []any{"7f0c6f5e-4b9a-4f2e-9d43-0d8f3c1a2b3c"})

			values, err = matcher.MatchValues("zzzzzzzzzzzzzzzzzzzzzzzz")
			So(err, ShouldBeNil)
			So(values, ShouldResemble, []any{"zzzzzzzzzzzzzzzzzzzzzzzz"})
		})
	})
}
