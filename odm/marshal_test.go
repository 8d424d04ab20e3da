package odm

import (
	"context"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/hatlonely/mongodm/database/memdb"
)

func TestCollectionNewEntity(t *testing.T) {
	Convey("从请求数据构造实体", t, func() {
		ctx := context.Background()
		c := newTestCollection(memdb.NewClient(), &CollectionOptions{
			Validator: map[string]string{"email": "required,email", "age": "omitempty,min=0"},
		})

		Convey("校验通过", func() {
			e := c.NewEntity(ctx, map[string]any{"email": "eve@example.com", "age": 20}, nil)
			So(e.HasErrors(), ShouldBeFalse)
			So(e.IsNew(), ShouldBeTrue)
			So(e.Dirty(), ShouldResemble, []string{"age", "email"})
			So(e.Source(), ShouldEqual, "Users")
		})

		Convey("校验失败的字段不赋值", func() {
			e := c.NewEntity(ctx, map[string]any{"email": "not-an-email", "age": 20}, nil)
			So(e.Has("email"), ShouldBeFalse)
			So(e.Get("age"), ShouldEqual, 20)
			So(e.FieldErrors("email"), ShouldResemble, []string{"failed on the 'email' rule"})

			_, ok, err := c.Save(ctx, e)
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
		})

		Convey("新实体缺少必填字段", func() {
			e := c.NewEntity(ctx, map[string]any{"age": 20}, nil)
			So(e.FieldErrors("email"), ShouldResemble, []string{"failed on the 'required' rule"})
		})

		Convey("限定字段与跳过校验", func() {
			e := c.NewEntity(ctx, map[string]any{"email": "bad", "role": "admin"}, &MarshalOptions{Fields: []string{"email"}, NoValidate: true})
			So(e.Get("email"), ShouldEqual, "bad")
			So(e.Has("role"), ShouldBeFalse)
			So(e.HasErrors(), ShouldBeFalse)
		})

		Convey("marshal 事件", func() {
			c.Events().On(EventBeforeMarshal, func(ctx context.Context, event *Event) {
				if email, ok := event.Data["email"].(string); ok {
					event.Data["email"] = strings.ToLower(strings.TrimSpace(email))
				}
			})
			c.Events().On(EventBuildValidator, func(ctx context.Context, event *Event) {
				event.Validator["name"] = "required"
			})
			var marshalled *Entity
			c.Events().On(EventAfterMarshal, func(ctx context.Context, event *Event) {
				marshalled = event.Entity
			})

			e := c.NewEntity(ctx, map[string]any{"email": " Eve@Example.com "}, nil)
			So(e.Get("email"), ShouldEqual, "eve@example.com")
			So(e.FieldErrors("name"), ShouldResemble, []string{"failed on the 'required' rule"})
			So(marshalled, ShouldEqual, e)
			So(c.validator, ShouldNotContainKey, "name")
		})

		Convey("批量构造", func() {
			entities := c.NewEntities(ctx, []map[string]any{{"email": "a@example.com"}, {"email": "b"}}, nil)
			So(len(entities), ShouldEqual, 2)
			So(entities[0].HasErrors(), ShouldBeFalse)
			So(entities[1].HasErrors(), ShouldBeTrue)
		})

		Convey("合并数据只校验出现的字段", func() {
			e := HydrateEntity(map[string]any{"_id": "u1", "email": "alice@example.com"}, "Users")
			c.PatchEntity(ctx, e, map[string]any{"age": 31}, nil)
			So(e.HasErrors(), ShouldBeFalse)
			So(e.Dirty(), ShouldResemble, []string{"age"})
			So(e.IsNew(), ShouldBeFalse)

			c.PatchEntity(ctx, e, map[string]any{"age": -1}, nil)
			So(e.Get("age"), ShouldEqual, 31)
			So(e.FieldErrors("age"), ShouldResemble, []string{"failed on the 'min' rule"})
		})

		Convey("批量合并按主键匹配实体", func() {
			alice := HydrateEntity(map[string]any{"_id": "u1", "email": "alice@example.com"}, "Users")
			bob := HydrateEntity(map[string]any{"_id": "u2", "email": "bob@example.com"}, "Users")

			patched, err := c.PatchEntities(ctx, []*Entity{alice, bob}, []map[string]any{
				{"_id": "u2", "age": 18},
				{"email": "new@example.com"},
				{"_id": "u1", "email": "bad"},
			}, nil)
			So(err, ShouldBeNil)
			So(len(patched), ShouldEqual, 3)

			So(patched[0], ShouldEqual, bob)
			So(bob.Get("age"), ShouldEqual, 18)
			So(bob.IsNew(), ShouldBeFalse)

			So(patched[1].IsNew(), ShouldBeTrue)
			So(patched[1].Get("email"), ShouldEqual, "new@example.com")

			So(patched[2], ShouldEqual, alice)
			So(alice.Get("email"), ShouldEqual, "alice@example.com")
			So(alice.HasErrors(), ShouldBeTrue)
		})

		Convey("空实体", func() {
			e := c.NewEmptyEntity()
			So(e.Fields(), ShouldBeEmpty)
			So(e.IsNew(), ShouldBeTrue)
		})
	})
}
