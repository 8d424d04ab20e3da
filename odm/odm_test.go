package odm

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/hatlonely/mongodm/database"
	"github.com/hatlonely/mongodm/database/memdb"
	"github.com/hatlonely/mongodm/log"
)

func newTestCollection(client *memdb.Client, options *CollectionOptions) *Collection {
	driver, err := database.NewDriverWithOptions(nil, database.WithDialer(client.Dialer()), database.WithLogger(log.Nop()))
	So(err, ShouldBeNil)
	if options == nil {
		options = &CollectionOptions{}
	}
	if options.ClassName == "" && options.Table == "" && options.Alias == "" {
		options.ClassName = "UsersCollection"
	}
	options.Connection = database.NewConnection("default", driver)
	options.Logger = log.Nop()
	c, err := NewCollectionWithOptions(options)
	So(err, ShouldBeNil)
	return c
}

func seedUsers(client *memdb.Client) *memdb.Collection {
	users := client.DB("cake").C("users")
	So(users.Seed(
		bson.M{"_id": "u1", "email": "alice@example.com", "age": int32(30)},
		bson.M{"_id": "u2", "email": "bob@example.com", "age": int32(17)},
		bson.M{"_id": "u3", "email": "carol@example.com", "age": int32(42)},
	), ShouldBeNil)
	return users
}

func TestNewCollectionWithOptions(t *testing.T) {
	Convey("构造集合", t, func() {
		Convey("由 ClassName 推导表名与别名", func() {
			c, err := NewCollectionWithOptions(&CollectionOptions{ClassName: "BlogPostsCollection"})
			So(err, ShouldBeNil)
			So(c.Table(), ShouldEqual, "blog_posts")
			So(c.Alias(), ShouldEqual, "BlogPosts")
			So(c.RegistryAlias(), ShouldEqual, "BlogPosts")
			So(c.AliasField("title"), ShouldEqual, "BlogPosts.title")
			So(c.AliasField("Other.title"), ShouldEqual, "Other.title")
		})

		Convey("只有别名时表名为下划线形式", func() {
			c, err := NewCollectionWithOptions(&CollectionOptions{Alias: "UserProfiles"})
			So(err, ShouldBeNil)
			So(c.Table(), ShouldEqual, "user_profiles")
		})

		Convey("没有表名与别名", func() {
			_, err := NewCollectionWithOptions(&CollectionOptions{})
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldEqual, "You must specify either the `alias` or the `table` option for the constructor.")
		})

		Convey("没有连接", func() {
			c, err := NewCollectionWithOptions(&CollectionOptions{Table: "users"})
			So(err, ShouldBeNil)
			_, err = c.Connection()
			var structural *database.StructuralError
			So(err, ShouldHaveSameTypeAs, structural)
		})

		Convey("从连接管理器获取连接", func() {
			client := memdb.NewClient()
			manager, err := database.NewConnectionManagerWithOptions(nil, database.WithDriverOptions(database.WithDialer(client.Dialer()), database.WithLogger(log.Nop())))
			So(err, ShouldBeNil)
			So(manager.SetConfig("default", nil), ShouldBeNil)

			c, err := NewCollectionWithOptions(&CollectionOptions{ClassName: "UsersCollection", Manager: manager, Logger: log.Nop()})
			So(err, ShouldBeNil)
			conn, err := c.Connection()
			So(err, ShouldBeNil)
			So(conn.ConfigName(), ShouldEqual, "default")
		})
	})
}

func TestCollectionSchema(t *testing.T) {
	Convey("表结构", t, func() {
		client := memdb.NewClient()

		Convey("反射得到的表结构 _id 为 uuid 主键", func() {
			c := newTestCollection(client, nil)
			s, err := c.Schema(context.Background())
			So(err, ShouldBeNil)
			So(s.ColumnType("_id"), ShouldEqual, "uuid")
			key, err := c.PrimaryKey(context.Background())
			So(err, ShouldBeNil)
			So(key, ShouldResemble, []string{"_id"})
			ok, err := c.HasField(context.Background(), "_id")
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
		})

		Convey("显式主键", func() {
			c := newTestCollection(client, &CollectionOptions{PrimaryKey: []string{"site", "slug"}})
			key, err := c.PrimaryKey(context.Background())
			So(err, ShouldBeNil)
			So(key, ShouldResemble, []string{"site", "slug"})
			key[0] = "changed"
			key, _ = c.PrimaryKey(context.Background())
			So(key[0], ShouldEqual, "site")
		})
	})
}

func TestUnderscore(t *testing.T) {
	Convey("Underscore", t, func() {
		for _, unit := range []struct {
			in  string
			out string
		}{
			{"Users", "users"},
			{"BlogPosts", "blog_posts"},
			{"HTTPRequests", "http_requests"},
			{"UserID", "user_id"},
			{"already_snake", "already_snake"},
		} {
			So(Underscore(unit.in), ShouldEqual, unit.out)
		}
	})
}
