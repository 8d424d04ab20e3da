package locator

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/assert"

	"github.com/hatlonely/mongodm/database"
	"github.com/hatlonely/mongodm/database/memdb"
	"github.com/hatlonely/mongodm/log"
	"github.com/hatlonely/mongodm/odm"
)

func newUsersCollection(options *odm.CollectionOptions) (*odm.Collection, error) {
	options.PrimaryKey = []string{"_id"}
	return odm.NewCollectionWithOptions(options)
}

func newTestLocator(options *Options) *Locator {
	client := memdb.NewClient()
	manager, err := database.NewConnectionManagerWithOptions(nil, database.WithDriverOptions(database.WithDialer(client.Dialer()), database.WithLogger(log.Nop())))
	So(err, ShouldBeNil)
	So(manager.SetConfig("default", nil), ShouldBeNil)

	registry := NewRegistry()
	So(registry.Register("Model/Collection/UsersCollection", newUsersCollection), ShouldBeNil)
	So(registry.Register("Blog/Model/Collection/PostsCollection", odm.NewCollectionWithOptions), ShouldBeNil)
	return NewLocatorWithOptions(options, WithManager(manager), WithRegistry(registry), WithLogger(log.Nop()))
}

func TestLocatorGet(t *testing.T) {
	Convey("按别名获取集合", t, func() {
		l := newTestLocator(nil)

		Convey("注册的集合类", func() {
			c, err := l.Get("Users", nil)
			So(err, ShouldBeNil)
			So(c.Table(), ShouldEqual, "users")
			So(c.Alias(), ShouldEqual, "Users")
			So(c.RegistryAlias(), ShouldEqual, "Users")
			So(l.Exists("Users"), ShouldBeTrue)

			again, err := l.Get("Users", nil)
			So(err, ShouldBeNil)
			So(again, ShouldEqual, c)

			conn, err := c.Connection()
			So(err, ShouldBeNil)
			So(conn.ConfigName(), ShouldEqual, "default")
		})

		Convey("插件前缀", func() {
			c, err := l.Get("Blog.Posts", nil)
			So(err, ShouldBeNil)
			So(c.Alias(), ShouldEqual, "Posts")
			So(c.Table(), ShouldEqual, "posts")
			So(c.RegistryAlias(), ShouldEqual, "Blog.Posts")
		})

		Convey("回退到通用集合", func() {
			c, err := l.Get("AuditLogs", nil)
			So(err, ShouldBeNil)
			So(c.Table(), ShouldEqual, "audit_logs")
			So(c.Alias(), ShouldEqual, "AuditLogs")
		})

		Convey("不允许回退", func() {
			l.AllowFallbackClass(false)
			_, err := l.Get("AuditLogs", nil)
			var missing *MissingClassError
			So(errors.As(err, &missing), ShouldBeTrue)
			So(missing.Alias, ShouldEqual, "AuditLogs")
			So(l.Exists("AuditLogs"), ShouldBeFalse)
		})

		Convey("已存在的实例不能以新选项获取", func() {
			_, err := l.Get("Users", nil)
			So(err, ShouldBeNil)
			_, err = l.Get("Users", &odm.CollectionOptions{Table: "people"})
			var structural *database.StructuralError
			So(errors.As(err, &structural), ShouldBeTrue)
		})

		Convey("配置", func() {
			So(l.SetConfig("Members", &odm.CollectionOptions{Table: "users", ConnectionName: "default"}), ShouldBeNil)
			config, ok := l.Config("Members")
			So(ok, ShouldBeTrue)
			So(config.Table, ShouldEqual, "users")
			So(l.Configured(), ShouldResemble, []string{"Members"})

			c, err := l.Get("Members", &odm.CollectionOptions{Alias: "Member"})
			So(err, ShouldBeNil)
			So(c.Table(), ShouldEqual, "users")
			So(c.Alias(), ShouldEqual, "Member")

			err = l.SetConfig("Members", &odm.CollectionOptions{Table: "people"})
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldEqual, "You cannot configure `Members`, it has already been constructed.")
		})

		Convey("Set Remove Clear", func() {
			c, err := odm.NewCollectionWithOptions(&odm.CollectionOptions{Table: "tags"})
			So(err, ShouldBeNil)
			So(l.Set("Tags", c), ShouldEqual, c)
			got, err := l.Get("Tags", nil)
			So(err, ShouldBeNil)
			So(got, ShouldEqual, c)

			l.Remove("Tags")
			So(l.Exists("Tags"), ShouldBeFalse)

			_, err = l.Get("Users", nil)
			So(err, ShouldBeNil)
			l.Clear()
			So(l.Exists("Users"), ShouldBeFalse)
			So(l.Configured(), ShouldBeEmpty)
		})
	})
}

func TestLocatorLocations(t *testing.T) {
	Convey("查找位置", t, func() {
		l := newTestLocator(&Options{Locations: []string{"/App/Collection/", "Model/Collection"}, AllowFallbackClass: false})
		So(l.Locations(), ShouldResemble, []string{"App/Collection", "Model/Collection"})

		l.AddLocation("App/Collection")
		So(len(l.Locations()), ShouldEqual, 2)

		So(l.Registry().Register("App/Collection/UsersCollection", func(options *odm.CollectionOptions) (*odm.Collection, error) {
			options.Table = "app_users"
			return odm.NewCollectionWithOptions(options)
		}), ShouldBeNil)
		c, err := l.Get("Users", nil)
		So(err, ShouldBeNil)
		So(c.Table(), ShouldEqual, "app_users")
	})
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.NoError(t, r.Register("Model/Collection/UsersCollection", newUsersCollection))
	assert.NoError(t, r.Register("Model/Collection/UsersCollection", newUsersCollection))
	assert.Error(t, r.Register("Model/Collection/UsersCollection", odm.NewCollectionWithOptions))
	assert.Error(t, r.Register("Model/Collection/NilCollection", nil))
	assert.Equal(t, []string{"Model/Collection/UsersCollection"}, r.Keys())

	resolver := NewResolver(r)
	key, _, ok := resolver.Resolve("Users", []string{"App/Collection", "Model/Collection"})
	assert.True(t, ok)
	assert.Equal(t, "Model/Collection/UsersCollection", key)

	key, _, ok = resolver.Resolve("Model/Collection/UsersCollection", nil)
	assert.True(t, ok)
	assert.Equal(t, "Model/Collection/UsersCollection", key)

	_, _, ok = resolver.Resolve("Blog.Users", []string{"Model/Collection"})
	assert.False(t, ok)
}

func TestSplitPlugin(t *testing.T) {
	for _, unit := range []struct {
		name   string
		plugin string
		alias  string
	}{
		{"Users", "", "Users"},
		{"Blog.Posts", "Blog", "Posts"},
		{"Vendor.Blog.Posts", "Vendor.Blog", "Posts"},
	} {
		plugin, alias := SplitPlugin(unit.name)
		assert.Equal(t, unit.plugin, plugin)
		assert.Equal(t, unit.alias, alias)
	}
}
