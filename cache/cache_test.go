package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	. "github.com/smartystreets/goconvey/convey"
)

func testCache(c Cache) {
	ctx := context.Background()

	_, err := c.Get(ctx, "missing")
	So(errors.Is(err, ErrNotFound), ShouldBeTrue)

	So(c.Set(ctx, "key", []byte("value"), 0), ShouldBeNil)
	buf, err := c.Get(ctx, "key")
	So(err, ShouldBeNil)
	So(string(buf), ShouldEqual, "value")

	So(c.Delete(ctx, "key"), ShouldBeNil)
	_, err = c.Get(ctx, "key")
	So(errors.Is(err, ErrNotFound), ShouldBeTrue)
}

func TestMemoryCache(t *testing.T) {
	Convey("MemoryCache", t, func() {
		c := NewMemoryCache(0)

		Convey("基本读写", func() {
			testCache(c)
		})

		Convey("过期后读取不到", func() {
			now := time.Unix(1000, 0)
			c.now = func() time.Time { return now }
			So(c.Set(context.Background(), "k", []byte("v"), time.Minute), ShouldBeNil)

			now = now.Add(30 * time.Second)
			_, err := c.Get(context.Background(), "k")
			So(err, ShouldBeNil)

			now = now.Add(time.Minute)
			_, err = c.Get(context.Background(), "k")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestFreeCache(t *testing.T) {
	Convey("FreeCache", t, func() {
		c, err := NewFreeCacheWithOptions(&FreeCacheOptions{Size: 1024 * 1024})
		So(err, ShouldBeNil)
		defer c.Close()
		testCache(c)

		_, err = NewFreeCacheWithOptions(nil)
		So(err, ShouldNotBeNil)
	})
}

func TestRedisCache(t *testing.T) {
	Convey("RedisCache", t, func() {
		mr := miniredis.RunT(t)

		Convey("NewRedisCacheWithOptions", func() {
			c, err := NewRedisCacheWithOptions(&RedisOptions{Endpoint: mr.Addr(), KeyPrefix: "odm:"})
			So(err, ShouldBeNil)
			defer c.Close()
			testCache(c)

			So(c.Set(context.Background(), "ttl", []byte("v"), time.Minute), ShouldBeNil)
			So(mr.Exists("odm:ttl"), ShouldBeTrue)
			mr.FastForward(2 * time.Minute)
			So(mr.Exists("odm:ttl"), ShouldBeFalse)
		})

		Convey("连接失败返回错误", func() {
			addr := mr.Addr()
			mr.Close()
			_, err := NewRedisCacheWithOptions(&RedisOptions{Endpoint: addr, DialTimeout: 100 * time.Millisecond})
			So(err, ShouldNotBeNil)
		})

		Convey("NewRedisCache 复用客户端", func() {
			c := NewRedisCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "", 0)
			defer c.Close()
			testCache(c)
		})
	})
}

func TestNewCacheWithOptions(t *testing.T) {
	Convey("NewCacheWithOptions", t, func() {
		c, err := NewCacheWithOptions(nil)
		So(err, ShouldBeNil)
		So(c, ShouldHaveSameTypeAs, &MemoryCache{})

		c, err = NewCacheWithOptions(&Options{Type: "freecache"})
		So(err, ShouldBeNil)
		So(c, ShouldHaveSameTypeAs, &FreeCache{})

		_, err = NewCacheWithOptions(&Options{Type: "memcached"})
		So(err, ShouldNotBeNil)
	})
}

func TestRemember(t *testing.T) {
	Convey("Remember", t, func() {
		ctx := context.Background()
		c := NewMemoryCache(0)
		calls := 0
		load := func(ctx context.Context) ([]map[string]any, error) {
			calls++
			return []map[string]any{{"_id": "1", "email": "a@b.com"}}, nil
		}

		for _, name := range []string{"msgpack", "json", "bson"} {
			Convey("序列化器 "+name, func() {
				s, err := NewSerializer[[]map[string]any](name)
				So(err, ShouldBeNil)

				rows, err := Remember(ctx, c, s, "get-default-users", 0, load)
				So(err, ShouldBeNil)
				So(rows[0]["email"], ShouldEqual, "a@b.com")

				rows, err = Remember(ctx, c, s, "get-default-users", 0, load)
				So(err, ShouldBeNil)
				So(rows[0]["_id"], ShouldEqual, "1")
				So(calls, ShouldEqual, 1)
			})
		}

		Convey("load 失败不写入缓存", func() {
			s := MsgPackSerializer[int]{}
			_, err := Remember(ctx, c, s, "k", 0, func(context.Context) (int, error) {
				return 0, errors.New("boom")
			})
			So(err, ShouldNotBeNil)
			_, err = c.Get(ctx, "k")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})

		Convey("未知序列化器", func() {
			_, err := NewSerializer[int]("gob")
			So(err, ShouldNotBeNil)
		})
	})
}
