package log

import (
	"bytes"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestNewSLogWithOptions(t *testing.T) {
	Convey("NewSLogWithOptions", t, func() {
		Convey("nil 选项返回错误", func() {
			_, err := NewSLogWithOptions(nil)
			So(err, ShouldNotBeNil)
		})

		Convey("非法级别返回错误", func() {
			_, err := NewSLogWithOptions(&SLogOptions{Level: "invalid"})
			So(err, ShouldNotBeNil)
		})

		Convey("非法格式返回错误", func() {
			_, err := NewSLogWithOptions(&SLogOptions{Format: "xml"})
			So(err, ShouldNotBeNil)
		})

		Convey("json 格式输出字段", func() {
			var buf bytes.Buffer
			l, err := NewSLogWithOptions(&SLogOptions{
				Level:  "debug",
				Format: "json",
				Writer: &buf,
				Fields: map[string]any{"app": "mongodm"},
			})
			So(err, ShouldBeNil)
			l.With("collection", "users").Debug("run query", "stages", 2)
			So(buf.String(), ShouldContainSubstring, `"msg":"run query"`)
			So(buf.String(), ShouldContainSubstring, `"collection":"users"`)
			So(buf.String(), ShouldContainSubstring, `"app":"mongodm"`)
		})

		Convey("低于级别的日志被丢弃", func() {
			var buf bytes.Buffer
			l, err := NewSLogWithOptions(&SLogOptions{Level: "warn", Writer: &buf})
			So(err, ShouldBeNil)
			l.Info("ignored")
			So(buf.Len(), ShouldEqual, 0)
			l.Warn("kept")
			So(buf.String(), ShouldContainSubstring, "kept")
		})

		Convey("文件输出", func() {
			path := filepath.Join(t.TempDir(), "logs", "odm.log")
			l, err := NewSLogWithOptions(&SLogOptions{Output: path})
			So(err, ShouldBeNil)
			l.Info("to file")
			So(Default(), ShouldNotBeNil)
		})
	})
}
