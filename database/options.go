package database

import (
	"fmt"
	"net/url"
	"time"

	"github.com/hatlonely/mongodm/cfg"
)

// Options MongoDB 连接选项
type Options struct {
	// 长连接，仅作提示，连接池由驱动管理
	Persistent bool   `cfg:"persistent" def:"true"`
	Host       string `cfg:"host" def:"localhost" validate:"required"`
	Port       int    `cfg:"port" def:"27017" validate:"min=1,max=65535"`
	// 为空时 DSN 不带认证信息
	Username string `cfg:"username" def:"root"`
	Password string `cfg:"password"`
	Database string `cfg:"database" def:"cake" validate:"required"`

	// 认证数据库，为空时使用驱动默认值
	AuthSource  string        `cfg:"authSource"`
	Timeout     time.Duration `cfg:"timeout" def:"10s"`
	MaxPoolSize uint64        `cfg:"maxPoolSize" def:"100"`
	MinPoolSize uint64        `cfg:"minPoolSize"`

	// 是否缓存表结构
	CacheMetadata bool `cfg:"cacheMetadata" def:"true"`
}

// DefaultOptions 返回全部字段为默认值的选项，def 标签无法解析时 panic
func DefaultOptions() *Options {
	options := &Options{}
	if err := cfg.SetDefaults(options); err != nil {
		panic("invalid default database options: " + err.Error())
	}
	return options
}

// BuildDSN mongodb://{username}:{password}@{host}:{port}，username 为空时省略认证段
// 数据库名不写入 DSN，连接后单独选择
func (o *Options) BuildDSN() string {
	if o.Username == "" {
		return fmt.Sprintf("mongodb://%s:%d", o.Host, o.Port)
	}
	return fmt.Sprintf("mongodb://%s@%s:%d", url.UserPassword(o.Username, o.Password).String(), o.Host, o.Port)
}
