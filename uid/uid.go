// Package uid 主键生成器，供逻辑列类型生成新的标识值
package uid

import (
	"github.com/pkg/errors"
)

// StrGenerator 字符串标识生成器
type StrGenerator interface {
	Generate() string
}

// IntGenerator 整数标识生成器
type IntGenerator interface {
	Generate() int64
}

// Options 生成器选项
type Options struct {
	// 类型：uuid, objectid, snowflake
	Type      string           `cfg:"type" def:"uuid" validate:"oneof=uuid objectid snowflake"`
	UUID      UUIDOptions      `cfg:"uuid"`
	Snowflake SnowflakeOptions `cfg:"snowflake"`
}

// NewStrGeneratorWithOptions 按类型创建字符串生成器，snowflake 以十进制字符串输出
func NewStrGeneratorWithOptions(options *Options) (StrGenerator, error) {
	if options == nil {
		return NewUUIDGeneratorWithOptions(nil), nil
	}
	switch options.Type {
	case "", "uuid":
		return NewUUIDGeneratorWithOptions(&options.UUID), nil
	case "objectid":
		return NewObjectIDGenerator(), nil
	case "snowflake":
		return &decimalGenerator{gen: NewSnowflakeGenerator(&options.Snowflake)}, nil
	default:
		return nil, errors.Errorf("unknown generator type %q", options.Type)
	}
}
