// Package identity 按凭据字段查找用户记录
package identity

import (
	"context"
	"reflect"

	"github.com/pkg/errors"

	"github.com/hatlonely/mongodm/locator"
	"github.com/hatlonely/mongodm/odm"
)

const (
	TypeAnd = "AND"
	TypeOr  = "OR"
)

type Options struct {
	UserModel string `cfg:"userModel" def:"Users"`
	Finder    string `cfg:"finder" def:"all"`
}

type Resolver struct {
	locator *locator.Locator
	options *Options
}

func NewResolverWithOptions(l *locator.Locator, options *Options) *Resolver {
	resolved := Options{UserModel: "Users", Finder: "all"}
	if options != nil {
		if options.UserModel != "" {
			resolved.UserModel = options.UserModel
		}
		if options.Finder != "" {
			resolved.Finder = options.Finder
		}
	}
	return &Resolver{locator: l, options: &resolved}
}

// Find 返回第一条满足条件的记录，没有时返回 nil
//
// 切片值按 IN 条件匹配，typ 为 OR 时条件之间为或关系
func (r *Resolver) Find(ctx context.Context, conditions map[string]any, typ string) (*odm.Entity, error) {
	c, err := r.locator.Get(r.options.UserModel, nil)
	if err != nil {
		return nil, errors.WithMessagef(err, "get user model `%s` failed", r.options.UserModel)
	}
	q, err := c.Find(r.options.Finder, nil)
	if err != nil {
		return nil, err
	}

	where := make(map[string]any, len(conditions))
	for field, value := range conditions {
		field = c.AliasField(field)
		if isSlice(value) {
			field += " IN"
		}
		where[field] = value
	}
	if typ == TypeOr {
		q.Where(map[string]any{"OR": where})
	} else {
		q.Where(where)
	}
	return q.First(ctx)
}

// isSlice 字节切片按标量处理
func isSlice(v any) bool {
	if v == nil {
		return false
	}
	t := reflect.TypeOf(v)
	if t.Kind() != reflect.Slice && t.Kind() != reflect.Array {
		return false
	}
	return t.Elem().Kind() != reflect.Uint8
}
