package odm

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrQueryExecuted 查询对象只能执行一次
	ErrQueryExecuted = errors.New("query has already been executed")
	ErrUnknownFinder = errors.New("unknown finder")
)

// NotFoundError get 没有找到记录，Key 为主键的 JSON 表示
type NotFoundError struct {
	Table string
	Key   string
}

func (e *NotFoundError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("Record not found in table `%s`.", e.Table)
	}
	return fmt.Sprintf("Record not found in table `%s` with primary key `%s`.", e.Table, e.Key)
}

// PersistenceFailedError SaveOrFail 保存失败
type PersistenceFailedError struct {
	Entity     *Entity
	Operations []string
	Cause      error
}

func (e *PersistenceFailedError) Error() string {
	msg := fmt.Sprintf("Entity %s failure.", strings.Join(e.Operations, ", "))
	if e.Entity != nil && e.Entity.HasErrors() {
		var fields []string
		for _, field := range e.Entity.ErrorFields() {
			fields = append(fields, fmt.Sprintf("%s: %s", field, strings.Join(e.Entity.FieldErrors(field), ", ")))
		}
		msg += " Found the following errors (" + strings.Join(fields, "; ") + ")."
	}
	if e.Cause != nil {
		msg += " " + e.Cause.Error()
	}
	return msg
}

func (e *PersistenceFailedError) Unwrap() error { return e.Cause }
