package database

import (
	"fmt"
)

// ConnectionError 建立连接失败
type ConnectionError struct {
	Driver string
	Cause  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s could not be established: %v", e.Driver, e.Cause)
}

func (e *ConnectionError) Unwrap() error { return e.Cause }

// MalformedQueryError 子句无法编译，在调用原生接口之前返回
type MalformedQueryError struct {
	Clause string
	Field  string
	Reason string
}

func (e *MalformedQueryError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("malformed %s clause: %s", e.Clause, e.Reason)
	}
	return fmt.Sprintf("malformed %s clause: field %q %s", e.Clause, e.Field, e.Reason)
}

// ExecutionError 原生调用失败
type ExecutionError struct {
	Driver     string
	Operation  string
	Collection string
	Cause      error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s %s on collection `%s` failed: %v", e.Driver, e.Operation, e.Collection, e.Cause)
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

// StructuralError 表结构或主键约定被破坏，也用于重复配置
type StructuralError struct {
	Message string
}

func (e *StructuralError) Error() string { return e.Message }

// NewStructuralError 格式化构造
func NewStructuralError(format string, args ...any) *StructuralError {
	return &StructuralError{Message: fmt.Sprintf(format, args...)}
}

// MissingDatasourceError 数据源未配置
type MissingDatasourceError struct {
	Name string
}

func (e *MissingDatasourceError) Error() string {
	return "The datasource `" + e.Name + "` was not found."
}
