package database

import (
	"context"

	"github.com/hatlonely/mongodm/schema"
)

// SchemaDialect 文档库没有固定结构，所有反射结果为空
type SchemaDialect struct{}

func NewSchemaDialect() *SchemaDialect {
	return &SchemaDialect{}
}

func (s *SchemaDialect) ListTables(ctx context.Context) ([]string, error) {
	return []string{}, nil
}

func (s *SchemaDialect) DescribeColumns(ctx context.Context, table string) ([]schema.ColumnDescription, error) {
	return []schema.ColumnDescription{}, nil
}

func (s *SchemaDialect) DescribeIndexes(ctx context.Context, table string) ([]schema.IndexDescription, error) {
	return []schema.IndexDescription{}, nil
}

func (s *SchemaDialect) DescribeForeignKeys(ctx context.Context, table string) ([]schema.ForeignKeyDescription, error) {
	return []schema.ForeignKeyDescription{}, nil
}

func (s *SchemaDialect) DescribeOptions(ctx context.Context, table string) (map[string]any, error) {
	return map[string]any{}, nil
}
