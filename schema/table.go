// Package schema 集合的表结构描述
package schema

import (
	"encoding/json"

	"github.com/pkg/errors"
)

const (
	ConstraintPrimary = "primary"
	ConstraintUnique  = "unique"
	ConstraintForeign = "foreign"

	IndexIndex = "index"
)

// Column 列定义，Type 为 types 包中的逻辑类型名
type Column struct {
	Type          string `json:"type"`
	Null          bool   `json:"null"`
	Default       any    `json:"default,omitempty"`
	Length        int    `json:"length,omitempty"`
	AutoIncrement bool   `json:"autoIncrement,omitempty"`
	Comment       string `json:"comment,omitempty"`
}

type Constraint struct {
	Type    string   `json:"type"`
	Columns []string `json:"columns"`
}

type Index struct {
	Type    string   `json:"type"`
	Columns []string `json:"columns"`
}

// TableSchema 保持列、约束、索引的声明顺序
type TableSchema struct {
	name        string
	columns     []string
	columnDefs  map[string]*Column
	constraints []string
	constraint  map[string]*Constraint
	indexes     []string
	index       map[string]*Index
	options     map[string]any
}

func NewTableSchema(name string) *TableSchema {
	return &TableSchema{
		name:       name,
		columnDefs: map[string]*Column{},
		constraint: map[string]*Constraint{},
		index:      map[string]*Index{},
		options:    map[string]any{},
	}
}

func (s *TableSchema) Name() string { return s.name }

// AddColumn 重复添加同名列时覆盖定义，保持原有顺序
func (s *TableSchema) AddColumn(name string, column Column) *TableSchema {
	if _, ok := s.columnDefs[name]; !ok {
		s.columns = append(s.columns, name)
	}
	c := column
	s.columnDefs[name] = &c
	return s
}

func (s *TableSchema) RemoveColumn(name string) *TableSchema {
	if _, ok := s.columnDefs[name]; !ok {
		return s
	}
	delete(s.columnDefs, name)
	for i, c := range s.columns {
		if c == name {
			s.columns = append(s.columns[:i:i], s.columns[i+1:]...)
			break
		}
	}
	return s
}

func (s *TableSchema) Column(name string) (Column, bool) {
	c, ok := s.columnDefs[name]
	if !ok {
		return Column{}, false
	}
	return *c, true
}

func (s *TableSchema) HasColumn(name string) bool {
	_, ok := s.columnDefs[name]
	return ok
}

func (s *TableSchema) Columns() []string {
	return append([]string(nil), s.columns...)
}

// ColumnType 列不存在时返回空字符串
func (s *TableSchema) ColumnType(name string) string {
	if c, ok := s.columnDefs[name]; ok {
		return c.Type
	}
	return ""
}

// SetColumnType 列不存在时不做任何事
func (s *TableSchema) SetColumnType(name, typ string) *TableSchema {
	if c, ok := s.columnDefs[name]; ok {
		c.Type = typ
	}
	return s
}

func (s *TableSchema) TypeMap() map[string]string {
	m := make(map[string]string, len(s.columns))
	for _, name := range s.columns {
		m[name] = s.columnDefs[name].Type
	}
	return m
}

func (s *TableSchema) IsNullable(name string) bool {
	c, ok := s.columnDefs[name]
	return !ok || c.Null
}

func (s *TableSchema) IsAutoIncrement(name string) bool {
	c, ok := s.columnDefs[name]
	return ok && c.AutoIncrement
}

// AddConstraint 约束引用的列必须已经存在
func (s *TableSchema) AddConstraint(name string, constraint Constraint) error {
	if len(constraint.Columns) == 0 {
		return errors.Errorf("constraint %q in table %q has no columns", name, s.name)
	}
	for _, col := range constraint.Columns {
		if !s.HasColumn(col) {
			return errors.Errorf("columns used in constraint %q in table %q must be added to the table first", name, s.name)
		}
	}
	if _, ok := s.constraint[name]; !ok {
		s.constraints = append(s.constraints, name)
	}
	c := Constraint{Type: constraint.Type, Columns: append([]string(nil), constraint.Columns...)}
	s.constraint[name] = &c
	return nil
}

func (s *TableSchema) Constraint(name string) (Constraint, bool) {
	c, ok := s.constraint[name]
	if !ok {
		return Constraint{}, false
	}
	return *c, true
}

func (s *TableSchema) Constraints() []string {
	return append([]string(nil), s.constraints...)
}

// PrimaryKey 第一个 primary 约束的列，没有则为空
func (s *TableSchema) PrimaryKey() []string {
	for _, name := range s.constraints {
		if c := s.constraint[name]; c.Type == ConstraintPrimary {
			return append([]string(nil), c.Columns...)
		}
	}
	return nil
}

func (s *TableSchema) AddIndex(name string, index Index) error {
	for _, col := range index.Columns {
		if !s.HasColumn(col) {
			return errors.Errorf("columns used in index %q in table %q must be added to the table first", name, s.name)
		}
	}
	if _, ok := s.index[name]; !ok {
		s.indexes = append(s.indexes, name)
	}
	i := Index{Type: index.Type, Columns: append([]string(nil), index.Columns...)}
	s.index[name] = &i
	return nil
}

func (s *TableSchema) Index(name string) (Index, bool) {
	i, ok := s.index[name]
	if !ok {
		return Index{}, false
	}
	return *i, true
}

func (s *TableSchema) Indexes() []string {
	return append([]string(nil), s.indexes...)
}

func (s *TableSchema) SetOptions(options map[string]any) *TableSchema {
	for k, v := range options {
		s.options[k] = v
	}
	return s
}

func (s *TableSchema) Options() map[string]any {
	m := make(map[string]any, len(s.options))
	for k, v := range s.options {
		m[k] = v
	}
	return m
}

type namedColumn struct {
	Name string `json:"name"`
	Column
}

type namedConstraint struct {
	Name string `json:"name"`
	Constraint
}

type namedIndex struct {
	Name string `json:"name"`
	Index
}

type tableSchemaJSON struct {
	Name        string            `json:"name"`
	Columns     []namedColumn     `json:"columns"`
	Constraints []namedConstraint `json:"constraints,omitempty"`
	Indexes     []namedIndex      `json:"indexes,omitempty"`
	Options     map[string]any    `json:"options,omitempty"`
}

func (s *TableSchema) MarshalJSON() ([]byte, error) {
	out := tableSchemaJSON{Name: s.name, Options: s.options}
	for _, name := range s.columns {
		out.Columns = append(out.Columns, namedColumn{Name: name, Column: *s.columnDefs[name]})
	}
	for _, name := range s.constraints {
		out.Constraints = append(out.Constraints, namedConstraint{Name: name, Constraint: *s.constraint[name]})
	}
	for _, name := range s.indexes {
		out.Indexes = append(out.Indexes, namedIndex{Name: name, Index: *s.index[name]})
	}
	return json.Marshal(out)
}

func (s *TableSchema) UnmarshalJSON(data []byte) error {
	var in tableSchemaJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*s = *NewTableSchema(in.Name)
	for _, c := range in.Columns {
		s.AddColumn(c.Name, c.Column)
	}
	for _, c := range in.Constraints {
		if err := s.AddConstraint(c.Name, c.Constraint); err != nil {
			return err
		}
	}
	for _, i := range in.Indexes {
		if err := s.AddIndex(i.Name, i.Index); err != nil {
			return err
		}
	}
	s.SetOptions(in.Options)
	return nil
}
