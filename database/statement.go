package database

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
)

// Statement 把不同类型的原生结果统一为行数、行集与插入 id
type Statement struct {
	result     *Result
	decorators []RowDecorator
}

func NewStatement(result *Result, decorators ...RowDecorator) *Statement {
	if result == nil {
		result = &Result{Kind: ResultKindNone}
	}
	return &Statement{result: result, decorators: decorators}
}

func (s *Statement) Kind() ResultKind {
	return s.result.Kind
}

func (s *Statement) Result() *Result {
	return s.result
}

// RowCount 受影响或插入的行数，游标结果为 0
func (s *Statement) RowCount() int64 {
	switch s.result.Kind {
	case ResultKindInsertOne, ResultKindInsertMany:
		return int64(len(s.result.InsertedIDs))
	case ResultKindUpdate:
		return s.result.MatchedCount
	case ResultKindDelete:
		return s.result.DeletedCount
	default:
		return 0
	}
}

// FetchAll 读取游标中的全部文档并依次应用行装饰器，读完后关闭游标
func (s *Statement) FetchAll(ctx context.Context) ([]Row, error) {
	rows := []Row{}
	if s.result.Kind != ResultKindCursor || s.result.Cursor == nil {
		return rows, nil
	}

	cursor := s.result.Cursor
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, errors.Wrap(err, "cursor.Decode failed")
		}
		row := Row(doc)
		for _, decorate := range s.decorators {
			var err error
			if row, err = decorate(row); err != nil {
				return nil, errors.WithMessage(err, "decorate row failed")
			}
		}
		rows = append(rows, row)
	}
	if err := cursor.Err(); err != nil {
		return nil, errors.Wrap(err, "cursor failed")
	}
	return rows, nil
}

// LastInsertID 最后一个插入的 id，非插入结果返回 nil
func (s *Statement) LastInsertID() any {
	switch s.result.Kind {
	case ResultKindInsertOne, ResultKindInsertMany:
		if n := len(s.result.InsertedIDs); n > 0 {
			return s.result.InsertedIDs[n-1]
		}
	}
	return nil
}

func (s *Statement) Close(ctx context.Context) error {
	if s.result.Kind == ResultKindCursor && s.result.Cursor != nil {
		return s.result.Cursor.Close(ctx)
	}
	return nil
}
