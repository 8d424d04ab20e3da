package memdb

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
)

// Cursor 内存游标，解码到 *bson.M 或 *map[string]any 时直接复制
type Cursor struct {
	docs    []bson.M
	pos     int
	current bson.M
	closed  bool
}

func NewCursor(docs []bson.M) *Cursor {
	return &Cursor{docs: docs}
}

func (c *Cursor) Next(ctx context.Context) bool {
	if c.closed || c.pos >= len(c.docs) {
		c.current = nil
		return false
	}
	c.current = c.docs[c.pos]
	c.pos++
	return true
}

func (c *Cursor) Decode(v any) error {
	if c.current == nil {
		return errors.New("cursor has no current document")
	}
	switch out := v.(type) {
	case *bson.M:
		*out = copyDoc(c.current)
		return nil
	case *map[string]any:
		*out = copyDoc(c.current)
		return nil
	}
	buf, err := bson.Marshal(c.current)
	if err != nil {
		return errors.Wrap(err, "bson.Marshal failed")
	}
	return errors.Wrap(bson.Unmarshal(buf, v), "bson.Unmarshal failed")
}

func (c *Cursor) Err() error {
	return nil
}

func (c *Cursor) Close(ctx context.Context) error {
	c.closed = true
	return nil
}

// Closed 游标是否已关闭
func (c *Cursor) Closed() bool {
	return c.closed
}
