package cache

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
	"go.mongodb.org/mongo-driver/bson"
)

type Serializer[T any] interface {
	Marshal(v T) ([]byte, error)
	Unmarshal(buf []byte) (T, error)
}

// NewSerializer 按名称创建序列化器：msgpack（默认）, json, bson
func NewSerializer[T any](name string) (Serializer[T], error) {
	switch name {
	case "", "msgpack":
		return MsgPackSerializer[T]{}, nil
	case "json":
		return JSONSerializer[T]{}, nil
	case "bson":
		return BSONSerializer[T]{}, nil
	default:
		return nil, errors.Errorf("unknown serializer %q", name)
	}
}

type MsgPackSerializer[T any] struct{}

func (MsgPackSerializer[T]) Marshal(v T) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (MsgPackSerializer[T]) Unmarshal(buf []byte) (T, error) {
	var v T
	err := msgpack.Unmarshal(buf, &v)
	return v, err
}

type JSONSerializer[T any] struct{}

func (JSONSerializer[T]) Marshal(v T) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONSerializer[T]) Unmarshal(buf []byte) (T, error) {
	var v T
	err := json.Unmarshal(buf, &v)
	return v, err
}

// BSONSerializer bson 只能编码文档，值包在 {v: ...} 中
type BSONSerializer[T any] struct{}

type bsonEnvelope[T any] struct {
	V T `bson:"v"`
}

func (BSONSerializer[T]) Marshal(v T) ([]byte, error) {
	return bson.Marshal(bsonEnvelope[T]{V: v})
}

func (BSONSerializer[T]) Unmarshal(buf []byte) (T, error) {
	var env bsonEnvelope[T]
	err := bson.Unmarshal(buf, &env)
	return env.V, err
}
