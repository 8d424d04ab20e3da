package uid

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ObjectIDGenerator 生成 24 位十六进制的 MongoDB ObjectID
type ObjectIDGenerator struct{}

func NewObjectIDGenerator() *ObjectIDGenerator {
	return &ObjectIDGenerator{}
}

func (g *ObjectIDGenerator) Generate() string {
	return primitive.NewObjectID().Hex()
}

// GenerateObjectID 返回原生 ObjectID，存储时无需再转换
func (g *ObjectIDGenerator) GenerateObjectID() primitive.ObjectID {
	return primitive.NewObjectID()
}
