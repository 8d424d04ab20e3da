package memdb

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/hatlonely/mongodm/database"
)

type Collection struct {
	db   *Database
	name string
	docs []bson.M
}

func (c *Collection) Name() string {
	return c.name
}

// Seed 直接写入文档，不记录调用
func (c *Collection) Seed(docs ...bson.M) error {
	c.db.client.mu.Lock()
	defer c.db.client.mu.Unlock()
	normalized := make([]bson.M, 0, len(docs))
	for _, doc := range docs {
		normalized = append(normalized, copyDoc(doc))
	}
	return c.insert(normalized)
}

// Documents 当前文档的副本
func (c *Collection) Documents() []bson.M {
	c.db.client.mu.Lock()
	defer c.db.client.mu.Unlock()
	docs := make([]bson.M, 0, len(c.docs))
	for _, doc := range c.docs {
		docs = append(docs, copyDoc(doc))
	}
	return docs
}

func (c *Collection) call(operation string) Call {
	return Call{Operation: operation, Database: c.db.name, Collection: c.name}
}

func (c *Collection) Aggregate(ctx context.Context, pipeline database.Pipeline) (*database.Result, error) {
	c.db.client.mu.Lock()
	defer c.db.client.mu.Unlock()

	call := c.call("aggregate")
	call.Pipeline = pipeline
	if err := c.db.client.record(call); err != nil {
		return nil, err
	}

	docs := make([]bson.M, 0, len(c.docs))
	for _, doc := range c.docs {
		docs = append(docs, copyDoc(doc))
	}
	docs, err := aggregate(docs, pipeline)
	if err != nil {
		return nil, err
	}
	return &database.Result{Kind: database.ResultKindCursor, Cursor: NewCursor(docs)}, nil
}

func (c *Collection) InsertOne(ctx context.Context, document any) (*database.Result, error) {
	res, err := c.insertMany("insertOne", []any{document})
	if err != nil {
		return nil, err
	}
	res.Kind = database.ResultKindInsertOne
	return res, nil
}

func (c *Collection) InsertMany(ctx context.Context, documents []any) (*database.Result, error) {
	return c.insertMany("insertMany", documents)
}

func (c *Collection) insertMany(operation string, documents []any) (*database.Result, error) {
	c.db.client.mu.Lock()
	defer c.db.client.mu.Unlock()

	docs := make([]bson.M, 0, len(documents))
	for _, d := range documents {
		doc, err := toDoc(d)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	call := c.call(operation)
	call.Documents = make([]bson.M, 0, len(docs))
	for _, doc := range docs {
		call.Documents = append(call.Documents, copyDoc(doc))
	}
	if err := c.db.client.record(call); err != nil {
		return nil, err
	}

	if err := c.insert(docs); err != nil {
		return nil, err
	}
	ids := make([]any, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc["_id"])
	}
	return &database.Result{Kind: database.ResultKindInsertMany, InsertedIDs: ids}, nil
}

// insert 任何一个 _id 冲突时整体失败
func (c *Collection) insert(docs []bson.M) error {
	for _, doc := range docs {
		if _, ok := doc["_id"]; !ok {
			doc["_id"] = primitive.NewObjectID()
		}
	}
	for i, doc := range docs {
		for _, existing := range c.docs {
			if equal(existing["_id"], doc["_id"]) {
				return duplicateKeyError(c.name, doc["_id"])
			}
		}
		for _, other := range docs[:i] {
			if equal(other["_id"], doc["_id"]) {
				return duplicateKeyError(c.name, doc["_id"])
			}
		}
	}
	c.docs = append(c.docs, docs...)
	return nil
}

func duplicateKeyError(collection string, id any) error {
	return errors.Errorf("E11000 duplicate key error collection: %s index: _id_ dup key: { _id: %v }", collection, id)
}

func (c *Collection) UpdateOne(ctx context.Context, filter any, update any) (*database.Result, error) {
	return c.update("updateOne", filter, update, 1)
}

func (c *Collection) UpdateMany(ctx context.Context, filter any, update any) (*database.Result, error) {
	return c.update("updateMany", filter, update, -1)
}

func (c *Collection) update(operation string, filter any, update any, limit int) (*database.Result, error) {
	c.db.client.mu.Lock()
	defer c.db.client.mu.Unlock()

	f, err := toDoc(filter)
	if err != nil {
		return nil, err
	}
	u, err := toDoc(update)
	if err != nil {
		return nil, err
	}
	call := c.call(operation)
	call.Filter = copyDoc(f)
	call.Update = copyDoc(u)
	if err := c.db.client.record(call); err != nil {
		return nil, err
	}

	for op := range u {
		if op != "$set" && op != "$unset" {
			return nil, errors.Errorf("unsupported update operator %s", op)
		}
	}

	res := &database.Result{Kind: database.ResultKindUpdate}
	for _, doc := range c.docs {
		if limit > 0 && res.MatchedCount >= int64(limit) {
			break
		}
		ok, err := matches(doc, f)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		res.MatchedCount++
		modified := false
		if set, ok := asDoc(u["$set"]); ok {
			for k, v := range set {
				if k == "_id" && !equal(doc["_id"], v) {
					return nil, errors.Errorf("performing an update on the path '_id' would modify the immutable field '_id'")
				}
				if old, exists := doc[k]; !exists || !equal(old, v) {
					doc[k] = copyValue(v)
					modified = true
				}
			}
		}
		if unset, ok := asDoc(u["$unset"]); ok {
			for k := range unset {
				if _, exists := doc[k]; exists {
					delete(doc, k)
					modified = true
				}
			}
		}
		if modified {
			res.ModifiedCount++
		}
	}
	return res, nil
}

func (c *Collection) DeleteOne(ctx context.Context, filter any) (*database.Result, error) {
	return c.delete("deleteOne", filter, 1)
}

func (c *Collection) DeleteMany(ctx context.Context, filter any) (*database.Result, error) {
	return c.delete("deleteMany", filter, -1)
}

func (c *Collection) delete(operation string, filter any, limit int) (*database.Result, error) {
	c.db.client.mu.Lock()
	defer c.db.client.mu.Unlock()

	f, err := toDoc(filter)
	if err != nil {
		return nil, err
	}
	call := c.call(operation)
	call.Filter = copyDoc(f)
	if err := c.db.client.record(call); err != nil {
		return nil, err
	}

	res := &database.Result{Kind: database.ResultKindDelete}
	kept := c.docs[:0]
	for _, doc := range c.docs {
		if limit < 0 || res.DeletedCount < int64(limit) {
			ok, err := matches(doc, f)
			if err != nil {
				return nil, err
			}
			if ok {
				res.DeletedCount++
				continue
			}
		}
		kept = append(kept, doc)
	}
	c.docs = kept
	return res, nil
}

// toDoc 将 map、bson.D 或结构体统一为 bson.M
func toDoc(v any) (bson.M, error) {
	if v == nil {
		return bson.M{}, nil
	}
	if doc, ok := asDoc(v); ok {
		return copyDoc(doc), nil
	}
	buf, err := bson.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "bson.Marshal failed")
	}
	var doc bson.M
	if err := bson.Unmarshal(buf, &doc); err != nil {
		return nil, errors.Wrap(err, "bson.Unmarshal failed")
	}
	return doc, nil
}

func asDoc(v any) (bson.M, bool) {
	switch d := v.(type) {
	case bson.M:
		return d, true
	case map[string]any:
		return d, true
	case bson.D:
		m := bson.M{}
		for _, e := range d {
			m[e.Key] = e.Value
		}
		return m, true
	case *bson.M:
		if d != nil {
			return *d, true
		}
	}
	return nil, false
}

func copyDoc(doc bson.M) bson.M {
	out := make(bson.M, len(doc))
	for k, v := range doc {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch x := v.(type) {
	case bson.M:
		return copyDoc(x)
	case map[string]any:
		return copyDoc(x)
	case bson.D:
		out := make(bson.D, len(x))
		for i, e := range x {
			out[i] = bson.E{Key: e.Key, Value: copyValue(e.Value)}
		}
		return out
	case bson.A:
		out := make(bson.A, len(x))
		for i, e := range x {
			out[i] = copyValue(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = copyValue(e)
		}
		return out
	default:
		return v
	}
}

func (c *Collection) String() string {
	return fmt.Sprintf("%s.%s", c.db.name, c.name)
}
