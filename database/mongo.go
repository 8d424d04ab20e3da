package database

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"
	mopts "go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoDialer 使用官方驱动建立连接，Ping 成功后才返回客户端
func MongoDialer(ctx context.Context, dsn string, options *Options) (Client, error) {
	clientOptions := mopts.Client().ApplyURI(dsn)
	if options != nil {
		if options.Timeout > 0 {
			clientOptions.SetConnectTimeout(options.Timeout)
			clientOptions.SetServerSelectionTimeout(options.Timeout)
		}
		if options.MaxPoolSize > 0 {
			clientOptions.SetMaxPoolSize(options.MaxPoolSize)
		}
		if options.MinPoolSize > 0 {
			clientOptions.SetMinPoolSize(options.MinPoolSize)
		}
		if options.AuthSource != "" && clientOptions.Auth != nil {
			clientOptions.Auth.AuthSource = options.AuthSource
		}
	}

	if options != nil && options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, options.Timeout)
		defer cancel()
	}

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, errors.Wrap(err, "mongo connect")
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "mongo ping")
	}
	return &mongoClient{client: client}, nil
}

type mongoClient struct {
	client *mongo.Client
}

func (c *mongoClient) Database(name string) Database {
	return &mongoDatabase{db: c.client.Database(name)}
}

func (c *mongoClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, readpref.Primary())
}

func (c *mongoClient) Disconnect(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

type mongoDatabase struct {
	db *mongo.Database
}

func (d *mongoDatabase) Name() string { return d.db.Name() }

func (d *mongoDatabase) Collection(name string) Collection {
	return &mongoCollection{coll: d.db.Collection(name)}
}

type mongoCollection struct {
	coll *mongo.Collection
}

func (c *mongoCollection) Name() string { return c.coll.Name() }

func (c *mongoCollection) Aggregate(ctx context.Context, pipeline Pipeline) (*Result, error) {
	stages := pipeline
	if stages == nil {
		stages = Pipeline{}
	}
	cursor, err := c.coll.Aggregate(ctx, stages)
	if err != nil {
		return nil, err
	}
	return &Result{Kind: ResultKindCursor, Cursor: cursor}, nil
}

func (c *mongoCollection) InsertOne(ctx context.Context, document any) (*Result, error) {
	res, err := c.coll.InsertOne(ctx, document)
	if err != nil {
		return nil, err
	}
	return &Result{Kind: ResultKindInsertOne, InsertedIDs: []any{res.InsertedID}}, nil
}

func (c *mongoCollection) InsertMany(ctx context.Context, documents []any) (*Result, error) {
	res, err := c.coll.InsertMany(ctx, documents)
	if err != nil {
		return nil, err
	}
	return &Result{Kind: ResultKindInsertMany, InsertedIDs: res.InsertedIDs}, nil
}

func (c *mongoCollection) UpdateOne(ctx context.Context, filter any, update any) (*Result, error) {
	res, err := c.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return nil, err
	}
	return updateResult(res), nil
}

func (c *mongoCollection) UpdateMany(ctx context.Context, filter any, update any) (*Result, error) {
	res, err := c.coll.UpdateMany(ctx, filter, update)
	if err != nil {
		return nil, err
	}
	return updateResult(res), nil
}

func (c *mongoCollection) DeleteOne(ctx context.Context, filter any) (*Result, error) {
	res, err := c.coll.DeleteOne(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &Result{Kind: ResultKindDelete, DeletedCount: res.DeletedCount}, nil
}

func (c *mongoCollection) DeleteMany(ctx context.Context, filter any) (*Result, error) {
	res, err := c.coll.DeleteMany(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &Result{Kind: ResultKindDelete, DeletedCount: res.DeletedCount}, nil
}

func updateResult(res *mongo.UpdateResult) *Result {
	return &Result{
		Kind:          ResultKindUpdate,
		MatchedCount:  res.MatchedCount,
		ModifiedCount: res.ModifiedCount,
		UpsertedCount: res.UpsertedCount,
	}
}
