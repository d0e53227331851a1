package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

const pingTimeout = 5 * time.Second

// DatabaseAPI defines the MongoDB operations issued by the workload, allowing for testing
type DatabaseAPI interface {
	// InsertOne inserts document. A nil wc keeps the collection's default write concern.
	InsertOne(ctx context.Context, document interface{}, wc *writeconcern.WriteConcern) (*mongo.InsertOneResult, error)
	CreateIndex(ctx context.Context, keys interface{}, opts *options.IndexOptions) (string, error)
	DropIndexes(ctx context.Context) error
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	ReplaceOne(ctx context.Context, filter interface{}, replacement interface{}) (*mongo.UpdateResult, error)
	DeleteMany(ctx context.Context, filter interface{}) (*mongo.DeleteResult, error)
	DropDatabase(ctx context.Context) error
	ShutdownServer(ctx context.Context) error
}

// MongoDBDatabase is a wrapper around mongo.Collection to implement DatabaseAPI
type MongoDBDatabase struct {
	*mongo.Collection
}

type ConnectionConfig struct {
	URI            string
	Database       string
	Collection     string
	ConnectTimeout time.Duration
}

// clientOptions disables the driver's retryable reads and writes so every
// workload operation reaches the server exactly once.
func clientOptions(cfg ConnectionConfig) *options.ClientOptions {
	return options.Client().
		ApplyURI(cfg.URI).
		SetRetryWrites(false).
		SetRetryReads(false)
}

// Connect creates a client for cfg.URI and waits until the deployment answers a ping.
// Only the ping is retried; operations issued later through the returned value are not.
func Connect(ctx context.Context, cfg ConnectionConfig) (*MongoDBDatabase, error) {
	client, err := mongo.Connect(ctx, clientOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = cfg.ConnectTimeout
	attempt := 0
	err = backoff.Retry(func() error {
		attempt++
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		err := client.Ping(pingCtx, readpref.Primary())
		if err != nil {
			slog.Debug("Ping failed", "attempt", attempt, "err", err)
		}
		return err
	}, backoff.WithContext(b, ctx))
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("MongoDB at %s not reachable after %d attempts: %w", cfg.URI, attempt, err)
	}

	slog.Debug("Connected to MongoDB", "database", cfg.Database, "collection", cfg.Collection)
	return &MongoDBDatabase{client.Database(cfg.Database).Collection(cfg.Collection)}, nil
}

func (c *MongoDBDatabase) InsertOne(ctx context.Context, document interface{}, wc *writeconcern.WriteConcern) (*mongo.InsertOneResult, error) {
	if wc == nil {
		return c.Collection.InsertOne(ctx, document)
	}
	coll, err := c.Collection.Clone(options.Collection().SetWriteConcern(wc))
	if err != nil {
		return nil, err
	}
	return coll.InsertOne(ctx, document)
}

func (c *MongoDBDatabase) CreateIndex(ctx context.Context, keys interface{}, opts *options.IndexOptions) (string, error) {
	return c.Collection.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: keys, Options: opts})
}

// DropIndexes drops every index on the collection except the mandatory _id index.
func (c *MongoDBDatabase) DropIndexes(ctx context.Context) error {
	_, err := c.Collection.Indexes().DropAll(ctx)
	return err
}

func (c *MongoDBDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error) {
	return c.Collection.Find(ctx, filter, opts...)
}

// ReplaceOne replaces the first document matching filter, like the shell's update without multi.
func (c *MongoDBDatabase) ReplaceOne(ctx context.Context, filter interface{}, replacement interface{}) (*mongo.UpdateResult, error) {
	return c.Collection.ReplaceOne(ctx, filter, replacement)
}

func (c *MongoDBDatabase) DeleteMany(ctx context.Context, filter interface{}) (*mongo.DeleteResult, error) {
	return c.Collection.DeleteMany(ctx, filter)
}

func (c *MongoDBDatabase) DropDatabase(ctx context.Context) error {
	return c.Collection.Database().Drop(ctx)
}

// ShutdownServer asks the connected mongod to shut down. The server closes the
// connection instead of replying, so a network error means the request was accepted.
func (c *MongoDBDatabase) ShutdownServer(ctx context.Context) error {
	admin := c.Collection.Database().Client().Database("admin")
	err := admin.RunCommand(ctx, bson.D{{Key: "shutdown", Value: 1}}).Err()
	if err != nil && !mongo.IsNetworkError(err) {
		return err
	}
	return nil
}

func (c *MongoDBDatabase) Disconnect(ctx context.Context) error {
	return c.Collection.Database().Client().Disconnect(ctx)
}
