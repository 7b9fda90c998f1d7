package util

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// ConnectDB opens a MongoDB client and pings the primary.
func ConnectDB(ctx context.Context, uri string) (*mongo.Client, error) {
	LogInfo("starting MongoDB connection")
	client, err := mongo.NewClient(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "create mongo client")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		return nil, errors.Wrap(err, "connect to mongo")
	}

	// try to ping the database
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "ping mongo")
	}

	LogInfo("MongoDB connection successful")
	return client, nil
}

// GetCollection Get collection from Db
func GetCollection(client *mongo.Client, database, name string) *mongo.Collection {
	return client.Database(database).Collection(name)
}

// ConnectRedis parses url and pings the server.
func ConnectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	LogInfo("starting redis connection", zap.String("addr", opts.Addr))

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}

	LogInfo("redis connection successful")
	return client, nil
}
