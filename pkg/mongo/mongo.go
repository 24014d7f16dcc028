package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type Config struct {
	URI            string `split_words:"true" required:"true"`
	Database       string `split_words:"true" default:"hermitai"`
	ConnectTimeout int    `split_words:"true" default:"10"`
	MaxPoolSize    uint64 `split_words:"true" default:"20"`
}

// New connects to MongoDB and verifies the primary is reachable.
func (c *Config) New(ctx context.Context) (*mongo.Client, error) {
	timeout := time.Duration(c.ConnectTimeout) * time.Second

	opts := options.Client().
		ApplyURI(c.URI).
		SetConnectTimeout(timeout).
		SetMaxPoolSize(c.MaxPoolSize)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return client, nil
}

// DB returns the configured database handle.
func (c *Config) DB(client *mongo.Client) *mongo.Database {
	return client.Database(c.Database)
}
