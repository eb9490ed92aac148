package aqm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const defaultMongoConnectTimeout = 10 * time.Second

var errMongoNotConnected = errors.New("mongo: client not connected")

// MongoConfig holds what a service needs to reach its database.
type MongoConfig struct {
	URI            string
	Database       string
	AppName        string
	ConnectTimeout time.Duration
	MaxPoolSize    uint64
	// StrictAPI pins Stable API v1 in strict mode, as Atlas clusters expect.
	StrictAPI bool
}

func (c MongoConfig) validate() error {
	var errs []error
	if strings.TrimSpace(c.URI) == "" {
		errs = append(errs, errors.New("mongo: uri is required"))
	}
	if strings.TrimSpace(c.Database) == "" {
		errs = append(errs, errors.New("mongo: database is required"))
	}
	return errors.Join(errs...)
}

func (c MongoConfig) connectTimeout() time.Duration {
	if c.ConnectTimeout <= 0 {
		return defaultMongoConnectTimeout
	}
	return c.ConnectTimeout
}

func (c MongoConfig) clientOptions() *options.ClientOptions {
	opts := options.Client().
		ApplyURI(c.URI).
		SetServerSelectionTimeout(c.connectTimeout())
	if c.AppName != "" {
		opts.SetAppName(c.AppName)
	}
	if c.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(c.MaxPoolSize)
	}
	if c.StrictAPI {
		api := options.ServerAPI(options.ServerAPIVersion1).SetStrict(true).SetDeprecationErrors(true)
		opts.SetServerAPIOptions(api)
	}
	return opts
}

// MongoClient owns one driver client bound to a single database.
type MongoClient struct {
	client *mongo.Client
	dbName string
}

// NewMongoClient connects and pings the primary within the connect timeout.
// The client is disconnected again if the ping fails.
func NewMongoClient(ctx context.Context, cfg MongoConfig) (*MongoClient, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.connectTimeout())
	defer cancel()

	client, err := mongo.Connect(ctx, cfg.clientOptions())
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return &MongoClient{client: client, dbName: cfg.Database}, nil
}

func (m *MongoClient) Database() *mongo.Database {
	return m.client.Database(m.dbName)
}

func (m *MongoClient) Collection(name string) *mongo.Collection {
	return m.Database().Collection(name)
}

// Ping reports whether the primary answers.
func (m *MongoClient) Ping(ctx context.Context) error {
	if m == nil || m.client == nil {
		return errMongoNotConnected
	}
	return m.client.Ping(ctx, readpref.Primary())
}

// Disconnect is a no-op on a nil client.
func (m *MongoClient) Disconnect(ctx context.Context) error {
	if m == nil || m.client == nil {
		return nil
	}
	return m.client.Disconnect(ctx)
}
