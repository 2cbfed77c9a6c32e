package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Mongo is the MongoDB-backed Store.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
	logger *slog.Logger
}

var _ Store = (*Mongo)(nil)

// NewMongo connects to MongoDB and verifies the connection with a ping.
func NewMongo(ctx context.Context, uri, database string, logger *slog.Logger) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	return &Mongo{
		client: client,
		db:     client.Database(database),
		logger: logger,
	}, nil
}

// Close disconnects the underlying client.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// Database exposes the wrapped database handle for fixture tooling.
func (m *Mongo) Database() *mongo.Database {
	return m.db
}

// Aggregate executes the pipeline against collection and decodes at most
// limit documents. limit <= 0 decodes everything the cursor yields, which
// for $merge-terminated pipelines is nothing.
func (m *Mongo) Aggregate(ctx context.Context, collection string, pipeline []bson.M, limit int64) ([]bson.M, error) {
	start := time.Now()
	cursor, err := m.db.Collection(collection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("store: aggregate %s: %w", collection, err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	var docs []bson.M
	for cursor.Next(ctx) {
		if limit > 0 && int64(len(docs)) >= limit {
			break
		}
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("store: decode %s result: %w", collection, err)
		}
		docs = append(docs, doc)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("store: aggregate %s cursor: %w", collection, err)
	}

	m.logger.Debug("aggregate done",
		"collection", collection,
		"stages", len(pipeline),
		"rows", len(docs),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return docs, nil
}

// Distinct returns the distinct values of key across documents matching
// filter.
func (m *Mongo) Distinct(ctx context.Context, collection, key string, filter bson.M) ([]any, error) {
	values, err := m.db.Collection(collection).Distinct(ctx, key, filter)
	if err != nil {
		return nil, fmt.Errorf("store: distinct %s.%s: %w", collection, key, err)
	}
	return values, nil
}
