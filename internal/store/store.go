// Package store abstracts the document database behind the aggregation
// compiler. The core builds ordered pipeline stages and hands them to a
// Store; only the Mongo adapter in this package knows the wire protocol.
package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// Collection names used by the analytics pipelines. tasks_with_events is a
// view maintained by the ingestion pipeline that denormalizes each task
// with its attached events.
const (
	CollectionTasks           = "tasks"
	CollectionSessions        = "sessions"
	CollectionTasksWithEvents = "tasks_with_events"
)

// Store executes aggregation pipelines against a named collection.
//
// Aggregate runs the ordered stages and decodes at most limit result
// documents (limit <= 0 means unbounded — used for pipelines that end in a
// $merge and return nothing). Execution is all-or-nothing from the store's
// perspective: an aborted call leaves no partial pipeline writes.
//
// Distinct returns the distinct values of key across documents matching
// filter.
type Store interface {
	Aggregate(ctx context.Context, collection string, pipeline []bson.M, limit int64) ([]bson.M, error)
	Distinct(ctx context.Context, collection, key string, filter bson.M) ([]any, error)
}

// DecodeAll round-trips raw aggregation output documents into typed values.
func DecodeAll[T any](docs []bson.M) ([]T, error) {
	out := make([]T, 0, len(docs))
	for i, doc := range docs {
		raw, err := bson.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("store: marshal document %d: %w", i, err)
		}
		var v T
		if err := bson.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("store: decode document %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}
