package analytics

import (
	"context"
	"io"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/miharu-ai/miharu/internal/filter"
)

// aggregateCall records one Store.Aggregate invocation.
type aggregateCall struct {
	collection string
	pipeline   []bson.M
	limit      int64
}

// fakeStore records pipeline executions and replays canned results.
type fakeStore struct {
	calls       []aggregateCall
	aggregateFn func(collection string, pipeline []bson.M, limit int64) ([]bson.M, error)
	distinctFn  func(collection, key string, filter bson.M) ([]any, error)
}

func (f *fakeStore) Aggregate(_ context.Context, collection string, pipeline []bson.M, limit int64) ([]bson.M, error) {
	f.calls = append(f.calls, aggregateCall{collection: collection, pipeline: pipeline, limit: limit})
	if f.aggregateFn != nil {
		return f.aggregateFn(collection, pipeline, limit)
	}
	return nil, nil
}

func (f *fakeStore) Distinct(_ context.Context, collection, key string, filter bson.M) ([]any, error) {
	if f.distinctFn != nil {
		return f.distinctFn(collection, key, filter)
	}
	return nil, nil
}

// fakeBackfiller records which backfills were triggered.
type fakeBackfiller struct {
	sessionLengthCalls []string
	taskPositionCalls  []string
}

func (f *fakeBackfiller) SessionLength(_ context.Context, projectID string) error {
	f.sessionLengthCalls = append(f.sessionLengthCalls, projectID)
	return nil
}

func (f *fakeBackfiller) TaskPosition(_ context.Context, projectID string) error {
	f.taskPositionCalls = append(f.taskPositionCalls, projectID)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(st *fakeStore, bf *fakeBackfiller) *Service {
	return New(st, filter.Default{}, bf, testLogger())
}

// stageKeys lists the leading operator of every pipeline stage, in order.
func stageKeys(pipeline []bson.M) []string {
	keys := make([]string, 0, len(pipeline))
	for _, stage := range pipeline {
		for k := range stage {
			keys = append(keys, k)
		}
	}
	return keys
}
