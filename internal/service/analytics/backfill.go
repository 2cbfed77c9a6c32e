package analytics

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/miharu-ai/miharu/internal/store"
)

// Backfiller precomputes derived fields onto stored records before they
// are queried. Both operations are pure functions of already-committed
// data: recomputation yields the same values, so concurrent redundant
// backfills are safe (last writer writes the same value) and callers may
// retry blindly.
type Backfiller interface {
	// SessionLength writes session_length (the number of tasks in the
	// session) onto every session of the project.
	SessionLength(ctx context.Context, projectID string) error

	// TaskPosition writes task_position (the 1-based rank of the task
	// within its session, ordered by created_at) onto every task of the
	// project.
	TaskPosition(ctx context.Context, projectID string) error
}

// StoreBackfiller computes derived fields store-side: each backfill is a
// single aggregation ending in a $merge, so an aborted call leaves no
// partial pipeline writes and completed writes are idempotent.
type StoreBackfiller struct {
	store  store.Store
	logger *slog.Logger
}

var _ Backfiller = (*StoreBackfiller)(nil)

// NewStoreBackfiller creates the default store-backed Backfiller.
func NewStoreBackfiller(st store.Store, logger *slog.Logger) *StoreBackfiller {
	return &StoreBackfiller{store: st, logger: logger}
}

// SessionLength counts tasks per session and merges the counts onto the
// sessions collection, keyed by session id.
func (b *StoreBackfiller) SessionLength(ctx context.Context, projectID string) error {
	pipeline := []bson.M{
		{"$match": bson.M{
			"project_id": projectID,
			"session_id": bson.M{"$ne": nil},
		}},
		{"$group": bson.M{
			"_id":            "$session_id",
			"session_length": bson.M{"$sum": 1},
		}},
		{"$project": bson.M{
			"_id":            0,
			"id":             "$_id",
			"session_length": 1,
		}},
		{"$merge": bson.M{
			"into":           store.CollectionSessions,
			"on":             "id",
			"whenMatched":    "merge",
			"whenNotMatched": "discard",
		}},
	}
	if _, err := b.store.Aggregate(ctx, store.CollectionTasks, pipeline, 0); err != nil {
		return fmt.Errorf("backfill session_length: %w", err)
	}
	b.logger.Debug("session_length backfill done", "project_id", projectID)
	return nil
}

// TaskPosition ranks tasks within each session by created_at and merges
// the positions back onto the tasks collection.
func (b *StoreBackfiller) TaskPosition(ctx context.Context, projectID string) error {
	pipeline := []bson.M{
		{"$match": bson.M{
			"project_id": projectID,
			"session_id": bson.M{"$ne": nil},
		}},
		{"$setWindowFields": bson.M{
			"partitionBy": "$session_id",
			"sortBy":      bson.M{"created_at": 1},
			"output": bson.M{
				"task_position": bson.M{"$documentNumber": bson.M{}},
			},
		}},
		{"$project": bson.M{
			"_id":           0,
			"id":            1,
			"task_position": 1,
		}},
		{"$merge": bson.M{
			"into":           store.CollectionTasks,
			"on":             "id",
			"whenMatched":    "merge",
			"whenNotMatched": "discard",
		}},
	}
	if _, err := b.store.Aggregate(ctx, store.CollectionTasks, pipeline, 0); err != nil {
		return fmt.Errorf("backfill task_position: %w", err)
	}
	b.logger.Debug("task_position backfill done", "project_id", projectID)
	return nil
}
