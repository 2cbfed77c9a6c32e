package miharu

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
)

// FilterCompiler resolves an opaque filter specification into the match
// predicate at the head of every pipeline and the collection (or view) to
// run it against. When provided via WithFilterCompiler, replaces the
// built-in structured-field compiler. The aggregation core does not
// validate filter syntax; that responsibility lives entirely here.
type FilterCompiler interface {
	Compile(ctx context.Context, projectID string, filters Filters, baseCollection string) (bson.M, string, error)
}

// Backfiller precomputes derived fields (session_length, task_position)
// onto stored records before a derived dimension queries them. When
// provided via WithBackfiller, replaces the store-backed default.
// Implementations must be idempotent: the computed values are pure
// functions of committed data, so concurrent redundant backfills are safe.
type Backfiller interface {
	SessionLength(ctx context.Context, projectID string) error
	TaskPosition(ctx context.Context, projectID string) error
}
