// Package filter defines the filter-compiler collaborator. The aggregation
// core delegates predicate construction here: given a project and a
// structured filter specification, a Compiler yields the match predicate
// for the head of the pipeline and the collection (or view) to run it
// against. The full predicate language lives outside this repository; the
// Default compiler covers the structured fields of model.TaskFilters.
package filter

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/miharu-ai/miharu/internal/model"
)

// Compiler builds the leading match predicate of an aggregation pipeline.
type Compiler interface {
	Compile(ctx context.Context, projectID string, filters model.TaskFilters, baseCollection string) (bson.M, string, error)
}

// Default translates model.TaskFilters field by field. Unset fields add no
// clauses; the base collection passes through unchanged.
type Default struct{}

var _ Compiler = Default{}

// Compile builds the match predicate for the given filters.
func (Default) Compile(_ context.Context, projectID string, filters model.TaskFilters, baseCollection string) (bson.M, string, error) {
	match := bson.M{"project_id": projectID}

	if tr := filters.TimeRange; tr != nil {
		createdAt := bson.M{}
		if tr.From != nil {
			createdAt["$gte"] = *tr.From
		}
		if tr.To != nil {
			createdAt["$lte"] = *tr.To
		}
		if len(createdAt) > 0 {
			match["created_at"] = createdAt
		}
	}
	if filters.Flag != nil {
		match["flag"] = *filters.Flag
	}
	if filters.SessionID != nil {
		match["session_id"] = *filters.SessionID
	}
	if filters.EventName != nil {
		match["events.event_name"] = *filters.EventName
	}
	for key, value := range filters.Metadata {
		match["metadata."+key] = value
	}

	return match, baseCollection, nil
}
