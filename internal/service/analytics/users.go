package analytics

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/miharu-ai/miharu/internal/model"
	"github.com/miharu-ai/miharu/internal/store"
)

// UserProfiles rolls up per-user statistics across the project's tasks:
// task count, average success rate, total token usage, and the
// deduplicated sessions and events the user touched. When userID is
// non-nil the rollup is restricted to that user and an empty result is
// ErrNotFound rather than an empty success. Results are sorted ascending
// by user id.
func (s *Service) UserProfiles(ctx context.Context, projectID string, userID *string) ([]model.UserProfile, error) {
	var match bson.M
	if userID != nil {
		match = bson.M{"project_id": projectID, "metadata.user_id": *userID}
	} else {
		match = bson.M{"project_id": projectID, "metadata.user_id": bson.M{"$ne": nil}}
	}

	pipeline := []bson.M{
		{"$match": match},
		{"$set": bson.M{
			"is_success": bson.M{"$cond": []any{
				bson.M{"$eq": []any{"$flag", model.FlagSuccess}}, 1, 0,
			}},
			// Missing token counts default to 0 so they sum cleanly.
			"metadata.total_tokens": bson.M{"$cond": []any{
				bson.M{"$eq": []any{bson.M{"$type": "$metadata.total_tokens"}, "missing"}},
				0,
				"$metadata.total_tokens",
			}},
		}},
		{"$group": bson.M{
			"_id":              "$metadata.user_id",
			"nb_tasks":         bson.M{"$sum": 1},
			"avg_success_rate": bson.M{"$avg": "$is_success"},
			"tasks":            bson.M{"$push": "$$ROOT"},
			"total_tokens":     bson.M{"$sum": "$metadata.total_tokens"},
			"events":           bson.M{"$push": "$events"},
		}},
		{"$lookup": bson.M{
			"from":         store.CollectionSessions,
			"localField":   "tasks.session_id",
			"foreignField": "id",
			"as":           "sessions",
		}},
		// events is a pushed array of per-task event arrays; flatten it.
		{"$set": bson.M{
			"events": bson.M{"$reduce": bson.M{
				"input":        "$events",
				"initialValue": []any{},
				"in":           bson.M{"$setUnion": []any{"$$value", "$$this"}},
			}},
		}},
		{"$addFields": bson.M{
			"events":   bson.M{"$ifNull": []any{"$events", []any{}}},
			"sessions": bson.M{"$ifNull": []any{"$sessions", []any{}}},
		}},
		// Deduplicate events by event_name and sessions by id. First
		// occurrence wins, keeping that occurrence's full record.
		{"$addFields": bson.M{
			"events":   dedupByKey("$events", "event_name"),
			"sessions": dedupByKey("$sessions", "id"),
		}},
		{"$project": bson.M{
			"user_id":            "$_id",
			"nb_tasks":           1,
			"avg_success_rate":   1,
			"avg_session_length": bson.M{"$avg": "$sessions.session_length"},
			"events":             1,
			"tasks_id":           "$tasks.id",
			"sessions":           1,
			"total_tokens":       1,
		}},
		{"$sort": bson.M{"user_id": 1}},
	}

	docs, err := s.store.Aggregate(ctx, store.CollectionTasks, pipeline, 0)
	if err != nil {
		return nil, err
	}
	if userID != nil && len(docs) == 0 {
		return nil, fmt.Errorf("analytics: user %s: %w", *userID, model.ErrNotFound)
	}

	profiles, err := store.DecodeAll[model.UserProfile](docs)
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

// dedupByKey folds an array keeping only the first element seen for each
// value of key.
func dedupByKey(input, key string) bson.M {
	return bson.M{"$reduce": bson.M{
		"input":        input,
		"initialValue": []any{},
		"in": bson.M{"$concatArrays": []any{
			"$$value",
			bson.M{"$cond": []any{
				bson.M{"$in": []any{"$$this." + key, "$$value." + key}},
				[]any{},
				[]any{"$$this"},
			}},
		}},
	}}
}
