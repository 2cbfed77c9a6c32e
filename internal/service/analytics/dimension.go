package analytics

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/miharu-ai/miharu/internal/model"
	"github.com/miharu-ai/miharu/internal/store"
)

// timePeriodField is the computed column holding a calendar bucket key.
const timePeriodField = "time_period"

// resolveDimension materializes the breakdown dimension: it returns the
// stages to append to the pipeline before grouping and the column the
// group stage keys on. Derived dimensions may trigger an idempotent
// backfill as a side effect.
func (s *Service) resolveDimension(ctx context.Context, projectID string, dim model.Dimension, categoryFields map[string]bool) ([]bson.M, string, error) {
	switch dim.Kind {
	case model.DimensionNone:
		// One row per record.
		return nil, "id", nil

	case model.DimensionDay, model.DimensionWeek, model.DimensionMonth:
		return []bson.M{timeBucketStage(dim.Kind)}, timePeriodField, nil

	case model.DimensionSessionLength:
		if err := s.backfiller.SessionLength(ctx, projectID); err != nil {
			return nil, "", fmt.Errorf("analytics: session length backfill: %w", err)
		}
		return sessionJoinStages(), "session_length", nil

	case model.DimensionTaskPosition:
		if err := s.backfiller.TaskPosition(ctx, projectID); err != nil {
			return nil, "", fmt.Errorf("analytics: task position backfill: %w", err)
		}
		return nil, "task_position", nil

	case model.DimensionTaggerName:
		// Explode events before grouping so a task with N qualifying tags
		// contributes N grouped rows.
		return tagExplosionStages(), "events.event_name", nil

	case model.DimensionField:
		if categoryFields[dim.Field] {
			return nil, "metadata." + dim.Field, nil
		}
		// Literal stored field path.
		return nil, dim.Field, nil

	default:
		return nil, "", fmt.Errorf("analytics: dimension kind %d: %w", dim.Kind, model.ErrUnsupportedOperation)
	}
}

// timeBucketStage truncates created_at (epoch seconds) to a calendar
// bucket string. Seconds are multiplied to milliseconds before date
// conversion; ties within the same bucket merge at the group stage.
func timeBucketStage(kind model.DimensionKind) bson.M {
	var format string
	switch kind {
	case model.DimensionWeek:
		format = "%Y-%U"
	case model.DimensionMonth:
		format = "%Y-%B"
	default:
		format = "%Y-%m-%d"
	}
	return bson.M{"$addFields": bson.M{
		timePeriodField: bson.M{
			"$dateToString": bson.M{
				"date": bson.M{
					"$toDate": bson.M{
						"$convert": bson.M{
							"input": bson.M{"$multiply": []any{"$created_at", 1000}},
							"to":    "long",
						},
					},
				},
				"format": format,
			},
		},
	}}
}

// sessionJoinStages joins each task with its session and projects the
// joined session_length. The unwind drops tasks without a matching
// session (inner semantics).
func sessionJoinStages() []bson.M {
	return []bson.M{
		{"$lookup": bson.M{
			"from":         store.CollectionSessions,
			"localField":   "session_id",
			"foreignField": "id",
			"as":           "session",
		}},
		{"$addFields": bson.M{
			"session": bson.M{"$ifNull": []any{"$session", []any{}}},
		}},
		{"$unwind": "$session"},
		{"$set": bson.M{"session_length": "$session.session_length"}},
	}
}

// ensureSessionJoin appends the session join unless the pipeline already
// contains a lookup against the sessions collection.
func ensureSessionJoin(pipeline []bson.M) []bson.M {
	for _, stage := range pipeline {
		lookup, ok := stage["$lookup"].(bson.M)
		if ok && lookup["from"] == store.CollectionSessions {
			return pipeline
		}
	}
	return append(pipeline, sessionJoinStages()...)
}

// tagExplosionStages unwinds the events array and keeps only
// confidence-scored tag events.
func tagExplosionStages() []bson.M {
	return []bson.M{
		{"$unwind": "$events"},
		{"$match": bson.M{
			"events.event_definition.score_range_settings.score_type": model.ScoreTypeConfidence,
		}},
	}
}
