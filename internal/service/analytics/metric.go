package analytics

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/miharu-ai/miharu/internal/model"
)

// compileMetric appends the accumulation stage(s) that turn the prepared
// pipeline into (breakdown_by, metric[, stack]) rows. It is a pure
// function of its inputs: any backfill or join the metric depends on has
// already been applied by the assembler.
//
// numberFields is the numeric classification (reserved plus discovered)
// used to validate sum/avg requests.
func compileMetric(m model.Metric, metadataField, breakdownCol string, numberFields map[string]bool) ([]bson.M, error) {
	groupKey := "$" + breakdownCol

	switch m {
	case model.MetricNbMessages:
		return []bson.M{
			{"$group": bson.M{
				"_id":    groupKey,
				"metric": bson.M{"$sum": 1},
			}},
			projectBreakdown(),
		}, nil

	case model.MetricNbSessions:
		// Distinct session count: set cardinality, not raw count.
		return []bson.M{
			{"$group": bson.M{
				"_id":    groupKey,
				"metric": bson.M{"$addToSet": "$session_id"},
			}},
			{"$project": bson.M{
				"breakdown_by": "$_id",
				"metric":       bson.M{"$size": "$metric"},
			}},
		}, nil

	case model.MetricAvgSuccessRate:
		// Records without a flag are excluded, not counted as failures.
		return []bson.M{
			{"$match": bson.M{"flag": bson.M{"$exists": true, "$ne": nil}}},
			{"$set": bson.M{
				"is_success": bson.M{"$cond": []any{
					bson.M{"$eq": []any{"$flag", model.FlagSuccess}}, 1, 0,
				}},
			}},
			{"$group": bson.M{
				"_id":    groupKey,
				"metric": bson.M{"$avg": "$is_success"},
			}},
			projectBreakdown(),
		}, nil

	case model.MetricAvgSessionLength:
		return []bson.M{
			{"$group": bson.M{
				"_id":    groupKey,
				"metric": bson.M{"$avg": "$session_length"},
			}},
			projectBreakdown(),
		}, nil

	case model.MetricTagsCount, model.MetricTagsDistribution:
		return compileTagStack(m, groupKey), nil

	case model.MetricSum, model.MetricAvg:
		if !numberFields[metadataField] {
			return nil, fmt.Errorf("analytics: %s on %q: %w", m, metadataField, model.ErrInvalidMetricField)
		}
		acc := "$sum"
		if m == model.MetricAvg {
			acc = "$avg"
		}
		col := "metadata." + metadataField
		return []bson.M{
			// Records lacking the field are excluded, not treated as zero.
			{"$match": bson.M{col: bson.M{"$exists": true, "$ne": nil}}},
			{"$group": bson.M{
				"_id":    groupKey,
				"metric": bson.M{acc: "$" + col},
			}},
			projectBreakdown(),
		}, nil

	default:
		return nil, fmt.Errorf("analytics: metric %d: %w", int(m), model.ErrUnknownMetric)
	}
}

// compileTagStack builds the shared grouping for tags_count and
// tags_distribution: explode qualifying tag events, count per (breakdown,
// tag) pair, then fold the pairs into a per-breakdown stack object. For
// the distribution variant each count is divided by the breakdown total,
// so the stack values sum to 1.
func compileTagStack(m model.Metric, groupKey string) []bson.M {
	stackValue := any("$$event.metric")
	if m == model.MetricTagsDistribution {
		stackValue = bson.M{"$divide": []any{"$$event.metric", "$total"}}
	}
	return append(tagExplosionStages(),
		bson.M{"$group": bson.M{
			"_id": bson.M{
				"breakdown_by": groupKey,
				"event_name":   "$events.event_name",
			},
			"metric": bson.M{"$sum": 1},
		}},
		bson.M{"$group": bson.M{
			"_id": "$_id.breakdown_by",
			"events": bson.M{"$push": bson.M{
				"event_name": "$_id.event_name",
				"metric":     "$metric",
			}},
			"total": bson.M{"$sum": "$metric"},
		}},
		bson.M{"$project": bson.M{
			"breakdown_by": "$_id",
			"stack": bson.M{
				"$arrayToObject": bson.M{
					"$map": bson.M{
						"input": "$events",
						"as":    "event",
						"in": bson.M{
							"k": "$$event.event_name",
							"v": stackValue,
						},
					},
				},
			},
		}},
	)
}

// projectBreakdown renames the group key to breakdown_by and keeps the
// metric.
func projectBreakdown() bson.M {
	return bson.M{"$project": bson.M{
		"breakdown_by": "$_id",
		"metric":       1,
	}}
}
