package analytics

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/miharu-ai/miharu/internal/model"
)

// CountDistinctMetadataValues counts the distinct non-null values of
// metadata.<field> for the project.
func (s *Service) CountDistinctMetadataValues(ctx context.Context, projectID, collection, field string) (int, error) {
	col := "metadata." + field
	values, err := s.store.Distinct(ctx, collection, col, bson.M{
		"project_id": projectID,
		col:          bson.M{"$ne": nil},
	})
	if err != nil {
		return 0, fmt.Errorf("analytics: count distinct %s: %w", field, err)
	}
	return len(values), nil
}

// AverageTasksPerMetadataValue returns the average number of documents per
// distinct metadata.<field> value. ErrNotFound when no document carries
// the field.
func (s *Service) AverageTasksPerMetadataValue(ctx context.Context, projectID, collection, field string) (float64, error) {
	col := "metadata." + field
	pipeline := []bson.M{
		{"$match": bson.M{
			"project_id": projectID,
			col:          bson.M{"$exists": true},
		}},
		{"$group": bson.M{"_id": "$" + col, "count": bson.M{"$sum": 1}}},
		{"$group": bson.M{"_id": nil, "average": bson.M{"$avg": "$count"}}},
	}
	docs, err := s.store.Aggregate(ctx, collection, pipeline, 0)
	if err != nil {
		return 0, fmt.Errorf("analytics: average per %s: %w", field, err)
	}
	if len(docs) == 0 {
		return 0, fmt.Errorf("analytics: average per %s: %w", field, model.ErrNotFound)
	}
	avg, ok := docs[0]["average"].(float64)
	if !ok {
		return 0, fmt.Errorf("analytics: average per %s: %w", field, model.ErrNotFound)
	}
	return avg, nil
}

// TopDecileCount returns the document count of the group at the top 10%
// threshold when grouping by groupKey (e.g. "metadata.user_id").
func (s *Service) TopDecileCount(ctx context.Context, projectID, collection, groupKey string) (int64, error) {
	return s.decileCount(ctx, projectID, collection, groupKey, true)
}

// BottomDecileCount returns the document count of the group at the bottom
// 10% threshold when grouping by groupKey.
func (s *Service) BottomDecileCount(ctx context.Context, projectID, collection, groupKey string) (int64, error) {
	return s.decileCount(ctx, projectID, collection, groupKey, false)
}

// decileCount is an explicit two-pass ranking: materialize the sorted
// per-group counts, then index into the sorted sequence at the 10%
// threshold in process. The group key is always an explicit parameter.
func (s *Service) decileCount(ctx context.Context, projectID, collection, groupKey string, top bool) (int64, error) {
	order := 1
	if top {
		order = -1
	}
	pipeline := []bson.M{
		{"$match": bson.M{
			"project_id": projectID,
			groupKey:     bson.M{"$exists": true},
		}},
		{"$group": bson.M{"_id": "$" + groupKey, "count": bson.M{"$sum": 1}}},
		{"$sort": bson.M{"count": order}},
	}
	docs, err := s.store.Aggregate(ctx, collection, pipeline, 0)
	if err != nil {
		return 0, fmt.Errorf("analytics: decile by %s: %w", groupKey, err)
	}
	if len(docs) == 0 {
		return 0, fmt.Errorf("analytics: decile by %s: %w", groupKey, model.ErrNotFound)
	}

	counts, err := decodeCounts(docs)
	if err != nil {
		return 0, err
	}
	return counts[decileIndex(len(counts), top)], nil
}

// decileIndex locates the 10% threshold in a sorted sequence of n group
// counts. The top variant sorts descending and backs off one position so a
// group exactly at the boundary is included; the bottom variant sorts
// ascending. Both clamp into [0, n-1].
func decileIndex(n int, top bool) int {
	idx := n / 10
	if top {
		idx--
	}
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return idx
}

func decodeCounts(docs []bson.M) ([]int64, error) {
	counts := make([]int64, 0, len(docs))
	for i, doc := range docs {
		switch v := doc["count"].(type) {
		case int32:
			counts = append(counts, int64(v))
		case int64:
			counts = append(counts, v)
		case float64:
			counts = append(counts, int64(v))
		default:
			return nil, fmt.Errorf("analytics: decile row %d: unexpected count type %T", i, doc["count"])
		}
	}
	return counts, nil
}
