package analytics

import (
	"context"
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/miharu-ai/miharu/internal/model"
	"github.com/miharu-ai/miharu/internal/store"
)

// metadataDoc is the projection fetched by schema discovery.
type metadataDoc struct {
	Metadata map[string]any `bson:"metadata"`
}

// fetchMetadataMaps scans the project's non-empty metadata maps. The scan
// runs fresh on every call so classification reflects live data; callers
// that need both kinds within one request should fetch once and classify
// twice.
func (s *Service) fetchMetadataMaps(ctx context.Context, projectID string) ([]map[string]any, error) {
	pipeline := []bson.M{
		{"$match": bson.M{
			"project_id": projectID,
			"$and": []bson.M{
				{"metadata": bson.M{"$exists": true}},
				{"metadata": bson.M{"$ne": bson.M{}}},
			},
		}},
		{"$project": bson.M{"_id": 0, "metadata": 1}},
	}
	docs, err := s.store.Aggregate(ctx, store.CollectionTasks, pipeline, 0)
	if err != nil {
		return nil, fmt.Errorf("analytics: scan metadata: %w", err)
	}
	typed, err := store.DecodeAll[metadataDoc](docs)
	if err != nil {
		return nil, fmt.Errorf("analytics: scan metadata: %w", err)
	}
	maps := make([]map[string]any, 0, len(typed))
	for _, d := range typed {
		maps = append(maps, d.Metadata)
	}
	return maps, nil
}

// ClassifyMetadataFields returns the metadata keys whose values match kind
// anywhere in the project, sorted ascending. A key carrying mixed types
// across documents appears in every kind it matches; this is accepted, not
// reconciled.
func (s *Service) ClassifyMetadataFields(ctx context.Context, projectID string, kind model.ValueKind) ([]string, error) {
	if kind != model.KindNumber && kind != model.KindText {
		return nil, fmt.Errorf("analytics: classify kind %s: %w", kind, model.ErrUnsupportedOperation)
	}
	maps, err := s.fetchMetadataMaps(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return classifyKeys(maps, kind), nil
}

// classifyKeys is the pure core of the classifier: flatten every metadata
// map into tagged (key, value) pairs, keep pairs whose value kind matches,
// and deduplicate the keys.
func classifyKeys(maps []map[string]any, kind model.ValueKind) []string {
	seen := make(map[string]bool)
	for _, m := range maps {
		for _, kv := range model.FlattenMetadata(m) {
			if kv.Value.Kind == kind {
				seen[kv.Key] = true
			}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CollectMetadataFieldValues returns, for every categorical metadata key in
// the project, its deduplicated string values sorted ascending. Value
// enumeration is only supported for text fields; number fields fail with
// ErrUnsupportedOperation.
func (s *Service) CollectMetadataFieldValues(ctx context.Context, projectID string, kind model.ValueKind) (map[string][]string, error) {
	if kind != model.KindText {
		return nil, fmt.Errorf("analytics: collect %s values: %w", kind, model.ErrUnsupportedOperation)
	}
	maps, err := s.fetchMetadataMaps(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return collectTextValues(maps), nil
}

// MetadataFieldValues returns the deduplicated string values of one
// categorical metadata key.
func (s *Service) MetadataFieldValues(ctx context.Context, projectID, key string) ([]string, error) {
	values, err := s.CollectMetadataFieldValues(ctx, projectID, model.KindText)
	if err != nil {
		return nil, err
	}
	return values[key], nil
}

// collectTextValues deduplicates (key, value) pairs and groups values by
// key. The task_id key is an ingestion artifact and is skipped.
func collectTextValues(maps []map[string]any) map[string][]string {
	seen := make(map[string]map[string]bool)
	for _, m := range maps {
		for _, kv := range model.FlattenMetadata(m) {
			if kv.Value.Kind != model.KindText || kv.Key == "task_id" {
				continue
			}
			if seen[kv.Key] == nil {
				seen[kv.Key] = make(map[string]bool)
			}
			seen[kv.Key][kv.Value.Text] = true
		}
	}
	out := make(map[string][]string, len(seen))
	for key, values := range seen {
		list := make([]string, 0, len(values))
		for v := range values {
			list = append(list, v)
		}
		sort.Strings(list)
		out[key] = list
	}
	return out
}
