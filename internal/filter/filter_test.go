package filter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/miharu-ai/miharu/internal/model"
)

func TestDefault_Compile(t *testing.T) {
	from := int64(1_700_000_000)
	to := int64(1_700_100_000)
	flag := "success"
	sessionID := "s1"
	eventName := "helpful"

	tests := []struct {
		name    string
		filters model.TaskFilters
		want    bson.M
	}{
		{
			name:    "empty filters match project only",
			filters: model.TaskFilters{},
			want:    bson.M{"project_id": "p1"},
		},
		{
			name: "full time range",
			filters: model.TaskFilters{
				TimeRange: &model.TimeRange{From: &from, To: &to},
			},
			want: bson.M{
				"project_id": "p1",
				"created_at": bson.M{"$gte": from, "$lte": to},
			},
		},
		{
			name: "open-ended time range",
			filters: model.TaskFilters{
				TimeRange: &model.TimeRange{From: &from},
			},
			want: bson.M{
				"project_id": "p1",
				"created_at": bson.M{"$gte": from},
			},
		},
		{
			name: "empty time range adds no clause",
			filters: model.TaskFilters{
				TimeRange: &model.TimeRange{},
			},
			want: bson.M{"project_id": "p1"},
		},
		{
			name: "scalar fields",
			filters: model.TaskFilters{
				Flag:      &flag,
				SessionID: &sessionID,
				EventName: &eventName,
			},
			want: bson.M{
				"project_id":        "p1",
				"flag":              "success",
				"session_id":        "s1",
				"events.event_name": "helpful",
			},
		},
		{
			name: "metadata equality",
			filters: model.TaskFilters{
				Metadata: map[string]string{"language": "en", "version_id": "v2"},
			},
			want: bson.M{
				"project_id":          "p1",
				"metadata.language":   "en",
				"metadata.version_id": "v2",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match, collection, err := Default{}.Compile(context.Background(), "p1", tt.filters, "tasks_with_events")
			require.NoError(t, err)
			assert.Equal(t, tt.want, match)
			assert.Equal(t, "tasks_with_events", collection)
		})
	}
}
