package analytics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/miharu-ai/miharu/internal/model"
)

func TestUserProfiles_PipelineShape(t *testing.T) {
	st := &fakeStore{}
	svc := newTestService(st, &fakeBackfiller{})

	_, err := svc.UserProfiles(context.Background(), "p1", nil)
	require.NoError(t, err)

	require.Len(t, st.calls, 1)
	pipeline := st.calls[0].pipeline

	// Without a user id, null user_ids are excluded rather than grouped.
	match := pipeline[0]["$match"].(bson.M)
	assert.Equal(t, bson.M{"$ne": nil}, match["metadata.user_id"])

	group := findStage(t, pipeline, "$group")
	assert.Equal(t, "$metadata.user_id", group["_id"])
	assert.Equal(t, bson.M{"$sum": 1}, group["nb_tasks"])
	assert.Equal(t, bson.M{"$sum": "$metadata.total_tokens"}, group["total_tokens"])

	// Result sorted ascending by user_id.
	last := pipeline[len(pipeline)-1]
	assert.Equal(t, bson.M{"user_id": 1}, last["$sort"])
}

func TestUserProfiles_SingleUser(t *testing.T) {
	st := &fakeStore{
		aggregateFn: func(_ string, _ []bson.M, _ int64) ([]bson.M, error) {
			return []bson.M{{
				"user_id":          "u1",
				"nb_tasks":         int32(3),
				"avg_success_rate": 2.0 / 3.0,
				"total_tokens":     int64(450),
				"events": []any{
					bson.M{"event_name": "helpful"},
				},
				"sessions": []any{
					bson.M{"id": "s1", "project_id": "p1", "session_length": int32(3)},
				},
				"tasks_id": []any{"t1", "t2", "t3"},
			}}, nil
		},
	}
	svc := newTestService(st, &fakeBackfiller{})

	userID := "u1"
	profiles, err := svc.UserProfiles(context.Background(), "p1", &userID)
	require.NoError(t, err)
	require.Len(t, profiles, 1)

	p := profiles[0]
	assert.Equal(t, "u1", p.UserID)
	assert.Equal(t, 3, p.NbTasks)
	assert.InDelta(t, 0.6667, p.AvgSuccessRate, 1e-3)
	assert.Equal(t, int64(450), p.TotalTokens)
	assert.Equal(t, []string{"t1", "t2", "t3"}, p.TaskIDs)
	require.Len(t, p.Sessions, 1)
	assert.Equal(t, "s1", p.Sessions[0].ID)

	// The restricting match carries the user id.
	match := st.calls[0].pipeline[0]["$match"].(bson.M)
	assert.Equal(t, "u1", match["metadata.user_id"])
}

func TestUserProfiles_UnknownUser(t *testing.T) {
	svc := newTestService(&fakeStore{}, &fakeBackfiller{})

	userID := "ghost"
	_, err := svc.UserProfiles(context.Background(), "p1", &userID)
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestDedupByKey(t *testing.T) {
	expr := dedupByKey("$events", "event_name")
	reduce := expr["$reduce"].(bson.M)
	assert.Equal(t, "$events", reduce["input"])

	// First occurrence wins: the conditional appends nothing when the key
	// was already seen.
	cond := reduce["in"].(bson.M)["$concatArrays"].([]any)[1].(bson.M)["$cond"].([]any)
	assert.Equal(t, bson.M{"$in": []any{"$$this.event_name", "$$value.event_name"}}, cond[0])
	assert.Equal(t, []any{}, cond[1])
	assert.Equal(t, []any{"$$this"}, cond[2])
}
