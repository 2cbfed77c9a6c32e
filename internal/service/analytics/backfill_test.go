package analytics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/miharu-ai/miharu/internal/store"
)

func TestStoreBackfiller_SessionLength(t *testing.T) {
	st := &fakeStore{}
	bf := NewStoreBackfiller(st, testLogger())

	require.NoError(t, bf.SessionLength(context.Background(), "p1"))

	require.Len(t, st.calls, 1)
	call := st.calls[0]
	assert.Equal(t, store.CollectionTasks, call.collection)
	// A backfill writes back every row; the result cap does not apply.
	assert.Equal(t, int64(0), call.limit)

	match := call.pipeline[0]["$match"].(bson.M)
	assert.Equal(t, "p1", match["project_id"])
	// Orphan tasks without a session never produce a session row.
	assert.Equal(t, bson.M{"$ne": nil}, match["session_id"])

	group := call.pipeline[1]["$group"].(bson.M)
	assert.Equal(t, "$session_id", group["_id"])
	assert.Equal(t, bson.M{"$sum": 1}, group["session_length"])

	merge := call.pipeline[len(call.pipeline)-1]["$merge"].(bson.M)
	assert.Equal(t, store.CollectionSessions, merge["into"])
	assert.Equal(t, "id", merge["on"])
	assert.Equal(t, "merge", merge["whenMatched"])
	// Counts never create sessions that were not recorded.
	assert.Equal(t, "discard", merge["whenNotMatched"])
}

func TestStoreBackfiller_TaskPosition(t *testing.T) {
	st := &fakeStore{}
	bf := NewStoreBackfiller(st, testLogger())

	require.NoError(t, bf.TaskPosition(context.Background(), "p1"))

	require.Len(t, st.calls, 1)
	call := st.calls[0]
	assert.Equal(t, store.CollectionTasks, call.collection)

	window := call.pipeline[1]["$setWindowFields"].(bson.M)
	assert.Equal(t, "$session_id", window["partitionBy"])
	assert.Equal(t, bson.M{"created_at": 1}, window["sortBy"])
	// documentNumber is 1-based: the first task of a session gets 1.
	output := window["output"].(bson.M)
	assert.Equal(t, bson.M{"$documentNumber": bson.M{}}, output["task_position"])

	merge := call.pipeline[len(call.pipeline)-1]["$merge"].(bson.M)
	assert.Equal(t, store.CollectionTasks, merge["into"])
	assert.Equal(t, "id", merge["on"])
}

func TestStoreBackfiller_PropagatesStoreError(t *testing.T) {
	st := &fakeStore{
		aggregateFn: func(string, []bson.M, int64) ([]bson.M, error) {
			return nil, assert.AnError
		},
	}
	bf := NewStoreBackfiller(st, testLogger())

	require.ErrorIs(t, bf.SessionLength(context.Background(), "p1"), assert.AnError)
	require.ErrorIs(t, bf.TaskPosition(context.Background(), "p1"), assert.AnError)
}
