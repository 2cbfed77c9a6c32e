package analytics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/miharu-ai/miharu/internal/model"
	"github.com/miharu-ai/miharu/internal/store"
)

func TestDecileIndex(t *testing.T) {
	tests := []struct {
		n    int
		top  bool
		want int
	}{
		// Too few groups to carve out a decile: clamp to the edge.
		{1, true, 0},
		{1, false, 0},
		{5, true, 0},
		{5, false, 0},
		{10, true, 0},
		{10, false, 1},
		{25, true, 1},
		{25, false, 2},
		{100, true, 9},
		{100, false, 10},
	}
	for _, tt := range tests {
		got := decileIndex(tt.n, tt.top)
		assert.Equal(t, tt.want, got, "decileIndex(%d, top=%v)", tt.n, tt.top)
		assert.GreaterOrEqual(t, got, 0)
		assert.Less(t, got, tt.n)
	}
}

func TestDecileCount(t *testing.T) {
	// Ten groups, counts already sorted by the store according to the
	// requested order.
	desc := make([]bson.M, 0, 10)
	asc := make([]bson.M, 0, 10)
	for i := 0; i < 10; i++ {
		desc = append(desc, bson.M{"_id": "u", "count": int32(100 - 10*i)})
		asc = append(asc, bson.M{"_id": "u", "count": int32(10 + 10*i)})
	}

	st := &fakeStore{}
	svc := newTestService(st, &fakeBackfiller{})

	st.aggregateFn = func(_ string, pipeline []bson.M, _ int64) ([]bson.M, error) {
		sort := pipeline[len(pipeline)-1]["$sort"].(bson.M)
		if sort["count"] == -1 {
			return desc, nil
		}
		return asc, nil
	}

	top, err := svc.TopDecileCount(context.Background(), "p1", store.CollectionTasks, "metadata.user_id")
	require.NoError(t, err)
	assert.Equal(t, int64(100), top)

	bottom, err := svc.BottomDecileCount(context.Background(), "p1", store.CollectionTasks, "metadata.user_id")
	require.NoError(t, err)
	assert.Equal(t, int64(20), bottom)

	// The group key is an explicit parameter for both variants.
	for _, call := range st.calls {
		group := findStage(t, call.pipeline, "$group")
		assert.Equal(t, "$metadata.user_id", group["_id"])
	}
}

func TestDecileCount_Empty(t *testing.T) {
	svc := newTestService(&fakeStore{}, &fakeBackfiller{})
	_, err := svc.TopDecileCount(context.Background(), "p1", store.CollectionTasks, "metadata.user_id")
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestAverageTasksPerMetadataValue(t *testing.T) {
	st := &fakeStore{
		aggregateFn: func(_ string, _ []bson.M, _ int64) ([]bson.M, error) {
			return []bson.M{{"_id": nil, "average": 2.5}}, nil
		},
	}
	svc := newTestService(st, &fakeBackfiller{})

	avg, err := svc.AverageTasksPerMetadataValue(context.Background(), "p1", store.CollectionTasks, "user_id")
	require.NoError(t, err)
	assert.Equal(t, 2.5, avg)
}

func TestAverageTasksPerMetadataValue_Empty(t *testing.T) {
	svc := newTestService(&fakeStore{}, &fakeBackfiller{})
	_, err := svc.AverageTasksPerMetadataValue(context.Background(), "p1", store.CollectionTasks, "user_id")
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestCountDistinctMetadataValues(t *testing.T) {
	st := &fakeStore{
		distinctFn: func(_, key string, filter bson.M) ([]any, error) {
			assert.Equal(t, "metadata.user_id", key)
			// Null values are ignored.
			assert.Equal(t, bson.M{"$ne": nil}, filter["metadata.user_id"])
			return []any{"u1", "u2", "u3"}, nil
		},
	}
	svc := newTestService(st, &fakeBackfiller{})

	n, err := svc.CountDistinctMetadataValues(context.Background(), "p1", store.CollectionTasks, "user_id")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
