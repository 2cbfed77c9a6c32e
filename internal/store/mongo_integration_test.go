package store_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/miharu-ai/miharu/internal/store"
	"github.com/miharu-ai/miharu/internal/testutil"
)

// testStore is shared by all tests in this package. It stays nil unless
// MIHARU_TEST_INTEGRATION is set, in which case TestMain boots a MongoDB
// container.
var testStore *store.Mongo

func TestMain(m *testing.M) {
	if os.Getenv("MIHARU_TEST_INTEGRATION") == "" {
		os.Exit(m.Run())
	}

	tc := testutil.MustStartMongo()
	defer tc.Terminate()

	st, err := tc.NewTestStore(context.Background(), testutil.TestLogger())
	if err != nil {
		panic(err)
	}
	testStore = st
	defer func() { _ = testStore.Close(context.Background()) }()

	os.Exit(m.Run())
}

func requireIntegration(t *testing.T) {
	t.Helper()
	if testStore == nil {
		t.Skip("set MIHARU_TEST_INTEGRATION to run integration tests")
	}
}

func TestMongo_AggregateHonorsLimit(t *testing.T) {
	requireIntegration(t)
	ctx := context.Background()

	coll := testStore.Database().Collection("limit_check")
	docs := make([]any, 0, 5)
	for i := 0; i < 5; i++ {
		docs = append(docs, bson.M{"n": i})
	}
	_, err := coll.InsertMany(ctx, docs)
	require.NoError(t, err)

	rows, err := testStore.Aggregate(ctx, "limit_check", []bson.M{
		{"$sort": bson.M{"n": 1}},
	}, 3)
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	// Zero means unbounded.
	rows, err = testStore.Aggregate(ctx, "limit_check", nil, 0)
	require.NoError(t, err)
	assert.Len(t, rows, 5)
}

func TestMongo_Distinct(t *testing.T) {
	requireIntegration(t)
	ctx := context.Background()

	coll := testStore.Database().Collection("distinct_check")
	_, err := coll.InsertMany(ctx, []any{
		bson.M{"metadata": bson.M{"user_id": "u1"}},
		bson.M{"metadata": bson.M{"user_id": "u2"}},
		bson.M{"metadata": bson.M{"user_id": "u1"}},
		bson.M{"metadata": bson.M{"user_id": nil}},
	})
	require.NoError(t, err)

	values, err := testStore.Distinct(ctx, "distinct_check", "metadata.user_id",
		bson.M{"metadata.user_id": bson.M{"$ne": nil}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []any{"u1", "u2"}, values)
}
