package localindex_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/durablemem-go/pkg/vectorindex"
	"github.com/oceanbase/durablemem-go/pkg/vectorindex/localindex"
)

func setupIndex(t *testing.T, metric vectorindex.Metric) (*localindex.Index, func()) {
	path := "./test_localindex.db"
	_ = os.Remove(path)

	idx, err := localindex.New(context.Background(), &localindex.Config{
		DBPath:     path,
		Dimensions: 3,
		Metric:     metric,
	})
	require.NoError(t, err)

	return idx, func() {
		_ = idx.Close()
		_ = os.Remove(path)
	}
}

func TestIndex_InsertRejectsDuplicate(t *testing.T) {
	idx, cleanup := setupIndex(t, vectorindex.MetricCosine)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, idx.Insert(ctx, "m1", []float32{1, 0, 0}, vectorindex.Payload{"user_id": "u1"}))
	err := idx.Insert(ctx, "m1", []float32{0, 1, 0}, vectorindex.Payload{"user_id": "u1"})
	assert.ErrorIs(t, err, vectorindex.ErrAlreadyExists)
}

func TestIndex_UpdatePreservesUnsetFields(t *testing.T) {
	idx, cleanup := setupIndex(t, vectorindex.MetricCosine)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, idx.Insert(ctx, "m1", []float32{1, 0, 0}, vectorindex.Payload{"user_id": "u1", "content": "a"}))
	require.NoError(t, idx.Update(ctx, "m1", nil, vectorindex.Payload{"user_id": "u1", "content": "b"}))

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 5, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].Payload["content"])
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
}

func TestIndex_SearchOrdersByScoreDescending(t *testing.T) {
	idx, cleanup := setupIndex(t, vectorindex.MetricCosine)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, idx.Insert(ctx, "close", []float32{1, 0, 0}, vectorindex.Payload{}))
	require.NoError(t, idx.Insert(ctx, "far", []float32{0, 1, 0}, vectorindex.Payload{}))

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 5, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "close", results[0].ID)
	assert.Equal(t, "far", results[1].ID)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
}

func TestIndex_SearchFilterIgnoresTypeSentinel(t *testing.T) {
	idx, cleanup := setupIndex(t, vectorindex.MetricCosine)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, idx.Insert(ctx, "m1", []float32{1, 0, 0}, vectorindex.Payload{"user_id": "u1", "type": "preference"}))

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 5, vectorindex.Payload{"user_id": "u1", "type": "fact"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "m1", results[0].ID)
}

func TestIndex_DeleteAllForUser(t *testing.T) {
	idx, cleanup := setupIndex(t, vectorindex.MetricCosine)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, idx.Insert(ctx, "m1", []float32{1, 0, 0}, vectorindex.Payload{"user_id": "u1"}))
	require.NoError(t, idx.Insert(ctx, "m2", []float32{0, 1, 0}, vectorindex.Payload{"user_id": "u1"}))
	require.NoError(t, idx.Insert(ctx, "m3", []float32{0, 0, 1}, vectorindex.Payload{"user_id": "u2"}))

	count, err := idx.DeleteAllForUser(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 5, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "m3", results[0].ID)
}

func TestIndex_PersistsAcrossReopen(t *testing.T) {
	path := "./test_localindex_reopen.db"
	_ = os.Remove(path)
	defer os.Remove(path)
	ctx := context.Background()

	idx, err := localindex.New(ctx, &localindex.Config{DBPath: path, Dimensions: 3})
	require.NoError(t, err)
	require.NoError(t, idx.Insert(ctx, "m1", []float32{1, 0, 0}, vectorindex.Payload{"user_id": "u1"}))
	require.NoError(t, idx.Close())

	reopened, err := localindex.New(ctx, &localindex.Config{DBPath: path, Dimensions: 3})
	require.NoError(t, err)
	defer reopened.Close()

	results, err := reopened.Search(ctx, []float32{1, 0, 0}, 5, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "m1", results[0].ID)
}

func TestIndex_Ping(t *testing.T) {
	idx, cleanup := setupIndex(t, vectorindex.MetricCosine)
	defer cleanup()

	ok, err := idx.Ping(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}
