package memory

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuumin/mimi/pkg/llm/mock"
)

func TestCosineSimilarity(t *testing.T) {
	a := []float64{1, 0, 0}
	b := []float64{0, 1, 0}

	assert.InDelta(t, 1.0, CosineSimilarity(a, a), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity(a, b), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity(a, []float64{-1, 0, 0}), 1e-9)

	// Degenerate inputs score zero instead of erroring.
	assert.Equal(t, 0.0, CosineSimilarity(nil, a))
	assert.Equal(t, 0.0, CosineSimilarity(a, []float64{1, 0}))
	assert.Equal(t, 0.0, CosineSimilarity(a, []float64{0, 0, 0}))
}

func TestVectorIndexAddQueryRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.json")
	ix, err := OpenVectorIndex(path, mock.NewEmbedder())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, ix.Add(ctx, "1", "Kuumin enjoys long hikes in the rain"))
	require.NoError(t, ix.Add(ctx, "2", "completely unrelated grocery list"))
	assert.Equal(t, 2, ix.Len())

	// The exact text embeds identically, so it must come back first with a
	// near-perfect score.
	matches, err := ix.Query(ctx, "Kuumin enjoys long hikes in the rain", 5, 0.3)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, "1", matches[0].ID)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-9)

	require.NoError(t, ix.Remove("1"))
	assert.False(t, ix.Has("1"))
	assert.Equal(t, 1, ix.Len())

	// Removing an absent id is a no-op.
	require.NoError(t, ix.Remove("1"))
}

func TestVectorIndexPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.json")
	embedder := mock.NewEmbedder()

	ix, err := OpenVectorIndex(path, embedder)
	require.NoError(t, err)
	require.NoError(t, ix.Add(context.Background(), "42", "a persisted fact"))

	reopened, err := OpenVectorIndex(path, embedder)
	require.NoError(t, err)
	assert.True(t, reopened.Has("42"))
}

func TestQueryRespectsTopKAndThreshold(t *testing.T) {
	ix, err := OpenVectorIndex(filepath.Join(t.TempDir(), "vectors.json"), mock.NewEmbedder())
	require.NoError(t, err)

	ctx := context.Background()
	for i, text := range []string{"alpha fact", "beta fact", "gamma fact"} {
		require.NoError(t, ix.Add(ctx, VectorID(int64(i+1)), text))
	}

	// With an impossible threshold nothing qualifies.
	matches, err := ix.Query(ctx, "alpha fact", 5, 0.999999)
	require.NoError(t, err)
	for _, m := range matches {
		assert.Equal(t, "1", m.ID)
	}

	matches, err = ix.Query(ctx, "alpha fact", 1, -1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "1", matches[0].ID)
}

func TestQueryEmbedFailure(t *testing.T) {
	embedder := mock.NewEmbedder()
	ix, err := OpenVectorIndex(filepath.Join(t.TempDir(), "vectors.json"), embedder)
	require.NoError(t, err)

	embedder.Err = errors.New("embedding service down")
	_, err = ix.Query(context.Background(), "anything", 2, 0.3)
	assert.Error(t, err)
}

func TestReindexMissing(t *testing.T) {
	embedder := mock.NewEmbedder()
	ix, err := OpenVectorIndex(filepath.Join(t.TempDir(), "vectors.json"), embedder)
	require.NoError(t, err)

	items := []Item{
		NewItem("already indexed", CategoryKuumin),
		NewItem("missing one", CategoryKuumin),
		NewItem("missing two", CategoryEvents),
	}
	ctx := context.Background()
	require.NoError(t, ix.Add(ctx, VectorID(items[0].ID), items[0].Content))

	added, err := ix.ReindexMissing(ctx, items)
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	assert.Equal(t, 3, ix.Len())

	// Idempotent: a second sweep adds nothing.
	added, err = ix.ReindexMissing(ctx, items)
	require.NoError(t, err)
	assert.Equal(t, 0, added)
}

func TestReindexMissingSkipsFailures(t *testing.T) {
	embedder := mock.NewEmbedder()
	ix, err := OpenVectorIndex(filepath.Join(t.TempDir(), "vectors.json"), embedder)
	require.NoError(t, err)

	embedder.Err = errors.New("embedding service down")
	items := []Item{NewItem("cannot embed", CategoryKuumin)}

	added, err := ix.ReindexMissing(context.Background(), items)
	require.NoError(t, err)
	assert.Equal(t, 0, added)
	assert.Equal(t, 0, ix.Len())
}

func TestReindexMissingHonorsCancellation(t *testing.T) {
	ix, err := OpenVectorIndex(filepath.Join(t.TempDir(), "vectors.json"), mock.NewEmbedder())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = ix.ReindexMissing(ctx, []Item{NewItem("never reached", CategoryKuumin)})
	assert.ErrorIs(t, err, context.Canceled)
}
