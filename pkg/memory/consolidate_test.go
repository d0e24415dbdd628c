package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuumin/mimi/pkg/llm/mock"
)

func newConsolidationStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func fillCategory(t *testing.T, s *Store, category Category, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, _, err := s.Commit(fmt.Sprintf("%s fact number %d", category, i), category)
		require.NoError(t, err)
	}
}

func TestRunOnceBelowThreshold(t *testing.T) {
	s := newConsolidationStore(t)
	fillCategory(t, s, CategoryEvents, 6)

	provider := mock.NewProvider(`{"compressed_memories": ["should not be called"]}`)
	c := NewConsolidator(s, provider, ConsolidatorConfig{Threshold: 32, MinCategorySize: 5}, nil)

	ran, err := c.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Empty(t, provider.Calls)
	assert.Equal(t, 6, s.ActiveCount())
}

func TestRunOnceCompressesLargeCategories(t *testing.T) {
	s := newConsolidationStore(t)
	fillCategory(t, s, CategoryEvents, 6)
	fillCategory(t, s, CategoryKuumin, 3)

	provider := mock.NewProvider(`{"compressed_memories": ["went out together several times", "enjoyed shared meals"]}`)
	c := NewConsolidator(s, provider, ConsolidatorConfig{Threshold: 8, MinCategorySize: 5}, nil)

	ran, err := c.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)

	byCat := s.ActiveByCategory()
	// Events shrank from 6 to 2; Kuumin was under the category minimum and
	// passed through untouched.
	require.Len(t, byCat[CategoryEvents], 2)
	assert.Equal(t, "went out together several times", byCat[CategoryEvents][0].Content)
	assert.Len(t, byCat[CategoryKuumin], 3)

	// The archive keeps every raw fact.
	assert.Len(t, s.Archive(), 9)
}

func TestRunOnceRetainsCategoryOnProviderFailure(t *testing.T) {
	s := newConsolidationStore(t)
	fillCategory(t, s, CategoryEvents, 6)

	provider := mock.NewProvider()
	provider.Err = errors.New("provider down")
	c := NewConsolidator(s, provider, ConsolidatorConfig{Threshold: 4, MinCategorySize: 5}, nil)

	ran, err := c.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 6, s.ActiveCount())
}

func TestRunOnceRetainsCategoryOnMalformedJSON(t *testing.T) {
	s := newConsolidationStore(t)
	fillCategory(t, s, CategoryEvents, 6)

	for _, response := range []string{"not json at all", `{"compressed_memories": []}`, `{"compressed_memories": ["  "]}`} {
		provider := mock.NewProvider(response)
		c := NewConsolidator(s, provider, ConsolidatorConfig{Threshold: 4, MinCategorySize: 5}, nil)

		ran, err := c.RunOnce(context.Background())
		require.NoError(t, err)
		assert.True(t, ran)
		assert.Equal(t, 6, s.ActiveCount(), "response %q", response)
	}
}

func TestRunOnceSkipsWhileInFlight(t *testing.T) {
	s := newConsolidationStore(t)
	fillCategory(t, s, CategoryEvents, 6)

	provider := mock.NewProvider(`{"compressed_memories": ["compressed"]}`)
	c := NewConsolidator(s, provider, ConsolidatorConfig{Threshold: 4, MinCategorySize: 5}, nil)

	c.inFlight.Store(true)
	ran, err := c.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Empty(t, provider.Calls)

	c.inFlight.Store(false)
	ran, err = c.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestRunOnceHonorsCancellation(t *testing.T) {
	s := newConsolidationStore(t)
	fillCategory(t, s, CategoryEvents, 6)

	provider := mock.NewProvider(`{"compressed_memories": ["compressed"]}`)
	c := NewConsolidator(s, provider, ConsolidatorConfig{Threshold: 4, MinCategorySize: 5}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.RunOnce(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 6, s.ActiveCount())
}
