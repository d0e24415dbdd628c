package memory

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommitAndReload(t *testing.T) {
	dir := t.TempDir()

	s, err := OpenStore(dir)
	require.NoError(t, err)

	item, fresh, err := s.Commit("Kuumin likes oolong tea", CategoryKuumin)
	require.NoError(t, err)
	assert.True(t, fresh)
	assert.NotZero(t, item.ID)
	assert.Equal(t, CategoryKuumin, item.Category)

	// A second open sees both views persisted.
	s2, err := OpenStore(dir)
	require.NoError(t, err)
	require.Len(t, s2.Archive(), 1)
	require.Len(t, s2.Active(), 1)
	assert.Equal(t, "Kuumin likes oolong tea", s2.Archive()[0].Content)
}

func TestCommitDeduplicates(t *testing.T) {
	s, err := OpenStore(t.TempDir())
	require.NoError(t, err)

	_, fresh, err := s.Commit("Kuumin likes oolong tea", CategoryKuumin)
	require.NoError(t, err)
	require.True(t, fresh)

	// Same content again, even under a different category, is a no-op.
	_, fresh, err = s.Commit("Kuumin likes oolong tea", CategoryEvents)
	require.NoError(t, err)
	assert.False(t, fresh)
	assert.Len(t, s.Archive(), 1)
	assert.Len(t, s.Active(), 1)
}

func TestCommitBlankContent(t *testing.T) {
	s, err := OpenStore(t.TempDir())
	require.NoError(t, err)

	_, fresh, err := s.Commit("   ", CategoryKuumin)
	require.NoError(t, err)
	assert.False(t, fresh)
	assert.Equal(t, 0, s.ActiveCount())
}

func TestCommitHookFiresOnFreshOnly(t *testing.T) {
	s, err := OpenStore(t.TempDir())
	require.NoError(t, err)

	hooked := make(chan Item, 2)
	s.SetCommitHook(func(it Item) { hooked <- it })

	_, _, err = s.Commit("fact one", CategoryEvents)
	require.NoError(t, err)
	it := <-hooked
	assert.Equal(t, "fact one", it.Content)

	_, _, err = s.Commit("fact one", CategoryEvents)
	require.NoError(t, err)
	select {
	case it := <-hooked:
		t.Fatalf("hook fired for duplicate commit: %v", it)
	default:
	}
}

func TestDeleteRemovesFromBothViews(t *testing.T) {
	s, err := OpenStore(t.TempDir())
	require.NoError(t, err)

	item, _, err := s.Commit("temporary fact", CategoryOthers)
	require.NoError(t, err)

	removed, err := s.Delete(item.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Empty(t, s.Archive())
	assert.Empty(t, s.Active())

	removed, err = s.Delete(item.ID)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestReplaceCategoryLeavesArchiveAlone(t *testing.T) {
	s, err := OpenStore(t.TempDir())
	require.NoError(t, err)

	for _, content := range []string{"went hiking", "watched a movie", "tried ramen"} {
		_, _, err := s.Commit(content, CategoryEvents)
		require.NoError(t, err)
	}
	_, _, err = s.Commit("Kuumin dislikes cilantro", CategoryKuumin)
	require.NoError(t, err)

	err = s.ReplaceCategory(CategoryEvents, []Item{NewItem("shared several outings recently", CategoryEvents)})
	require.NoError(t, err)

	// Active holds the compressed event plus the untouched Kuumin fact.
	active := s.Active()
	require.Len(t, active, 2)
	byCat := s.ActiveByCategory()
	require.Len(t, byCat[CategoryEvents], 1)
	assert.Equal(t, "shared several outings recently", byCat[CategoryEvents][0].Content)

	// The archive still has every raw fact.
	assert.Len(t, s.Archive(), 4)
}

func TestLiteralSearch(t *testing.T) {
	s, err := OpenStore(t.TempDir())
	require.NoError(t, err)

	facts := []string{
		"Kuumin's favourite beverage is iced oolong tea",
		"Kuumin is studying for a networking certification",
		"we talked about beverage preferences and tea ceremonies",
	}
	for _, f := range facts {
		_, _, err := s.Commit(f, CategoryKuumin)
		require.NoError(t, err)
	}

	results := s.LiteralSearch("what beverage should I bring", 2)
	require.Len(t, results, 2)
	for _, it := range results {
		assert.Contains(t, it.Content, "beverage")
	}

	// Short words and stop-words alone yield nothing.
	assert.Empty(t, s.LiteralSearch("what would it be", 2))
	assert.Empty(t, s.LiteralSearch("hi", 2))
}

func TestRecentReturnsNewestInOrder(t *testing.T) {
	s, err := OpenStore(t.TempDir())
	require.NoError(t, err)

	for _, content := range []string{"first", "second", "third", "fourth"} {
		_, _, err := s.Commit(content, CategoryEvents)
		require.NoError(t, err)
	}

	recent := s.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "third", recent[0].Content)
	assert.Equal(t, "fourth", recent[1].Content)
}

func TestOpenStoreCreatesFilesLazily(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "data", "mimi")

	s, err := OpenStore(nested)
	require.NoError(t, err)
	assert.Equal(t, 0, s.ActiveCount())

	_, _, err = s.Commit("stored under a fresh directory", CategoryKuumin)
	require.NoError(t, err)

	s2, err := OpenStore(nested)
	require.NoError(t, err)
	assert.Equal(t, 1, s2.ActiveCount())
}
