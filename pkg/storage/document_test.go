package storage

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentLoadMissingFile(t *testing.T) {
	doc, err := NewDocument(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	items := []string{}
	require.NoError(t, doc.Load(&items))
	assert.Empty(t, items)
}

func TestDocumentSaveLoadRoundTrip(t *testing.T) {
	doc, err := NewDocument(filepath.Join(t.TempDir(), "data", "items.json"))
	require.NoError(t, err)

	in := map[string][]float64{"a": {0.1, 0.2}, "b": {1, 0}}
	require.NoError(t, doc.Save(in))

	out := map[string][]float64{}
	require.NoError(t, doc.Load(&out))
	assert.Equal(t, in, out)
}

func TestDocumentSaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	doc, err := NewDocument(filepath.Join(dir, "items.json"))
	require.NoError(t, err)

	require.NoError(t, doc.Save([]int{1, 2, 3}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "items.json", entries[0].Name())
}

func TestDocumentUpdateAbandonsWriteOnError(t *testing.T) {
	doc, err := NewDocument(filepath.Join(t.TempDir(), "items.json"))
	require.NoError(t, err)
	require.NoError(t, doc.Save([]string{"original"}))

	items := []string{}
	updateErr := doc.Update(&items, func() error {
		items = append(items, "mutated")
		return assert.AnError
	})
	require.Error(t, updateErr)

	out := []string{}
	require.NoError(t, doc.Load(&out))
	assert.Equal(t, []string{"original"}, out)
}

func TestDocumentConcurrentUpdatesLoseNoWrites(t *testing.T) {
	doc, err := NewDocument(filepath.Join(t.TempDir(), "counter.json"))
	require.NoError(t, err)

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var count int
			_ = doc.Update(&count, func() error {
				count++
				return nil
			})
		}()
	}
	wg.Wait()

	var count int
	require.NoError(t, doc.Load(&count))
	assert.Equal(t, writers, count)
}
