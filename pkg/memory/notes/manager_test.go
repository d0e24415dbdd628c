package notes

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "notes.json")
	m, err := NewManager(path)
	require.NoError(t, err)
	return m, path
}

func TestAddAndGet(t *testing.T) {
	m, _ := newTestManager(t)

	note, err := m.Add("buy groceries for the weekend", PriorityHigh, []string{"Errands", " home "})
	require.NoError(t, err)
	assert.Len(t, note.ID, 8)
	assert.Equal(t, PriorityHigh, note.Priority)
	assert.Equal(t, []string{"errands", "home"}, note.Tags)

	got, ok := m.Get(note.ID)
	require.True(t, ok)
	assert.Equal(t, note.Content, got.Content)

	_, ok = m.Get("missing1")
	assert.False(t, ok)
}

func TestAddValidation(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.Add("   ", PriorityMedium, nil)
	assert.Error(t, err)

	_, err = m.Add(strings.Repeat("x", MaxContentLength+1), PriorityMedium, nil)
	assert.Error(t, err)

	_, err = m.Add("too many tags", PriorityMedium, []string{"a", "b", "c", "d", "e", "f"})
	assert.Error(t, err)

	_, err = m.Add("blank tag", PriorityMedium, []string{"ok", "  "})
	assert.Error(t, err)

	assert.Equal(t, 0, m.Count())
}

func TestNormalizePriority(t *testing.T) {
	assert.Equal(t, PriorityHigh, NormalizePriority("HIGH"))
	assert.Equal(t, PriorityLow, NormalizePriority(" low "))
	assert.Equal(t, PriorityMedium, NormalizePriority("medium"))
	assert.Equal(t, PriorityMedium, NormalizePriority("urgent-ish"))
	assert.Equal(t, PriorityMedium, NormalizePriority(""))
}

func TestDelete(t *testing.T) {
	m, _ := newTestManager(t)

	note, err := m.Add("call the dentist", PriorityMedium, nil)
	require.NoError(t, err)

	removed, err := m.Delete(note.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, 0, m.Count())

	removed, err = m.Delete(note.ID)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestListOrdersByPriorityThenRecency(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.Add("low priority chore", PriorityLow, nil)
	require.NoError(t, err)
	_, err = m.Add("medium errand", PriorityMedium, nil)
	require.NoError(t, err)
	high, err := m.Add("urgent deadline", PriorityHigh, nil)
	require.NoError(t, err)

	list := m.List()
	require.Len(t, list, 3)
	assert.Equal(t, high.ID, list[0].ID)
	assert.Equal(t, PriorityMedium, list[1].Priority)
	assert.Equal(t, PriorityLow, list[2].Priority)
}

func TestListByTag(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.Add("water the plants", PriorityLow, []string{"garden"})
	require.NoError(t, err)
	_, err = m.Add("prune the roses", PriorityMedium, []string{"Garden"})
	require.NoError(t, err)
	_, err = m.Add("file taxes", PriorityHigh, []string{"admin"})
	require.NoError(t, err)

	garden := m.ListByTag("GARDEN")
	require.Len(t, garden, 2)
	for _, n := range garden {
		assert.True(t, n.HasTag("garden"))
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	m, path := newTestManager(t)

	note, err := m.Add("persisted reminder", PriorityMedium, []string{"test"})
	require.NoError(t, err)

	m2, err := NewManager(path)
	require.NoError(t, err)
	got, ok := m2.Get(note.ID)
	require.True(t, ok)
	assert.Equal(t, "persisted reminder", got.Content)
}
