// Package notes implements the assistant's active notebook: short-lived
// tasks, plans, and reminders, persisted separately from long-term memory.
package notes

import (
	"fmt"
	"sort"
	"sync"

	"github.com/kuumin/mimi/pkg/storage"
)

// Manager handles CRUD operations for notebook entries. All operations are
// thread-safe and persisted immediately.
type Manager struct {
	mu    sync.Mutex
	doc   *storage.Document
	notes []Note
}

// NewManager loads (or creates) the notebook at path.
func NewManager(path string) (*Manager, error) {
	doc, err := storage.NewDocument(path)
	if err != nil {
		return nil, err
	}
	m := &Manager{doc: doc}
	if err := doc.Load(&m.notes); err != nil {
		return nil, fmt.Errorf("notes: load notebook: %w", err)
	}
	return m, nil
}

// Add creates a new note with the given content, priority, and tags.
func (m *Manager) Add(content string, priority Priority, tags []string) (Note, error) {
	note, err := NewNote(content, priority, tags)
	if err != nil {
		return Note{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.notes = append(m.notes, note)
	if err := m.doc.Save(m.notes); err != nil {
		m.notes = m.notes[:len(m.notes)-1]
		return Note{}, err
	}
	return note, nil
}

// Delete removes a note by id. It reports whether the note existed.
func (m *Manager) Delete(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, n := range m.notes {
		if n.ID == id {
			m.notes = append(m.notes[:i], m.notes[i+1:]...)
			return true, m.doc.Save(m.notes)
		}
	}
	return false, nil
}

// Get retrieves a note by id.
func (m *Manager) Get(id string) (Note, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, n := range m.notes {
		if n.ID == id {
			return n, true
		}
	}
	return Note{}, false
}

// List returns every note sorted by priority (high first), then newest first
// within a priority. This is the order the prompt block and vault export use.
func (m *Manager) List() []Note {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := append([]Note(nil), m.notes...)
	sort.SliceStable(out, func(i, j int) bool {
		if wi, wj := out[i].Priority.weight(), out[j].Priority.weight(); wi != wj {
			return wi > wj
		}
		return out[i].Timestamp > out[j].Timestamp
	})
	return out
}

// ListByTag returns notes carrying the given tag, in List order.
func (m *Manager) ListByTag(tag string) []Note {
	var out []Note
	for _, n := range m.List() {
		if n.HasTag(tag) {
			out = append(out, n)
		}
	}
	return out
}

// Count returns the number of notes in the notebook.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.notes)
}
