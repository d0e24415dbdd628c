package memory

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/kuumin/mimi/pkg/storage"
)

// Store is the canonical fact ledger, kept in two parallel views: the
// append-only archive (permanent history, never compacted) and the active
// store (the working set injected into prompts, subject to consolidation).
//
// Deduplication is by exact content string, category-agnostic, checked
// against the archive: once a fact has ever been committed, committing it
// again is a silent no-op. This keeps re-extracted facts from undoing a
// consolidation pass that deliberately compressed them out of the active set.
type Store struct {
	mu         sync.Mutex
	archiveDoc *storage.Document
	activeDoc  *storage.Document
	archive    []Item
	active     []Item
	onCommit   func(Item)
}

// OpenStore loads (or creates) the archive and active store documents under
// dataDir.
func OpenStore(dataDir string) (*Store, error) {
	archiveDoc, err := storage.NewDocument(filepath.Join(dataDir, "memory.archive.json"))
	if err != nil {
		return nil, err
	}
	activeDoc, err := storage.NewDocument(filepath.Join(dataDir, "memory.store.json"))
	if err != nil {
		return nil, err
	}

	s := &Store{archiveDoc: archiveDoc, activeDoc: activeDoc}
	if err := archiveDoc.Load(&s.archive); err != nil {
		return nil, fmt.Errorf("memory: load archive: %w", err)
	}
	if err := activeDoc.Load(&s.active); err != nil {
		return nil, fmt.Errorf("memory: load active store: %w", err)
	}
	return s, nil
}

// SetCommitHook registers a callback invoked asynchronously after each fresh
// commit. Used to trigger best-effort embedding generation; hook failures
// never affect the commit itself.
func (s *Store) SetCommitHook(fn func(Item)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCommit = fn
}

// Commit appends a new fact to both views and returns it. If the content
// already exists verbatim in the archive the commit is a silent no-op and the
// second return value is false.
func (s *Store) Commit(content string, category Category) (Item, bool, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Item{}, false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, it := range s.archive {
		if it.Content == content {
			return Item{}, false, nil
		}
	}

	item := NewItem(content, category)
	s.archive = append(s.archive, item)
	s.active = append(s.active, item)

	if err := s.archiveDoc.Save(s.archive); err != nil {
		return Item{}, false, err
	}
	if err := s.activeDoc.Save(s.active); err != nil {
		return Item{}, false, err
	}

	if s.onCommit != nil {
		go s.onCommit(item)
	}
	return item, true, nil
}

// Delete removes the item with the given id from both views. It reports
// whether anything was removed. Stale embeddings for a deleted id are not
// pruned eagerly; they age out on the next reindex.
func (s *Store) Delete(id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := false
	s.archive, removed = removeByID(s.archive, id, removed)
	s.active, removed = removeByID(s.active, id, removed)
	if !removed {
		return false, nil
	}

	if err := s.archiveDoc.Save(s.archive); err != nil {
		return true, err
	}
	if err := s.activeDoc.Save(s.active); err != nil {
		return true, err
	}
	return true, nil
}

func removeByID(items []Item, id int64, removed bool) ([]Item, bool) {
	out := items[:0]
	for _, it := range items {
		if it.ID == id {
			removed = true
			continue
		}
		out = append(out, it)
	}
	return out, removed
}

// SetCategory updates the category of the item with the given id in both
// views. It reports whether the item existed.
func (s *Store) SetCategory(id int64, category Category) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for i := range s.archive {
		if s.archive[i].ID == id {
			s.archive[i].Category = category
			found = true
		}
	}
	for i := range s.active {
		if s.active[i].ID == id {
			s.active[i].Category = category
			found = true
		}
	}
	if !found {
		return false, nil
	}

	if err := s.archiveDoc.Save(s.archive); err != nil {
		return true, err
	}
	return true, s.activeDoc.Save(s.active)
}

// ReplaceCategory atomically swaps every active-store item of the given
// category for the provided items. The archive is untouched. Used only by the
// consolidation engine.
func (s *Store) ReplaceCategory(category Category, items []Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]Item, 0, len(s.active))
	for _, it := range s.active {
		if it.Category != category {
			next = append(next, it)
		}
	}
	next = append(next, items...)
	s.active = next

	return s.activeDoc.Save(s.active)
}

var wordPattern = regexp.MustCompile(`\b\w{5,}\b`)

// Common long words that carry no retrieval signal.
var stopWords = map[string]bool{
	"about": true, "there": true, "their": true,
	"would": true, "could": true, "should": true,
}

// LiteralSearch scores archive items by keyword overlap with the query.
// Keywords are lowercased words of at least five characters, minus a small
// stop-list. Results are the topK highest-scoring items; ties keep store
// order.
func (s *Store) LiteralSearch(query string, topK int) []Item {
	var keywords []string
	for _, w := range wordPattern.FindAllString(strings.ToLower(query), -1) {
		if !stopWords[w] {
			keywords = append(keywords, w)
		}
	}
	if len(keywords) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	type scored struct {
		score int
		item  Item
	}
	var matches []scored
	for _, it := range s.archive {
		content := strings.ToLower(it.Content)
		score := 0
		for _, kw := range keywords {
			if strings.Contains(content, kw) {
				score++
			}
		}
		if score > 0 {
			matches = append(matches, scored{score: score, item: it})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}

	out := make([]Item, len(matches))
	for i, m := range matches {
		out[i] = m.item
	}
	return out
}

// Archive returns a copy of the permanent archive.
func (s *Store) Archive() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Item(nil), s.archive...)
}

// Active returns a copy of the active working set.
func (s *Store) Active() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Item(nil), s.active...)
}

// ActiveCount returns the size of the active working set.
func (s *Store) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Recent returns up to n of the newest active items in chronological order,
// for prompt context blocks.
func (s *Store) Recent(n int) []Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := append([]Item(nil), s.active...)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].ID < items[j].ID
	})
	if len(items) > n {
		items = items[len(items)-n:]
	}
	return items
}

// ActiveByCategory partitions the active store by category.
func (s *Store) ActiveByCategory() map[Category][]Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[Category][]Item)
	for _, it := range s.active {
		out[it.Category] = append(out[it.Category], it)
	}
	return out
}
