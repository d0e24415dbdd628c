package memory

import (
	"fmt"
	"sync"
	"time"

	"github.com/kuumin/mimi/pkg/storage"
)

// DateLayout keys diary entries, one entry per calendar day.
const DateLayout = "2006-01-02"

// DiaryEntry is one day's reflective summary.
type DiaryEntry struct {
	Date      string `json:"date"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// DiaryStore persists the assistant's diary as a JSON list of daily entries.
// Writing twice on the same day overwrites that day's entry; each synthesis
// pass re-summarizes the whole day, so the latest entry supersedes earlier
// ones.
type DiaryStore struct {
	mu      sync.Mutex
	doc     *storage.Document
	entries []DiaryEntry
}

// OpenDiaryStore loads (or creates) the diary document at path.
func OpenDiaryStore(path string) (*DiaryStore, error) {
	doc, err := storage.NewDocument(path)
	if err != nil {
		return nil, err
	}
	ds := &DiaryStore{doc: doc}
	if err := doc.Load(&ds.entries); err != nil {
		return nil, fmt.Errorf("memory: load diary: %w", err)
	}
	return ds, nil
}

// Upsert writes content as the entry for date, replacing any existing entry
// for that date.
func (ds *DiaryStore) Upsert(date, content string) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	entry := DiaryEntry{
		Date:      date,
		Content:   content,
		Timestamp: time.Now().Format(TimestampLayout),
	}
	replaced := false
	for i := range ds.entries {
		if ds.entries[i].Date == date {
			ds.entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		ds.entries = append(ds.entries, entry)
	}
	return ds.doc.Save(ds.entries)
}

// Entry returns the entry for date, if one exists.
func (ds *DiaryStore) Entry(date string) (DiaryEntry, bool) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	for _, e := range ds.entries {
		if e.Date == date {
			return e, true
		}
	}
	return DiaryEntry{}, false
}

// Entries returns a copy of all diary entries in stored order.
func (ds *DiaryStore) Entries() []DiaryEntry {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return append([]DiaryEntry(nil), ds.entries...)
}
