package memory

import (
	"sync"
	"time"
)

// Category is the semantic partition a memory item belongs to. Categories are
// retrieved and compressed independently.
type Category string

const (
	// CategoryEvents holds shared history between user and assistant.
	CategoryEvents Category = "Events"
	// CategoryMimi holds the assistant's own preferences and reflections.
	CategoryMimi Category = "Mimi"
	// CategoryKuumin holds facts about the user.
	CategoryKuumin Category = "Kuumin"
	// CategoryOthers holds facts about other people.
	CategoryOthers Category = "Others"
)

// Categories returns all known categories in stable order.
func Categories() []Category {
	return []Category{CategoryEvents, CategoryMimi, CategoryKuumin, CategoryOthers}
}

// NormalizeCategory maps an arbitrary string to a known category, defaulting
// to CategoryKuumin for unknown or empty input.
func NormalizeCategory(s string) Category {
	switch Category(s) {
	case CategoryEvents, CategoryMimi, CategoryKuumin, CategoryOthers:
		return Category(s)
	default:
		return CategoryKuumin
	}
}

// TimestampLayout is the human-readable creation time format stored on items.
const TimestampLayout = "2006-01-02 15:04"

// Item is an atomic, timestamped, categorized fact.
type Item struct {
	ID        int64    `json:"id"`
	Timestamp string   `json:"timestamp"`
	Content   string   `json:"content"`
	Category  Category `json:"category"`
}

var (
	idMu   sync.Mutex
	lastID int64
)

// newItemID returns the current time in milliseconds, bumped past the
// previous id so ids stay strictly increasing even when several items are
// created within the same millisecond.
func newItemID() int64 {
	idMu.Lock()
	defer idMu.Unlock()

	id := time.Now().UnixMilli()
	if id <= lastID {
		id = lastID + 1
	}
	lastID = id
	return id
}

// NewItem creates an item with a fresh id and timestamp.
func NewItem(content string, category Category) Item {
	return Item{
		ID:        newItemID(),
		Timestamp: time.Now().Format(TimestampLayout),
		Content:   content,
		Category:  category,
	}
}
