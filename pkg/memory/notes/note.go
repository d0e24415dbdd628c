package notes

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// MaxContentLength is the maximum number of characters allowed in note content
	MaxContentLength = 800

	// MaxTags is the maximum number of tags allowed per note
	MaxTags = 5
)

// Priority ranks a note's urgency in the prompt block and exports.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// NormalizePriority maps an arbitrary string to a known priority, defaulting
// to Medium.
func NormalizePriority(s string) Priority {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return PriorityHigh
	case "low":
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// weight orders priorities for sorting, highest first.
func (p Priority) weight() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	default:
		return 1
	}
}

// Note is a single notebook entry: a task, plan, or reminder the assistant
// manages on the user's behalf. Unlike memory facts, notes are meant to be
// deleted once addressed.
type Note struct {
	ID        string   `json:"id"`
	Timestamp string   `json:"timestamp"`
	Content   string   `json:"content"`
	Priority  Priority `json:"priority"`
	Tags      []string `json:"tags"`
}

// NewNote creates a note with a fresh short id. Returns an error if
// validation fails.
func NewNote(content string, priority Priority, tags []string) (Note, error) {
	if err := ValidateContent(content); err != nil {
		return Note{}, err
	}
	if err := ValidateTags(tags); err != nil {
		return Note{}, err
	}

	return Note{
		ID:        GenerateID(),
		Timestamp: time.Now().Format("2006-01-02 15:04"),
		Content:   content,
		Priority:  NormalizePriority(string(priority)),
		Tags:      normalizeTags(tags),
	}, nil
}

// ValidateContent checks if the content meets the requirements
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("note content cannot be empty")
	}
	if len(content) > MaxContentLength {
		return fmt.Errorf(
			"note content exceeds maximum length of %d characters (got %d)",
			MaxContentLength, len(content),
		)
	}
	return nil
}

// ValidateTags checks if the tags meet the requirements
func ValidateTags(tags []string) error {
	if len(tags) > MaxTags {
		return fmt.Errorf("note allows at most %d tags (got %d)", MaxTags, len(tags))
	}
	for i, tag := range tags {
		if strings.TrimSpace(tag) == "" {
			return fmt.Errorf("tag at position %d is empty", i)
		}
	}
	return nil
}

// GenerateID creates a short note id. Eight hex characters of a random UUID
// are plenty for a personal notebook and stay easy to quote in conversation.
func GenerateID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// normalizeTags trims whitespace and converts tags to lowercase for consistency
func normalizeTags(tags []string) []string {
	normalized := make([]string, len(tags))
	for i, tag := range tags {
		normalized[i] = strings.ToLower(strings.TrimSpace(tag))
	}
	return normalized
}

// HasTag checks if the note has a specific tag (case-insensitive)
func (n Note) HasTag(tag string) bool {
	normalized := strings.ToLower(strings.TrimSpace(tag))
	for _, t := range n.Tags {
		if t == normalized {
			return true
		}
	}
	return false
}
