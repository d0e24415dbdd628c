package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/kuumin/mimi/pkg/memory"
	"github.com/kuumin/mimi/pkg/memory/notes"
)

// Recent memories injected into the prompt's snapshot block.
const recentMemoryCount = 5

// defaultBasePrompt is used when no custom prompt is configured.
func defaultBasePrompt(assistantName string) string {
	return fmt.Sprintf("You are %s, a helpful AI assistant.", assistantName)
}

// temporalContext grounds the assistant in the current date and time.
func temporalContext(now time.Time) string {
	return fmt.Sprintf("**Temporal Context:**\n- Date: %s\n- Time: %s\n\n",
		now.Format("Monday, Jan 02, 2006"), now.Format("15:04"))
}

// personaSection renders the identity narrative block, or nothing when the
// persona has not been seeded yet.
func personaSection(narrative string) string {
	if narrative == "" {
		return ""
	}
	return fmt.Sprintf("**Identity Narrative:**\n%s\n\n", narrative)
}

// memorySection renders the recent-memory snapshot and active notes blocks.
func memorySection(recent []memory.Item, noteList []notes.Note) string {
	var b strings.Builder

	if len(recent) > 0 {
		b.WriteString("**MEMORY SNAPSHOT (Recent):**")
		for _, it := range recent {
			fmt.Fprintf(&b, "\n- [%s] (%s) %s", it.Timestamp, it.Category, it.Content)
		}
		b.WriteString("\n\n")
	}

	if len(noteList) > 0 {
		b.WriteString("**ACTIVE NOTES / PLANS:**")
		for _, n := range noteList {
			fmt.Fprintf(&b, "\n- [%s] (ID: %s) %s", n.Priority, n.ID, n.Content)
		}
		b.WriteString("\n\n")
	}

	return b.String()
}

// factExtractionPrompt asks whether the latest exchange revealed a new
// memorable fact. The provider answers in JSON mode.
func factExtractionPrompt(userName, assistantName, userText, assistantText string) string {
	return fmt.Sprintf(
		"User (always %s) said: %q\nAssistant replied: %q\n\n"+
			"Did the user reveal any NEW personal fact, preference, habit, or goal? "+
			"Or did something significant happen? Or did %s reveal something about herself? "+
			"Ignore casual conversation. "+
			`Output JSON: {"category": "Events"|"Mimi"|"Kuumin"|"Others", "content": "..."} or {"category": null, "content": null}.`,
		userName, userText, assistantText, assistantName)
}

// classificationPrompt asks the provider to sort legacy uncategorized
// memories into the four categories.
func classificationPrompt(contents []string) (system, user string) {
	var block strings.Builder
	for _, c := range contents {
		fmt.Fprintf(&block, "- %s\n", c)
	}
	system = "You are a Memory Organizer. Sort these memories into 4 categories: " +
		"'Events' (shared history), 'Mimi' (her likes/thoughts), 'Kuumin' (User facts), 'Others' (other people)."
	user = fmt.Sprintf("Memories:\n%s\nReturn JSON: {\"classified\": [{\"category\": \"...\", \"content\": \"...\"}]}", block.String())
	return system, user
}
