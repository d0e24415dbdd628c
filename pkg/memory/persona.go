package memory

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kuumin/mimi/pkg/storage"
)

// Persona is the assistant's evolving first-person self-narrative. It is
// rewritten wholesale by the synthesis engine, never edited in place.
type Persona struct {
	Narrative   string `json:"narrative"`
	LastUpdated string `json:"last_updated"`
}

// PersonaStore persists the persona narrative as a single JSON document.
type PersonaStore struct {
	mu      sync.Mutex
	doc     *storage.Document
	persona Persona
}

// OpenPersonaStore loads (or creates) the persona document at path. A missing
// document yields an empty narrative, seeded on first synthesis.
func OpenPersonaStore(path string) (*PersonaStore, error) {
	doc, err := storage.NewDocument(path)
	if err != nil {
		return nil, err
	}
	ps := &PersonaStore{doc: doc}
	if err := doc.Load(&ps.persona); err != nil {
		return nil, fmt.Errorf("memory: load persona: %w", err)
	}
	return ps, nil
}

// Narrative returns the current self-narrative, which may be empty.
func (ps *PersonaStore) Narrative() string {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.persona.Narrative
}

// Update replaces the narrative and persists it. Blank narratives are
// rejected so a degenerate LLM response cannot wipe the persona.
func (ps *PersonaStore) Update(narrative string) error {
	narrative = strings.TrimSpace(narrative)
	if narrative == "" {
		return fmt.Errorf("memory: refusing to store empty persona narrative")
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.persona = Persona{
		Narrative:   narrative,
		LastUpdated: time.Now().Format(TimestampLayout),
	}
	return ps.doc.Save(ps.persona)
}
