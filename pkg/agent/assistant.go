// Package agent assembles the conversational assistant: prompt construction,
// the chat loop's turn handling, post-turn fact extraction, and the plumbing
// that triggers the background memory engines.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kuumin/mimi/pkg/llm"
	"github.com/kuumin/mimi/pkg/logging"
	"github.com/kuumin/mimi/pkg/memory"
	"github.com/kuumin/mimi/pkg/memory/notes"
	"github.com/kuumin/mimi/pkg/vault"
)

// Tool-noise fragments that must never be committed as facts.
var noiseMarkers = []string{"Querying", "Searching"}

// Assistant ties the memory subsystem to a chat provider. One Assistant
// serves one conversation; the background engines it triggers are shared
// singletons guarded by their own in-flight flags.
type Assistant struct {
	chat         llm.Provider
	store        *memory.Store
	retriever    *memory.Retriever
	notes        *notes.Manager
	persona      *memory.PersonaStore
	session      *memory.Session
	consolidator *memory.Consolidator
	synthesizer  *memory.Synthesizer
	vault        *vault.Indexer

	userName      string
	assistantName string
	basePrompt    string
	log           *logging.Logger

	history []*llm.Message
}

// Options configures an Assistant.
type Options struct {
	UserName      string
	AssistantName string

	// BasePrompt overrides the default system prompt body. Persona,
	// temporal context, and memory blocks are always prepended.
	BasePrompt string

	// Vault is optional; nil disables vault retrieval and indexing.
	Vault *vault.Indexer
}

// New creates an assistant over the given providers and stores.
func New(chat llm.Provider, store *memory.Store, retriever *memory.Retriever, noteMgr *notes.Manager, persona *memory.PersonaStore, session *memory.Session, consolidator *memory.Consolidator, synthesizer *memory.Synthesizer, opts Options, log *logging.Logger) *Assistant {
	if opts.UserName == "" {
		opts.UserName = "Kuumin"
	}
	if opts.AssistantName == "" {
		opts.AssistantName = "Mimi"
	}
	if opts.BasePrompt == "" {
		opts.BasePrompt = defaultBasePrompt(opts.AssistantName)
	}
	return &Assistant{
		chat:          chat,
		store:         store,
		retriever:     retriever,
		notes:         noteMgr,
		persona:       persona,
		session:       session,
		consolidator:  consolidator,
		synthesizer:   synthesizer,
		vault:         opts.Vault,
		userName:      opts.UserName,
		assistantName: opts.AssistantName,
		basePrompt:    opts.BasePrompt,
		log:           log,
	}
}

// SystemPrompt builds the full system message for the next turn: persona
// narrative, temporal context, the base prompt, the recent-memory snapshot
// with active notes, and the reminiscence block for the given input.
func (a *Assistant) SystemPrompt(ctx context.Context, input string) string {
	var b strings.Builder
	b.WriteString(personaSection(a.persona.Narrative()))
	b.WriteString(temporalContext(time.Now()))
	b.WriteString(a.basePrompt)
	b.WriteString("\n\n")
	b.WriteString(memorySection(a.store.Recent(recentMemoryCount), a.notes.List()))

	if rem := a.retriever.Reminiscence(ctx, input); rem != "" {
		b.WriteString(rem)
	}
	return b.String()
}

// Chat runs one conversational turn: assemble the prompt, call the provider,
// record the exchange, and kick off post-turn housekeeping in the background.
func (a *Assistant) Chat(ctx context.Context, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", nil
	}

	system := llm.NewSystemMessage(a.SystemPrompt(ctx, input))
	messages := make([]*llm.Message, 0, len(a.history)+2)
	messages = append(messages, system)
	messages = append(messages, a.history...)
	messages = append(messages, llm.NewUserMessage(input))

	a.session.RecordUser(input)
	reply, err := a.chat.Complete(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("agent: chat completion: %w", err)
	}
	a.session.RecordAssistant(reply)

	a.history = append(a.history,
		llm.NewUserMessage(input),
		llm.NewAssistantMessage(reply),
	)

	go a.afterExchange(context.WithoutCancel(ctx), input, reply)
	return reply, nil
}

// History returns the conversation turns so far, excluding the system prompt.
func (a *Assistant) History() []*llm.Message {
	return append([]*llm.Message(nil), a.history...)
}

// afterExchange runs the post-turn housekeeping: fact extraction and the
// consolidation trigger. Failures are logged, never surfaced to the turn.
func (a *Assistant) afterExchange(ctx context.Context, userText, assistantText string) {
	committed, err := a.ExtractFacts(ctx, userText, assistantText)
	if err != nil && a.log != nil {
		a.log.Warnf("fact extraction failed: %v", err)
	}
	for _, it := range committed {
		if a.log != nil {
			a.log.Infof("memorized (%s): %s", it.Category, it.Content)
		}
	}

	a.consolidator.Trigger(ctx)
}

// extractedFact is the provider's JSON answer shape. Both the single-object
// and the {"memories": [...]} list form are accepted.
type extractedFact struct {
	Category *string `json:"category"`
	Content  *string `json:"content"`
}

// ExtractFacts asks the provider whether the exchange revealed anything worth
// remembering and commits each returned fact. Tool-status noise is filtered.
func (a *Assistant) ExtractFacts(ctx context.Context, userText, assistantText string) ([]memory.Item, error) {
	raw, err := a.chat.CompleteJSON(ctx, []*llm.Message{
		llm.NewSystemMessage("You are a memory analyzer."),
		llm.NewUserMessage(factExtractionPrompt(a.userName, a.assistantName, userText, assistantText)),
	})
	if err != nil {
		return nil, err
	}

	facts, err := parseExtractedFacts(raw)
	if err != nil {
		return nil, err
	}

	var committed []memory.Item
	for _, f := range facts {
		if f.Content == nil || f.Category == nil {
			continue
		}
		content := strings.TrimSpace(*f.Content)
		if content == "" || isNoise(content) {
			continue
		}
		item, fresh, err := a.store.Commit(content, memory.NormalizeCategory(*f.Category))
		if err != nil {
			return committed, err
		}
		if fresh {
			committed = append(committed, item)
		}
	}
	return committed, nil
}

func parseExtractedFacts(raw string) ([]extractedFact, error) {
	var multi struct {
		Memories []extractedFact `json:"memories"`
	}
	if err := json.Unmarshal([]byte(raw), &multi); err == nil && len(multi.Memories) > 0 {
		return multi.Memories, nil
	}

	var single extractedFact
	if err := json.Unmarshal([]byte(raw), &single); err != nil {
		return nil, fmt.Errorf("agent: decode fact extraction: %v: %w", err, llm.ErrMalformedResponse)
	}
	return []extractedFact{single}, nil
}

func isNoise(content string) bool {
	for _, marker := range noiseMarkers {
		if strings.Contains(content, marker) {
			return true
		}
	}
	return false
}
