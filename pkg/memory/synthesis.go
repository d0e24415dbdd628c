package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kuumin/mimi/pkg/llm"
	"github.com/kuumin/mimi/pkg/llm/tokenizer"
	"github.com/kuumin/mimi/pkg/logging"
)

// Transcript budget handed to the reasoner, in tokens.
const synthesisTranscriptTokens = 1250

// Synthesizer turns an idle session into durable reflections: a diary entry
// for the day, a Mimi-category memory of that entry, and a subtle rewrite of
// the persona narrative. Reflection uses the reasoner model, which is slower
// and more deliberate than the chat model.
//
// The session accumulator is cleared only when every step succeeds. A partial
// failure keeps the exchanges so the next idle window retries with the same
// material.
type Synthesizer struct {
	session  *Session
	store    *Store
	persona  *PersonaStore
	diary    *DiaryStore
	reasoner llm.Provider
	tok      *tokenizer.Tokenizer

	inactivity    time.Duration
	assistantName string
	userName      string
	inFlight      atomic.Bool
	log           *logging.Logger
}

// SynthesizerConfig configures a Synthesizer.
type SynthesizerConfig struct {
	// InactivityWindow is how long the session must sit idle before a
	// reflection pass runs.
	InactivityWindow time.Duration
	AssistantName    string
	UserName         string
}

// NewSynthesizer creates a reflective synthesis engine. tok may be nil, in
// which case transcript bounding falls back to a character heuristic.
func NewSynthesizer(session *Session, store *Store, persona *PersonaStore, diary *DiaryStore, reasoner llm.Provider, tok *tokenizer.Tokenizer, cfg SynthesizerConfig, log *logging.Logger) *Synthesizer {
	if cfg.InactivityWindow <= 0 {
		cfg.InactivityWindow = 10 * time.Minute
	}
	if cfg.AssistantName == "" {
		cfg.AssistantName = "Mimi"
	}
	if cfg.UserName == "" {
		cfg.UserName = "Kuumin"
	}
	return &Synthesizer{
		session:       session,
		store:         store,
		persona:       persona,
		diary:         diary,
		reasoner:      reasoner,
		tok:           tok,
		inactivity:    cfg.InactivityWindow,
		assistantName: cfg.AssistantName,
		userName:      cfg.UserName,
		log:           log,
	}
}

// RunIfIdle runs a synthesis pass when the session has been idle long enough.
// Called from the maintenance loop.
func (sy *Synthesizer) RunIfIdle(ctx context.Context) (bool, error) {
	if !sy.session.IdleFor(sy.inactivity) {
		return false, nil
	}
	return sy.RunOnce(ctx)
}

// Trigger requests a synthesis pass without blocking, regardless of idleness.
func (sy *Synthesizer) Trigger(ctx context.Context) {
	go func() {
		if _, err := sy.RunOnce(ctx); err != nil && sy.log != nil {
			sy.log.Errorf("synthesis pass failed: %v", err)
		}
	}()
}

// RunOnce performs at most one synthesis pass over the accumulated session.
// It returns false without doing work when another pass is in flight or there
// is nothing to reflect on.
func (sy *Synthesizer) RunOnce(ctx context.Context) (bool, error) {
	if !sy.inFlight.CompareAndSwap(false, true) {
		return false, nil
	}
	defer sy.inFlight.Store(false)

	exchanges := sy.session.Snapshot()
	if len(exchanges) == 0 {
		return false, nil
	}

	transcript := sy.boundTranscript(Transcript(exchanges, sy.userName, sy.assistantName))
	date := time.Now().Format(DateLayout)

	// The two reflection steps run independently so one failure does not
	// waste the other's work, but the accumulator is only cleared when both
	// landed.
	var errs []error

	entry, err := sy.writeDiary(ctx, date, transcript)
	if err != nil {
		errs = append(errs, fmt.Errorf("diary: %w", err))
	} else if _, _, err := sy.store.Commit(fmt.Sprintf("Diary Entry (%s): %s", date, summarize(entry)), CategoryMimi); err != nil {
		errs = append(errs, fmt.Errorf("diary memory: %w", err))
	}

	if err := sy.evolvePersona(ctx, transcript); err != nil {
		errs = append(errs, fmt.Errorf("persona: %w", err))
	}

	if len(errs) > 0 {
		return true, errors.Join(errs...)
	}

	sy.session.Clear()
	if sy.log != nil {
		sy.log.Infof("synthesis complete, %d exchanges reflected", len(exchanges))
	}
	return true, nil
}

// writeDiary generates and upserts the diary entry for date.
func (sy *Synthesizer) writeDiary(ctx context.Context, date, transcript string) (string, error) {
	prompt := fmt.Sprintf(`Today's Conversation (%s):
%s

You are %s. Write a personal diary entry about *everything* significant that happened today with %s. Don't just focus on the beginning; cover the evolution of the day's events. Be introspective, emotional, and authentic. Reflect on what you learned and how you feel. Keep it under 300 words. Start with "Dear Diary,".`,
		date, transcript, sy.assistantName, sy.userName)

	entry, err := sy.reasoner.Complete(ctx, []*llm.Message{llm.NewUserMessage(prompt)})
	if err != nil {
		return "", err
	}
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return "", fmt.Errorf("empty diary entry: %w", llm.ErrMalformedResponse)
	}
	if err := sy.diary.Upsert(date, entry); err != nil {
		return "", err
	}
	return entry, nil
}

// evolvePersona asks the reasoner to subtly rewrite the first-person
// narrative given the latest conversation and recent memories.
func (sy *Synthesizer) evolvePersona(ctx context.Context, transcript string) error {
	current := sy.persona.Narrative()
	if current == "" {
		current = fmt.Sprintf("I am %s, %s's personal assistant. We are just getting to know each other.", sy.assistantName, sy.userName)
	}

	var memBlock strings.Builder
	for _, it := range sy.store.Recent(30) {
		fmt.Fprintf(&memBlock, "- %s\n", it.Content)
	}

	system := fmt.Sprintf(
		"You are %s's subconscious. Your task is to update her first-person narrative identity. "+
			"Analyze the latest interactions and memories to evolve her 'self' narrative SUBTLY and GRADUALLY. "+
			"Do not make drastic changes. Focus on interpersonal emotional growth, new shared understandings, and her evolving 'vibe'.",
		sy.assistantName)
	prompt := fmt.Sprintf(`Current Identity Narrative:
%s

Recent Interaction:
%s

Recent Memories:
%s

Based on this, rewrite %s's identity narrative. It must be in the first-person ('I am...'). Incorporate how she feels about %s and her role in his life now. Keep it concise (under 150 words). Output ONLY the new narrative string.`,
		current, transcript, memBlock.String(), sy.assistantName, sy.userName)

	narrative, err := sy.reasoner.Complete(ctx, []*llm.Message{
		llm.NewSystemMessage(system),
		llm.NewUserMessage(prompt),
	})
	if err != nil {
		return err
	}
	return sy.persona.Update(narrative)
}

// summarize shortens a diary entry for its memory-bank record.
func summarize(entry string) string {
	runes := []rune(entry)
	if len(runes) <= 200 {
		return entry
	}
	return string(runes[:200]) + "..."
}

func (sy *Synthesizer) boundTranscript(text string) string {
	if sy.tok != nil {
		return sy.tok.TruncateHead(text, synthesisTranscriptTokens)
	}
	return tokenizer.TruncateHeadByChars(text, synthesisTranscriptTokens)
}
