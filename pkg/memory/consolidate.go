package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/kuumin/mimi/pkg/llm"
	"github.com/kuumin/mimi/pkg/logging"
)

// Consolidator bounds the active store's growth. Once the working set crosses
// the size threshold it compresses each sufficiently large category into
// fewer, denser statements via an LLM call and swaps them into the active
// store. The archive always retains the raw pre-compression facts.
//
// Compression is best-effort and never destructive: a category whose LLM call
// fails (or returns garbage) keeps its original items untouched.
type Consolidator struct {
	store    *Store
	provider llm.Provider

	threshold       int
	minCategorySize int
	inFlight        atomic.Bool
	log             *logging.Logger
}

// ConsolidatorConfig configures a Consolidator.
type ConsolidatorConfig struct {
	// Threshold is the active-store size that triggers a pass.
	Threshold int
	// MinCategorySize is the smallest category worth compressing.
	MinCategorySize int
}

// NewConsolidator creates a consolidation engine over the given store.
func NewConsolidator(store *Store, provider llm.Provider, cfg ConsolidatorConfig, log *logging.Logger) *Consolidator {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 32
	}
	if cfg.MinCategorySize <= 0 {
		cfg.MinCategorySize = 5
	}
	return &Consolidator{
		store:           store,
		provider:        provider,
		threshold:       cfg.Threshold,
		minCategorySize: cfg.MinCategorySize,
		log:             log,
	}
}

// Trigger requests a consolidation pass without blocking. A request arriving
// while a pass is already running is skipped, not queued; the maintenance
// loop retries on its own schedule.
func (c *Consolidator) Trigger(ctx context.Context) {
	go func() {
		if _, err := c.RunOnce(ctx); err != nil && c.log != nil {
			c.log.Errorf("consolidation pass failed: %v", err)
		}
	}()
}

// RunOnce performs at most one consolidation pass. It returns false without
// doing work when another pass is in flight or the active store is still
// under the threshold.
func (c *Consolidator) RunOnce(ctx context.Context) (bool, error) {
	if !c.inFlight.CompareAndSwap(false, true) {
		return false, nil
	}
	defer c.inFlight.Store(false)

	total := c.store.ActiveCount()
	if total <= c.threshold {
		return false, nil
	}
	if c.log != nil {
		c.log.Infof("consolidating active store (%d items, threshold %d)", total, c.threshold)
	}

	grouped := c.store.ActiveByCategory()
	for _, category := range Categories() {
		items := grouped[category]
		if len(items) < c.minCategorySize {
			continue
		}
		if err := ctx.Err(); err != nil {
			return true, err
		}

		compressed, err := c.compressCategory(ctx, category, items)
		if err != nil {
			// Retain the category unchanged; compression is never
			// allowed to lose facts on failure.
			if c.log != nil {
				c.log.Warnf("category %s retained, compression failed: %v", category, err)
			}
			continue
		}

		replacement := make([]Item, 0, len(compressed))
		for _, content := range compressed {
			replacement = append(replacement, NewItem(content, category))
		}
		if err := c.store.ReplaceCategory(category, replacement); err != nil {
			return true, fmt.Errorf("memory: replace category %s: %w", category, err)
		}
		if c.log != nil {
			c.log.Infof("category %s compressed %d -> %d items", category, len(items), len(replacement))
		}
	}
	return true, nil
}

// compressCategory asks the LLM to consolidate one category's facts and
// returns the compressed statements.
func (c *Consolidator) compressCategory(ctx context.Context, category Category, items []Item) ([]string, error) {
	var block strings.Builder
	for _, it := range items {
		fmt.Fprintf(&block, "- %s\n", it.Content)
	}

	system := fmt.Sprintf(
		"You are a Memory Consolidation AI. You are compressing the memory bank for the category: '%s'. "+
			"Consolidate facts, remove redundancy, but preserve specific important details.", category)
	prompt := fmt.Sprintf(
		"Current Memories (%s):\n%s\nConsolidate these into a concise list. "+
			`Return JSON: {"compressed_memories": ["fact 1", "fact 2"]}`, category, block.String())

	raw, err := c.provider.CompleteJSON(ctx, []*llm.Message{
		llm.NewSystemMessage(system),
		llm.NewUserMessage(prompt),
	})
	if err != nil {
		return nil, err
	}

	var parsed struct {
		CompressedMemories []string `json:"compressed_memories"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("memory: decode compression for %s: %v: %w", category, err, llm.ErrMalformedResponse)
	}

	out := parsed.CompressedMemories[:0]
	for _, content := range parsed.CompressedMemories {
		if content = strings.TrimSpace(content); content != "" {
			out = append(out, content)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("memory: compression for %s returned no items: %w", category, llm.ErrMalformedResponse)
	}
	return out, nil
}
