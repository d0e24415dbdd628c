package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kuumin/mimi/pkg/llm"
	"github.com/kuumin/mimi/pkg/memory"
)

// Legacy items are classified in batches so one prompt never carries the
// whole store.
const classifyBatchSize = 20

// knownCategory reports whether the stored category string is one of the four
// canonical categories. Items imported from older store formats may carry an
// empty or free-form category.
func knownCategory(c memory.Category) bool {
	for _, known := range memory.Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// ClassifyLegacyMemories finds active items whose category is missing or
// unknown, asks the provider to sort them into the canonical categories, and
// rewrites them in place. It returns the number of items reclassified.
// Batches that fail to classify are left unchanged for a later pass.
func (a *Assistant) ClassifyLegacyMemories(ctx context.Context) (int, error) {
	var legacy []memory.Item
	for _, it := range a.store.Active() {
		if !knownCategory(it.Category) {
			legacy = append(legacy, it)
		}
	}
	if len(legacy) == 0 {
		return 0, nil
	}

	updated := 0
	for start := 0; start < len(legacy); start += classifyBatchSize {
		if err := ctx.Err(); err != nil {
			return updated, err
		}
		end := start + classifyBatchSize
		if end > len(legacy) {
			end = len(legacy)
		}
		batch := legacy[start:end]

		classified, err := a.classifyBatch(ctx, batch)
		if err != nil {
			if a.log != nil {
				a.log.Warnf("classification batch failed: %v", err)
			}
			continue
		}

		for _, it := range batch {
			category, ok := classified[it.Content]
			if !ok {
				continue
			}
			changed, err := a.store.SetCategory(it.ID, category)
			if err != nil {
				return updated, err
			}
			if changed {
				updated++
			}
		}
	}
	return updated, nil
}

// classifyBatch maps each item's content to its classified category.
func (a *Assistant) classifyBatch(ctx context.Context, batch []memory.Item) (map[string]memory.Category, error) {
	contents := make([]string, len(batch))
	for i, it := range batch {
		contents[i] = it.Content
	}
	system, user := classificationPrompt(contents)

	raw, err := a.chat.CompleteJSON(ctx, []*llm.Message{
		llm.NewSystemMessage(system),
		llm.NewUserMessage(user),
	})
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Classified []struct {
			Category string `json:"category"`
			Content  string `json:"content"`
		} `json:"classified"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("agent: decode classification: %v: %w", err, llm.ErrMalformedResponse)
	}

	out := make(map[string]memory.Category, len(parsed.Classified))
	for _, c := range parsed.Classified {
		out[c.Content] = memory.NormalizeCategory(c.Category)
	}
	return out, nil
}
