package vault

import (
	"context"
	"fmt"
	"sort"

	"github.com/kuumin/mimi/pkg/memory"
)

// Search embeds the query and scans every indexed chunk, returning up to topK
// results above the configured similarity threshold, best first.
func (ix *Indexer) Search(ctx context.Context, query string, topK int) ([]memory.VaultResult, error) {
	queryVec, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("vault: embed query: %w", err)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	var results []memory.VaultResult
	for relPath, chunks := range ix.vectors {
		for _, chunk := range chunks {
			sim := memory.CosineSimilarity(queryVec, chunk.Embedding)
			if sim <= ix.cfg.SemanticThreshold {
				continue
			}
			results = append(results, memory.VaultResult{
				Path:              relPath,
				Text:              chunk.Text,
				Score:             sim,
				AssistantAuthored: chunk.AssistantAuthored,
			})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Path < results[j].Path
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// SearchFunc adapts the indexer to the retrieval engine's vault strategy.
// A nil indexer yields a nil function, which disables the strategy.
func (ix *Indexer) SearchFunc() memory.VaultSearchFunc {
	if ix == nil {
		return nil
	}
	return ix.Search
}
