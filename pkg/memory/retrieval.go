package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/kuumin/mimi/pkg/logging"
)

// VaultResult is a document-vault search hit as consumed by the retrieval
// engine. AssistantAuthored is the authorship field stored at index time.
type VaultResult struct {
	Path              string
	Text              string
	Score             float64
	AssistantAuthored bool
}

// VaultSearchFunc is the vault retrieval strategy. A nil function disables
// the vault strategy entirely.
type VaultSearchFunc func(ctx context.Context, query string, topK int) ([]VaultResult, error)

// Inputs too conversationally trivial to be worth a retrieval round-trip.
var trivialInputs = map[string]bool{
	"hi": true, "hello": true, "hey": true, "yo": true,
	"ok": true, "okay": true, "yes": true, "no": true, "sure": true,
	"thanks": true, "thank you": true, "thx": true,
	"bye": true, "goodbye": true, "good night": true, "good morning": true,
	"lol": true, "haha": true, "hmm": true,
}

// Results pulled per strategy before merging.
const perStrategyTopK = 2

// Retriever produces the reminiscence block for a conversational turn by
// merging three concurrently-run strategies: vault semantic search, session
// memory semantic search, and literal keyword search over the archive.
type Retriever struct {
	store       *Store
	index       *VectorIndex
	vaultSearch VaultSearchFunc

	semanticThreshold float64
	assistantName     string
	userName          string
	log               *logging.Logger
}

// RetrieverConfig configures a Retriever.
type RetrieverConfig struct {
	SemanticThreshold float64
	AssistantName     string
	UserName          string
}

// NewRetriever creates a retrieval engine over the given store and index.
func NewRetriever(store *Store, index *VectorIndex, vaultSearch VaultSearchFunc, cfg RetrieverConfig, log *logging.Logger) *Retriever {
	if cfg.SemanticThreshold <= 0 {
		cfg.SemanticThreshold = 0.3
	}
	if cfg.AssistantName == "" {
		cfg.AssistantName = "Mimi"
	}
	if cfg.UserName == "" {
		cfg.UserName = "Kuumin"
	}
	return &Retriever{
		store:             store,
		index:             index,
		vaultSearch:       vaultSearch,
		semanticThreshold: cfg.SemanticThreshold,
		assistantName:     cfg.AssistantName,
		userName:          cfg.UserName,
		log:               log,
	}
}

// Reminiscence returns the merged, attributed context block for the given
// user input, or an empty string when nothing relevant is found. An empty
// result means "omit this section", never failure: each strategy degrades
// independently and a failing strategy simply contributes nothing.
func (r *Retriever) Reminiscence(ctx context.Context, input string) string {
	if isTrivialInput(input) {
		return ""
	}

	var (
		wg       sync.WaitGroup
		vaultRes []VaultResult
		semantic []Item
		literal  []Item
	)

	if r.vaultSearch != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := r.vaultSearch(ctx, input, perStrategyTopK)
			if err != nil {
				r.logf("vault search failed: %v", err)
				return
			}
			vaultRes = res
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		matches, err := r.index.Query(ctx, input, perStrategyTopK, r.semanticThreshold)
		if err != nil {
			r.logf("semantic search failed: %v", err)
			return
		}
		semantic = r.resolveMatches(matches)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		literal = r.store.LiteralSearch(input, perStrategyTopK)
	}()

	wg.Wait()

	// Merge order is deterministic regardless of which strategy finished
	// first: vault, then semantic, then literal. Dedup happens on the raw
	// content before attribution prefixing.
	var b strings.Builder
	seen := map[string]bool{}
	found := false

	for _, res := range vaultRes {
		author := r.userName
		if res.AssistantAuthored {
			author = r.assistantName
		}
		content := fmt.Sprintf("[%s] [author: %s] %s", res.Path, author, res.Text)
		if seen[content] {
			continue
		}
		seen[content] = true
		fmt.Fprintf(&b, "- [Vault] %s\n", content)
		found = true
	}
	for _, it := range semantic {
		if seen[it.Content] {
			continue
		}
		seen[it.Content] = true
		fmt.Fprintf(&b, "- [Intuition] %s\n", it.Content)
		found = true
	}
	for _, it := range literal {
		if seen[it.Content] {
			continue
		}
		seen[it.Content] = true
		fmt.Fprintf(&b, "- [Recall] %s\n", it.Content)
		found = true
	}

	if !found {
		return ""
	}
	return "**Reminiscence (Relevant History & Notes):**\n" + b.String()
}

// resolveMatches joins vector matches back to their archive items. Matches
// whose item has been deleted resolve to nothing (stale vectors are
// tolerated, not errors).
func (r *Retriever) resolveMatches(matches []Match) []Item {
	byID := make(map[string]Item)
	for _, it := range r.store.Archive() {
		byID[VectorID(it.ID)] = it
	}
	var out []Item
	for _, m := range matches {
		if it, ok := byID[m.ID]; ok {
			out = append(out, it)
		}
	}
	return out
}

func (r *Retriever) logf(format string, v ...interface{}) {
	if r.log != nil {
		r.log.Warnf(format, v...)
	}
}

// isTrivialInput reports whether input is a short greeting or acknowledgement
// not worth a retrieval pass.
func isTrivialInput(input string) bool {
	normalized := strings.ToLower(strings.TrimSpace(input))
	normalized = strings.TrimRight(normalized, ".!?,:;")
	if normalized == "" {
		return true
	}
	if len(strings.Fields(normalized)) >= 3 {
		return false
	}
	return trivialInputs[normalized]
}
