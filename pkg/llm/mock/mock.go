// Package mock provides scriptable llm.Provider and llm.Embedder
// implementations for tests.
package mock

import (
	"context"
	"hash/fnv"
	"math"
	"sync"

	"github.com/kuumin/mimi/pkg/llm"
)

// Provider replays scripted responses in order. Once the script is exhausted
// the last response repeats. Setting Err makes every call fail.
type Provider struct {
	mu        sync.Mutex
	responses []string
	next      int
	model     string

	// Err, when non-nil, is returned by every call.
	Err error

	// Calls records the message slices passed to Complete/CompleteJSON.
	Calls [][]*llm.Message
}

// NewProvider creates a mock provider that replays the given responses.
func NewProvider(responses ...string) *Provider {
	return &Provider{responses: responses, model: "mock-model"}
}

// Complete returns the next scripted response.
func (p *Provider) Complete(ctx context.Context, messages []*llm.Message) (string, error) {
	return p.reply(messages)
}

// CompleteJSON returns the next scripted response.
func (p *Provider) CompleteJSON(ctx context.Context, messages []*llm.Message) (string, error) {
	return p.reply(messages)
}

func (p *Provider) reply(messages []*llm.Message) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Calls = append(p.Calls, messages)
	if p.Err != nil {
		return "", p.Err
	}
	if len(p.responses) == 0 {
		return "", nil
	}
	resp := p.responses[p.next]
	if p.next < len(p.responses)-1 {
		p.next++
	}
	return resp, nil
}

// GetModel returns the mock model name.
func (p *Provider) GetModel() string { return p.model }

// CloneWithModel returns a provider sharing the same script but reporting the
// given model name.
func (p *Provider) CloneWithModel(model string) llm.Provider {
	clone := *p
	clone.model = model
	return &clone
}

// Embedder produces deterministic unit vectors derived from a hash of the
// input text, so identical texts embed identically and different texts are
// very unlikely to collide. Setting Err makes every call fail.
type Embedder struct {
	mu         sync.Mutex
	dimensions int

	// Err, when non-nil, is returned by every call.
	Err error

	// Embedded records every text passed to Embed.
	Embedded []string
}

// NewEmbedder creates a deterministic mock embedder.
func NewEmbedder() *Embedder {
	return &Embedder{dimensions: 64}
}

// Embed returns a deterministic unit vector for text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.Embedded = append(e.Embedded, text)
	if e.Err != nil {
		return nil, e.Err
	}

	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float64, e.dimensions)
	for i := range vec {
		// Linear congruential step per dimension.
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float64(int64(seed)) / float64(math.MaxInt64)
	}
	return normalize(vec), nil
}

func normalize(vec []float64) []float64 {
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	out := make([]float64, len(vec))
	for i, v := range vec {
		out[i] = v / norm
	}
	return out
}
