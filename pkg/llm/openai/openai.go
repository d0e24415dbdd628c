// Package openai implements the llm.Provider and llm.Embedder interfaces
// against any OpenAI-compatible API (OpenAI, OpenRouter, local servers).
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	openai "github.com/openai/openai-go"

	"github.com/kuumin/mimi/pkg/llm"
)

// DefaultBaseURL is the default OpenAI API base URL.
const DefaultBaseURL = "https://api.openai.com/v1"

// Provider talks to an OpenAI-compatible chat-completions and embeddings API.
// It implements llm.Provider, llm.ModelCloner, and llm.Embedder.
type Provider struct {
	httpClient     *http.Client
	apiKey         string
	baseURL        string
	model          string
	embeddingModel string
	chatTimeout    time.Duration
	embedTimeout   time.Duration
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithModel sets the chat model.
func WithModel(model string) ProviderOption {
	return func(p *Provider) { p.model = model }
}

// WithBaseURL sets a custom base URL for OpenAI-compatible APIs.
func WithBaseURL(baseURL string) ProviderOption {
	return func(p *Provider) { p.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithEmbeddingModel sets the model used for the embeddings endpoint.
func WithEmbeddingModel(model string) ProviderOption {
	return func(p *Provider) { p.embeddingModel = model }
}

// WithTimeouts sets the per-call deadlines for chat and embedding requests.
func WithTimeouts(chat, embed time.Duration) ProviderOption {
	return func(p *Provider) {
		if chat > 0 {
			p.chatTimeout = chat
		}
		if embed > 0 {
			p.embedTimeout = embed
		}
	}
}

// NewProvider creates a provider with the given API key. If apiKey is empty
// the OPENAI_API_KEY environment variable is used.
func NewProvider(apiKey string, opts ...ProviderOption) (*Provider, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("openai: API key is required (parameter or OPENAI_API_KEY)")
	}

	p := &Provider{
		httpClient:     &http.Client{},
		apiKey:         apiKey,
		baseURL:        DefaultBaseURL,
		model:          "gpt-4o",
		embeddingModel: "text-embedding-3-small",
		chatTimeout:    180 * time.Second,
		embedTimeout:   60 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// CloneWithModel returns a shallow copy of p targeting the given model. The
// clone shares the HTTP client (connection pool), API key, and base URL.
func (p *Provider) CloneWithModel(model string) llm.Provider {
	clone := *p
	clone.model = model
	return &clone
}

// GetModel returns the chat model in use.
func (p *Provider) GetModel() string { return p.model }

// Complete sends messages and returns the full assistant reply.
func (p *Provider) Complete(ctx context.Context, messages []*llm.Message) (string, error) {
	return p.complete(ctx, messages, false)
}

// CompleteJSON sends messages with response_format json_object and returns
// the raw JSON text the model produced.
func (p *Provider) CompleteJSON(ctx context.Context, messages []*llm.Message) (string, error) {
	return p.complete(ctx, messages, true)
}

func (p *Provider) complete(ctx context.Context, messages []*llm.Message, jsonMode bool) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.chatTimeout)
	defer cancel()

	reqBody := map[string]interface{}{
		"model":    p.model,
		"messages": convertMessages(messages),
	}
	if jsonMode {
		reqBody["response_format"] = map[string]string{"type": "json_object"}
	}

	body, err := p.post(ctx, "/chat/completions", reqBody)
	if err != nil {
		return "", err
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("openai: decode completion: %v: %w", err, llm.ErrMalformedResponse)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("openai: completion has no choices: %w", llm.ErrMalformedResponse)
	}
	return parsed.Choices[0].Message.Content, nil
}

// Embed converts text into a vector via the embeddings endpoint. Newlines are
// flattened to spaces, which embedding endpoints score more consistently.
func (p *Provider) Embed(ctx context.Context, text string) ([]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, p.embedTimeout)
	defer cancel()

	reqBody := map[string]interface{}{
		"model": p.embeddingModel,
		"input": strings.ReplaceAll(text, "\n", " "),
	}

	body, err := p.post(ctx, "/embeddings", reqBody)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("openai: decode embedding: %v: %w", err, llm.ErrMalformedResponse)
	}
	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("openai: embedding response has no data: %w", llm.ErrMalformedResponse)
	}
	return parsed.Data[0].Embedding, nil
}

// post sends an authenticated JSON request and returns the response body.
// Transport failures and non-2xx statuses map to llm.ErrUnavailable.
func (p *Provider) post(ctx context.Context, path string, reqBody interface{}) ([]byte, error) {
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("openai: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("openai: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai: %s: %v: %w", path, err, llm.ErrUnavailable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai: read response: %v: %w", err, llm.ErrUnavailable)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openai: %s returned status %d: %s: %w",
			path, resp.StatusCode, truncate(string(body), 200), llm.ErrUnavailable)
	}
	return body, nil
}

// convertMessages converts our Message format to OpenAI's
// ChatCompletionMessageParamUnion format.
func convertMessages(messages []*llm.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case llm.RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case llm.RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
