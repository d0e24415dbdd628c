// Package llm provides the abstractions the memory subsystem uses to talk to
// remote chat-completion and embedding providers.
//
// The core only ever needs "send structured prompt, get back text, optionally
// JSON-structured" plus "turn text into a vector". Everything provider
// specific (wire format, SSE, auth) lives behind these interfaces in the
// implementation packages.
package llm

import (
	"context"
	"errors"
)

// Provider failure taxonomy. Callers distinguish "the provider could not be
// reached" from "the provider answered garbage"; both degrade gracefully but
// they are logged and retried differently.
var (
	// ErrUnavailable wraps network failures, timeouts, and non-2xx
	// responses from the provider.
	ErrUnavailable = errors.New("llm: provider unavailable")

	// ErrMalformedResponse wraps responses that arrived but could not be
	// decoded into the expected shape.
	ErrMalformedResponse = errors.New("llm: malformed provider response")
)

// MessageRole identifies the author of a chat message.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is a single chat turn sent to or received from a provider.
type Message struct {
	Role    MessageRole
	Content string
}

// NewSystemMessage creates a system-role message.
func NewSystemMessage(content string) *Message {
	return &Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a user-role message.
func NewUserMessage(content string) *Message {
	return &Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant-role message.
func NewAssistantMessage(content string) *Message {
	return &Message{Role: RoleAssistant, Content: content}
}

// Provider is the chat-completion interface used for conversation,
// consolidation, diary generation, and persona evolution.
type Provider interface {
	// Complete sends messages and returns the assistant's full reply text.
	Complete(ctx context.Context, messages []*Message) (string, error)

	// CompleteJSON is Complete with the provider instructed to emit a
	// single JSON object (response_format json_object). The returned
	// string is the raw JSON text; decoding is the caller's concern.
	CompleteJSON(ctx context.Context, messages []*Message) (string, error)

	// GetModel returns the model name in use.
	GetModel() string
}

// ModelCloner is an optional interface providers can implement to support
// lightweight per-call model overrides (e.g. routing persona evolution to a
// higher-capability reasoner) without constructing a second provider. The
// clone shares credentials and transport with the original.
type ModelCloner interface {
	CloneWithModel(model string) Provider
}

// Embedder converts text into a fixed-length vector. Implementations cache
// nothing; callers own persistence of the resulting vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// WithModel returns p retargeted at the given model when p supports cloning,
// or p unchanged otherwise.
func WithModel(p Provider, model string) Provider {
	if model == "" || model == p.GetModel() {
		return p
	}
	if c, ok := p.(ModelCloner); ok {
		return c.CloneWithModel(model)
	}
	return p
}
