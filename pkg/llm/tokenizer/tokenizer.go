// Package tokenizer provides client-side token counting and truncation for
// bounding prompt sections before they are sent to a provider.
package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer counts and truncates text in model tokens using the cl100k_base
// encoding, which is close enough for budget purposes across the
// OpenAI-compatible model families we target.
type Tokenizer struct {
	encoding *tiktoken.Tiktoken
}

// New creates a tokenizer. Initialization can fail when the encoding data is
// unavailable; callers are expected to treat a nil tokenizer as "no counting"
// and fall back to a character heuristic.
func New() (*Tokenizer, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("tokenizer: load encoding: %w", err)
	}
	return &Tokenizer{encoding: enc}, nil
}

// CountTokens returns the number of tokens in text.
func (t *Tokenizer) CountTokens(text string) int {
	return len(t.encoding.Encode(text, nil, nil))
}

// TruncateHead drops tokens from the front of text until it fits within
// maxTokens, keeping the most recent content. Used for transcripts, where the
// tail matters more than the head.
func (t *Tokenizer) TruncateHead(text string, maxTokens int) string {
	tokens := t.encoding.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return t.encoding.Decode(tokens[len(tokens)-maxTokens:])
}

// TruncateHeadByChars is the fallback bound used when no tokenizer is
// available, approximating four characters per token.
func TruncateHeadByChars(text string, maxTokens int) string {
	maxChars := maxTokens * 4
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}
	return string(runes[len(runes)-maxChars:])
}
