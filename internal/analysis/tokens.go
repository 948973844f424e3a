package analysis

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"
)

const truncationMarker = " [truncated]"

// TokenBudget bounds how much of an answer is sent to the model.
type TokenBudget struct {
	codec tokenizer.Codec
}

// NewTokenBudget loads the cl100k_base encoding. Claude, Gemini and Mistral
// tokenize differently, but cl100k is close enough for a budget.
func NewTokenBudget() (*TokenBudget, error) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer: %w", err)
	}
	return &TokenBudget{codec: codec}, nil
}

// Count returns the number of tokens in text, estimating four characters
// per token if encoding fails.
func (b *TokenBudget) Count(text string) int {
	if b == nil || b.codec == nil {
		return len(text) / 4
	}
	n, err := b.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return n
}

// Truncate cuts text to at most max tokens at a token boundary and appends
// a marker. max <= 0 disables truncation.
func (b *TokenBudget) Truncate(text string, max int) string {
	if max <= 0 || b == nil || b.codec == nil {
		return text
	}
	ids, _, err := b.codec.Encode(text)
	if err != nil || len(ids) <= max {
		return text
	}
	cut, err := b.codec.Decode(ids[:max])
	if err != nil {
		return text
	}
	return cut + truncationMarker
}
