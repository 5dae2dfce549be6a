// Package llm provides adapters for chat-completion providers.
package llm

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	defaultEncoder *tiktoken.Tiktoken
	encoderOnce    sync.Once
	encoderErr     error
)

// getEncoder returns the shared tiktoken encoder, initializing it
// lazily. cl100k_base is the GPT-4 encoding and a close enough
// approximation for the other chat-completion providers.
func getEncoder() (*tiktoken.Tiktoken, error) {
	encoderOnce.Do(func() {
		defaultEncoder, encoderErr = tiktoken.GetEncoding("cl100k_base")
	})
	return defaultEncoder, encoderErr
}

// EstimateTokens returns an estimated token count for the given text.
// Used for request logging and for sanity-checking prompt size against
// model limits; the count is advisory, not exact.
func EstimateTokens(text string) int {
	enc, err := getEncoder()
	if err != nil {
		// Character-based estimate when the encoding is unavailable.
		return len(text) / 4
	}
	return len(enc.Encode(text, nil, nil))
}
