package llms

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

// EstimateTokens approximates the token count of text. CLI and local
// providers do not report usage, so their responses carry estimates.
// Falls back to len/4 when the encoding cannot be loaded offline.
func EstimateTokens(text string) int {
	encOnce.Do(func() {
		e, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			enc = e
		}
	})

	if enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return len(text) / 4
}

// EstimateUsage builds a usage map from prompt and completion text.
func EstimateUsage(prompt, completion string) map[string]int {
	in := EstimateTokens(prompt)
	out := EstimateTokens(completion)
	return map[string]int{
		"prompt_tokens":     in,
		"completion_tokens": out,
		"total_tokens":      in + out,
	}
}
