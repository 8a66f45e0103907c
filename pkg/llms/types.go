// Package llms provides LLM provider implementations for the orchestrator.
package llms

import "context"

// Tier describes where a provider sits in the routing preference order.
// CLI providers ride user subscriptions and are preferred; hosted APIs come
// next; the local fallback is tried last.
type Tier int

const (
	TierCLI Tier = iota
	TierAPI
	TierLocalFallback
)

func (t Tier) String() string {
	switch t {
	case TierCLI:
		return "cli"
	case TierAPI:
		return "api"
	case TierLocalFallback:
		return "local-fallback"
	default:
		return "unknown"
	}
}

// Message represents a single message in a conversation.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// UserMessage builds a user-role message.
func UserMessage(content string) Message {
	return Message{Role: "user", Content: content}
}

// AssistantMessage builds an assistant-role message.
func AssistantMessage(content string) Message {
	return Message{Role: "assistant", Content: content}
}

// CompletionRequest is the provider-agnostic completion input.
type CompletionRequest struct {
	// Model is a hint; providers map it onto their own model names and fall
	// back to their configured default when empty.
	Model       string    `json:"model,omitempty"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	// System replaces the provider's system prompt when non-empty.
	System string `json:"system,omitempty"`

	// Sampling extras produced by the personality engine. Zero values are
	// omitted from provider payloads.
	TopP            float64 `json:"top_p,omitempty"`
	PresencePenalty float64 `json:"presence_penalty,omitempty"`
}

// CompletionResponse is the provider-agnostic completion output.
type CompletionResponse struct {
	Content string         `json:"content"`
	Model   string         `json:"model"`
	Usage   map[string]int `json:"usage"`
}

// Provider is the contract every LLM backend implements.
type Provider interface {
	// Complete performs a completion. Implementations honor ctx deadlines
	// and return transport-level errors as plain Go errors (wrapped with a
	// provider prefix via %w); the orchestrator is responsible for
	// downgrading them to its own error taxonomy.
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)

	// Name is the stable provider identifier ("anthropic", "ollama", ...).
	Name() string

	// Tier places the provider in the routing preference order.
	Tier() Tier
}

// FirstUserContent returns the content of the first user message, or "".
func FirstUserContent(msgs []Message) string {
	for _, m := range msgs {
		if m.Role == "user" {
			return m.Content
		}
	}
	return ""
}

// JoinContents flattens all message contents into a single prompt. Providers
// without a structured chat API use this form.
func JoinContents(msgs []Message) string {
	var out string
	for i, m := range msgs {
		if i > 0 {
			out += "\n"
		}
		out += m.Content
	}
	return out
}
