package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/agourakis82/beagle/pkg/httpclient"
)

// ChatCompletionsProvider implements Provider for OpenAI-compatible
// chat-completions APIs. OpenAI, DeepSeek and Grok (xAI) all speak this
// dialect, differing only in host, default model and credentials.
type ChatCompletionsProvider struct {
	name         string
	apiKey       string
	host         string
	defaultModel string
	client       *httpclient.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model           string        `json:"model"`
	Messages        []chatMessage `json:"messages"`
	MaxTokens       int           `json:"max_tokens,omitempty"`
	Temperature     float64       `json:"temperature,omitempty"`
	TopP            float64       `json:"top_p,omitempty"`
	PresencePenalty float64       `json:"presence_penalty,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func newChatCompletionsProvider(name, apiKey, host, model string, timeout time.Duration) (*ChatCompletionsProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required for %s", name)
	}

	return &ChatCompletionsProvider{
		name:         name,
		apiKey:       apiKey,
		host:         host,
		defaultModel: model,
		client: httpclient.New(
			httpclient.WithTimeout(timeout),
			httpclient.WithHeaderParser(httpclient.ParseOpenAIRateLimitHeaders),
		),
	}, nil
}

// NewOpenAIProvider creates a provider for the OpenAI API.
func NewOpenAIProvider(apiKey string) (*ChatCompletionsProvider, error) {
	return newChatCompletionsProvider("openai", apiKey, "https://api.openai.com", "gpt-4o-mini", 120*time.Second)
}

// NewDeepSeekProvider creates a provider for the DeepSeek API.
func NewDeepSeekProvider(apiKey string) (*ChatCompletionsProvider, error) {
	return newChatCompletionsProvider("deepseek", apiKey, "https://api.deepseek.com", "deepseek-chat", 120*time.Second)
}

// NewGrokProvider creates a provider for the xAI API.
func NewGrokProvider(apiKey string) (*ChatCompletionsProvider, error) {
	return newChatCompletionsProvider("grok", apiKey, "https://api.x.ai", "grok-4", 120*time.Second)
}

func (p *ChatCompletionsProvider) Name() string { return p.name }
func (p *ChatCompletionsProvider) Tier() Tier   { return TierAPI }

// Complete performs a chat-completions request.
func (p *ChatCompletionsProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	payload := chatRequest{
		Model:           model,
		MaxTokens:       req.MaxTokens,
		Temperature:     req.Temperature,
		TopP:            req.TopP,
		PresencePenalty: req.PresencePenalty,
	}
	if req.System != "" {
		payload.Messages = append(payload.Messages, chatMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		payload.Messages = append(payload.Messages, chatMessage{Role: m.Role, Content: m.Content})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return CompletionResponse{}, err
	}
	httpReq.Header.Set("content-type", "application/json")
	httpReq.Header.Set("authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("%s request failed: %w", p.name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("read response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return CompletionResponse{}, fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != nil {
		return CompletionResponse{}, fmt.Errorf("%s API error: %s", p.name, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return CompletionResponse{}, fmt.Errorf("%s returned no choices", p.name)
	}

	respModel := parsed.Model
	if respModel == "" {
		respModel = model
	}

	return CompletionResponse{
		Content: parsed.Choices[0].Message.Content,
		Model:   respModel,
		Usage: map[string]int{
			"prompt_tokens":     parsed.Usage.PromptTokens,
			"completion_tokens": parsed.Usage.CompletionTokens,
			"total_tokens":      parsed.Usage.TotalTokens,
		},
	}, nil
}
