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

// OllamaProvider implements Provider against a local Ollama server. It is
// the last routing tier: always constructible, useful when no subscription
// or API key is present.
type OllamaProvider struct {
	host         string
	defaultModel string
	client       *httpclient.Client
}

type ollamaChatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  struct {
		Temperature float64 `json:"temperature,omitempty"`
		TopP        float64 `json:"top_p,omitempty"`
		NumPredict  int     `json:"num_predict,omitempty"`
	} `json:"options"`
}

type ollamaChatResponse struct {
	Model   string      `json:"model"`
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`

	PromptEvalCount int `json:"prompt_eval_count"`
	EvalCount       int `json:"eval_count"`

	Error string `json:"error,omitempty"`
}

// NewOllamaProvider creates a local-tier provider.
func NewOllamaProvider(host, model string, timeout time.Duration) *OllamaProvider {
	if host == "" {
		host = "http://localhost:11434"
	}
	if model == "" {
		model = "gemma2:9b"
	}
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	return &OllamaProvider{
		host:         host,
		defaultModel: model,
		client:       httpclient.New(httpclient.WithTimeout(timeout), httpclient.WithMaxRetries(1)),
	}
}

func (p *OllamaProvider) Name() string { return "ollama" }
func (p *OllamaProvider) Tier() Tier   { return TierLocalFallback }

// Complete performs a non-streaming chat request against /api/chat.
func (p *OllamaProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	payload := ollamaChatRequest{Model: model, Stream: false}
	if req.System != "" {
		payload.Messages = append(payload.Messages, chatMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		payload.Messages = append(payload.Messages, chatMessage{Role: m.Role, Content: m.Content})
	}
	payload.Options.Temperature = req.Temperature
	payload.Options.TopP = req.TopP
	payload.Options.NumPredict = req.MaxTokens

	body, err := json.Marshal(payload)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return CompletionResponse{}, err
	}
	httpReq.Header.Set("content-type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("read response: %w", err)
	}

	var parsed ollamaChatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return CompletionResponse{}, fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != "" {
		return CompletionResponse{}, fmt.Errorf("ollama error: %s", parsed.Error)
	}

	return CompletionResponse{
		Content: parsed.Message.Content,
		Model:   parsed.Model,
		Usage: map[string]int{
			"prompt_tokens":     parsed.PromptEvalCount,
			"completion_tokens": parsed.EvalCount,
			"total_tokens":      parsed.PromptEvalCount + parsed.EvalCount,
		},
	}, nil
}

// PullModel asks the server to pull the given model. Model pulls can take a
// long time on slow links; the deadline is an hour unless ctx is tighter.
func (p *OllamaProvider) PullModel(ctx context.Context, model string) error {
	ctx, cancel := context.WithTimeout(ctx, time.Hour)
	defer cancel()

	body, _ := json.Marshal(map[string]any{"name": model, "stream": false})
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+"/api/pull", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("content-type", "application/json")

	// The pull endpoint is long-running; bypass the retrying client timeout.
	resp, err := (&http.Client{}).Do(httpReq)
	if err != nil {
		return fmt.Errorf("ollama pull failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama pull failed: HTTP %d", resp.StatusCode)
	}
	return nil
}
