package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// CLIProvider wraps a locally installed coding-assistant CLI (claude, codex)
// as the highest-priority tier: it rides the user's subscription instead of
// metered API keys.
type CLIProvider struct {
	name    string
	binary  string
	args    func(req CompletionRequest) []string
	timeout time.Duration
}

// NewClaudeCLIProvider wraps the `claude` binary.
func NewClaudeCLIProvider() (*CLIProvider, error) {
	if _, err := exec.LookPath("claude"); err != nil {
		return nil, fmt.Errorf("claude CLI not found in PATH: %w", err)
	}

	return &CLIProvider{
		name:   "claude-cli",
		binary: "claude",
		args: func(req CompletionRequest) []string {
			args := []string{"-p", "--output-format", "json"}
			if req.System != "" {
				args = append(args, "--system-prompt", req.System)
			}
			return args
		},
		timeout: 120 * time.Second,
	}, nil
}

// NewCodexCLIProvider wraps the `codex` binary.
func NewCodexCLIProvider() (*CLIProvider, error) {
	if _, err := exec.LookPath("codex"); err != nil {
		return nil, fmt.Errorf("codex CLI not found in PATH: %w", err)
	}

	return &CLIProvider{
		name:    "codex-cli",
		binary:  "codex",
		args:    func(CompletionRequest) []string { return []string{"exec", "--json"} },
		timeout: 120 * time.Second,
	}, nil
}

func (p *CLIProvider) Name() string { return p.name }
func (p *CLIProvider) Tier() Tier   { return TierCLI }

// Complete shells out to the CLI, feeding the flattened conversation on
// stdin and reading the answer from stdout.
func (p *CLIProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	prompt := JoinContents(req.Messages)

	cmd := exec.CommandContext(ctx, p.binary, p.args(req)...)
	cmd.Stdin = strings.NewReader(prompt)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return CompletionResponse{}, fmt.Errorf("%s timed out: %w", p.name, ctx.Err())
		}
		return CompletionResponse{}, fmt.Errorf("%s failed: %w (%s)", p.name, err, strings.TrimSpace(stderr.String()))
	}

	content := extractCLIResult(stdout.Bytes())
	if content == "" {
		return CompletionResponse{}, fmt.Errorf("%s produced no output", p.name)
	}

	return CompletionResponse{
		Content: content,
		Model:   p.name,
		Usage:   EstimateUsage(prompt+req.System, content),
	}, nil
}

// extractCLIResult pulls the answer text out of the CLI's JSON envelope,
// falling back to raw stdout for plain-text output.
func extractCLIResult(out []byte) string {
	var envelope struct {
		Result string `json:"result"`
		Text   string `json:"text"`
	}
	if err := json.Unmarshal(out, &envelope); err == nil {
		if envelope.Result != "" {
			return envelope.Result
		}
		if envelope.Text != "" {
			return envelope.Text
		}
	}
	return strings.TrimSpace(string(out))
}
