// Package orchestrator is the single entry point for turning a completion
// request into a completion response.
//
// Providers are tiered: CLI wrappers riding user subscriptions come first,
// hosted APIs second, the local-model fallback last. Smart routing walks the
// tiers in order and short-circuits on the first success; ensemble mode fans
// out to every provider in parallel.
package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agourakis82/beagle/pkg/config"
	"github.com/agourakis82/beagle/pkg/llms"
	"github.com/agourakis82/beagle/pkg/personality"
)

// Strategy selects how requests are dispatched.
type Strategy int

const (
	// SmartRouting routes to the first available provider by tier.
	SmartRouting Strategy = iota
	// Ensemble fans out to all providers and combines the results.
	EnsembleStrategy
	// Specific forces a single named provider.
	Specific
)

// ProviderResponse pairs a provider name with its response.
type ProviderResponse struct {
	Provider string
	Response llms.CompletionResponse
}

// EnsembleResult holds all successful ensemble responses plus the combined
// answer. Combination takes the first success; a voting scheme can replace
// it without changing this contract.
type EnsembleResult struct {
	Responses []ProviderResponse
	Combined  string
}

// Orchestrator routes completion requests across providers. It is immutable
// after construction and safe to share across goroutines.
type Orchestrator struct {
	registry    *llms.ProviderRegistry
	strategy    Strategy
	specific    string
	personality *personality.Engine
}

// Option configures an Orchestrator at construction time.
type Option func(*Orchestrator)

// WithStrategy sets the dispatch strategy.
func WithStrategy(s Strategy) Option {
	return func(o *Orchestrator) { o.strategy = s }
}

// WithSpecificProvider forces all requests through one provider.
func WithSpecificProvider(name string) Option {
	return func(o *Orchestrator) {
		o.strategy = Specific
		o.specific = name
	}
}

// New creates an orchestrator over an explicit provider registry.
func New(registry *llms.ProviderRegistry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry:    registry,
		strategy:    SmartRouting,
		personality: personality.NewEngine(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// AutoConfigure discovers providers from the environment, priority order:
// claude CLI, codex CLI, then API keys, then the local fallback. The local
// tier is always registered so the orchestrator never starts empty-handed.
func AutoConfigure(cfg *config.Config, opts ...Option) *Orchestrator {
	reg := llms.NewProviderRegistry()

	if p, err := llms.NewClaudeCLIProvider(); err == nil {
		_ = reg.RegisterProvider(p)
	}
	if p, err := llms.NewCodexCLIProvider(); err == nil {
		_ = reg.RegisterProvider(p)
	}

	if key := cfg.Providers.AnthropicAPIKey; key != "" {
		if p, err := llms.NewAnthropicProvider(key); err == nil {
			_ = reg.RegisterProvider(p)
		}
	}
	if key := cfg.Providers.OpenAIAPIKey; key != "" {
		if p, err := llms.NewOpenAIProvider(key); err == nil {
			_ = reg.RegisterProvider(p)
		}
	}
	if key := cfg.Providers.XAIAPIKey; key != "" {
		if p, err := llms.NewGrokProvider(key); err == nil {
			_ = reg.RegisterProvider(p)
		}
	}
	if key := cfg.Providers.DeepSeekAPIKey; key != "" {
		if p, err := llms.NewDeepSeekProvider(key); err == nil {
			_ = reg.RegisterProvider(p)
		}
	}

	_ = reg.RegisterProvider(llms.NewOllamaProvider(cfg.Local.Host, cfg.Local.Model, cfg.Local.Timeout))

	slog.Info("orchestrator configured", "providers", reg.Names())
	return New(reg, opts...)
}

// AvailableProviders lists registered provider names in tier order.
func (o *Orchestrator) AvailableProviders() []string {
	var names []string
	for _, tier := range []llms.Tier{llms.TierCLI, llms.TierAPI, llms.TierLocalFallback} {
		for _, p := range o.registry.ByTier(tier) {
			names = append(names, p.Name())
		}
	}
	return names
}

// Complete dispatches the request using the configured strategy.
func (o *Orchestrator) Complete(ctx context.Context, req llms.CompletionRequest) (llms.CompletionResponse, error) {
	switch o.strategy {
	case EnsembleStrategy:
		result, err := o.Ensemble(ctx, req)
		if err != nil {
			return llms.CompletionResponse{}, err
		}
		return llms.CompletionResponse{
			Content: result.Combined,
			Model:   "ensemble",
			Usage:   map[string]int{},
		}, nil
	case Specific:
		return o.UseProvider(ctx, o.specific, req)
	default:
		return o.smartRoute(ctx, req)
	}
}

// CompleteAdaptive replaces the request's system prompt with the one the
// personality engine derives from the first user message, then completes.
func (o *Orchestrator) CompleteAdaptive(ctx context.Context, req llms.CompletionRequest) (llms.CompletionResponse, error) {
	query := llms.FirstUserContent(req.Messages)
	domain := o.personality.DetectDomain(query)

	req.System = o.personality.SystemPromptForDomain(domain)
	params := o.personality.ParamsForDomain(domain)
	req.Temperature = params.Temperature
	req.TopP = params.TopP
	req.PresencePenalty = params.PresencePenalty

	return o.Complete(ctx, req)
}

// UseProvider forces a specific provider and fails if it is unavailable.
func (o *Orchestrator) UseProvider(ctx context.Context, name string, req llms.CompletionRequest) (llms.CompletionResponse, error) {
	p, ok := o.registry.Get(name)
	if !ok {
		return llms.CompletionResponse{}, ErrNoProviderAvailable
	}
	return o.callProvider(ctx, p, req)
}

// smartRoute tries tiers in preference order, short-circuiting on the first
// success. Failures inside a tier fall through to the next provider.
func (o *Orchestrator) smartRoute(ctx context.Context, req llms.CompletionRequest) (llms.CompletionResponse, error) {
	var lastErr error

	for _, tier := range []llms.Tier{llms.TierCLI, llms.TierAPI, llms.TierLocalFallback} {
		for _, p := range o.registry.ByTier(tier) {
			resp, err := o.callProvider(ctx, p, req)
			if err == nil {
				return resp, nil
			}
			lastErr = err
			slog.Warn("provider failed, falling through", "provider", p.Name(), "error", err)

			if ctx.Err() != nil {
				return llms.CompletionResponse{}, ctx.Err()
			}
		}
	}

	if lastErr != nil {
		return llms.CompletionResponse{}, ErrNoProviderAvailable
	}
	return llms.CompletionResponse{}, ErrNoProviderAvailable
}

// Ensemble fans out to every registered provider in parallel. Individual
// failures are logged and dropped; only an empty success set is an error.
func (o *Orchestrator) Ensemble(ctx context.Context, req llms.CompletionRequest) (*EnsembleResult, error) {
	providers := o.registry.List()
	if len(providers) == 0 {
		return nil, ErrNoProviderAvailable
	}

	var (
		mu        sync.Mutex
		responses = make([]ProviderResponse, 0, len(providers))
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range providers {
		g.Go(func() error {
			resp, err := o.callProvider(gctx, p, req)
			if err != nil {
				slog.Warn("ensemble member failed", "provider", p.Name(), "error", err)
				return nil
			}
			mu.Lock()
			responses = append(responses, ProviderResponse{Provider: p.Name(), Response: resp})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(responses) == 0 {
		return nil, ErrEnsembleAllFailed
	}

	return &EnsembleResult{
		Responses: responses,
		Combined:  responses[0].Response.Content,
	}, nil
}

func (o *Orchestrator) callProvider(ctx context.Context, p llms.Provider, req llms.CompletionRequest) (llms.CompletionResponse, error) {
	start := time.Now()
	resp, err := p.Complete(ctx, req)
	completionLatency.WithLabelValues(p.Name()).Observe(time.Since(start).Seconds())

	if err != nil {
		completionsTotal.WithLabelValues(p.Name(), "error").Inc()
		return llms.CompletionResponse{}, providerErr(p.Name(), err)
	}

	completionsTotal.WithLabelValues(p.Name(), "ok").Inc()
	return resp, nil
}
