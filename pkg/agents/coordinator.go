package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/agourakis82/beagle/pkg/llms"
	"github.com/agourakis82/beagle/pkg/memory"
	"github.com/agourakis82/beagle/pkg/personality"
)

const (
	primaryMaxTokens   = 1400
	primaryTemperature = 0.7

	defaultQualityScore   = 0.78
	unsupportedMultiplier = 0.75

	contextHeader    = "\n\n=== Relevant context ===\n"
	contextSeparator = "\n---\n"
)

// Coordinator runs the staged research pipeline: detect domain, pick a
// session, retrieve context, generate, validate in parallel, persist.
// The agent list is immutable once research starts.
type Coordinator struct {
	llm         Completer
	personality *personality.Engine
	bridge      *memory.ContextBridge
	agents      []Agent
	tracer      trace.Tracer
}

// NewCoordinator creates a coordinator. Register agents before first use.
func NewCoordinator(llm Completer, bridge *memory.ContextBridge) *Coordinator {
	return &Coordinator{
		llm:         llm,
		personality: personality.NewEngine(),
		bridge:      bridge,
		tracer:      otel.Tracer("beagle/agents"),
	}
}

// RegisterAgent appends a specialized agent and returns the coordinator
// for chaining.
func (c *Coordinator) RegisterAgent(a Agent) *Coordinator {
	c.agents = append(c.agents, a)
	return c
}

type stepTimer struct {
	steps []ResearchStep
	next  int
}

func newStepTimer() *stepTimer {
	return &stepTimer{next: 1}
}

func (s *stepTimer) record(action, result string, start time.Time) {
	s.steps = append(s.steps, ResearchStep{
		StepNumber: s.next,
		Action:     action,
		Result:     result,
		DurationMS: uint64(time.Since(start).Milliseconds()),
	})
	s.next++
}

func (s *stepTimer) recordTimed(action, result string, durationMS uint64) {
	s.steps = append(s.steps, ResearchStep{
		StepNumber: s.next,
		Action:     action,
		Result:     result,
		DurationMS: durationMS,
	})
	s.next++
}

type agentResult struct {
	capability Capability
	output     Output
	durationMS uint64
	err        error
}

// Research answers one query, producing the result plus its audit trail.
// A nil sessionID starts a new session. Specialized-agent failures never
// abort the request; a failed primary generation does.
func (c *Coordinator) Research(ctx context.Context, query string, sessionID *uuid.UUID) (*ResearchResult, error) {
	ctx, span := c.tracer.Start(ctx, "coordinator.research")
	defer span.End()

	totalStart := time.Now()
	steps := newStepTimer()

	// 1. Domain detection (sync, cheap).
	domainStart := time.Now()
	domain := c.personality.DetectDomain(query)
	steps.record("Detect domain", string(domain), domainStart)

	// 2. Session selection.
	sessionStart := time.Now()
	var sid uuid.UUID
	if sessionID != nil {
		sid = *sessionID
		steps.record("Select session", fmt.Sprintf("Using session %s", sid), sessionStart)
	} else {
		session, err := c.bridge.CreateSession(ctx, "")
		if err != nil {
			return nil, fmt.Errorf("create conversation session: %w", err)
		}
		sid = session.ID
		steps.record("Select session", fmt.Sprintf("Created session %s", sid), sessionStart)
	}

	// 3. Context retrieval; failure degrades to empty context.
	retrievalStart := time.Now()
	var chunks []string
	if retrieval := c.agentFor(ContextRetrieval); retrieval != nil {
		input := NewInput(query).WithMetadata("session_id", sid.String())
		output, err := retrieval.Execute(ctx, input)
		if err != nil {
			slog.Warn("retrieval agent failed", "error", err)
		} else if view, derr := DecodeOutput[RetrievalView](output); derr == nil {
			chunks = view.Chunks
		}
	} else {
		slog.Warn("no retrieval agent registered")
	}
	steps.record("Retrieve context", fmt.Sprintf("%d chunks", len(chunks)), retrievalStart)

	// 4. System-prompt composition.
	promptStart := time.Now()
	systemPrompt := c.personality.SystemPromptForDomain(domain)
	if len(chunks) > 0 {
		systemPrompt += contextHeader + strings.Join(chunks, contextSeparator)
	}
	steps.record("Compose system prompt", fmt.Sprintf("%d chars", len(systemPrompt)), promptStart)

	// 5. Primary generation; its failure fails the request.
	llmStart := time.Now()
	completion, err := c.llm.Complete(ctx, llms.CompletionRequest{
		Messages:    []llms.Message{llms.UserMessage(query)},
		MaxTokens:   primaryMaxTokens,
		Temperature: primaryTemperature,
		System:      systemPrompt,
	})
	if err != nil {
		return nil, fmt.Errorf("primary generation failed: %w", err)
	}
	primaryLatency := uint64(time.Since(llmStart).Milliseconds())
	steps.record("Generate answer", fmt.Sprintf("%d chars", len(completion.Content)), llmStart)

	// 6. Parallel validation stage: fan out, then a sync barrier.
	results := c.runValidationStage(ctx, query, chunks, completion.Content)

	var validation, quality *agentResult
	specializedCalls := 0
	for i := range results {
		r := &results[i]
		if r.err != nil {
			slog.Warn("specialized agent failed", "capability", r.capability, "duration_ms", r.durationMS, "error", r.err)
			continue
		}
		specializedCalls++
		switch r.capability {
		case FactChecking:
			validation = r
		case QualityAssessment:
			quality = r
		}
	}

	// 7. Quality aggregation. Agent completion order must not matter, so
	// trace entries follow a fixed capability order.
	isSupported := true
	if validation != nil {
		view, err := DecodeOutput[ValidationView](validation.output)
		if err == nil && view.IsSupported != nil {
			isSupported = *view.IsSupported
		}
		steps.recordTimed("ValidationAgent", fmt.Sprintf("is_supported=%t", isSupported), validation.durationMS)
	}

	qualityScore := defaultQualityScore
	if quality != nil {
		view, err := DecodeOutput[QualityView](quality.output)
		if err == nil && view.Score != nil {
			qualityScore = *view.Score
		}
		steps.recordTimed("QualityAgent", fmt.Sprintf("score=%.2f", qualityScore), quality.durationMS)
	}

	if !isSupported {
		qualityScore *= unsupportedMultiplier
	}
	qualityScore = clamp01(qualityScore)

	// 8. Persistence; failure is logged, not fatal.
	storeStart := time.Now()
	turn := memory.NewConversationTurn(sid, query, completion.Content, domain, completion.Model)
	turn.Metadata.Metrics = memory.PerformanceMetrics{LatencyMS: primaryLatency}
	turn.Metadata.SystemPromptPreview = memory.PreviewOf(systemPrompt)
	if err := c.bridge.StoreTurn(ctx, turn); err != nil {
		slog.Warn("failed to persist turn", "error", err)
		steps.record("Persist turn", "Persistence failed (non-fatal)", storeStart)
	} else {
		steps.record("Persist turn", "Stored in contextual memory", storeStart)
	}

	metrics := ResearchMetrics{
		TotalDurationMS: uint64(time.Since(totalStart).Milliseconds()),
		LLMCalls:        1 + specializedCalls,
		ContextChunks:   len(chunks),
		QualityScore:    qualityScore,
	}

	slog.Info("coordinator finished",
		"duration_ms", metrics.TotalDurationMS,
		"quality", metrics.QualityScore,
		"supported", isSupported)

	return &ResearchResult{
		Answer:    completion.Content,
		Domain:    domain,
		Steps:     steps.steps,
		Metrics:   metrics,
		SessionID: sid,
		TurnID:    turn.ID,
		Sources:   chunks,
	}, nil
}

// runValidationStage spawns every fact-checking and quality agent
// concurrently and awaits all of them.
func (c *Coordinator) runValidationStage(ctx context.Context, query string, chunks []string, answer string) []agentResult {
	ctx, span := c.tracer.Start(ctx, "coordinator.validation")
	defer span.End()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []agentResult
	)

	for _, agent := range c.agents {
		capability := agent.Capability()
		if capability != FactChecking && capability != QualityAssessment {
			continue
		}

		wg.Add(1)
		go func(agent Agent, capability Capability) {
			defer wg.Done()

			input := NewInput(query).WithMetadata("response", answer)
			if capability == FactChecking {
				input = input.WithContext(chunks)
			}

			start := time.Now()
			output, err := agent.Execute(ctx, input)
			r := agentResult{
				capability: capability,
				output:     output,
				durationMS: uint64(time.Since(start).Milliseconds()),
				err:        err,
			}

			mu.Lock()
			results = append(results, r)
			mu.Unlock()
		}(agent, capability)
	}

	wg.Wait()
	return results
}

func (c *Coordinator) agentFor(capability Capability) Agent {
	for _, a := range c.agents {
		if a.Capability() == capability {
			return a
		}
	}
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
