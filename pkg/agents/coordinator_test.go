package agents

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agourakis82/beagle/pkg/hypergraph"
	"github.com/agourakis82/beagle/pkg/llms"
	"github.com/agourakis82/beagle/pkg/memory"
	"github.com/agourakis82/beagle/pkg/personality"
)

type fakeCompleter struct {
	reply string
	fail  bool
	calls int
}

func (f *fakeCompleter) Complete(ctx context.Context, req llms.CompletionRequest) (llms.CompletionResponse, error) {
	f.calls++
	if f.fail {
		return llms.CompletionResponse{}, errors.New("llm down")
	}
	return llms.CompletionResponse{Content: f.reply, Model: "test-model"}, nil
}

type scriptedAgent struct {
	name       string
	capability Capability
	result     map[string]any
	err        error
	gotInput   Input
}

func (a *scriptedAgent) Name() string           { return a.name }
func (a *scriptedAgent) Capability() Capability { return a.capability }

func (a *scriptedAgent) Execute(ctx context.Context, input Input) (Output, error) {
	a.gotInput = input
	if a.err != nil {
		return Output{}, a.err
	}
	return Output{Result: a.result}, nil
}

func newTestBridge(t *testing.T) *memory.ContextBridge {
	t.Helper()
	storage, err := hypergraph.NewMemoryStorage()
	require.NoError(t, err)
	return memory.NewContextBridge(storage)
}

func stepActions(steps []ResearchStep) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.Action
	}
	return out
}

func stepByAction(t *testing.T, steps []ResearchStep, action string) ResearchStep {
	t.Helper()
	for _, s := range steps {
		if s.Action == action {
			return s
		}
	}
	t.Fatalf("no step with action %q", action)
	return ResearchStep{}
}

// Scenario: retrieval returns two chunks, validation reports supported with
// score 0.9 from the quality agent.
func TestCoordinator_HappyPath(t *testing.T) {
	llm := &fakeCompleter{reply: "CRISPR is a genome-editing technology."}
	c := NewCoordinator(llm, newTestBridge(t)).
		RegisterAgent(&scriptedAgent{
			name:       "RetrievalAgent",
			capability: ContextRetrieval,
			result:     map[string]any{"chunks": []string{"chunk one", "chunk two"}},
		}).
		RegisterAgent(&scriptedAgent{
			name:       "ValidationAgent",
			capability: FactChecking,
			result:     map[string]any{"is_supported": true},
		}).
		RegisterAgent(&scriptedAgent{
			name:       "QualityAgent",
			capability: QualityAssessment,
			result:     map[string]any{"score": 0.9},
		})

	result, err := c.Research(context.Background(), "What is CRISPR?", nil)
	require.NoError(t, err)

	actions := stepActions(result.Steps)
	assert.GreaterOrEqual(t, len(result.Steps), 7)
	assert.Contains(t, actions, "Detect domain")
	assert.Contains(t, actions, "Retrieve context")
	assert.Contains(t, actions, "Generate answer")
	assert.Contains(t, actions, "ValidationAgent")
	assert.Contains(t, actions, "QualityAgent")
	assert.Contains(t, actions, "Persist turn")

	assert.Equal(t, "2 chunks", stepByAction(t, result.Steps, "Retrieve context").Result)

	// Steps are numbered 1..k contiguously.
	for i, s := range result.Steps {
		assert.Equal(t, i+1, s.StepNumber)
	}

	assert.InDelta(t, 0.9, result.Metrics.QualityScore, 1e-9)
	assert.Equal(t, 3, result.Metrics.LLMCalls, "primary + 2 successful specialized agents")
	assert.Equal(t, 2, result.Metrics.ContextChunks)
	assert.Equal(t, personality.DomainScientist, result.Domain)
	assert.Len(t, result.Sources, 2)
	assert.NotEqual(t, uuid.Nil, result.SessionID)
	assert.NotEqual(t, uuid.Nil, result.TurnID)
}

// An unsupported answer multiplies the quality score by 0.75.
func TestCoordinator_UnsupportedDownweightsQuality(t *testing.T) {
	llm := &fakeCompleter{reply: "a dubious answer"}
	c := NewCoordinator(llm, newTestBridge(t)).
		RegisterAgent(&scriptedAgent{
			name:       "ValidationAgent",
			capability: FactChecking,
			result:     map[string]any{"is_supported": false},
		}).
		RegisterAgent(&scriptedAgent{
			name:       "QualityAgent",
			capability: QualityAssessment,
			result:     map[string]any{"score": 0.9},
		})

	result, err := c.Research(context.Background(), "What is CRISPR?", nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.675, result.Metrics.QualityScore, 1e-9)
}

func TestCoordinator_DefaultsWithoutSpecializedAgents(t *testing.T) {
	llm := &fakeCompleter{reply: "plain answer"}
	c := NewCoordinator(llm, newTestBridge(t))

	result, err := c.Research(context.Background(), "anything", nil)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Metrics.LLMCalls)
	assert.InDelta(t, 0.78, result.Metrics.QualityScore, 1e-9)
	assert.Equal(t, "0 chunks", stepByAction(t, result.Steps, "Retrieve context").Result)
}

// A failed specialized agent is dropped from aggregation but never aborts
// the request.
func TestCoordinator_FailedAgentIsRecovered(t *testing.T) {
	llm := &fakeCompleter{reply: "answer"}
	c := NewCoordinator(llm, newTestBridge(t)).
		RegisterAgent(&scriptedAgent{
			name:       "ValidationAgent",
			capability: FactChecking,
			err:        errors.New("validator crashed"),
		}).
		RegisterAgent(&scriptedAgent{
			name:       "QualityAgent",
			capability: QualityAssessment,
			result:     map[string]any{"score": 0.8},
		})

	result, err := c.Research(context.Background(), "q", nil)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Metrics.LLMCalls, "primary + only the successful agent")
	assert.InDelta(t, 0.8, result.Metrics.QualityScore, 1e-9)
	assert.NotContains(t, stepActions(result.Steps), "ValidationAgent")
}

func TestCoordinator_FailedRetrievalDegrades(t *testing.T) {
	llm := &fakeCompleter{reply: "answer"}
	c := NewCoordinator(llm, newTestBridge(t)).
		RegisterAgent(&scriptedAgent{
			name:       "RetrievalAgent",
			capability: ContextRetrieval,
			err:        errors.New("retrieval down"),
		})

	result, err := c.Research(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Metrics.ContextChunks)
}

// A failed primary generation fails the whole request.
func TestCoordinator_PrimaryFailureFailsRequest(t *testing.T) {
	llm := &fakeCompleter{fail: true}
	c := NewCoordinator(llm, newTestBridge(t))

	_, err := c.Research(context.Background(), "q", nil)
	require.Error(t, err)
}

func TestCoordinator_ReusesSuppliedSession(t *testing.T) {
	bridge := newTestBridge(t)
	llm := &fakeCompleter{reply: "answer"}
	c := NewCoordinator(llm, bridge)

	session, err := bridge.CreateSession(context.Background(), "")
	require.NoError(t, err)

	result, err := c.Research(context.Background(), "q", &session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, result.SessionID)
	assert.Contains(t, stepByAction(t, result.Steps, "Select session").Result, "Using session")

	// The persisted turn is recallable through the bridge.
	turns, err := bridge.RecentTurns(context.Background(), session.ID, 5)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "q", turns[0].Query)
}

// The validation agent receives the retrieved chunks and the answer.
func TestCoordinator_ValidationInputShape(t *testing.T) {
	validator := &scriptedAgent{
		name:       "ValidationAgent",
		capability: FactChecking,
		result:     map[string]any{"is_supported": true},
	}
	llm := &fakeCompleter{reply: "the answer"}
	c := NewCoordinator(llm, newTestBridge(t)).
		RegisterAgent(&scriptedAgent{
			name:       "RetrievalAgent",
			capability: ContextRetrieval,
			result:     map[string]any{"chunks": []string{"c1"}},
		}).
		RegisterAgent(validator)

	_, err := c.Research(context.Background(), "q", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"c1"}, validator.gotInput.Context)
	assert.Equal(t, "the answer", validator.gotInput.Metadata["response"])
}
