package agents

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/agourakis82/beagle/pkg/hypergraph"
	"github.com/agourakis82/beagle/pkg/memory"
)

// Embedder turns text into a vector for semantic search. Implementations
// are external collaborators; the agent works without one.
type Embedder func(ctx context.Context, text string) ([]float32, error)

// RetrievalAgent surfaces context chunks for a query from two sources:
// recent turns of the session, and (when an embedder is available)
// semantically similar nodes from the hypergraph.
type RetrievalAgent struct {
	bridge   *memory.ContextBridge
	storage  hypergraph.Storage
	embedder Embedder

	maxTurns   int
	maxChunks  int
	minScore   float32
}

// NewRetrievalAgent builds a retrieval agent. embedder may be nil.
func NewRetrievalAgent(bridge *memory.ContextBridge, storage hypergraph.Storage, embedder Embedder) *RetrievalAgent {
	return &RetrievalAgent{
		bridge:    bridge,
		storage:   storage,
		embedder:  embedder,
		maxTurns:  5,
		maxChunks: 8,
		minScore:  0.35,
	}
}

func (a *RetrievalAgent) Name() string           { return "RetrievalAgent" }
func (a *RetrievalAgent) Capability() Capability { return ContextRetrieval }

// Execute collects chunks; the result map carries them under "chunks".
func (a *RetrievalAgent) Execute(ctx context.Context, input Input) (Output, error) {
	var chunks []string

	if raw, ok := input.Metadata["session_id"].(string); ok {
		if sessionID, err := uuid.Parse(raw); err == nil {
			turns, err := a.bridge.RecentTurns(ctx, sessionID, a.maxTurns)
			if err != nil {
				return Output{}, fmt.Errorf("recall session turns: %w", err)
			}
			for _, turn := range turns {
				chunks = append(chunks, fmt.Sprintf("Q: %s\nA: %s", turn.Query, turn.Response))
			}
		}
	}

	if a.embedder != nil {
		vec, err := a.embedder(ctx, input.Query)
		if err == nil {
			scored, err := a.storage.SemanticSearch(ctx, vec, a.maxChunks, a.minScore)
			if err != nil {
				return Output{}, fmt.Errorf("semantic search: %w", err)
			}
			for _, sn := range scored {
				chunks = append(chunks, sn.Node.Content)
			}
		}
	}

	if len(chunks) > a.maxChunks {
		chunks = chunks[:a.maxChunks]
	}

	return Output{Result: map[string]any{"chunks": chunks}}, nil
}
