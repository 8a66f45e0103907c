// Package agents provides the specialized-agent contract and the
// coordinator that runs a staged research pipeline over them.
package agents

import (
	"context"

	"github.com/mitchellh/mapstructure"
)

// Capability tags what a specialized agent contributes to the pipeline.
type Capability string

const (
	// ContextRetrieval agents surface relevant chunks for a query.
	ContextRetrieval Capability = "context_retrieval"
	// FactChecking agents validate a generated answer against context.
	FactChecking Capability = "fact_checking"
	// QualityAssessment agents score answer quality.
	QualityAssessment Capability = "quality_assessment"
)

// Input is what the coordinator hands a specialized agent.
type Input struct {
	Query string
	// Context carries retrieved chunks for validation-stage agents.
	Context []string
	// Metadata carries capability-specific extras (session id, the
	// generated answer, ...).
	Metadata map[string]any
}

// NewInput builds an input for a query.
func NewInput(query string) Input {
	return Input{Query: query, Metadata: make(map[string]any)}
}

// WithContext attaches retrieved chunks.
func (i Input) WithContext(chunks []string) Input {
	i.Context = chunks
	return i
}

// WithMetadata sets one metadata key.
func (i Input) WithMetadata(key string, value any) Input {
	if i.Metadata == nil {
		i.Metadata = make(map[string]any)
	}
	i.Metadata[key] = value
	return i
}

// Output is a specialized agent's structured result. Keys are
// capability-specific; the typed views below decode the known shapes.
type Output struct {
	Result map[string]any
}

// Agent is the contract every specialized agent implements.
type Agent interface {
	Name() string
	Capability() Capability
	Execute(ctx context.Context, input Input) (Output, error)
}

// RetrievalView is the decoded shape of a ContextRetrieval output.
type RetrievalView struct {
	Chunks []string `mapstructure:"chunks"`
}

// ValidationView is the decoded shape of a FactChecking output.
type ValidationView struct {
	IsSupported *bool    `mapstructure:"is_supported"`
	Issues      []string `mapstructure:"issues"`
}

// QualityView is the decoded shape of a QualityAssessment output.
type QualityView struct {
	Score *float64 `mapstructure:"score"`
}

// DecodeOutput decodes an agent result map into a typed view.
func DecodeOutput[T any](out Output) (T, error) {
	var view T
	err := mapstructure.Decode(out.Result, &view)
	return view, err
}
