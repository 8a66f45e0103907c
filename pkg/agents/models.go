package agents

import (
	"github.com/google/uuid"

	"github.com/agourakis82/beagle/pkg/personality"
)

// ResearchStep is one entry of the audit trail. Step numbers are contiguous
// from 1 and match real temporal order.
type ResearchStep struct {
	StepNumber int    `json:"step_number"`
	Action     string `json:"action"`
	Result     string `json:"result"`
	DurationMS uint64 `json:"duration_ms"`
}

// ResearchMetrics aggregates one pipeline run.
type ResearchMetrics struct {
	TotalDurationMS      uint64  `json:"total_duration_ms"`
	LLMCalls             int     `json:"llm_calls"`
	ContextChunks        int     `json:"context_chunks_retrieved"`
	RefinementIterations int     `json:"refinement_iterations"`
	QualityScore         float64 `json:"quality_score"`
}

// ResearchResult is the coordinator's answer plus its audit trail.
type ResearchResult struct {
	Answer    string             `json:"answer"`
	Domain    personality.Domain `json:"domain"`
	Steps     []ResearchStep     `json:"steps"`
	Metrics   ResearchMetrics    `json:"metrics"`
	SessionID uuid.UUID          `json:"session_id"`
	TurnID    uuid.UUID          `json:"turn_id"`
	Sources   []string           `json:"sources,omitempty"`
}
