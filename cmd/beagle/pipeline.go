package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/agourakis82/beagle/pkg/agents"
	"github.com/agourakis82/beagle/pkg/experiments"
)

// localPipeline hosts the coordinator as an in-process pipeline for the
// expedition runner: each run executes Research in the background, then
// writes the run report and a pipeline feedback event.
type localPipeline struct {
	coordinator *agents.Coordinator
	journal     *experiments.Journal

	mu     sync.Mutex
	status map[string]string
}

func newLocalPipeline(coordinator *agents.Coordinator, journal *experiments.Journal) *localPipeline {
	return &localPipeline{
		coordinator: coordinator,
		journal:     journal,
		status:      make(map[string]string),
	}
}

func (p *localPipeline) Start(ctx context.Context, question string, flags experiments.Flags) (string, error) {
	runID := uuid.NewString()

	p.mu.Lock()
	p.status[runID] = "running"
	p.mu.Unlock()

	go func() {
		result, err := p.coordinator.Research(ctx, question, nil)

		p.mu.Lock()
		defer p.mu.Unlock()

		if err != nil {
			p.status[runID] = "failed"
			return
		}

		report := experiments.RunReport{
			RunID:    runID,
			Question: question,
			LLMStats: map[string]int{
				"llm_calls":      result.Metrics.LLMCalls,
				"context_chunks": result.Metrics.ContextChunks,
				"duration_ms":    int(result.Metrics.TotalDurationMS),
			},
		}
		if err := p.journal.WriteRunReport(report); err != nil {
			p.status[runID] = "failed"
			return
		}

		quality := result.Metrics.QualityScore
		accepted := quality >= 0.7
		rating := quality * 10
		_ = p.journal.AppendFeedback(experiments.FeedbackEvent{
			RunID:     runID,
			EventKind: experiments.FeedbackPipeline,
			Accepted:  &accepted,
			Rating:    &rating,
		})

		p.status[runID] = "done"
	}()

	return runID, nil
}

func (p *localPipeline) Status(ctx context.Context, runID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status, ok := p.status[runID]
	if !ok {
		return "", fmt.Errorf("unknown run id %s", runID)
	}
	return status, nil
}

var _ experiments.Pipeline = (*localPipeline)(nil)
