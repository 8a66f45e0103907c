package experiments

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"
)

// Pipeline is the contract to the pipeline under experiment. The concrete
// pipeline host is an external collaborator.
type Pipeline interface {
	// Start launches a run for the question under the given flags,
	// returning a run id.
	Start(ctx context.Context, question string, flags Flags) (string, error)

	// Status reports "running", "done" or "failed".
	Status(ctx context.Context, runID string) (string, error)
}

// RunnerConfig parameterizes an expedition.
type RunnerConfig struct {
	ExperimentID string
	NTotal       int
	// QuestionTemplate receives the 1-based run index via %d, or is used
	// verbatim when it has no verb.
	QuestionTemplate string
	// Seed deterministically shuffles the condition sequence when non-nil.
	Seed *int64

	PollInterval time.Duration
	PollTimeout  time.Duration
}

// SetDefaults fills zero values.
func (c *RunnerConfig) SetDefaults() {
	if c.NTotal <= 0 {
		c.NTotal = 10
	}
	if c.QuestionTemplate == "" {
		c.QuestionTemplate = "Expedition question %d"
	}
	if c.PollInterval == 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.PollTimeout == 0 {
		c.PollTimeout = 20 * time.Minute
	}
}

// ConditionSequence generates a balanced triad/single sequence of length n.
// With a seed it is shuffled by the fixed permutation that seed keys;
// without one the sequence alternates.
func ConditionSequence(n int, seed *int64) []string {
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			out = append(out, ConditionTriad)
		} else {
			out = append(out, ConditionSingle)
		}
	}

	if seed != nil {
		rng := rand.New(rand.NewSource(*seed))
		rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	}
	return out
}

// FlagsFor maps a condition onto the pipeline flag vector.
func FlagsFor(condition string) Flags {
	return Flags{
		Triad:    condition == ConditionTriad,
		HRVAware: true,
	}
}

// Runner executes an expedition: one pipeline run per condition, each
// polled to completion and journaled as an ExperimentTag.
type Runner struct {
	pipeline Pipeline
	journal  *Journal
	config   RunnerConfig
}

// NewRunner builds a runner.
func NewRunner(pipeline Pipeline, journal *Journal, config RunnerConfig) *Runner {
	config.SetDefaults()
	return &Runner{pipeline: pipeline, journal: journal, config: config}
}

// Run executes the full expedition and returns the journaled tags. A run
// that fails or times out is journaled with a note and the expedition
// continues.
func (r *Runner) Run(ctx context.Context) ([]ExperimentTag, error) {
	conditions := ConditionSequence(r.config.NTotal, r.config.Seed)
	tags := make([]ExperimentTag, 0, len(conditions))

	for i, condition := range conditions {
		question := r.config.QuestionTemplate
		if strings.Contains(question, "%") {
			question = fmt.Sprintf(question, i+1)
		}
		flags := FlagsFor(condition)

		runID, err := r.pipeline.Start(ctx, question, flags)
		if err != nil {
			slog.Warn("expedition run failed to start", "index", i+1, "error", err)
			continue
		}

		status, err := r.pollUntilDone(ctx, runID)
		if err != nil {
			return tags, err // context cancelled
		}

		tag := ExperimentTag{
			ExperimentID: r.config.ExperimentID,
			RunID:        runID,
			Condition:    condition,
			Flags:        flags,
			Timestamp:    time.Now().UTC(),
		}
		if status != "done" {
			tag.Notes = fmt.Sprintf("run finished with status %q", status)
		}

		if err := r.journal.AppendTag(tag); err != nil {
			return tags, fmt.Errorf("journal tag for run %s: %w", runID, err)
		}
		tags = append(tags, tag)

		slog.Info("expedition run recorded",
			"index", i+1, "total", len(conditions),
			"condition", condition, "run_id", runID, "status", status)
	}

	return tags, nil
}

// pollUntilDone polls run status until done/failed or the poll timeout.
// Only context cancellation is an error; a timeout reports as "timeout".
func (r *Runner) pollUntilDone(ctx context.Context, runID string) (string, error) {
	deadline := time.Now().Add(r.config.PollTimeout)
	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	for {
		status, err := r.pipeline.Status(ctx, runID)
		if err == nil && (status == "done" || status == "failed") {
			return status, nil
		}
		if err != nil {
			slog.Warn("status poll failed", "run_id", runID, "error", err)
		}

		if time.Now().After(deadline) {
			return "timeout", nil
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}
