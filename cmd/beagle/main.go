// Command beagle is the research-pipeline CLI: it runs expeditions
// (A/B-tagged pipeline runs) and analyzes their results.
//
// Exit codes: 0 success, 1 configuration/validation failure, 2 runtime
// failure.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kong"

	"github.com/agourakis82/beagle/pkg/agents"
	"github.com/agourakis82/beagle/pkg/config"
	"github.com/agourakis82/beagle/pkg/experiments"
	"github.com/agourakis82/beagle/pkg/hypergraph"
	"github.com/agourakis82/beagle/pkg/logger"
	"github.com/agourakis82/beagle/pkg/memory"
	"github.com/agourakis82/beagle/pkg/orchestrator"
)

type cli struct {
	LogLevel string `help:"Log level (debug|info|warn|error)." default:"info"`

	AnalyzeExperiments analyzeCmd `cmd:"" name:"analyze-experiments" help:"Analyze journaled experiment runs."`
	RunExpedition      runCmd     `cmd:"" name:"run-expedition" help:"Run an A/B expedition over the pipeline."`
}

type appContext struct {
	cfg *config.Config
}

type analyzeCmd struct {
	ExperimentID string `arg:"" help:"Experiment id to analyze."`
	OutputFormat string `help:"Export format." enum:"terminal,csv,json,md" default:"terminal"`
	OutputPrefix string `help:"Output file prefix (default exp_<timestamp>)."`
}

func (c *analyzeCmd) Run(app *appContext) error {
	journal := experiments.NewJournal(app.cfg.DataDir, "")

	metrics, err := experiments.Analyze(journal, c.ExperimentID)
	if err != nil {
		return runtimeErr(fmt.Errorf("analyze experiment: %w", err))
	}
	if metrics.TotalRuns == 0 {
		return validationErr(fmt.Errorf("no tags found for experiment id %q", c.ExperimentID))
	}

	printSummary(metrics)

	if c.OutputFormat == "terminal" {
		return nil
	}

	prefix := c.OutputPrefix
	if prefix == "" {
		prefix = fmt.Sprintf("exp_%s", time.Now().UTC().Format("20060102_150405"))
	}

	outDir := filepath.Join(app.cfg.DataDir, "experiments")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return runtimeErr(err)
	}

	var path string
	switch c.OutputFormat {
	case "csv":
		path = filepath.Join(outDir, prefix+"_summary.csv")
		err = exportTo(path, metrics, experiments.ExportCSV)
	case "json":
		path = filepath.Join(outDir, prefix+"_summary.json")
		err = exportTo(path, metrics, experiments.ExportJSON)
	case "md":
		path = filepath.Join(outDir, prefix+"_report.md")
		err = exportTo(path, metrics, experiments.ExportMarkdown)
	}
	if err != nil {
		return runtimeErr(err)
	}

	fmt.Printf("exported to %s\n", path)
	return nil
}

func exportTo(path string, m experiments.Metrics, export func(w io.Writer, m experiments.Metrics) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return export(f, m)
}

func printSummary(m experiments.Metrics) {
	fmt.Printf("Experiment %s — %d runs\n\n", m.ExperimentID, m.TotalRuns)
	for _, condition := range m.ConditionNames() {
		cm := m.Conditions[condition]
		fmt.Printf("Condition %s:\n", condition)
		fmt.Printf("  runs: %d (with feedback: %d)\n", cm.NRuns, cm.NWithFeedback)
		if cm.RatingMean != nil {
			std := 0.0
			if cm.RatingStd != nil {
				std = *cm.RatingStd
			}
			fmt.Printf("  rating mean: %.2f (std %.2f)\n", *cm.RatingMean, std)
		}
		if cm.AcceptedRatio != nil {
			fmt.Printf("  accepted: %.1f%%\n", *cm.AcceptedRatio*100)
		}
		fmt.Println()
	}
	if effect := m.EffectSize(); effect != nil {
		fmt.Printf("Effect (triad - single): %.2f\n", *effect)
	}
}

type runCmd struct {
	ExperimentID string `help:"Experiment id." default:"beagle_exp_001_triad_vs_single"`
	NTotal       int    `help:"Total runs (half triad, half single)." default:"10"`
	Seed         *int64 `help:"Deterministic shuffle seed."`
	BatchLabel   string `help:"Free-form label printed in the completion summary (not stored in the tags)."`
	Question     string `help:"Question template (%d receives the run index)." default:"Summarize the strongest current evidence on topic %d."`
}

func (c *runCmd) Run(app *appContext) error {
	if c.NTotal < 2 {
		return validationErr(fmt.Errorf("--n-total must be at least 2, got %d", c.NTotal))
	}

	if err := app.cfg.EnsureDataLayout(); err != nil {
		return runtimeErr(err)
	}

	storage, err := hypergraph.NewSQLiteStorage(context.Background(), filepath.Join(app.cfg.DataDir, "hypergraph.db"))
	if err != nil {
		return runtimeErr(fmt.Errorf("open hypergraph store: %w", err))
	}
	defer storage.Close()

	bridge := memory.NewContextBridge(storage)
	orch := orchestrator.AutoConfigure(app.cfg)

	coordinator := agents.NewCoordinator(orch, bridge).
		RegisterAgent(agents.NewRetrievalAgent(bridge, storage, nil)).
		RegisterAgent(agents.NewValidationAgent(orch)).
		RegisterAgent(agents.NewQualityAgent(orch))

	journal := experiments.NewJournal(app.cfg.DataDir, "")
	pipeline := newLocalPipeline(coordinator, journal)

	runner := experiments.NewRunner(pipeline, journal, experiments.RunnerConfig{
		ExperimentID:     c.ExperimentID,
		NTotal:           c.NTotal,
		QuestionTemplate: c.Question,
		Seed:             c.Seed,
	})

	tags, err := runner.Run(context.Background())
	if err != nil {
		return runtimeErr(fmt.Errorf("expedition aborted: %w", err))
	}

	fmt.Printf("expedition %s complete: %d runs journaled", c.ExperimentID, len(tags))
	if c.BatchLabel != "" {
		fmt.Printf(" (batch %s)", c.BatchLabel)
	}
	fmt.Println()
	return nil
}

// exitCoder carries the process exit code through kong.
type exitCoder struct {
	err  error
	code int
}

func (e *exitCoder) Error() string { return e.err.Error() }

func validationErr(err error) error { return &exitCoder{err: err, code: 1} }
func runtimeErr(err error) error    { return &exitCoder{err: err, code: 2} }

func main() {
	var c cli
	parsed := kong.Parse(&c,
		kong.Name("beagle"),
		kong.Description("BEAGLE research pipeline: expeditions and experiment analysis."),
		kong.UsageOnError(),
	)

	cfg := config.Load()
	cfg.Log.Level = c.LogLevel
	logger.Init(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})

	if err := parsed.Run(&appContext{cfg: cfg}); err != nil {
		fmt.Fprintf(os.Stderr, "beagle: %v\n", err)
		if ec, ok := err.(*exitCoder); ok {
			os.Exit(ec.code)
		}
		os.Exit(2)
	}
}
