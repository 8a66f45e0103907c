package experiments

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Journal reads and appends the persisted experiment state under the data
// dir: experiments/events.jsonl, feedback/*.jsonl, and
// logs/<pipeline>/report_<run_id>.json.
type Journal struct {
	dataDir  string
	pipeline string
}

// NewJournal creates a journal rooted at dataDir for the named pipeline.
func NewJournal(dataDir, pipeline string) *Journal {
	if pipeline == "" {
		pipeline = "beagle-pipeline"
	}
	return &Journal{dataDir: dataDir, pipeline: pipeline}
}

func (j *Journal) eventsPath() string {
	return filepath.Join(j.dataDir, "experiments", "events.jsonl")
}

// AppendTag journals one experiment tag.
func (j *Journal) AppendTag(tag ExperimentTag) error {
	if err := os.MkdirAll(filepath.Dir(j.eventsPath()), 0o755); err != nil {
		return fmt.Errorf("create experiments dir: %w", err)
	}
	return appendJSONL(j.eventsPath(), tag)
}

// LoadTags returns all tags for the experiment, in journal order.
func (j *Journal) LoadTags(experimentID string) ([]ExperimentTag, error) {
	var out []ExperimentTag
	err := readJSONL(j.eventsPath(), func(line []byte) error {
		var tag ExperimentTag
		if err := json.Unmarshal(line, &tag); err != nil {
			return nil // tolerate foreign lines in the shared journal
		}
		if tag.ExperimentID == experimentID {
			out = append(out, tag)
		}
		return nil
	})
	if os.IsNotExist(err) {
		return nil, nil
	}
	return out, err
}

// AppendFeedback journals a feedback event into feedback/<kind>.jsonl.
func (j *Journal) AppendFeedback(event FeedbackEvent) error {
	dir := filepath.Join(j.dataDir, "feedback")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create feedback dir: %w", err)
	}
	return appendJSONL(filepath.Join(dir, string(event.EventKind)+".jsonl"), event)
}

// LoadFeedback reads every feedback/*.jsonl journal.
func (j *Journal) LoadFeedback() ([]FeedbackEvent, error) {
	dir := filepath.Join(j.dataDir, "feedback")
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []FeedbackEvent
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		err := readJSONL(filepath.Join(dir, entry.Name()), func(line []byte) error {
			var event FeedbackEvent
			if err := json.Unmarshal(line, &event); err != nil {
				return nil
			}
			out = append(out, event)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// WriteRunReport persists a per-run report.
func (j *Journal) WriteRunReport(report RunReport) error {
	dir := filepath.Join(j.dataDir, "logs", j.pipeline)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}

	raw, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("serialize report: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("report_%s.json", report.RunID))
	return os.WriteFile(path, raw, 0o644)
}

// LoadRunReports reads the reports for the given run ids; missing reports
// are skipped.
func (j *Journal) LoadRunReports(runIDs []string) (map[string]RunReport, error) {
	out := make(map[string]RunReport, len(runIDs))
	for _, runID := range runIDs {
		path := filepath.Join(j.dataDir, "logs", j.pipeline, fmt.Sprintf("report_%s.json", runID))
		raw, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var report RunReport
		if err := json.Unmarshal(raw, &report); err != nil {
			return nil, fmt.Errorf("parse report %s: %w", runID, err)
		}
		out[runID] = report
	}
	return out, nil
}

func appendJSONL(path string, record any) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("serialize record: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	return nil
}

func readJSONL(path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := fn([]byte(line)); err != nil {
			return err
		}
	}
	return scanner.Err()
}
