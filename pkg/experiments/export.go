package experiments

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ExportCSV writes one row per condition.
func ExportCSV(w io.Writer, m Metrics) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"experiment_id", "condition", "n_runs", "n_with_feedback", "accepted_ratio", "rating_mean", "rating_std", "stress_index_mean"}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, condition := range m.ConditionNames() {
		cm := m.Conditions[condition]
		row := []string{
			m.ExperimentID,
			condition,
			strconv.Itoa(cm.NRuns),
			strconv.Itoa(cm.NWithFeedback),
			fmtOpt(cm.AcceptedRatio),
			fmtOpt(cm.RatingMean),
			fmtOpt(cm.RatingStd),
			fmtOpt(cm.StressMean),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ExportJSON writes the full metrics document.
func ExportJSON(w io.Writer, m Metrics) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}

// ExportMarkdown writes a human-readable report.
func ExportMarkdown(w io.Writer, m Metrics) error {
	var b strings.Builder

	fmt.Fprintf(&b, "# Experiment report: %s\n\n", m.ExperimentID)
	fmt.Fprintf(&b, "Total runs: %d\n\n", m.TotalRuns)

	b.WriteString("| Condition | Runs | With feedback | Accepted | Rating mean | Rating std | Stress mean |\n")
	b.WriteString("|---|---|---|---|---|---|---|\n")
	for _, condition := range m.ConditionNames() {
		cm := m.Conditions[condition]
		fmt.Fprintf(&b, "| %s | %d | %d | %s | %s | %s | %s |\n",
			condition, cm.NRuns, cm.NWithFeedback,
			fmtOpt(cm.AcceptedRatio), fmtOpt(cm.RatingMean), fmtOpt(cm.RatingStd), fmtOpt(cm.StressMean))
	}

	if effect := m.EffectSize(); effect != nil {
		fmt.Fprintf(&b, "\nEffect size (triad - single): %.2f\n", *effect)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func fmtOpt(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}
