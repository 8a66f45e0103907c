package experiments

import (
	"math"
	"sort"
)

// ConditionMetrics aggregates one experiment arm.
type ConditionMetrics struct {
	NRuns         int            `json:"n_runs"`
	NWithFeedback int            `json:"n_with_feedback"`
	AcceptedRatio *float64       `json:"accepted_ratio,omitempty"`
	RatingMean    *float64       `json:"rating_mean,omitempty"`
	RatingStd     *float64       `json:"rating_std,omitempty"`
	Severities    map[string]int `json:"severity_histogram,omitempty"`
	StressMean    *float64       `json:"stress_index_mean,omitempty"`
}

// Metrics is the full analysis of one experiment.
type Metrics struct {
	ExperimentID string                      `json:"experiment_id"`
	TotalRuns    int                         `json:"total_runs"`
	Conditions   map[string]ConditionMetrics `json:"conditions"`
}

// EffectSize is the rating-mean difference triad minus single; nil when
// either arm has no ratings.
func (m Metrics) EffectSize() *float64 {
	triad, okT := m.Conditions[ConditionTriad]
	single, okS := m.Conditions[ConditionSingle]
	if !okT || !okS || triad.RatingMean == nil || single.RatingMean == nil {
		return nil
	}
	delta := *triad.RatingMean - *single.RatingMean
	return &delta
}

// Join matches tags with feedback events and run reports by run id.
func Join(tags []ExperimentTag, feedback []FeedbackEvent, reports map[string]RunReport) []DataPoint {
	byRun := make(map[string][]FeedbackEvent)
	for _, event := range feedback {
		byRun[event.RunID] = append(byRun[event.RunID], event)
	}

	points := make([]DataPoint, 0, len(tags))
	for _, tag := range tags {
		point := DataPoint{Tag: tag, Feedback: byRun[tag.RunID]}
		if report, ok := reports[tag.RunID]; ok {
			r := report
			point.Report = &r
		}
		points = append(points, point)
	}
	return points
}

// Calculate aggregates joined data points into per-condition metrics.
func Calculate(experimentID string, points []DataPoint) Metrics {
	type acc struct {
		runs, withFeedback   int
		accepted, acceptedOf int
		ratings              []float64
		severities           map[string]int
		stress               []float64
	}
	byCondition := make(map[string]*acc)

	for _, point := range points {
		a := byCondition[point.Tag.Condition]
		if a == nil {
			a = &acc{severities: make(map[string]int)}
			byCondition[point.Tag.Condition] = a
		}
		a.runs++

		if len(point.Feedback) > 0 {
			a.withFeedback++
		}
		for _, event := range point.Feedback {
			if event.Rating != nil {
				a.ratings = append(a.ratings, *event.Rating)
			}
			if event.Accepted != nil {
				a.acceptedOf++
				if *event.Accepted {
					a.accepted++
				}
			}
		}

		if point.Report != nil {
			for _, severity := range point.Report.ObserverSeverities {
				a.severities[severity]++
			}
			if point.Report.StressIndex != nil {
				a.stress = append(a.stress, *point.Report.StressIndex)
			}
		}
	}

	conditions := make(map[string]ConditionMetrics, len(byCondition))
	total := 0
	for condition, a := range byCondition {
		total += a.runs
		cm := ConditionMetrics{
			NRuns:         a.runs,
			NWithFeedback: a.withFeedback,
		}
		if a.acceptedOf > 0 {
			ratio := float64(a.accepted) / float64(a.acceptedOf)
			cm.AcceptedRatio = &ratio
		}
		if len(a.ratings) > 0 {
			mean := meanOf(a.ratings)
			cm.RatingMean = &mean
			std := stdOf(a.ratings, mean)
			cm.RatingStd = &std
		}
		if len(a.severities) > 0 {
			cm.Severities = a.severities
		}
		if len(a.stress) > 0 {
			stress := meanOf(a.stress)
			cm.StressMean = &stress
		}
		conditions[condition] = cm
	}

	return Metrics{ExperimentID: experimentID, TotalRuns: total, Conditions: conditions}
}

// Analyze loads everything for an experiment from the journal and computes
// its metrics.
func Analyze(journal *Journal, experimentID string) (Metrics, error) {
	tags, err := journal.LoadTags(experimentID)
	if err != nil {
		return Metrics{}, err
	}

	feedback, err := journal.LoadFeedback()
	if err != nil {
		return Metrics{}, err
	}

	runIDs := make([]string, 0, len(tags))
	for _, tag := range tags {
		runIDs = append(runIDs, tag.RunID)
	}
	reports, err := journal.LoadRunReports(runIDs)
	if err != nil {
		return Metrics{}, err
	}

	return Calculate(experimentID, Join(tags, feedback, reports)), nil
}

// ConditionNames returns the metric's conditions sorted for stable output.
func (m Metrics) ConditionNames() []string {
	names := make([]string, 0, len(m.Conditions))
	for name := range m.Conditions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func meanOf(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stdOf(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	return math.Sqrt(variance / float64(len(values)-1))
}
