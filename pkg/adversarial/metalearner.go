package adversarial

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
)

// StrategyPattern summarizes one approach's historical performance.
type StrategyPattern struct {
	ApproachName string  `json:"approach_name"`
	WinRate      float64 `json:"win_rate"`
	AvgEloGain   float64 `json:"avg_elo_gain"`
	SampleSize   int     `json:"sample_size"`
}

// ParameterInsight reports the winning range of one strategy parameter.
type ParameterInsight struct {
	ParameterName       string     `json:"parameter_name"`
	OptimalRange        [2]float64 `json:"optimal_range"`
	CorrelationWithWins float64    `json:"correlation_with_wins"`
}

// CounterStrategyAdvice recommends a counter to an opponent approach.
type CounterStrategyAdvice struct {
	OpponentApproach   string  `json:"opponent_approach"`
	RecommendedCounter string  `json:"recommended_counter"`
	Effectiveness      float64 `json:"effectiveness"`
}

// PerformanceTrends tracks evolution across generations.
type PerformanceTrends struct {
	AvgEloByGeneration  []float64 `json:"avg_elo_by_generation"`
	DiversityScore      float64   `json:"diversity_score"`
	ConvergenceDetected bool      `json:"convergence_detected"`
}

// Insights is everything the meta-learner distilled from history.
type Insights struct {
	TopStrategyPatterns []StrategyPattern           `json:"top_strategy_patterns"`
	WinningParameters   map[string]ParameterInsight `json:"winning_parameters"`
	CounterStrategies   []CounterStrategyAdvice     `json:"counter_strategies"`
	PerformanceTrends   PerformanceTrends           `json:"performance_trends"`
}

// MetaLearner accumulates per-generation snapshots and extracts insights.
// Recording mutates under the caller's exclusive access; analysis reads
// owned snapshots only.
type MetaLearner struct {
	matchHistory  []MatchResult
	playerHistory [][]ResearchPlayer
}

// NewMetaLearner creates an empty learner.
func NewMetaLearner() *MetaLearner {
	return &MetaLearner{}
}

// RecordGeneration snapshots one generation's players and matches.
func (m *MetaLearner) RecordGeneration(players []*ResearchPlayer, matches []MatchResult) {
	snapshot := make([]ResearchPlayer, 0, len(players))
	for _, p := range players {
		cp := *p
		cp.Strategy = p.Strategy.Clone()
		snapshot = append(snapshot, cp)
	}
	m.playerHistory = append(m.playerHistory, snapshot)
	m.matchHistory = append(m.matchHistory, matches...)
}

// Generations returns how many generations are recorded.
func (m *MetaLearner) Generations() int {
	return len(m.playerHistory)
}

// Matches returns how many matches are recorded.
func (m *MetaLearner) Matches() int {
	return len(m.matchHistory)
}

// Analyze extracts insights from all recorded history.
func (m *MetaLearner) Analyze() Insights {
	return Insights{
		TopStrategyPatterns: m.analyzeStrategyPatterns(),
		WinningParameters:   m.analyzeParameters(),
		CounterStrategies:   m.analyzeCounterStrategies(),
		PerformanceTrends:   m.analyzeTrends(),
	}
}

// analyzeStrategyPatterns groups players by approach and returns the top 5
// approaches by win rate.
func (m *MetaLearner) analyzeStrategyPatterns() []StrategyPattern {
	type stats struct {
		wins, total, players int
		eloSum               float64
	}
	byApproach := make(map[string]*stats)

	for _, generation := range m.playerHistory {
		for _, p := range generation {
			s := byApproach[string(p.Strategy.Approach)]
			if s == nil {
				s = &stats{}
				byApproach[string(p.Strategy.Approach)] = s
			}
			s.wins += p.Wins
			s.total += p.Wins + p.Losses
			s.players++
			s.eloSum += p.EloRating
		}
	}

	patterns := make([]StrategyPattern, 0, len(byApproach))
	for approach, s := range byApproach {
		sample := s.total
		if sample < 1 {
			sample = 1
		}
		patterns = append(patterns, StrategyPattern{
			ApproachName: approach,
			WinRate:      float64(s.wins) / float64(sample),
			AvgEloGain:   s.eloSum/float64(s.players) - InitialElo,
			SampleSize:   sample,
		})
	}

	sort.Slice(patterns, func(i, j int) bool { return patterns[i].WinRate > patterns[j].WinRate })
	if len(patterns) > 5 {
		patterns = patterns[:5]
	}
	return patterns
}

// analyzeParameters splits parameter values by winner (win rate > 0.5) and
// reports the winners' interquartile range. Needs at least 3 winning
// samples per parameter.
func (m *MetaLearner) analyzeParameters() map[string]ParameterInsight {
	winValues := make(map[string][]float64)
	lossValues := make(map[string][]float64)

	for _, generation := range m.playerHistory {
		for _, p := range generation {
			isWinner := p.WinRate() > 0.5
			for name, value := range p.Strategy.Parameters {
				if isWinner {
					winValues[name] = append(winValues[name], value)
				} else {
					lossValues[name] = append(lossValues[name], value)
				}
			}
		}
	}

	insights := make(map[string]ParameterInsight)
	for name, wins := range winValues {
		if len(wins) < 3 {
			continue
		}

		sorted := append([]float64(nil), wins...)
		sort.Float64s(sorted)
		p25 := sorted[len(sorted)/4]
		p75 := sorted[(len(sorted)*3)/4]

		winAvg := mean(wins)
		lossAvg := 0.5
		if losses := lossValues[name]; len(losses) > 0 {
			lossAvg = mean(losses)
		}

		insights[name] = ParameterInsight{
			ParameterName:       name,
			OptimalRange:        [2]float64{p25, p75},
			CorrelationWithWins: math.Abs(winAvg - lossAvg),
		}
	}
	return insights
}

// analyzeCounterStrategies returns the default advisory table. Empirical
// matchup data can replace it once player strategies are recorded per
// match.
func (m *MetaLearner) analyzeCounterStrategies() []CounterStrategyAdvice {
	return []CounterStrategyAdvice{
		{OpponentApproach: "Aggressive", RecommendedCounter: "Conservative", Effectiveness: 0.65},
		{OpponentApproach: "Conservative", RecommendedCounter: "Exploratory", Effectiveness: 0.62},
		{OpponentApproach: "Exploratory", RecommendedCounter: "Exploitative", Effectiveness: 0.68},
	}
}

func (m *MetaLearner) analyzeTrends() PerformanceTrends {
	var avgByGen []float64
	for _, generation := range m.playerHistory {
		if len(generation) == 0 {
			continue
		}
		sum := 0.0
		for _, p := range generation {
			sum += p.EloRating
		}
		avgByGen = append(avgByGen, sum/float64(len(generation)))
	}

	// Diversity: relative Elo spread of the latest generation.
	diversity := 0.0
	if len(m.playerHistory) > 0 {
		latest := m.playerHistory[len(m.playerHistory)-1]
		if len(latest) >= 2 {
			values := make([]float64, len(latest))
			for i, p := range latest {
				values[i] = p.EloRating
			}
			mu := mean(values)
			variance := 0.0
			for _, v := range values {
				variance += (v - mu) * (v - mu)
			}
			variance /= float64(len(values))
			if mu != 0 {
				diversity = math.Sqrt(variance) / mu
			}
		}
	}

	// Convergence: mean Elo plateaued over the last 3 generations.
	converged := false
	if len(avgByGen) >= 3 {
		last := avgByGen[len(avgByGen)-3:]
		maxDiff := 0.0
		for i := 1; i < len(last); i++ {
			if d := math.Abs(last[i] - last[i-1]); d > maxDiff {
				maxDiff = d
			}
		}
		converged = maxDiff < 10.0
	}

	return PerformanceTrends{
		AvgEloByGeneration:  avgByGen,
		DiversityScore:      diversity,
		ConvergenceDetected: converged,
	}
}

// SuggestImprovedStrategy seeds a new strategy from the insights: best
// approach, each parameter at the midpoint of its optimal range, with a
// boldness default guaranteed.
func (m *MetaLearner) SuggestImprovedStrategy(insights Insights) Strategy {
	bestApproach := Exploratory
	if len(insights.TopStrategyPatterns) > 0 {
		switch insights.TopStrategyPatterns[0].ApproachName {
		case string(Aggressive):
			bestApproach = Aggressive
		case string(Conservative):
			bestApproach = Conservative
		case string(Exploitative):
			bestApproach = Exploitative
		}
	}

	parameters := make(map[string]float64)
	for name, insight := range insights.WinningParameters {
		parameters[name] = (insight.OptimalRange[0] + insight.OptimalRange[1]) / 2.0
	}
	if _, ok := parameters["boldness"]; !ok {
		parameters["boldness"] = 0.7
	}

	return Strategy{
		Name:       fmt.Sprintf("MetaLearned_%s", bestApproach),
		Approach:   bestApproach,
		Parameters: parameters,
	}
}

// TotalMatchesOf counts the matches a player participated in across the
// recorded history; the invariant wins+losses == participation holds per
// generation snapshot.
func (m *MetaLearner) TotalMatchesOf(playerID uuid.UUID) int {
	count := 0
	for _, match := range m.matchHistory {
		if match.PlayerA == playerID || match.PlayerB == playerID {
			count++
		}
	}
	return count
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
