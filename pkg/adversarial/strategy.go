// Package adversarial evolves agent parameter sets through self-play
// tournaments: players answer the same query, an LLM judge picks winners,
// Elo tracks skill, and a meta-learner distills the history into improved
// strategies.
package adversarial

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"
)

// Approach is a strategy's broad style of play.
type Approach string

const (
	Aggressive   Approach = "Aggressive"
	Conservative Approach = "Conservative"
	Exploratory  Approach = "Exploratory"
	Exploitative Approach = "Exploitative"
)

var approaches = []Approach{Aggressive, Conservative, Exploratory, Exploitative}

// Strategy is a named approach plus a parameter map. Parameter values live
// in [0, 1] and stay there under mutation.
type Strategy struct {
	Name       string             `json:"name"`
	Approach   Approach           `json:"approach"`
	Parameters map[string]float64 `json:"parameters"`
}

// NewStrategy builds a strategy with the default parameter set.
func NewStrategy(name string, approach Approach) Strategy {
	return Strategy{
		Name:     name,
		Approach: approach,
		Parameters: map[string]float64{
			"boldness":    0.5,
			"skepticism":  0.5,
			"breadth":     0.5,
			"persistence": 0.5,
		},
	}
}

// Clone returns an independent copy.
func (s Strategy) Clone() Strategy {
	params := make(map[string]float64, len(s.Parameters))
	for k, v := range s.Parameters {
		params[k] = v
	}
	return Strategy{Name: s.Name, Approach: s.Approach, Parameters: params}
}

// Mutate perturbs each parameter by up to ±scale (clamped to [0, 1]) and,
// with 20% probability, redraws the approach uniformly at random (the draw
// may return the current approach).
func (s Strategy) Mutate(rng *rand.Rand, scale float64) Strategy {
	out := s.Clone()
	for k, v := range out.Parameters {
		v += (rng.Float64()*2 - 1) * scale
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		out.Parameters[k] = v
	}

	if rng.Float64() < 0.2 {
		out.Approach = approaches[rng.Intn(len(approaches))]
	}
	out.Name = fmt.Sprintf("%s_m%04d", s.Name, rng.Intn(10000))
	return out
}

// InitialElo is every player's starting rating.
const InitialElo = 1500.0

// ResearchPlayer is one competitor in the tournament.
type ResearchPlayer struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Strategy  Strategy  `json:"strategy"`
	EloRating float64   `json:"elo_rating"`
	Wins      int       `json:"wins"`
	Losses    int       `json:"losses"`
}

// NewPlayer creates a player at the initial rating.
func NewPlayer(name string, strategy Strategy) *ResearchPlayer {
	return &ResearchPlayer{
		ID:        uuid.New(),
		Name:      name,
		Strategy:  strategy,
		EloRating: InitialElo,
	}
}

// WinRate is wins over total matches (0 when unplayed).
func (p *ResearchPlayer) WinRate() float64 {
	total := p.Wins + p.Losses
	if total == 0 {
		return 0
	}
	return float64(p.Wins) / float64(total)
}

// MatchResult records one decided match.
type MatchResult struct {
	MatchID  uuid.UUID `json:"match_id"`
	PlayerA  uuid.UUID `json:"player_a"`
	PlayerB  uuid.UUID `json:"player_b"`
	Winner   uuid.UUID `json:"winner"`
	EloDelta float64   `json:"elo_delta"`
	Round    int       `json:"round"`
}
