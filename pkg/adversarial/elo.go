package adversarial

import "math"

// eloK is the standard update factor used throughout the arena.
const eloK = 32.0

// expectedScore is the probability that a beats b under the Elo model.
func expectedScore(a, b float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, (b-a)/400.0))
}

// updateElo applies one match outcome and returns the rating transfer.
// winner and loser are mutated in place.
func updateElo(winner, loser *ResearchPlayer) float64 {
	expected := expectedScore(winner.EloRating, loser.EloRating)
	delta := eloK * (1.0 - expected)

	winner.EloRating += delta
	loser.EloRating -= delta

	winner.Wins++
	loser.Losses++
	return delta
}
