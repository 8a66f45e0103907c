package adversarial

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agourakis82/beagle/pkg/llms"
)

// scriptedJudge answers player prompts with canned text and judges by
// preferring the lexicographically smaller answer, which makes outcomes
// deterministic for tests.
type scriptedJudge struct {
	failFor string // player system-prompt fragment that should error
}

func (j *scriptedJudge) Complete(ctx context.Context, req llms.CompletionRequest) (llms.CompletionResponse, error) {
	if strings.Contains(req.System, "impartial judge") {
		// The prompt embeds "ANSWER A:\n<a>" and "ANSWER B:\n<b>".
		content := req.Messages[0].Content
		a := extractBetween(content, "ANSWER A:\n", "\n\nANSWER B:")
		b := extractBetween(content, "ANSWER B:\n", "\n\nWhich answer")
		verdict := "A"
		if b < a {
			verdict = "B"
		}
		return llms.CompletionResponse{Content: verdict, Model: "judge"}, nil
	}

	if j.failFor != "" && strings.Contains(req.System, j.failFor) {
		return llms.CompletionResponse{}, errors.New("player model failed")
	}
	// Answer is keyed to the approach so the judge can discriminate.
	return llms.CompletionResponse{Content: req.System, Model: "player"}, nil
}

func extractBetween(s, start, end string) string {
	i := strings.Index(s, start)
	if i < 0 {
		return ""
	}
	s = s[i+len(start):]
	j := strings.Index(s, end)
	if j < 0 {
		return s
	}
	return s[:j]
}

func fieldOf(n int) []*ResearchPlayer {
	players := make([]*ResearchPlayer, 0, n)
	for i := 0; i < n; i++ {
		approach := approaches[i%len(approaches)]
		players = append(players, NewPlayer(fmt.Sprintf("player-%d", i), NewStrategy(fmt.Sprintf("s%d", i), approach)))
	}
	return players
}

func TestArena_RoundRobin(t *testing.T) {
	players := fieldOf(4)
	arena := NewArena(&scriptedJudge{}, players)

	results, err := arena.RunTournament(context.Background(), RoundRobin, "What is CRISPR?")
	require.NoError(t, err)
	assert.Len(t, results, 6, "every pair plays once")

	// Elo conservation: total rating stays at n * initial.
	total := 0.0
	totalMatches := 0
	for _, p := range players {
		total += p.EloRating
		totalMatches += p.Wins + p.Losses
	}
	assert.InDelta(t, float64(len(players))*InitialElo, total, 1e-6)
	assert.Equal(t, 12, totalMatches, "each match counts for two players")

	// wins+losses equals matches participated for every player.
	learner := NewMetaLearner()
	learner.RecordGeneration(players, results)
	for _, p := range players {
		assert.Equal(t, learner.TotalMatchesOf(p.ID), p.Wins+p.Losses)
	}
}

func TestArena_EloMovesTowardWinners(t *testing.T) {
	players := fieldOf(2)
	arena := NewArena(&scriptedJudge{}, players)

	results, err := arena.RunTournament(context.Background(), RoundRobin, "q")
	require.NoError(t, err)
	require.Len(t, results, 1)

	var winner, loser *ResearchPlayer
	for _, p := range players {
		if p.ID == results[0].Winner {
			winner = p
		} else {
			loser = p
		}
	}
	require.NotNil(t, winner)
	assert.Greater(t, winner.EloRating, InitialElo)
	assert.Less(t, loser.EloRating, InitialElo)
	assert.InDelta(t, 16.0, results[0].EloDelta, 1e-9, "K=32, even match transfers K/2")
}

func TestArena_Swiss(t *testing.T) {
	players := fieldOf(6)
	arena := NewArena(&scriptedJudge{}, players).WithSwissRounds(3)

	results, err := arena.RunTournament(context.Background(), Swiss, "q")
	require.NoError(t, err)
	require.NotEmpty(t, results)

	// No pair meets twice.
	seen := make(map[string]bool)
	for _, r := range results {
		key := r.PlayerA.String() + r.PlayerB.String()
		if r.PlayerB.String() < r.PlayerA.String() {
			key = r.PlayerB.String() + r.PlayerA.String()
		}
		assert.False(t, seen[key], "rematch detected")
		seen[key] = true
	}

	// Rounds fill at most floor(n/2) matches each.
	perRound := make(map[int]int)
	for _, r := range results {
		perRound[r.Round]++
	}
	for round, count := range perRound {
		assert.LessOrEqual(t, count, 3, "round %d", round)
	}
}

func TestArena_SingleElim(t *testing.T) {
	players := fieldOf(8)
	arena := NewArena(&scriptedJudge{}, players)

	results, err := arena.RunTournament(context.Background(), SingleElim, "q")
	require.NoError(t, err)
	assert.Len(t, results, 7, "8-player knockout plays 7 matches")

	// Exactly one player is unbeaten.
	unbeaten := 0
	for _, p := range players {
		if p.Losses == 0 && p.Wins > 0 {
			unbeaten++
		}
	}
	assert.Equal(t, 1, unbeaten)
}

func TestArena_SingleElim_TrimsToPowerOfTwo(t *testing.T) {
	players := fieldOf(6)
	arena := NewArena(&scriptedJudge{}, players)

	results, err := arena.RunTournament(context.Background(), SingleElim, "q")
	require.NoError(t, err)
	assert.Len(t, results, 3, "field trimmed to 4")
}

func TestArena_DroppedMatchCompletesTournament(t *testing.T) {
	players := fieldOf(3)
	// Matches involving the aggressive player fail; the rest complete.
	arena := NewArena(&scriptedJudge{failFor: "aggressive"}, players)

	results, err := arena.RunTournament(context.Background(), RoundRobin, "q")
	require.NoError(t, err)
	assert.Len(t, results, 1, "only the match without the failing player lands")
}

func TestArena_TooFewPlayers(t *testing.T) {
	arena := NewArena(&scriptedJudge{}, fieldOf(1))
	_, err := arena.RunTournament(context.Background(), RoundRobin, "q")
	require.Error(t, err)
}

func TestStrategy_MutationKeepsParametersInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	s := NewStrategy("base", Exploratory)

	for i := 0; i < 200; i++ {
		s = s.Mutate(rng, 0.3)
		for name, v := range s.Parameters {
			assert.GreaterOrEqual(t, v, 0.0, "parameter %s", name)
			assert.LessOrEqual(t, v, 1.0, "parameter %s", name)
		}
	}
}

func TestExpectedScore(t *testing.T) {
	assert.InDelta(t, 0.5, expectedScore(1500, 1500), 1e-9)
	assert.Greater(t, expectedScore(1700, 1500), 0.7)
	assert.InDelta(t, 1.0, expectedScore(1500, 1500)+expectedScore(1500, 1500), 1e-9)
}
