package adversarial

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/agourakis82/beagle/pkg/llms"
)

// Format selects the tournament structure.
type Format int

const (
	// RoundRobin plays every pair once.
	RoundRobin Format = iota
	// Swiss plays R rounds pairing by current Elo, avoiding rematches.
	Swiss
	// SingleElim runs a knockout bracket over a power-of-two field.
	SingleElim
)

// Completer is the LLM dependency: player answers and judge verdicts both
// go through it.
type Completer interface {
	Complete(ctx context.Context, req llms.CompletionRequest) (llms.CompletionResponse, error)
}

// Arena runs tournaments over a fixed player field.
type Arena struct {
	llm     Completer
	players []*ResearchPlayer
	rounds  int // Swiss only
}

// NewArena creates an arena over the players.
func NewArena(llm Completer, players []*ResearchPlayer) *Arena {
	return &Arena{llm: llm, players: players, rounds: 3}
}

// WithSwissRounds sets the round count for Swiss tournaments.
func (a *Arena) WithSwissRounds(r int) *Arena {
	if r > 0 {
		a.rounds = r
	}
	return a
}

// Players returns the arena's field.
func (a *Arena) Players() []*ResearchPlayer {
	return a.players
}

// RunTournament plays the query under the given format. A match that fails
// mid-way is dropped; the tournament completes with the remaining results.
func (a *Arena) RunTournament(ctx context.Context, format Format, query string) ([]MatchResult, error) {
	if len(a.players) < 2 {
		return nil, fmt.Errorf("tournament needs at least 2 players, have %d", len(a.players))
	}

	switch format {
	case Swiss:
		return a.runSwiss(ctx, query)
	case SingleElim:
		return a.runSingleElim(ctx, query)
	default:
		return a.runRoundRobin(ctx, query)
	}
}

func (a *Arena) runRoundRobin(ctx context.Context, query string) ([]MatchResult, error) {
	var results []MatchResult
	for i := 0; i < len(a.players); i++ {
		for j := i + 1; j < len(a.players); j++ {
			if result, ok := a.playMatch(ctx, a.players[i], a.players[j], query, 1); ok {
				results = append(results, result)
			}
		}
	}
	return results, nil
}

func (a *Arena) runSwiss(ctx context.Context, query string) ([]MatchResult, error) {
	played := make(map[[2]uuid.UUID]bool)
	var results []MatchResult

	for round := 1; round <= a.rounds; round++ {
		// Pair adjacent players by current Elo, skipping rematches.
		ranked := append([]*ResearchPlayer(nil), a.players...)
		sort.Slice(ranked, func(i, j int) bool { return ranked[i].EloRating > ranked[j].EloRating })

		used := make(map[uuid.UUID]bool)
		for i := 0; i < len(ranked); i++ {
			if used[ranked[i].ID] {
				continue
			}
			for j := i + 1; j < len(ranked); j++ {
				if used[ranked[j].ID] || played[pairKey(ranked[i], ranked[j])] {
					continue
				}
				used[ranked[i].ID], used[ranked[j].ID] = true, true
				played[pairKey(ranked[i], ranked[j])] = true

				if result, ok := a.playMatch(ctx, ranked[i], ranked[j], query, round); ok {
					results = append(results, result)
				}
				break
			}
		}
	}
	return results, nil
}

func (a *Arena) runSingleElim(ctx context.Context, query string) ([]MatchResult, error) {
	bracket := append([]*ResearchPlayer(nil), a.players...)
	// Trim to the largest power of two.
	size := 1
	for size*2 <= len(bracket) {
		size *= 2
	}
	bracket = bracket[:size]

	var results []MatchResult
	round := 1
	for len(bracket) > 1 {
		var winners []*ResearchPlayer
		for i := 0; i < len(bracket); i += 2 {
			result, ok := a.playMatch(ctx, bracket[i], bracket[i+1], query, round)
			if !ok {
				// Dropped match: the higher-rated player advances.
				if bracket[i].EloRating >= bracket[i+1].EloRating {
					winners = append(winners, bracket[i])
				} else {
					winners = append(winners, bracket[i+1])
				}
				continue
			}
			results = append(results, result)
			if result.Winner == bracket[i].ID {
				winners = append(winners, bracket[i])
			} else {
				winners = append(winners, bracket[i+1])
			}
		}
		bracket = winners
		round++
	}
	return results, nil
}

// playMatch generates both players' answers and has the judge compare them.
// Any failure drops the match (ok = false).
func (a *Arena) playMatch(ctx context.Context, pa, pb *ResearchPlayer, query string, round int) (MatchResult, bool) {
	answerA, err := a.answerFor(ctx, pa, query)
	if err != nil {
		slog.Warn("match dropped: player A failed", "player", pa.Name, "error", err)
		return MatchResult{}, false
	}
	answerB, err := a.answerFor(ctx, pb, query)
	if err != nil {
		slog.Warn("match dropped: player B failed", "player", pb.Name, "error", err)
		return MatchResult{}, false
	}

	verdict, err := a.judge(ctx, query, answerA, answerB)
	if err != nil {
		slog.Warn("match dropped: judge failed", "error", err)
		return MatchResult{}, false
	}

	winner, loser := pa, pb
	if verdict == "B" {
		winner, loser = pb, pa
	}
	delta := updateElo(winner, loser)

	return MatchResult{
		MatchID:  uuid.New(),
		PlayerA:  pa.ID,
		PlayerB:  pb.ID,
		Winner:   winner.ID,
		EloDelta: delta,
		Round:    round,
	}, true
}

// answerFor generates a player's answer; the strategy's boldness dials the
// sampling temperature.
func (a *Arena) answerFor(ctx context.Context, p *ResearchPlayer, query string) (string, error) {
	boldness := p.Strategy.Parameters["boldness"]
	temperature := 0.3 + boldness*0.6

	resp, err := a.llm.Complete(ctx, llms.CompletionRequest{
		Messages:    []llms.Message{llms.UserMessage(query)},
		MaxTokens:   800,
		Temperature: temperature,
		System: fmt.Sprintf(
			"You are a research agent with a %s approach. Answer rigorously and concisely.",
			strings.ToLower(string(p.Strategy.Approach))),
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// judge asks the orchestrator to compare both answers; it must reply with
// a single letter.
func (a *Arena) judge(ctx context.Context, query, answerA, answerB string) (string, error) {
	prompt := fmt.Sprintf(
		"QUESTION: %s\n\nANSWER A:\n%s\n\nANSWER B:\n%s\n\n"+
			"Which answer is better on accuracy, depth and clarity? Reply with exactly one letter: A or B.",
		query, answerA, answerB)

	resp, err := a.llm.Complete(ctx, llms.CompletionRequest{
		Messages:    []llms.Message{llms.UserMessage(prompt)},
		MaxTokens:   4,
		Temperature: 0.0,
		System:      "You are an impartial judge. Reply with a single letter.",
	})
	if err != nil {
		return "", err
	}

	verdict := strings.ToUpper(strings.TrimSpace(resp.Content))
	if strings.HasPrefix(verdict, "B") {
		return "B", nil
	}
	if strings.HasPrefix(verdict, "A") {
		return "A", nil
	}
	return "", fmt.Errorf("unintelligible verdict %q", resp.Content)
}

func pairKey(a, b *ResearchPlayer) [2]uuid.UUID {
	if strings.Compare(a.ID.String(), b.ID.String()) < 0 {
		return [2]uuid.UUID{a.ID, b.ID}
	}
	return [2]uuid.UUID{b.ID, a.ID}
}
