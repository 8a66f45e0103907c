// Package memory holds conversational state: sessions, turns, and the
// context bridge that persists both into the hypergraph store.
package memory

import (
	"time"

	"github.com/google/uuid"

	"github.com/agourakis82/beagle/pkg/personality"
)

// Session is one conversation thread. All turns of a conversation share a
// session id.
type Session struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UserTag   string    `json:"user_tag,omitempty"`
}

// PerformanceMetrics captures per-turn LLM cost data.
type PerformanceMetrics struct {
	LatencyMS    uint64   `json:"latency_ms"`
	TokensInput  *int     `json:"tokens_input,omitempty"`
	TokensOutput *int     `json:"tokens_output,omitempty"`
	CostUSD      *float64 `json:"cost_usd,omitempty"`
}

// TurnMetadata is the auxiliary record attached to a turn.
type TurnMetadata struct {
	Metrics             PerformanceMetrics `json:"metrics"`
	SystemPromptPreview string             `json:"system_prompt_preview,omitempty"`
}

// ConversationTurn is one query/response pair. Turns are append-only.
type ConversationTurn struct {
	ID        uuid.UUID          `json:"id"`
	SessionID uuid.UUID          `json:"session_id"`
	Query     string             `json:"query"`
	Response  string             `json:"response"`
	Domain    personality.Domain `json:"domain"`
	Model     string             `json:"model"`
	CreatedAt time.Time          `json:"created_at"`
	Metadata  TurnMetadata       `json:"metadata"`
}

// NewConversationTurn builds a turn with a fresh id.
func NewConversationTurn(sessionID uuid.UUID, query, response string, domain personality.Domain, model string) ConversationTurn {
	return ConversationTurn{
		ID:        uuid.New(),
		SessionID: sessionID,
		Query:     query,
		Response:  response,
		Domain:    domain,
		Model:     model,
		CreatedAt: time.Now().UTC(),
	}
}

// PreviewOf compresses a system prompt to a single-line preview capped at
// 200 runes, matching what gets stored alongside a turn.
func PreviewOf(systemPrompt string) string {
	runes := []rune(systemPrompt)
	if len(runes) > 200 {
		runes = runes[:200]
	}
	out := make([]rune, len(runes))
	for i, r := range runes {
		if r == '\n' {
			out[i] = ' '
		} else {
			out[i] = r
		}
	}
	return string(out)
}
