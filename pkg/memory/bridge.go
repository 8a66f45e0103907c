package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agourakis82/beagle/pkg/hypergraph"
)

const sessionTurnRelation = "session_turn"

// ContextBridge persists sessions and turns into the hypergraph: each turn
// becomes a context node linked to its session node by a hyperedge, so
// conversational memory is traversable and searchable like any other
// knowledge.
type ContextBridge struct {
	storage hypergraph.Storage

	mu       sync.RWMutex
	sessions map[uuid.UUID]sessionRecord
}

type sessionRecord struct {
	session Session
	nodeID  uuid.UUID
}

// NewContextBridge creates a bridge over the given storage.
func NewContextBridge(storage hypergraph.Storage) *ContextBridge {
	return &ContextBridge{
		storage:  storage,
		sessions: make(map[uuid.UUID]sessionRecord),
	}
}

// CreateSession starts a new conversation thread, anchored by a session
// node in the hypergraph.
func (b *ContextBridge) CreateSession(ctx context.Context, userTag string) (Session, error) {
	session := Session{ID: uuid.New(), CreatedAt: time.Now().UTC(), UserTag: userTag}

	content, err := json.Marshal(session)
	if err != nil {
		return Session{}, fmt.Errorf("serialize session: %w", err)
	}

	created, err := b.storage.CreateNode(ctx, hypergraph.Node{
		ID:          session.ID,
		ContentType: hypergraph.ContentContext,
		Content:     string(content),
		DeviceID:    "context-bridge",
	})
	if err != nil {
		return Session{}, fmt.Errorf("persist session node: %w", err)
	}

	b.mu.Lock()
	b.sessions[session.ID] = sessionRecord{session: session, nodeID: created.ID}
	b.mu.Unlock()
	return session, nil
}

// GetSession returns a known session.
func (b *ContextBridge) GetSession(id uuid.UUID) (Session, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rec, ok := b.sessions[id]
	return rec.session, ok
}

// StoreTurn appends a turn: a context node plus an edge to the session.
// Unknown sessions are registered on the fly, so callers resuming a
// session from another process do not lose turns.
func (b *ContextBridge) StoreTurn(ctx context.Context, turn ConversationTurn) error {
	b.mu.RLock()
	rec, known := b.sessions[turn.SessionID]
	b.mu.RUnlock()

	if !known {
		session, err := b.adoptSession(ctx, turn.SessionID)
		if err != nil {
			return err
		}
		rec = session
	}

	content, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("serialize turn: %w", err)
	}

	turnNode, err := b.storage.CreateNode(ctx, hypergraph.Node{
		ID:          turn.ID,
		ContentType: hypergraph.ContentContext,
		Content:     string(content),
		DeviceID:    "context-bridge",
	})
	if err != nil {
		return fmt.Errorf("persist turn node: %w", err)
	}

	edge, err := hypergraph.NewHyperedge([]uuid.UUID{rec.nodeID, turnNode.ID}, sessionTurnRelation)
	if err != nil {
		return err
	}
	if _, err := b.storage.CreateHyperedge(ctx, edge); err != nil {
		return fmt.Errorf("link turn to session: %w", err)
	}
	return nil
}

// RecentTurns returns up to limit turns of a session, oldest first.
func (b *ContextBridge) RecentTurns(ctx context.Context, sessionID uuid.UUID, limit int) ([]ConversationTurn, error) {
	b.mu.RLock()
	rec, known := b.sessions[sessionID]
	b.mu.RUnlock()
	if !known {
		return nil, nil
	}

	neighborhood, err := b.storage.QueryNeighborhood(ctx, rec.nodeID, 1)
	if err != nil {
		return nil, err
	}

	var turns []ConversationTurn
	for _, nd := range neighborhood {
		if nd.Distance != 1 {
			continue
		}
		var turn ConversationTurn
		if err := json.Unmarshal([]byte(nd.Node.Content), &turn); err != nil {
			continue
		}
		if turn.SessionID != sessionID {
			continue
		}
		turns = append(turns, turn)
	}

	sort.Slice(turns, func(i, j int) bool { return turns[i].CreatedAt.Before(turns[j].CreatedAt) })
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return turns, nil
}

// adoptSession registers a session id first seen through StoreTurn.
func (b *ContextBridge) adoptSession(ctx context.Context, sessionID uuid.UUID) (sessionRecord, error) {
	session := Session{ID: sessionID, CreatedAt: time.Now().UTC()}
	content, _ := json.Marshal(session)

	node, err := b.storage.CreateNode(ctx, hypergraph.Node{
		ID:          sessionID,
		ContentType: hypergraph.ContentContext,
		Content:     string(content),
		DeviceID:    "context-bridge",
	})
	if err != nil {
		return sessionRecord{}, fmt.Errorf("adopt session: %w", err)
	}

	rec := sessionRecord{session: session, nodeID: node.ID}
	b.mu.Lock()
	b.sessions[sessionID] = rec
	b.mu.Unlock()
	return rec, nil
}
