// Package hypergraph is the persistent knowledge store: content nodes
// connected by n-ary typed hyperedges, with filtered listing, neighborhood
// traversal and semantic vector search.
package hypergraph

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ContentType classifies what a node holds.
type ContentType string

const (
	ContentThought    ContentType = "thought"
	ContentContext    ContentType = "context"
	ContentInsight    ContentType = "insight"
	ContentPaperChunk ContentType = "paper_chunk"
)

// Node is a unit of knowledge.
type Node struct {
	ID          uuid.UUID   `json:"id"`
	ContentType ContentType `json:"content_type"`
	Content     string      `json:"content"`
	DeviceID    string      `json:"device_id"`
	// Embedding is optional; nodes without one are invisible to
	// semantic search.
	Embedding []float32 `json:"embedding,omitempty"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	// TombstonedAt marks logical deletion (LWW tombstone).
	TombstonedAt *time.Time `json:"tombstoned_at,omitempty"`
}

// NewNode builds a validated node with a fresh id and version 1.
func NewNode(content string, contentType ContentType, deviceID string) (Node, error) {
	now := time.Now().UTC()
	n := Node{
		ID:          uuid.New(),
		ContentType: contentType,
		Content:     content,
		DeviceID:    deviceID,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := n.Validate(); err != nil {
		return Node{}, err
	}
	return n, nil
}

// Validate enforces node invariants.
func (n Node) Validate() error {
	if n.Content == "" {
		return &ValidationError{Field: "content", Reason: "cannot be empty"}
	}
	if n.DeviceID == "" {
		return &ValidationError{Field: "device_id", Reason: "cannot be empty"}
	}
	switch n.ContentType {
	case ContentThought, ContentContext, ContentInsight, ContentPaperChunk:
	default:
		return &ValidationError{Field: "content_type", Reason: fmt.Sprintf("unknown content type %q", n.ContentType)}
	}
	return nil
}

// Tombstoned reports whether the node is logically deleted.
func (n Node) Tombstoned() bool {
	return n.TombstonedAt != nil
}

// Hyperedge is an n-ary typed relation among nodes.
type Hyperedge struct {
	ID       uuid.UUID         `json:"id"`
	NodeIDs  []uuid.UUID       `json:"node_ids"`
	Relation string            `json:"relation"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Version  int64             `json:"version"`

	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	TombstonedAt *time.Time `json:"tombstoned_at,omitempty"`
}

// NewHyperedge builds a validated hyperedge with a fresh id and version 1.
func NewHyperedge(nodeIDs []uuid.UUID, relation string) (Hyperedge, error) {
	now := time.Now().UTC()
	e := Hyperedge{
		ID:        uuid.New(),
		NodeIDs:   dedupeIDs(nodeIDs),
		Relation:  relation,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.Validate(); err != nil {
		return Hyperedge{}, err
	}
	return e, nil
}

// Validate enforces hyperedge invariants.
func (e Hyperedge) Validate() error {
	if len(e.NodeIDs) < 2 {
		return &ValidationError{Field: "node_ids", Reason: "hyperedge must connect at least 2 nodes"}
	}
	if e.Relation == "" {
		return &ValidationError{Field: "relation", Reason: "cannot be empty"}
	}
	return nil
}

// Connects reports whether the edge is incident on the given node.
func (e Hyperedge) Connects(nodeID uuid.UUID) bool {
	for _, id := range e.NodeIDs {
		if id == nodeID {
			return true
		}
	}
	return false
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// NodeDistance pairs a node with its BFS distance from a start node.
type NodeDistance struct {
	Node     Node
	Distance int
}

// ScoredNode pairs a node with its semantic similarity score.
type ScoredNode struct {
	Node  Node
	Score float32
}
