package hypergraph

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// NodeFilters narrows ListNodes results. Filters AND together; the zero
// value matches everything.
type NodeFilters struct {
	ContentType   *ContentType
	DeviceID      *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// Matches reports whether a node passes every set filter.
func (f NodeFilters) Matches(n Node) bool {
	if f.ContentType != nil && n.ContentType != *f.ContentType {
		return false
	}
	if f.DeviceID != nil && n.DeviceID != *f.DeviceID {
		return false
	}
	if f.CreatedAfter != nil && !n.CreatedAt.After(*f.CreatedAfter) {
		return false
	}
	if f.CreatedBefore != nil && !n.CreatedAt.Before(*f.CreatedBefore) {
		return false
	}
	return true
}

// Storage is the persistence contract for the hypergraph.
//
// Deletion is logical: nodes and edges get a tombstone timestamp, which
// keeps hyperedge references valid after their nodes disappear (a referenced
// node either exists or carries a tombstone at least as new as the edge).
type Storage interface {
	// CreateNode validates invariants, assigns storage-level ids when
	// missing, and persists the node.
	CreateNode(ctx context.Context, n Node) (Node, error)

	// GetNode looks up a node by id. Returns ErrNodeNotFound when absent.
	GetNode(ctx context.Context, id uuid.UUID) (Node, error)

	// UpdateNode applies a version-checked update. Returns
	// ErrVersionConflict if the stored version differs from n.Version-1.
	UpdateNode(ctx context.Context, n Node) (Node, error)

	// DeleteNode tombstones a node.
	DeleteNode(ctx context.Context, id uuid.UUID) error

	// ListNodes returns live nodes matching the filters.
	ListNodes(ctx context.Context, filters *NodeFilters) ([]Node, error)

	// BatchGetNodes returns the nodes found among ids. Missing ids are not
	// an error; ordering is unspecified.
	BatchGetNodes(ctx context.Context, ids []uuid.UUID) ([]Node, error)

	CreateHyperedge(ctx context.Context, e Hyperedge) (Hyperedge, error)
	GetHyperedge(ctx context.Context, id uuid.UUID) (Hyperedge, error)
	UpdateHyperedge(ctx context.Context, e Hyperedge) (Hyperedge, error)
	DeleteHyperedge(ctx context.Context, id uuid.UUID) error

	// ListHyperedges returns all live edges, or only those incident on
	// nodeID when non-nil.
	ListHyperedges(ctx context.Context, nodeID *uuid.UUID) ([]Hyperedge, error)

	// QueryNeighborhood runs BFS from start up to depth edges away and
	// returns (node, distance) pairs, start included at distance 0.
	// Distance is the shortest edge count.
	QueryNeighborhood(ctx context.Context, start uuid.UUID, depth int) ([]NodeDistance, error)

	// GetConnectedNodes returns every live node referenced by the edge.
	GetConnectedNodes(ctx context.Context, edgeID uuid.UUID) ([]Node, error)

	// GetEdgesForNode returns all live edges incident on the node.
	GetEdgesForNode(ctx context.Context, nodeID uuid.UUID) ([]Hyperedge, error)

	// SemanticSearch returns up to limit live nodes whose cosine similarity
	// to the query embedding is >= threshold, sorted descending.
	SemanticSearch(ctx context.Context, query []float32, limit int, threshold float32) ([]ScoredNode, error)

	// HealthCheck returns nil iff the backend is live and schema-compatible.
	HealthCheck(ctx context.Context) error
}
