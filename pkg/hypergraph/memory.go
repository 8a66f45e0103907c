package hypergraph

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage is the embedded, map-backed Storage implementation. It
// backs tests and single-process deployments; semantic search is delegated
// to the chromem vector index.
type MemoryStorage struct {
	mu    sync.RWMutex
	nodes map[uuid.UUID]Node
	edges map[uuid.UUID]Hyperedge
	index *VectorIndex
}

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage() (*MemoryStorage, error) {
	index, err := NewVectorIndex()
	if err != nil {
		return nil, err
	}
	return &MemoryStorage{
		nodes: make(map[uuid.UUID]Node),
		edges: make(map[uuid.UUID]Hyperedge),
		index: index,
	}, nil
}

func (s *MemoryStorage) CreateNode(ctx context.Context, n Node) (Node, error) {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.Version == 0 {
		n.Version = 1
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	n.UpdatedAt = n.CreatedAt
	if err := n.Validate(); err != nil {
		return Node{}, err
	}

	s.mu.Lock()
	s.nodes[n.ID] = n
	s.mu.Unlock()

	if err := s.index.Upsert(ctx, n.ID, n.Embedding); err != nil {
		return Node{}, err
	}
	return n, nil
}

func (s *MemoryStorage) GetNode(ctx context.Context, id uuid.UUID) (Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[id]
	if !ok || n.Tombstoned() {
		return Node{}, nodeNotFound(id)
	}
	return n, nil
}

func (s *MemoryStorage) UpdateNode(ctx context.Context, n Node) (Node, error) {
	if err := n.Validate(); err != nil {
		return Node{}, err
	}

	s.mu.Lock()
	stored, ok := s.nodes[n.ID]
	if !ok || stored.Tombstoned() {
		s.mu.Unlock()
		return Node{}, nodeNotFound(n.ID)
	}
	if stored.Version != n.Version-1 {
		s.mu.Unlock()
		return Node{}, versionConflict("node", n.ID, n.Version-1, stored.Version)
	}
	n.CreatedAt = stored.CreatedAt
	n.UpdatedAt = time.Now().UTC()
	s.nodes[n.ID] = n
	s.mu.Unlock()

	if err := s.index.Upsert(ctx, n.ID, n.Embedding); err != nil {
		return Node{}, err
	}
	return n, nil
}

func (s *MemoryStorage) DeleteNode(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	n, ok := s.nodes[id]
	if !ok || n.Tombstoned() {
		s.mu.Unlock()
		return nodeNotFound(id)
	}
	now := time.Now().UTC()
	n.TombstonedAt = &now
	n.UpdatedAt = now
	s.nodes[id] = n
	s.mu.Unlock()

	return s.index.Remove(ctx, id)
}

func (s *MemoryStorage) ListNodes(ctx context.Context, filters *NodeFilters) ([]Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var f NodeFilters
	if filters != nil {
		f = *filters
	}

	out := make([]Node, 0)
	for _, n := range s.nodes {
		if n.Tombstoned() || !f.Matches(n) {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStorage) BatchGetNodes(ctx context.Context, ids []uuid.UUID) ([]Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Node, 0, len(ids))
	for _, id := range ids {
		if n, ok := s.nodes[id]; ok && !n.Tombstoned() {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *MemoryStorage) CreateHyperedge(ctx context.Context, e Hyperedge) (Hyperedge, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Version == 0 {
		e.Version = 1
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	e.UpdatedAt = e.CreatedAt
	e.NodeIDs = dedupeIDs(e.NodeIDs)
	if err := e.Validate(); err != nil {
		return Hyperedge{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range e.NodeIDs {
		if _, ok := s.nodes[id]; !ok {
			return Hyperedge{}, nodeNotFound(id)
		}
	}
	s.edges[e.ID] = e
	return e, nil
}

func (s *MemoryStorage) GetHyperedge(ctx context.Context, id uuid.UUID) (Hyperedge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.edges[id]
	if !ok || e.TombstonedAt != nil {
		return Hyperedge{}, edgeNotFound(id)
	}
	return e, nil
}

func (s *MemoryStorage) UpdateHyperedge(ctx context.Context, e Hyperedge) (Hyperedge, error) {
	e.NodeIDs = dedupeIDs(e.NodeIDs)
	if err := e.Validate(); err != nil {
		return Hyperedge{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.edges[e.ID]
	if !ok || stored.TombstonedAt != nil {
		return Hyperedge{}, edgeNotFound(e.ID)
	}
	if stored.Version != e.Version-1 {
		return Hyperedge{}, versionConflict("hyperedge", e.ID, e.Version-1, stored.Version)
	}
	for _, id := range e.NodeIDs {
		if _, ok := s.nodes[id]; !ok {
			return Hyperedge{}, nodeNotFound(id)
		}
	}
	e.CreatedAt = stored.CreatedAt
	e.UpdatedAt = time.Now().UTC()
	s.edges[e.ID] = e
	return e, nil
}

func (s *MemoryStorage) DeleteHyperedge(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.edges[id]
	if !ok || e.TombstonedAt != nil {
		return edgeNotFound(id)
	}
	now := time.Now().UTC()
	e.TombstonedAt = &now
	e.UpdatedAt = now
	s.edges[id] = e
	return nil
}

func (s *MemoryStorage) ListHyperedges(ctx context.Context, nodeID *uuid.UUID) ([]Hyperedge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Hyperedge, 0)
	for _, e := range s.edges {
		if e.TombstonedAt != nil {
			continue
		}
		if nodeID != nil && !e.Connects(*nodeID) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// QueryNeighborhood runs BFS over hyperedges with an explicit visited set,
// so cyclic graphs terminate.
func (s *MemoryStorage) QueryNeighborhood(ctx context.Context, start uuid.UUID, depth int) ([]NodeDistance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	startNode, ok := s.nodes[start]
	if !ok || startNode.Tombstoned() {
		return nil, nodeNotFound(start)
	}

	visited := map[uuid.UUID]int{start: 0}
	frontier := []uuid.UUID{start}
	result := []NodeDistance{{Node: startNode, Distance: 0}}

	for d := 1; d <= depth && len(frontier) > 0; d++ {
		var next []uuid.UUID
		for _, e := range s.edges {
			if e.TombstonedAt != nil {
				continue
			}
			touches := false
			for _, id := range frontier {
				if e.Connects(id) {
					touches = true
					break
				}
			}
			if !touches {
				continue
			}
			for _, id := range e.NodeIDs {
				if _, seen := visited[id]; seen {
					continue
				}
				n, ok := s.nodes[id]
				if !ok || n.Tombstoned() {
					continue
				}
				visited[id] = d
				next = append(next, id)
				result = append(result, NodeDistance{Node: n, Distance: d})
			}
		}
		frontier = next
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Distance != result[j].Distance {
			return result[i].Distance < result[j].Distance
		}
		return result[i].Node.CreatedAt.Before(result[j].Node.CreatedAt)
	})
	return result, nil
}

func (s *MemoryStorage) GetConnectedNodes(ctx context.Context, edgeID uuid.UUID) ([]Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.edges[edgeID]
	if !ok || e.TombstonedAt != nil {
		return nil, edgeNotFound(edgeID)
	}

	out := make([]Node, 0, len(e.NodeIDs))
	for _, id := range e.NodeIDs {
		if n, ok := s.nodes[id]; ok && !n.Tombstoned() {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *MemoryStorage) GetEdgesForNode(ctx context.Context, nodeID uuid.UUID) ([]Hyperedge, error) {
	if _, err := s.GetNode(ctx, nodeID); err != nil {
		return nil, err
	}
	return s.ListHyperedges(ctx, &nodeID)
}

func (s *MemoryStorage) SemanticSearch(ctx context.Context, query []float32, limit int, threshold float32) ([]ScoredNode, error) {
	ids, scores, err := s.index.Query(ctx, query, limit, threshold)
	if err != nil {
		return nil, dbErr("semantic_search", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ScoredNode, 0, len(ids))
	for i, id := range ids {
		if n, ok := s.nodes[id]; ok && !n.Tombstoned() {
			out = append(out, ScoredNode{Node: n, Score: scores[i]})
		}
	}
	return out, nil
}

func (s *MemoryStorage) HealthCheck(ctx context.Context) error {
	return nil
}

var _ Storage = (*MemoryStorage)(nil)
