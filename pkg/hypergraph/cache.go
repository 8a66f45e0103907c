package hypergraph

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// CachedStorage decorates a Storage with read memoization for node and
// hyperedge lookups. Every mutating call writes through and invalidates the
// affected id, so readers never observe stale entries from this process.
type CachedStorage struct {
	inner Storage

	mu    sync.RWMutex
	nodes map[uuid.UUID]Node
	edges map[uuid.UUID]Hyperedge
}

// NewCachedStorage wraps inner with a read cache.
func NewCachedStorage(inner Storage) *CachedStorage {
	return &CachedStorage{
		inner: inner,
		nodes: make(map[uuid.UUID]Node),
		edges: make(map[uuid.UUID]Hyperedge),
	}
}

func (c *CachedStorage) CreateNode(ctx context.Context, n Node) (Node, error) {
	created, err := c.inner.CreateNode(ctx, n)
	if err != nil {
		return Node{}, err
	}
	c.mu.Lock()
	c.nodes[created.ID] = created
	c.mu.Unlock()
	return created, nil
}

func (c *CachedStorage) GetNode(ctx context.Context, id uuid.UUID) (Node, error) {
	c.mu.RLock()
	if n, ok := c.nodes[id]; ok {
		c.mu.RUnlock()
		return n, nil
	}
	c.mu.RUnlock()

	n, err := c.inner.GetNode(ctx, id)
	if err != nil {
		return Node{}, err
	}
	c.mu.Lock()
	c.nodes[id] = n
	c.mu.Unlock()
	return n, nil
}

func (c *CachedStorage) UpdateNode(ctx context.Context, n Node) (Node, error) {
	updated, err := c.inner.UpdateNode(ctx, n)
	if err != nil {
		// A failed update may still mean our cached copy is stale.
		c.mu.Lock()
		delete(c.nodes, n.ID)
		c.mu.Unlock()
		return Node{}, err
	}
	c.mu.Lock()
	c.nodes[updated.ID] = updated
	c.mu.Unlock()
	return updated, nil
}

func (c *CachedStorage) DeleteNode(ctx context.Context, id uuid.UUID) error {
	err := c.inner.DeleteNode(ctx, id)
	c.mu.Lock()
	delete(c.nodes, id)
	c.mu.Unlock()
	return err
}

func (c *CachedStorage) ListNodes(ctx context.Context, filters *NodeFilters) ([]Node, error) {
	return c.inner.ListNodes(ctx, filters)
}

func (c *CachedStorage) BatchGetNodes(ctx context.Context, ids []uuid.UUID) ([]Node, error) {
	return c.inner.BatchGetNodes(ctx, ids)
}

func (c *CachedStorage) CreateHyperedge(ctx context.Context, e Hyperedge) (Hyperedge, error) {
	created, err := c.inner.CreateHyperedge(ctx, e)
	if err != nil {
		return Hyperedge{}, err
	}
	c.mu.Lock()
	c.edges[created.ID] = created
	c.mu.Unlock()
	return created, nil
}

func (c *CachedStorage) GetHyperedge(ctx context.Context, id uuid.UUID) (Hyperedge, error) {
	c.mu.RLock()
	if e, ok := c.edges[id]; ok {
		c.mu.RUnlock()
		return e, nil
	}
	c.mu.RUnlock()

	e, err := c.inner.GetHyperedge(ctx, id)
	if err != nil {
		return Hyperedge{}, err
	}
	c.mu.Lock()
	c.edges[id] = e
	c.mu.Unlock()
	return e, nil
}

func (c *CachedStorage) UpdateHyperedge(ctx context.Context, e Hyperedge) (Hyperedge, error) {
	updated, err := c.inner.UpdateHyperedge(ctx, e)
	if err != nil {
		c.mu.Lock()
		delete(c.edges, e.ID)
		c.mu.Unlock()
		return Hyperedge{}, err
	}
	c.mu.Lock()
	c.edges[updated.ID] = updated
	c.mu.Unlock()
	return updated, nil
}

func (c *CachedStorage) DeleteHyperedge(ctx context.Context, id uuid.UUID) error {
	err := c.inner.DeleteHyperedge(ctx, id)
	c.mu.Lock()
	delete(c.edges, id)
	c.mu.Unlock()
	return err
}

func (c *CachedStorage) ListHyperedges(ctx context.Context, nodeID *uuid.UUID) ([]Hyperedge, error) {
	return c.inner.ListHyperedges(ctx, nodeID)
}

func (c *CachedStorage) QueryNeighborhood(ctx context.Context, start uuid.UUID, depth int) ([]NodeDistance, error) {
	return c.inner.QueryNeighborhood(ctx, start, depth)
}

func (c *CachedStorage) GetConnectedNodes(ctx context.Context, edgeID uuid.UUID) ([]Node, error) {
	return c.inner.GetConnectedNodes(ctx, edgeID)
}

func (c *CachedStorage) GetEdgesForNode(ctx context.Context, nodeID uuid.UUID) ([]Hyperedge, error) {
	return c.inner.GetEdgesForNode(ctx, nodeID)
}

func (c *CachedStorage) SemanticSearch(ctx context.Context, query []float32, limit int, threshold float32) ([]ScoredNode, error) {
	return c.inner.SemanticSearch(ctx, query, limit, threshold)
}

func (c *CachedStorage) HealthCheck(ctx context.Context) error {
	return c.inner.HealthCheck(ctx)
}

var _ Storage = (*CachedStorage)(nil)
