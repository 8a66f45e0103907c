package hypergraph

import (
	"context"
	"fmt"
	"math"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"github.com/google/uuid"
)

// CosineSimilarity is the fixed semantic-search similarity metric.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// VectorIndex maintains node embeddings in an embedded chromem-go
// collection, kept write-through by the storage backends.
type VectorIndex struct {
	mu  sync.Mutex
	col *chromem.Collection
}

// NewVectorIndex creates an in-memory index.
func NewVectorIndex() (*VectorIndex, error) {
	db := chromem.NewDB()
	col, err := db.GetOrCreateCollection("nodes", nil, func(ctx context.Context, text string) ([]float32, error) {
		// Embeddings are always supplied pre-computed.
		return nil, fmt.Errorf("embedding function should not be called")
	})
	if err != nil {
		return nil, fmt.Errorf("create vector collection: %w", err)
	}
	return &VectorIndex{col: col}, nil
}

// Upsert indexes or re-indexes a node embedding.
func (v *VectorIndex) Upsert(ctx context.Context, id uuid.UUID, embedding []float32) error {
	if len(embedding) == 0 {
		return nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	// chromem's AddDocuments overwrites by id.
	doc := chromem.Document{ID: id.String(), Embedding: embedding}
	if err := v.col.AddDocuments(ctx, []chromem.Document{doc}, 1); err != nil {
		return fmt.Errorf("index embedding: %w", err)
	}
	return nil
}

// Remove drops a node from the index. Unknown ids are ignored.
func (v *VectorIndex) Remove(ctx context.Context, id uuid.UUID) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.col.Delete(ctx, nil, nil, id.String()); err != nil {
		return fmt.Errorf("remove embedding: %w", err)
	}
	return nil
}

// Query returns node ids with similarity >= threshold, best first.
func (v *VectorIndex) Query(ctx context.Context, embedding []float32, limit int, threshold float32) ([]uuid.UUID, []float32, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	count := v.col.Count()
	if count == 0 || limit <= 0 {
		return nil, nil, nil
	}
	if limit > count {
		limit = count
	}

	results, err := v.col.QueryEmbedding(ctx, embedding, limit, nil, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("vector query: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(results))
	scores := make([]float32, 0, len(results))
	for _, r := range results {
		if r.Similarity < threshold {
			continue
		}
		id, err := uuid.Parse(r.ID)
		if err != nil {
			continue
		}
		ids = append(ids, id)
		scores = append(scores, r.Similarity)
	}
	return ids, scores, nil
}
