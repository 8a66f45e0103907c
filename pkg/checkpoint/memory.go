package checkpoint

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryCheckpointer keeps checkpoints in process memory. State snapshots
// round-trip through JSON so stored state is isolated from later caller
// mutation, exactly as the durable store behaves.
type MemoryCheckpointer[S any] struct {
	mu      sync.RWMutex
	threads map[string][]Checkpoint[S] // ascending by step
}

// NewMemoryCheckpointer creates an empty in-memory store.
func NewMemoryCheckpointer[S any]() *MemoryCheckpointer[S] {
	return &MemoryCheckpointer[S]{threads: make(map[string][]Checkpoint[S])}
}

func deepCopyState[S any](state S) (S, error) {
	var out S
	raw, err := json.Marshal(state)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}

func (m *MemoryCheckpointer[S]) Put(ctx context.Context, config Config, state S, metadata Metadata) (uuid.UUID, error) {
	if config.ThreadID == "" {
		return uuid.Nil, ErrEmptyThreadID
	}

	snapshot, err := deepCopyState(state)
	if err != nil {
		return uuid.Nil, err
	}
	if metadata.CreatedAt.IsZero() {
		metadata.CreatedAt = time.Now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	chain := m.threads[config.ThreadID]
	if len(chain) > 0 && chain[len(chain)-1].Metadata.Step >= metadata.Step {
		return uuid.Nil, ErrNonMonotonicStep
	}

	cp := Checkpoint[S]{
		ID:            uuid.New(),
		ThreadID:      config.ThreadID,
		Namespace:     config.Namespace,
		Metadata:      metadata,
		State:         snapshot,
		SchemaVersion: SchemaVersion,
	}
	m.threads[config.ThreadID] = append(chain, cp)
	return cp.ID, nil
}

func (m *MemoryCheckpointer[S]) PutWrites(ctx context.Context, config Config, writes []PendingWrite) error {
	if config.ThreadID == "" {
		return ErrEmptyThreadID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	chain := m.threads[config.ThreadID]
	if len(chain) == 0 {
		return ErrNotFound
	}
	latest := &chain[len(chain)-1]
	latest.PendingWrites = append(latest.PendingWrites, writes...)
	return nil
}

func (m *MemoryCheckpointer[S]) GetTuple(ctx context.Context, config Config) (*Tuple[S], error) {
	if config.ThreadID == "" {
		return nil, ErrEmptyThreadID
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	chain := m.threads[config.ThreadID]
	if len(chain) == 0 {
		return nil, nil
	}

	var found *Checkpoint[S]
	if config.CheckpointID != nil {
		for i := range chain {
			if chain[i].ID == *config.CheckpointID {
				found = &chain[i]
				break
			}
		}
		if found == nil {
			return nil, nil
		}
	} else {
		found = &chain[len(chain)-1]
	}

	cp := *found
	cp.PendingWrites = append([]PendingWrite(nil), found.PendingWrites...)

	return &Tuple[S]{
		Checkpoint: cp,
		Config:     NewConfig(config.ThreadID).At(cp.ID),
		NextNodes:  nextNodesOf(cp.PendingWrites),
	}, nil
}

func (m *MemoryCheckpointer[S]) List(ctx context.Context, config Config, filter *Filter) ([]Checkpoint[S], error) {
	if config.ThreadID == "" {
		return nil, ErrEmptyThreadID
	}

	m.mu.RLock()
	chain := append([]Checkpoint[S](nil), m.threads[config.ThreadID]...)
	m.mu.RUnlock()

	// Newest first.
	sort.Slice(chain, func(i, j int) bool { return chain[i].Metadata.Step > chain[j].Metadata.Step })

	var f Filter
	if filter != nil {
		f = *filter
	}

	out := make([]Checkpoint[S], 0, len(chain))
	for _, cp := range chain {
		if f.Matches(cp.Metadata) {
			out = append(out, cp)
		}
	}

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []Checkpoint[S]{}, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *MemoryCheckpointer[S]) GetHistory(ctx context.Context, config Config) ([]Checkpoint[S], error) {
	if config.ThreadID == "" {
		return nil, ErrEmptyThreadID
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	chain := append([]Checkpoint[S](nil), m.threads[config.ThreadID]...)
	sort.Slice(chain, func(i, j int) bool { return chain[i].Metadata.Step < chain[j].Metadata.Step })
	return chain, nil
}

func (m *MemoryCheckpointer[S]) Delete(ctx context.Context, config Config) error {
	if config.ThreadID == "" {
		return ErrEmptyThreadID
	}
	if config.CheckpointID == nil {
		return ErrNotFound
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	chain := m.threads[config.ThreadID]
	for i := range chain {
		if chain[i].ID == *config.CheckpointID {
			m.threads[config.ThreadID] = append(chain[:i], chain[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryCheckpointer[S]) DeleteThread(ctx context.Context, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.threads, threadID)
	return nil
}

func (m *MemoryCheckpointer[S]) Count(ctx context.Context, config Config) (int, error) {
	if config.ThreadID == "" {
		return 0, ErrEmptyThreadID
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.threads[config.ThreadID]), nil
}

var _ Checkpointer[any] = (*MemoryCheckpointer[any])(nil)
