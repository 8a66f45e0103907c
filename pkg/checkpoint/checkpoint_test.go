package checkpoint

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipelineState is a representative state type for the contract tests.
type pipelineState struct {
	Phase   string   `json:"phase"`
	Drafts  []string `json:"drafts"`
	Quality float64  `json:"quality"`
}

func stores(t *testing.T) map[string]Checkpointer[pipelineState] {
	t.Helper()

	sq, err := NewSQLiteCheckpointer[pipelineState](context.Background(), filepath.Join(t.TempDir(), "checkpoints.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sq.Close() })

	return map[string]Checkpointer[pipelineState]{
		"memory": NewMemoryCheckpointer[pipelineState](),
		"sqlite": sq,
	}
}

func putN(t *testing.T, cp Checkpointer[pipelineState], threadID string, n int) []uuid.UUID {
	t.Helper()
	ids := make([]uuid.UUID, 0, n)
	for i := 1; i <= n; i++ {
		state := pipelineState{Phase: "step", Drafts: []string{"draft"}, Quality: float64(i) / 10}
		id, err := cp.Put(context.Background(), NewConfig(threadID), state, NewMetadata("loop", uint64(i)))
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func TestCheckpointer_PutAndGetTuple(t *testing.T) {
	for name, cp := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			state := pipelineState{Phase: "retrieval", Drafts: []string{"v1"}, Quality: 0.5}
			id, err := cp.Put(ctx, NewConfig("thread-1"), state, NewMetadata("loop", 1))
			require.NoError(t, err)
			require.NotEqual(t, uuid.Nil, id)

			tuple, err := cp.GetTuple(ctx, NewConfig("thread-1"))
			require.NoError(t, err)
			require.NotNil(t, tuple)
			assert.Equal(t, id, tuple.Checkpoint.ID)
			assert.Equal(t, state, tuple.Checkpoint.State)
			assert.Equal(t, SchemaVersion, tuple.Checkpoint.SchemaVersion)

			// Exact-id addressing.
			exact, err := cp.GetTuple(ctx, NewConfig("thread-1").At(id))
			require.NoError(t, err)
			require.NotNil(t, exact)
			assert.Equal(t, id, exact.Checkpoint.ID)

			// Unknown thread yields nil, not an error.
			missing, err := cp.GetTuple(ctx, NewConfig("no-such-thread"))
			require.NoError(t, err)
			assert.Nil(t, missing)
		})
	}
}

func TestCheckpointer_StepsStrictlyIncrease(t *testing.T) {
	for name, cp := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			putN(t, cp, "thread-1", 3)

			_, err := cp.Put(ctx, NewConfig("thread-1"), pipelineState{}, NewMetadata("loop", 3))
			require.ErrorIs(t, err, ErrNonMonotonicStep)

			_, err = cp.Put(ctx, NewConfig("thread-1"), pipelineState{}, NewMetadata("loop", 2))
			require.ErrorIs(t, err, ErrNonMonotonicStep)

			history, err := cp.GetHistory(ctx, NewConfig("thread-1"))
			require.NoError(t, err)
			for i := 1; i < len(history); i++ {
				assert.Less(t, history[i-1].Metadata.Step, history[i].Metadata.Step)
			}
		})
	}
}

func TestCheckpointer_ListNewestFirstAndFilters(t *testing.T) {
	for name, cp := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			putN(t, cp, "thread-1", 4)

			meta := NewMetadata("human", 5).WithTags("edited")
			_, err := cp.Put(ctx, NewConfig("thread-1"), pipelineState{Phase: "edited"}, meta)
			require.NoError(t, err)

			all, err := cp.List(ctx, NewConfig("thread-1"), nil)
			require.NoError(t, err)
			require.Len(t, all, 5)
			assert.Equal(t, uint64(5), all[0].Metadata.Step, "newest first")

			humans, err := cp.List(ctx, NewConfig("thread-1"), &Filter{HumanEditsOnly: true})
			require.NoError(t, err)
			require.Len(t, humans, 1)
			assert.Equal(t, "human", humans[0].Metadata.Source)

			lo, hi := uint64(2), uint64(3)
			ranged, err := cp.List(ctx, NewConfig("thread-1"), &Filter{StepMin: &lo, StepMax: &hi})
			require.NoError(t, err)
			assert.Len(t, ranged, 2)

			tagged, err := cp.List(ctx, NewConfig("thread-1"), &Filter{Tags: []string{"edited"}})
			require.NoError(t, err)
			assert.Len(t, tagged, 1)

			paged, err := cp.List(ctx, NewConfig("thread-1"), &Filter{Offset: 1, Limit: 2})
			require.NoError(t, err)
			require.Len(t, paged, 2)
			assert.Equal(t, uint64(4), paged[0].Metadata.Step)
		})
	}
}

func TestCheckpointer_PendingWrites(t *testing.T) {
	for name, cp := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			putN(t, cp, "thread-1", 1)

			writes := []PendingWrite{
				NewPendingWrite("synthesize", map[string]string{"draft": "v1"}),
				NewPendingWrite("critic", map[string]string{"verdict": "revise"}),
			}
			require.NoError(t, cp.PutWrites(ctx, NewConfig("thread-1"), writes))

			tuple, err := cp.GetTuple(ctx, NewConfig("thread-1"))
			require.NoError(t, err)
			require.Len(t, tuple.Checkpoint.PendingWrites, 2)
			assert.Equal(t, []string{"synthesize", "critic"}, tuple.NextNodes)

			// Writes are ordered no later than checkpoint recovery time.
			for _, w := range tuple.Checkpoint.PendingWrites {
				assert.False(t, w.CreatedAt.After(time.Now().UTC()))
			}

			// A committed step stores a fresh checkpoint with no writes.
			_, err = cp.Put(ctx, NewConfig("thread-1"), pipelineState{Phase: "committed"}, NewMetadata("loop", 2))
			require.NoError(t, err)
			latest, err := cp.GetTuple(ctx, NewConfig("thread-1"))
			require.NoError(t, err)
			assert.Empty(t, latest.Checkpoint.PendingWrites)
			assert.Empty(t, latest.NextNodes)

			// PutWrites on a thread without checkpoints fails.
			require.ErrorIs(t, cp.PutWrites(ctx, NewConfig("empty-thread"), writes), ErrNotFound)
		})
	}
}

func TestReplayPendingWrites(t *testing.T) {
	cp := NewMemoryCheckpointer[pipelineState]()
	ctx := context.Background()
	putN(t, cp, "thread-1", 1)

	require.NoError(t, cp.PutWrites(ctx, NewConfig("thread-1"), []PendingWrite{
		NewPendingWrite("node-a", map[string]int{"v": 1}),
		NewPendingWrite("node-b", map[string]int{"v": 2}),
	}))

	tuple, err := cp.GetTuple(ctx, NewConfig("thread-1"))
	require.NoError(t, err)

	var replayed []string
	err = ReplayPendingWrites(ctx, tuple, func(ctx context.Context, node string, w PendingWrite) error {
		var payload map[string]int
		require.NoError(t, json.Unmarshal(w.Data, &payload))
		replayed = append(replayed, node)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"node-a", "node-b"}, replayed)
}

// Scenario: put 3 checkpoints on thread A, fork from cp2 into thread B.
// B's history has exactly the forked state and records cp2 as parent.
func TestCheckpointer_Fork(t *testing.T) {
	for name, cp := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ids := putN(t, cp, "A", 3)
			cp2 := ids[1]

			forkedID, err := Fork(ctx, cp, NewConfig("A").At(cp2), "B")
			require.NoError(t, err)
			require.NotNil(t, forkedID)

			history, err := cp.GetHistory(ctx, NewConfig("B"))
			require.NoError(t, err)
			require.Len(t, history, 1)

			sourceTuple, err := cp.GetTuple(ctx, NewConfig("A").At(cp2))
			require.NoError(t, err)
			assert.Equal(t, sourceTuple.Checkpoint.State, history[0].State)
			require.NotNil(t, history[0].Metadata.ParentID)
			assert.Equal(t, cp2, *history[0].Metadata.ParentID)

			// Forking from nothing returns nil id.
			noFork, err := Fork(ctx, cp, NewConfig("nonexistent"), "C")
			require.NoError(t, err)
			assert.Nil(t, noFork)
		})
	}
}

func TestCheckpointer_DeleteAndCount(t *testing.T) {
	for name, cp := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ids := putN(t, cp, "thread-1", 3)

			n, err := cp.Count(ctx, NewConfig("thread-1"))
			require.NoError(t, err)
			assert.Equal(t, 3, n)

			ok, err := HasCheckpoints(ctx, cp, "thread-1")
			require.NoError(t, err)
			assert.True(t, ok)

			require.NoError(t, cp.Delete(ctx, NewConfig("thread-1").At(ids[0])))
			require.ErrorIs(t, cp.Delete(ctx, NewConfig("thread-1").At(ids[0])), ErrNotFound)

			require.NoError(t, cp.DeleteThread(ctx, "thread-1"))
			n, err = cp.Count(ctx, NewConfig("thread-1"))
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestCheckpointer_GetLatest(t *testing.T) {
	cp := NewMemoryCheckpointer[pipelineState]()
	ctx := context.Background()

	latest, err := GetLatest[pipelineState](ctx, cp, "thread-1")
	require.NoError(t, err)
	assert.Nil(t, latest)

	putN(t, cp, "thread-1", 2)
	latest, err = GetLatest[pipelineState](ctx, cp, "thread-1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, uint64(2), latest.Metadata.Step)
}

// Round-trip law: serialize/deserialize preserves the checkpoint.
func TestCheckpoint_SerializationRoundTrip(t *testing.T) {
	parent := uuid.New()
	cp := Checkpoint[pipelineState]{
		ID:        uuid.New(),
		ThreadID:  "thread-1",
		Namespace: "research",
		Metadata: Metadata{
			Source:    "loop",
			Step:      7,
			ParentID:  &parent,
			Tags:      []string{"critical"},
			CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
		},
		State:         pipelineState{Phase: "done", Drafts: []string{"a", "b"}, Quality: 0.92},
		PendingWrites: []PendingWrite{NewPendingWrite("n", map[string]string{"k": "v"})},
		SchemaVersion: SchemaVersion,
	}

	raw, err := json.Marshal(cp)
	require.NoError(t, err)

	var decoded Checkpoint[pipelineState]
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, cp.ID, decoded.ID)
	assert.Equal(t, cp.State, decoded.State)
	assert.Equal(t, cp.Metadata.Step, decoded.Metadata.Step)
	assert.Equal(t, *cp.Metadata.ParentID, *decoded.Metadata.ParentID)
	assert.JSONEq(t, string(cp.PendingWrites[0].Data), string(decoded.PendingWrites[0].Data))
}

// Mutating the caller's state after Put must not alter the stored snapshot.
func TestMemoryCheckpointer_StateIsolation(t *testing.T) {
	cp := NewMemoryCheckpointer[pipelineState]()
	ctx := context.Background()

	state := pipelineState{Phase: "initial", Drafts: []string{"v1"}}
	_, err := cp.Put(ctx, NewConfig("thread-1"), state, NewMetadata("loop", 1))
	require.NoError(t, err)

	state.Drafts[0] = "mutated"
	tuple, err := cp.GetTuple(ctx, NewConfig("thread-1"))
	require.NoError(t, err)
	assert.Equal(t, "v1", tuple.Checkpoint.State.Drafts[0])
}
