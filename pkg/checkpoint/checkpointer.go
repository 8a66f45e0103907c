package checkpoint

import (
	"context"

	"github.com/google/uuid"
)

// Checkpointer is the storage contract for checkpoints of state type S.
// Implementations are safe for concurrent use.
type Checkpointer[S any] interface {
	// Put stores a new checkpoint for config's thread and returns its id.
	// Steps must strictly increase within a thread.
	Put(ctx context.Context, config Config, state S, metadata Metadata) (uuid.UUID, error)

	// PutWrites attaches pending writes to the thread's latest checkpoint.
	PutWrites(ctx context.Context, config Config, writes []PendingWrite) error

	// GetTuple returns the addressed checkpoint: the exact one when
	// config.CheckpointID is set, else the thread's latest. Returns
	// (nil, nil) when the thread has no checkpoints.
	GetTuple(ctx context.Context, config Config) (*Tuple[S], error)

	// List returns the thread's checkpoints newest first, filtered.
	List(ctx context.Context, config Config, filter *Filter) ([]Checkpoint[S], error)

	// GetHistory returns the thread's checkpoints oldest first.
	GetHistory(ctx context.Context, config Config) ([]Checkpoint[S], error)

	// Delete removes the addressed checkpoint.
	Delete(ctx context.Context, config Config) error

	// DeleteThread removes every checkpoint of a thread.
	DeleteThread(ctx context.Context, threadID string) error

	// Count returns the number of checkpoints in the thread.
	Count(ctx context.Context, config Config) (int, error)
}

// GetLatest returns the newest checkpoint of a thread, or nil.
func GetLatest[S any](ctx context.Context, cp Checkpointer[S], threadID string) (*Checkpoint[S], error) {
	tuple, err := cp.GetTuple(ctx, NewConfig(threadID))
	if err != nil || tuple == nil {
		return nil, err
	}
	return &tuple.Checkpoint, nil
}

// HasCheckpoints reports whether a thread has any checkpoints.
func HasCheckpoints[S any](ctx context.Context, cp Checkpointer[S], threadID string) (bool, error) {
	n, err := cp.Count(ctx, NewConfig(threadID))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Fork deep-copies the source checkpoint's state into a new thread whose
// first checkpoint records the source as parent. Returns nil when the
// source config addresses nothing.
func Fork[S any](ctx context.Context, cp Checkpointer[S], sourceConfig Config, newThreadID string) (*uuid.UUID, error) {
	tuple, err := cp.GetTuple(ctx, sourceConfig)
	if err != nil || tuple == nil {
		return nil, err
	}

	parentID := tuple.Checkpoint.ID
	metadata := NewMetadata("fork", tuple.Checkpoint.Metadata.Step)
	metadata.ParentID = &parentID
	metadata.Tags = append([]string(nil), tuple.Checkpoint.Metadata.Tags...)

	id, err := cp.Put(ctx, NewConfig(newThreadID), tuple.Checkpoint.State, metadata)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// ReplayFunc applies one recovered pending write. It must be idempotent:
// recovery may run more than once for the same write.
type ReplayFunc func(ctx context.Context, node string, write PendingWrite) error

// ReplayPendingWrites re-applies the pending writes of a recovered
// checkpoint in creation order, stopping at the first failure.
func ReplayPendingWrites[S any](ctx context.Context, tuple *Tuple[S], apply ReplayFunc) error {
	if tuple == nil {
		return nil
	}
	for _, w := range tuple.Checkpoint.PendingWrites {
		if err := apply(ctx, w.Node, w); err != nil {
			return err
		}
	}
	return nil
}
