// Package checkpoint provides durable, branchable, time-traveling snapshots
// of pipeline state, with at-most-once effect semantics via pending-writes
// replay.
//
// A thread is a linear history of checkpoints totally ordered by step.
// Forking copies one checkpoint's state into a new thread whose metadata
// records the parent, so histories share a prefix without sharing storage.
package checkpoint

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is stamped into every serialized checkpoint record.
const SchemaVersion = 1

// PendingWrite is a side-effect emitted optimistically before its producing
// step commits. On crash recovery the runtime replays pending writes of the
// latest checkpoint before resuming.
type PendingWrite struct {
	// Node is the pipeline node/phase that produced the write.
	Node string `json:"node"`
	// Data is opaque to the engine.
	Data json.RawMessage `json:"data"`
	CreatedAt time.Time `json:"created_at"`
}

// NewPendingWrite builds a write, serializing data to JSON.
func NewPendingWrite(node string, data any) PendingWrite {
	raw, err := json.Marshal(data)
	if err != nil {
		raw = []byte("null")
	}
	return PendingWrite{Node: node, Data: raw, CreatedAt: time.Now().UTC()}
}

// Metadata describes one checkpoint's place in its thread.
type Metadata struct {
	// Source identifies what wrote the checkpoint ("loop", "human", "fork").
	Source string `json:"source"`
	// Step is strictly increasing within a thread.
	Step uint64 `json:"step"`
	// ParentID links a forked thread's first checkpoint to its origin.
	ParentID *uuid.UUID `json:"parent_id,omitempty"`
	Tags     []string   `json:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewMetadata builds metadata for a source node at a step.
func NewMetadata(source string, step uint64) Metadata {
	return Metadata{Source: source, Step: step, CreatedAt: time.Now().UTC()}
}

// WithTags returns a copy with tags attached.
func (m Metadata) WithTags(tags ...string) Metadata {
	m.Tags = append(m.Tags, tags...)
	return m
}

// Checkpoint is one snapshot of pipeline state S.
type Checkpoint[S any] struct {
	ID            uuid.UUID      `json:"id"`
	ThreadID      string         `json:"thread_id"`
	Namespace     string         `json:"namespace,omitempty"`
	Metadata      Metadata       `json:"metadata"`
	State         S              `json:"state"`
	PendingWrites []PendingWrite `json:"pending_writes,omitempty"`
	SchemaVersion int            `json:"schema_version"`
}

// Config addresses checkpoints: a thread, optionally one exact checkpoint.
type Config struct {
	ThreadID     string
	CheckpointID *uuid.UUID
	Namespace    string
}

// NewConfig addresses the latest checkpoint of a thread.
func NewConfig(threadID string) Config {
	return Config{ThreadID: threadID}
}

// At pins the config to an exact checkpoint id.
func (c Config) At(id uuid.UUID) Config {
	c.CheckpointID = &id
	return c
}

// TaskStatus describes an in-progress task captured in a tuple.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// TaskInfo records one in-flight task at checkpoint time.
type TaskInfo struct {
	Name   string     `json:"name"`
	Status TaskStatus `json:"status"`
	Error  string     `json:"error,omitempty"`
}

// Tuple pairs a checkpoint with resume information.
type Tuple[S any] struct {
	Checkpoint Checkpoint[S]
	Config     Config
	// NextNodes lists nodes with pending writes to replay on resume.
	NextNodes []string
	Tasks     []TaskInfo
}

// Filter narrows List results. Criteria AND together; the zero value
// matches everything.
type Filter struct {
	Source         string
	StepMin        *uint64
	StepMax        *uint64
	CreatedAfter   *time.Time
	CreatedBefore  *time.Time
	Tags           []string
	HumanEditsOnly bool
	Limit          int
	Offset         int
}

// Matches applies every set criterion except offset/limit, which the
// stores apply after filtering.
func (f Filter) Matches(m Metadata) bool {
	if f.Source != "" && m.Source != f.Source {
		return false
	}
	if f.StepMin != nil && m.Step < *f.StepMin {
		return false
	}
	if f.StepMax != nil && m.Step > *f.StepMax {
		return false
	}
	if f.CreatedAfter != nil && !m.CreatedAt.After(*f.CreatedAfter) {
		return false
	}
	if f.CreatedBefore != nil && !m.CreatedAt.Before(*f.CreatedBefore) {
		return false
	}
	if f.HumanEditsOnly && m.Source != "human" {
		return false
	}
	for _, want := range f.Tags {
		found := false
		for _, tag := range m.Tags {
			if tag == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// nextNodesOf derives the resume set from pending writes, preserving first
// occurrence order.
func nextNodesOf(writes []PendingWrite) []string {
	seen := make(map[string]struct{}, len(writes))
	var out []string
	for _, w := range writes {
		if _, ok := seen[w.Node]; ok {
			continue
		}
		seen[w.Node] = struct{}{}
		out = append(out, w.Node)
	}
	return out
}
