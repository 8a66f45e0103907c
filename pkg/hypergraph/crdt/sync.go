package crdt

import (
	"fmt"
	"sync"
	"time"
)

// ConflictPolicy selects how a document-level concurrent edit is resolved.
type ConflictPolicy int

const (
	// PolicyLastWriteWins resolves by the newer delta.
	PolicyLastWriteWins ConflictPolicy = iota
	// PolicyManualReview pushes the conflict to an external review queue.
	PolicyManualReview
	// PolicyCustomReducer delegates to a caller-supplied reducer.
	PolicyCustomReducer
)

// MessageKind tags sync messages exchanged between replicas.
type MessageKind int

const (
	// MsgStateVector announces a replica's current version of a document.
	MsgStateVector MessageKind = iota
	// MsgDelta carries an opaque payload plus the clock it was made under.
	MsgDelta
	// MsgAck confirms application of a delta up to the carried clock.
	MsgAck
)

// Message is the unit exchanged between replicas.
type Message struct {
	Kind    MessageKind
	DocID   string
	Clock   VectorClock[string]
	Payload []byte
}

// DocState is the per-document replication state.
type DocState struct {
	DocID    string
	Version  VectorClock[string]
	LastSync time.Time
}

// Reducer resolves a concurrent edit given both payloads; it returns the
// payload to keep.
type Reducer func(local, remote []byte) []byte

// SyncOrchestrator tracks per-document vector clocks for one replica and
// classifies incoming deltas. Per-document state is guarded by a
// reader-writer lock; readers never block each other.
type SyncOrchestrator struct {
	replicaID string
	policy    ConflictPolicy
	reducer   Reducer

	mu   sync.RWMutex
	docs map[string]*DocState

	// reviewQueue receives doc ids whose conflicts await manual review.
	// The queue consumer is an external collaborator.
	reviewQueue []string
}

// NewSyncOrchestrator creates an orchestrator for this replica.
func NewSyncOrchestrator(replicaID string, policy ConflictPolicy) *SyncOrchestrator {
	return &SyncOrchestrator{
		replicaID: replicaID,
		policy:    policy,
		docs:      make(map[string]*DocState),
	}
}

// WithReducer installs the reducer used under PolicyCustomReducer.
func (o *SyncOrchestrator) WithReducer(r Reducer) *SyncOrchestrator {
	o.reducer = r
	return o
}

// ReplicaID returns this replica's identifier.
func (o *SyncOrchestrator) ReplicaID() string { return o.replicaID }

// UpdateVersion records a local edit: increments this replica's component
// of the document clock.
func (o *SyncOrchestrator) UpdateVersion(docID string) VectorClock[string] {
	o.mu.Lock()
	defer o.mu.Unlock()

	doc := o.docState(docID)
	doc.Version.Increment(o.replicaID)
	return doc.Version.Clone()
}

// MergeVersion folds a remote clock into the document state.
func (o *SyncOrchestrator) MergeVersion(docID string, remote VectorClock[string]) VectorClock[string] {
	o.mu.Lock()
	defer o.mu.Unlock()

	doc := o.docState(docID)
	doc.Version.Merge(remote)
	doc.LastSync = time.Now().UTC()
	return doc.Version.Clone()
}

// Version returns a copy of the document's clock.
func (o *SyncOrchestrator) Version(docID string) VectorClock[string] {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if doc, ok := o.docs[docID]; ok {
		return doc.Version.Clone()
	}
	return NewVectorClock[string]()
}

// StateVector builds the announcement message for a document.
func (o *SyncOrchestrator) StateVector(docID string) Message {
	return Message{Kind: MsgStateVector, DocID: docID, Clock: o.Version(docID)}
}

// Delta builds a delta message carrying the current clock.
func (o *SyncOrchestrator) Delta(docID string, payload []byte) Message {
	return Message{Kind: MsgDelta, DocID: docID, Clock: o.Version(docID), Payload: payload}
}

// ApplyResult describes what happened to an incoming delta.
type ApplyResult struct {
	// Applied is true when the delta advanced (or matched) local state.
	Applied bool
	// Conflict is true when the delta raced a local edit.
	Conflict bool
	// Resolution holds the winning payload for resolved conflicts under
	// PolicyLastWriteWins or PolicyCustomReducer.
	Resolution []byte
	// Ack is the acknowledgement to send back.
	Ack Message
}

// ApplyDelta classifies an incoming delta against the local clock and
// resolves conflicts per the configured policy. The caller owns actually
// applying Resolution to its document store.
func (o *SyncOrchestrator) ApplyDelta(msg Message, localPayload []byte) (ApplyResult, error) {
	if msg.Kind != MsgDelta {
		return ApplyResult{}, fmt.Errorf("expected delta message, got kind %d", msg.Kind)
	}

	o.mu.Lock()
	doc := o.docState(msg.DocID)
	relation := doc.Version.Compare(msg.Clock)
	doc.Version.Merge(msg.Clock)
	doc.LastSync = time.Now().UTC()
	merged := doc.Version.Clone()
	o.mu.Unlock()

	result := ApplyResult{
		Ack: Message{Kind: MsgAck, DocID: msg.DocID, Clock: merged},
	}

	switch relation {
	case Before:
		// Remote strictly newer: apply as-is.
		result.Applied = true
		result.Resolution = msg.Payload
	case Equal, After:
		// Nothing new; delta already covered. Idempotent no-op.
		result.Applied = relation == Equal
		result.Resolution = localPayload
	case Concurrent:
		result.Conflict = true
		switch o.policy {
		case PolicyManualReview:
			o.mu.Lock()
			o.reviewQueue = append(o.reviewQueue, msg.DocID)
			o.mu.Unlock()
			result.Resolution = localPayload
		case PolicyCustomReducer:
			if o.reducer == nil {
				return ApplyResult{}, fmt.Errorf("custom reducer policy configured without a reducer")
			}
			result.Applied = true
			result.Resolution = o.reducer(localPayload, msg.Payload)
		default:
			// Last write wins: the remote delta is the later arrival.
			result.Applied = true
			result.Resolution = msg.Payload
		}
	}

	return result, nil
}

// PendingReviews drains the manual-review queue.
func (o *SyncOrchestrator) PendingReviews() []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := o.reviewQueue
	o.reviewQueue = nil
	return out
}

// docState must be called with mu held.
func (o *SyncOrchestrator) docState(docID string) *DocState {
	doc, ok := o.docs[docID]
	if !ok {
		doc = &DocState{DocID: docID, Version: NewVectorClock[string]()}
		o.docs[docID] = doc
	}
	return doc
}
