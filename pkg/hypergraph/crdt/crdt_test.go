package crdt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ts(seconds int64) time.Time {
	return time.Unix(seconds, 0).UTC()
}

func TestVectorClock_Causality(t *testing.T) {
	vc1 := NewVectorClock[string]()
	vc2 := NewVectorClock[string]()

	vc1.Increment("device-a")
	vc1.Increment("device-a")
	vc2.Merge(vc1)
	vc2.Increment("device-b")

	assert.Equal(t, Before, vc1.Compare(vc2))
	assert.Equal(t, After, vc2.Compare(vc1))

	vc1.Increment("device-a")
	vc2.Increment("device-b")
	assert.Equal(t, Concurrent, vc1.Compare(vc2))
}

func TestVectorClock_MergeLaws(t *testing.T) {
	a := NewVectorClock[string]()
	b := NewVectorClock[string]()
	a.Increment("r1")
	a.Increment("r1")
	b.Increment("r2")
	b.Increment("r1")

	// Commutativity.
	ab := a.Clone()
	ab.Merge(b)
	ba := b.Clone()
	ba.Merge(a)
	assert.Equal(t, ab, ba)

	// Idempotence.
	aa := a.Clone()
	aa.Merge(a)
	assert.Equal(t, a, aa)

	assert.Equal(t, Equal, ab.Compare(ba))
}

func TestGCounter(t *testing.T) {
	a := NewGCounter[string]()
	b := NewGCounter[string]()

	a.Increment("r1", 3)
	b.Increment("r2", 4)
	b.Increment("r1", 1)

	a.Merge(b)
	assert.Equal(t, uint64(7), a.Value()) // max(3,1) + 4

	// Idempotent merge.
	a.Merge(b)
	assert.Equal(t, uint64(7), a.Value())
}

func TestPNCounter(t *testing.T) {
	a := NewPNCounter[string]()
	a.Increment("r1", 10)
	a.Decrement("r1", 4)
	assert.Equal(t, int64(6), a.Value())

	b := NewPNCounter[string]()
	b.Decrement("r2", 2)

	a.Merge(b)
	assert.Equal(t, int64(4), a.Value())
}

func TestLWWRegister(t *testing.T) {
	r := NewLWWRegister[string]()
	_, set := r.Get()
	assert.False(t, set)

	r.Set("first", ts(10), "r1")
	r.Set("older ignored", ts(5), "r2")
	v, _ := r.Get()
	assert.Equal(t, "first", v)

	// Tie breaks by lexicographically greater replica id.
	r.Set("tie-win", ts(10), "r9")
	v, _ = r.Get()
	assert.Equal(t, "tie-win", v)

	other := NewLWWRegister[string]()
	other.Set("newest", ts(20), "r0")
	r.Merge(other)
	v, _ = r.Get()
	assert.Equal(t, "newest", v)
}

func TestLWWSet_BiasToLatest(t *testing.T) {
	s := NewLWWSet[string]()
	s.Add("node-1", ts(10))
	assert.True(t, s.Contains("node-1"))

	s.Remove("node-1", ts(12))
	assert.False(t, s.Contains("node-1"))

	s.Add("node-1", ts(15))
	assert.True(t, s.Contains("node-1"))

	// Older remove does not win.
	s.Remove("node-1", ts(14))
	assert.True(t, s.Contains("node-1"))
}

func TestLWWSet_MergeCommutativeIdempotent(t *testing.T) {
	a := NewLWWSet[string]()
	b := NewLWWSet[string]()

	a.Add("alpha", ts(5))
	b.Add("beta", ts(6))
	b.Remove("alpha", ts(7))

	mergedAB := NewLWWSet[string]()
	mergedAB.Merge(a)
	mergedAB.Merge(b)

	mergedBA := NewLWWSet[string]()
	mergedBA.Merge(b)
	mergedBA.Merge(a)

	assert.True(t, mergedAB.Equal(mergedBA))
	assert.True(t, mergedAB.Contains("beta"))
	assert.False(t, mergedAB.Contains("alpha"))

	twice := NewLWWSet[string]()
	twice.Merge(mergedAB)
	twice.Merge(mergedAB)
	assert.True(t, twice.Equal(mergedAB))
}

// Scenario: R1 adds "x" at ts=10; R2 removes "x" at ts=11 and adds "y" at
// ts=12. After bidirectional merge both replicas agree.
func TestLWWSet_ConvergenceAfterConcurrentEdits(t *testing.T) {
	r1 := NewLWWSet[string]()
	r2 := NewLWWSet[string]()

	r1.Add("x", ts(10))
	r2.Remove("x", ts(11))
	r2.Add("y", ts(12))

	r1.Merge(r2)
	r2.Merge(r1)

	require.True(t, r1.Equal(r2))
	assert.False(t, r1.Contains("x"))
	assert.False(t, r2.Contains("x"))
	assert.True(t, r1.Contains("y"))
	assert.True(t, r2.Contains("y"))
}

func TestORSet_ReAddAfterRemove(t *testing.T) {
	s := NewORSet[string]()
	s.Add("doc")
	require.True(t, s.Contains("doc"))

	s.Remove("doc")
	assert.False(t, s.Contains("doc"))

	s.Add("doc")
	assert.True(t, s.Contains("doc"), "fresh tag must survive old tombstones")
}

func TestORSet_MergeConcurrentAddRemove(t *testing.T) {
	a := NewORSet[string]()
	a.Add("shared")

	b := NewORSet[string]()
	b.Merge(a)
	b.Remove("shared")

	// Concurrently, a adds again with a new tag.
	a.Add("shared")

	a.Merge(b)
	b.Merge(a)

	// The concurrent re-add's tag was never observed by b's remove.
	assert.True(t, a.Contains("shared"))
	assert.True(t, b.Contains("shared"))
	assert.ElementsMatch(t, a.Elements(), b.Elements())
}
