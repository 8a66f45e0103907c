package hypergraph

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNode_Validation(t *testing.T) {
	n, err := NewNode("an insight", ContentInsight, "device-alpha")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n.Version)
	assert.False(t, n.Tombstoned())

	_, err = NewNode("", ContentThought, "device-alpha")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "content", verr.Field)

	_, err = NewNode("content", ContentThought, "")
	require.Error(t, err)

	_, err = NewNode("content", ContentType("bogus"), "device-alpha")
	require.Error(t, err)
}

func TestNewHyperedge_Validation(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	e, err := NewHyperedge([]uuid.UUID{a, b}, "supports")
	require.NoError(t, err)
	assert.True(t, e.Connects(a))
	assert.False(t, e.Connects(uuid.New()))

	_, err = NewHyperedge([]uuid.UUID{a}, "supports")
	require.Error(t, err, "edges need at least 2 nodes")

	// Duplicates collapse, which can drop the edge below 2 nodes.
	_, err = NewHyperedge([]uuid.UUID{a, a}, "supports")
	require.Error(t, err)

	_, err = NewHyperedge([]uuid.UUID{a, b}, "")
	require.Error(t, err)
}

func TestCachedStorage_Invalidation(t *testing.T) {
	inner := mustMemory(t)
	cached := NewCachedStorage(inner)
	ctx := t.Context()

	created, err := cached.CreateNode(ctx, mustNode(t, "cached content"))
	require.NoError(t, err)

	// Warm read.
	got, err := cached.GetNode(ctx, created.ID)
	require.NoError(t, err)

	// Write-through update must be visible on the next read.
	got.Content = "updated content"
	got.Version++
	_, err = cached.UpdateNode(ctx, got)
	require.NoError(t, err)

	fresh, err := cached.GetNode(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "updated content", fresh.Content)

	// Delete must evict.
	require.NoError(t, cached.DeleteNode(ctx, created.ID))
	_, err = cached.GetNode(ctx, created.ID)
	require.ErrorIs(t, err, ErrNodeNotFound)
}
