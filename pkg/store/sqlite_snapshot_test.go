package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmax-ai/fractald/pkg/graph"
)

func TestStore_SnapshotRoundTrip(t *testing.T) {
	st, _, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	_, ok, err := st.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "empty database has no snapshot")

	src := graph.NewStore()
	require.NoError(t, src.Seed())
	ctxVal := graph.MustContext(graph.FamilySymbolic, graph.ValueCultural)
	for _, u := range []string{"u1", "u2", "u1"} {
		_, err := src.CreateContribution(graph.NewContribution{NodeID: "codex:Wisdom", UserID: u, Content: "insight", Context: &ctxVal})
		require.NoError(t, err)
	}

	require.NoError(t, st.SaveSnapshot(ctx, src.Snapshot()))

	snap, ok, err := st.LoadSnapshot(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, snap.Nodes, 120)
	require.Len(t, snap.Contributions, 3)

	want := src.Contributions()
	for i, c := range snap.Contributions {
		assert.Equal(t, want[i].ID, c.ID, "ledger order is kept")
		require.NotNil(t, c.Context)
		assert.Equal(t, ctxVal, *c.Context)
	}

	dst := graph.NewStore()
	require.NoError(t, dst.Restore(snap))
	require.NoError(t, dst.CheckInvariants())
	assert.Equal(t, src.Stats().TotalNodes, dst.Stats().TotalNodes)
	assert.Equal(t, 2, dst.Stats().TotalUsers)
}

func TestStore_SnapshotReplacesPrevious(t *testing.T) {
	st, _, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	src := graph.NewStore()
	require.NoError(t, src.Seed())
	require.NoError(t, st.SaveSnapshot(ctx, src.Snapshot()))

	small := graph.NewStore()
	_, err := small.RegisterBase(graph.Node{ID: "root:Alpha", Name: "Alpha", FlowState: graph.FlowPlasma, Resonance: 1})
	require.NoError(t, err)
	require.NoError(t, st.SaveSnapshot(ctx, small.Snapshot()))

	snap, ok, err := st.LoadSnapshot(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, snap.Nodes, 10)
	assert.Empty(t, snap.Contributions)
}
