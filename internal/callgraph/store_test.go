package callgraph_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/driftscan/driftscan/internal/callgraph"
	"github.com/driftscan/driftscan/pkg/models"
)

func TestStorePutNodeRoundTrip(t *testing.T) {
	store, err := callgraph.Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	n := models.CallGraphNode{ID: "pkg.Foo", QualifiedName: "pkg.Foo", File: "pkg/foo.go", Line: 1, Kind: models.NodeFunction}
	require.NoError(t, store.PutNode(n))

	got, found, err := store.Node("pkg.Foo")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, n, got)

	_, found, err = store.Node("missing")
	require.NoError(t, err)
	require.False(t, found)
}

func TestStorePutEdgeIndexesBothDirections(t *testing.T) {
	store, err := callgraph.Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	e := models.CallGraphEdge{CallerID: "pkg.A", CalleeID: "pkg.B", Resolved: true}
	require.NoError(t, store.PutEdge(0, e))

	fromCaller, err := store.EdgesFromCaller("pkg.A")
	require.NoError(t, err)
	require.Len(t, fromCaller, 1)
	require.Equal(t, "pkg.B", fromCaller[0].CalleeID)

	toCallee, err := store.EdgesToCallee("pkg.B")
	require.NoError(t, err)
	require.Len(t, toCallee, 1)
	require.Equal(t, "pkg.A", toCallee[0].CallerID)
}

func TestStoreUnresolvedEdgeIndexedUnderSyntheticCalleeKey(t *testing.T) {
	store, err := callgraph.Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	e := models.CallGraphEdge{CallerID: "pkg.A", CalleeNameUnresolved: "ghost", Resolved: false}
	require.NoError(t, store.PutEdge(0, e))

	edges, err := store.EdgesToCallee("unresolved:ghost")
	require.NoError(t, err)
	require.Len(t, edges, 1)
}

func TestStoreAllNodes(t *testing.T) {
	store, err := callgraph.Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.PutNode(models.CallGraphNode{ID: "a"}))
	require.NoError(t, store.PutNode(models.CallGraphNode{ID: "b"}))

	all, err := store.AllNodes()
	require.NoError(t, err)
	require.Len(t, all, 2)
}
