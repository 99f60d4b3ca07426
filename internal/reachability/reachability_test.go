package reachability_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/driftscan/driftscan/internal/callgraph"
	"github.com/driftscan/driftscan/internal/reachability"
	"github.com/driftscan/driftscan/pkg/models"
)

// chain builds entry -> mid -> sink, entry tagged as an entry point and
// sink tagged as a data accessor, mirroring a typical route-to-repository
// call path.
func chain(t *testing.T) *callgraph.Store {
	store, err := callgraph.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.PutNode(models.CallGraphNode{ID: "entry", File: "routes/h.go", Line: 1, IsEntryPoint: true}))
	require.NoError(t, store.PutNode(models.CallGraphNode{ID: "mid", File: "svc/s.go", Line: 1}))
	require.NoError(t, store.PutNode(models.CallGraphNode{ID: "sink", File: "store/r.go", Line: 1, IsDataAccessor: true}))
	require.NoError(t, store.PutEdge(0, models.CallGraphEdge{CallerID: "entry", CalleeID: "mid", Resolved: true}))
	require.NoError(t, store.PutEdge(1, models.CallGraphEdge{CallerID: "mid", CalleeID: "sink", Resolved: true}))
	return store
}

func TestReachabilityFindsPathToSink(t *testing.T) {
	store := chain(t)
	eng := reachability.NewEngine(store)

	paths, err := eng.Reachability(context.Background(), []string{"entry"}, func(n models.CallGraphNode) bool {
		return n.ID == "sink"
	}, reachability.Options{})
	require.NoError(t, err)
	require.Len(t, paths, 1)
	require.Equal(t, []string{"entry", "mid", "sink"}, paths[0].Nodes)
	require.Equal(t, 1.0, paths[0].Confidence)
}

func TestReachabilityDefaultsToAllEntryPoints(t *testing.T) {
	store := chain(t)
	eng := reachability.NewEngine(store)

	paths, err := eng.Reachability(context.Background(), nil, func(n models.CallGraphNode) bool {
		return n.ID == "sink"
	}, reachability.Options{})
	require.NoError(t, err)
	require.Len(t, paths, 1)
}

func TestReachabilityUnresolvedEdgeSkippedUnlessOptedIn(t *testing.T) {
	store, err := callgraph.Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.PutNode(models.CallGraphNode{ID: "entry", IsEntryPoint: true}))
	require.NoError(t, store.PutEdge(0, models.CallGraphEdge{CallerID: "entry", CalleeNameUnresolved: "ghost", Resolved: false}))

	eng := reachability.NewEngine(store)
	sink := func(n models.CallGraphNode) bool { return n.ID == "unresolved:ghost" }

	paths, err := eng.Reachability(context.Background(), []string{"entry"}, sink, reachability.Options{})
	require.NoError(t, err)
	require.Empty(t, paths)

	paths, err = eng.Reachability(context.Background(), []string{"entry"}, sink, reachability.Options{FollowUnresolved: true})
	require.NoError(t, err)
	require.Len(t, paths, 1)
	require.Equal(t, 0.5, paths[0].Confidence)
}

func TestImpactOfChangesComputesRiskScore(t *testing.T) {
	store := chain(t)
	eng := reachability.NewEngine(store)

	impact, err := eng.ImpactOfChanges(context.Background(), []string{"store/r.go"}, 8)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"entry", "mid", "sink"}, impact.AffectedFunctions)
	require.ElementsMatch(t, []string{"routes/h.go", "svc/s.go", "store/r.go"}, impact.AffectedFiles)
	require.ElementsMatch(t, []string{"entry"}, impact.EntryPointsTouched)
	require.ElementsMatch(t, []string{"sink"}, impact.DataAccessTouched)
	require.Equal(t, reachability.RiskScore(1, 1, 3), impact.RiskScore)
}

func TestDataExposureFindsEntryPointUpstreamOfAccessPoint(t *testing.T) {
	store := chain(t)
	eng := reachability.NewEngine(store)

	paths, err := eng.DataExposure(context.Background(), models.AccessPoint{File: "store/r.go", Line: 1}, reachability.Options{})
	require.NoError(t, err)
	require.Len(t, paths, 1)
	require.Equal(t, []string{"sink", "mid", "entry"}, paths[0].Nodes)
}

func TestDeadCodeFlagsUnreachableNonEntryNodes(t *testing.T) {
	store, err := callgraph.Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.PutNode(models.CallGraphNode{ID: "entry", IsEntryPoint: true}))
	require.NoError(t, store.PutNode(models.CallGraphNode{ID: "orphan"}))
	require.NoError(t, store.PutNode(models.CallGraphNode{ID: "used"}))
	require.NoError(t, store.PutEdge(0, models.CallGraphEdge{CallerID: "entry", CalleeID: "used", Resolved: true}))

	eng := reachability.NewEngine(store)
	dead, err := eng.DeadCode()
	require.NoError(t, err)
	require.Equal(t, []string{"orphan"}, dead)
}

func TestRiskScoreClampsToHundred(t *testing.T) {
	require.Equal(t, 100, reachability.RiskScore(100, 100, 1000))
	require.Equal(t, 0, reachability.RiskScore(0, 0, 0))
}
