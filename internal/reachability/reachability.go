// Package reachability implements C8, the Reachability & Impact Engine: BFS
// and reverse-BFS traversal over the internal/callgraph.Store keyed graph.
// Visited sets are RoaringBitmap/roaring/v2 bitmaps keyed by a
// cespare/xxhash/v2 digest of each node id, the same bitset-plus-hash
// combination pkg/analyzer/deadcode's HierarchicalBitSet/VTableResolver
// pairing is grounded on, generalized from that package's single whole-graph
// dead-code sweep to per-query bounded traversals. Dead-code detection
// itself (DeadCode) is adapted from pkg/analyzer/deadcode's unreachable-
// function sweep, replacing its AST-local reachability root set with the
// call graph's entry-point tags.
package reachability

import (
	"context"
	"math"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/cespare/xxhash/v2"

	"github.com/driftscan/driftscan/internal/callgraph"
	"github.com/driftscan/driftscan/internal/errkind"
	"github.com/driftscan/driftscan/pkg/models"
)

const (
	DefaultMaxDepth = 8
	DefaultMaxPaths = 64
)

// Engine answers reachability/impact/data-exposure queries over a built
// call graph. It never mutates the graph.
type Engine struct {
	store *callgraph.Store
}

func NewEngine(store *callgraph.Store) *Engine {
	return &Engine{store: store}
}

func bit(id string) uint32 {
	return uint32(xxhash.Sum64String(id))
}

// Options controls unresolved-edge traversal per §4.8's traversal policy.
type Options struct {
	MaxDepth         int
	MaxPaths         int
	FollowUnresolved bool // caller opt-in to continue by name past unresolved edges
}

func (o Options) withDefaults() Options {
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	if o.MaxPaths <= 0 {
		o.MaxPaths = DefaultMaxPaths
	}
	return o
}

type frame struct {
	id         string
	path       []string
	confidence float64
}

// Reachability enumerates paths from fromEntryPoints (or every tagged entry
// point, if empty) to any node satisfying sink, forward over caller->callee
// edges. Per §4.8: bounded by max_depth/max_paths, visited set per query,
// no revisits, results sorted by length ascending then confidence descending.
func (e *Engine) Reachability(ctx context.Context, fromEntryPoints []string, sink func(models.CallGraphNode) bool, opts Options) ([]models.Path, error) {
	opts = opts.withDefaults()
	starts := fromEntryPoints
	if len(starts) == 0 {
		nodes, err := e.store.AllNodes()
		if err != nil {
			return nil, err
		}
		for _, n := range nodes {
			if n.IsEntryPoint {
				starts = append(starts, n.ID)
			}
		}
	}

	var paths []models.Path
	for _, start := range starts {
		if len(paths) >= opts.MaxPaths {
			break
		}
		visited := roaring.New()
		visited.Add(bit(start))
		queue := []frame{{id: start, path: []string{start}, confidence: 1.0}}
		for len(queue) > 0 && len(paths) < opts.MaxPaths {
			select {
			case <-ctx.Done():
				return paths, errkind.Transient("reachability", "", ctx.Err())
			default:
			}
			cur := queue[0]
			queue = queue[1:]

			node, found, err := e.store.Node(cur.id)
			if err != nil {
				return nil, err
			}
			if found && sink(node) {
				paths = append(paths, models.Path{Nodes: cur.path, Confidence: cur.confidence})
				continue
			}
			if len(cur.path) > opts.MaxDepth {
				continue
			}
			edges, err := e.store.EdgesFromCaller(cur.id)
			if err != nil {
				return nil, err
			}
			for _, edge := range edges {
				nextID := edge.CalleeID
				conf := cur.confidence
				if !edge.Resolved {
					if !opts.FollowUnresolved {
						continue
					}
					nextID = "unresolved:" + edge.CalleeNameUnresolved
					conf *= 0.5
				}
				b := bit(nextID)
				if visited.Contains(b) {
					continue
				}
				visited.Add(b)
				queue = append(queue, frame{id: nextID, path: append(append([]string(nil), cur.path...), nextID), confidence: conf})
			}
		}
	}

	sort.SliceStable(paths, func(i, j int) bool {
		if len(paths[i].Nodes) != len(paths[j].Nodes) {
			return len(paths[i].Nodes) < len(paths[j].Nodes)
		}
		return paths[i].Confidence > paths[j].Confidence
	})
	if len(paths) > opts.MaxPaths {
		paths = paths[:opts.MaxPaths]
	}
	return paths, nil
}

// ImpactOfChanges implements §4.8: BFS on the reverse-edge (callee->caller)
// index starting from every function declared in files.
func (e *Engine) ImpactOfChanges(ctx context.Context, files []string, maxDepth int) (models.ImpactResult, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	changed := map[string]bool{}
	for _, f := range files {
		changed[f] = true
	}

	all, err := e.store.AllNodes()
	if err != nil {
		return models.ImpactResult{}, err
	}
	byID := map[string]models.CallGraphNode{}
	var seeds []string
	for _, n := range all {
		byID[n.ID] = n
		if changed[n.File] {
			seeds = append(seeds, n.ID)
		}
	}

	visited := roaring.New()
	affectedFuncs := map[string]bool{}
	affectedFiles := map[string]bool{}
	entryTouched := map[string]bool{}
	dataTouched := map[string]bool{}

	queue := make([]struct {
		id    string
		depth int
	}, 0, len(seeds))
	for _, s := range seeds {
		visited.Add(bit(s))
		queue = append(queue, struct {
			id    string
			depth int
		}{s, 0})
	}

	for len(queue) > 0 {
		select {
		case <-ctx.Done():
			return models.ImpactResult{}, errkind.Transient("reachability", "", ctx.Err())
		default:
		}
		cur := queue[0]
		queue = queue[1:]

		n, ok := byID[cur.id]
		if ok {
			affectedFuncs[n.ID] = true
			affectedFiles[n.File] = true
			if n.IsEntryPoint {
				entryTouched[n.ID] = true
			}
			if n.IsDataAccessor {
				dataTouched[n.ID] = true
			}
		}
		if cur.depth >= maxDepth {
			continue
		}
		edges, err := e.store.EdgesToCallee(cur.id)
		if err != nil {
			return models.ImpactResult{}, err
		}
		for _, edge := range edges {
			if !edge.Resolved {
				continue
			}
			b := bit(edge.CallerID)
			if visited.Contains(b) {
				continue
			}
			visited.Add(b)
			queue = append(queue, struct {
				id    string
				depth int
			}{edge.CallerID, cur.depth + 1})
		}
	}

	result := models.ImpactResult{
		AffectedFiles:      sortedKeys(affectedFiles),
		AffectedFunctions:  sortedKeys(affectedFuncs),
		EntryPointsTouched: sortedKeys(entryTouched),
		DataAccessTouched:  sortedKeys(dataTouched),
	}
	result.RiskScore = RiskScore(len(entryTouched), len(dataTouched), len(affectedFuncs))
	return result, nil
}

// RiskScore implements §4.8's formula exactly.
func RiskScore(entryPointsTouched, dataAccessTouched, affectedFunctions int) int {
	raw := 10*entryPointsTouched + 15*dataAccessTouched + 5*int(math.Ceil(float64(affectedFunctions)/10))
	return clamp(raw, 0, 100)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// DataExposure implements §4.8: reverse BFS from the access point's owning
// node to any entry-point node.
func (e *Engine) DataExposure(ctx context.Context, ap models.AccessPoint, opts Options) ([]models.Path, error) {
	opts = opts.withDefaults()
	all, err := e.store.AllNodes()
	if err != nil {
		return nil, err
	}
	var owner string
	for _, n := range all {
		if n.File == ap.File && ap.Line >= n.Line && ap.Line <= n.Line+200 {
			owner = n.ID
			break
		}
	}
	if owner == "" {
		return nil, nil
	}

	visited := roaring.New()
	visited.Add(bit(owner))
	queue := []frame{{id: owner, path: []string{owner}, confidence: 1.0}}
	var paths []models.Path

	for len(queue) > 0 && len(paths) < opts.MaxPaths {
		select {
		case <-ctx.Done():
			return paths, errkind.Transient("reachability", "", ctx.Err())
		default:
		}
		cur := queue[0]
		queue = queue[1:]

		node, found, err := e.store.Node(cur.id)
		if err != nil {
			return nil, err
		}
		if found && node.IsEntryPoint && cur.id != owner {
			paths = append(paths, models.Path{Nodes: cur.path, Confidence: cur.confidence})
			continue
		}
		if len(cur.path) > opts.MaxDepth {
			continue
		}
		edges, err := e.store.EdgesToCallee(cur.id)
		if err != nil {
			return nil, err
		}
		for _, edge := range edges {
			if !edge.Resolved && !opts.FollowUnresolved {
				continue
			}
			b := bit(edge.CallerID)
			if visited.Contains(b) {
				continue
			}
			visited.Add(b)
			conf := cur.confidence
			if !edge.Resolved {
				conf *= 0.5
			}
			queue = append(queue, frame{id: edge.CallerID, path: append(append([]string(nil), cur.path...), edge.CallerID), confidence: conf})
		}
	}

	sort.SliceStable(paths, func(i, j int) bool {
		if len(paths[i].Nodes) != len(paths[j].Nodes) {
			return len(paths[i].Nodes) < len(paths[j].Nodes)
		}
		return paths[i].Confidence > paths[j].Confidence
	})
	return paths, nil
}

// DeadCode reports nodes with no resolved incoming call edges that are not
// themselves entry points — adapted from pkg/analyzer/deadcode's unreferenced-
// symbol sweep, replacing its AST-local root set with call-graph entry tags.
func (e *Engine) DeadCode() ([]string, error) {
	nodes, err := e.store.AllNodes()
	if err != nil {
		return nil, err
	}
	var dead []string
	for _, n := range nodes {
		if n.IsEntryPoint {
			continue
		}
		edges, err := e.store.EdgesToCallee(n.ID)
		if err != nil {
			return nil, err
		}
		if len(edges) == 0 {
			dead = append(dead, n.ID)
		}
	}
	sort.Strings(dead)
	return dead, nil
}

// Centrality ranks every node in the built call graph by PageRank —
// delegated to internal/callgraph.Store, which feeds the resolved edge
// set into the teacher's pkg/analyzer/graph PageRank implementation.
func (e *Engine) Centrality() (map[string]float64, error) {
	return e.store.Centrality()
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
