package workspace

import (
	"context"
	"sort"
	"time"

	"github.com/driftscan/driftscan/internal/errkind"
	"github.com/driftscan/driftscan/internal/history"
	"github.com/driftscan/driftscan/pkg/analyzer/deadcode"
	"github.com/driftscan/driftscan/pkg/analyzer/duplicates"
	"github.com/driftscan/driftscan/pkg/analyzer/graph"
	"github.com/driftscan/driftscan/pkg/analyzer/repomap"
	"github.com/driftscan/driftscan/pkg/analyzer/satd"
	"github.com/driftscan/driftscan/pkg/analyzer/smells"
	"github.com/driftscan/driftscan/pkg/config"
	"github.com/driftscan/driftscan/pkg/source"
)

// WorkspaceContext is the fast, cached repo summary load_context returns.
// It is grounded on pkg/analyzer/repomap.Map (the PageRank symbol list
// lives here unchanged) enriched with the other self-contained analyzers
// that the now-deleted pkg/analyzer/score package would have folded into
// one composite score; they stay separable here and DriftScore is purely
// advisory — no testable property in this system depends on it.
type WorkspaceContext struct {
	GeneratedAt   time.Time         `json:"generated_at"`
	Project       Project           `json:"project"`
	RepoMap       *repomap.Map      `json:"repo_map"`
	Smells        *smells.Analysis  `json:"smells,omitempty"`
	Duplicates    *duplicates.Analysis `json:"duplicates,omitempty"`
	SATD          *satd.Analysis    `json:"satd,omitempty"`
	DeadCode      *deadcode.Analysis `json:"dead_code,omitempty"`
	History       map[string]history.FileSignal `json:"-"`
	DriftScore    float64           `json:"drift_score"`
}

// contextBuilder composes the enrichment analyzers. Each is self-contained
// per its own package (no shared state between calls), so one builder can
// be reused across projects; it is not safe to Close concurrently with an
// in-flight BuildContext call.
type contextBuilder struct {
	repo   *repomap.Analyzer
	graph  *graph.Analyzer
	smells *smells.Analyzer
	dup    *duplicates.Analyzer
	satd   *satd.Analyzer
	dead   *deadcode.Analyzer
	enrich *history.Enricher
}

func newContextBuilder(cfg *config.Config) *contextBuilder {
	return &contextBuilder{
		repo:   repomap.New(),
		graph:  graph.New(graph.WithScope(graph.ScopeFile)),
		smells: smells.New(),
		dup:    duplicates.New(duplicates.WithConfig(cfg.Duplicates)),
		satd:   satd.New(),
		dead:   deadcode.New(),
		enrich: history.NewEnricher(30),
	}
}

func (b *contextBuilder) Close() {
	b.repo.Close()
	b.graph.Close()
	b.smells.Close()
	b.dup.Close()
	b.satd.Close()
	b.dead.Close()
	b.enrich.Close()
}

// BuildContext runs every enrichment analyzer over files and assembles a
// WorkspaceContext. Per-analyzer failures are reported as errkind.Transient
// but do not abort the whole build; partial context beats no context.
func (b *contextBuilder) BuildContext(ctx context.Context, proj Project, files []string) (WorkspaceContext, []error) {
	var errs []error
	wc := WorkspaceContext{GeneratedAt: time.Now().UTC(), Project: proj}

	if rm, err := b.repo.Analyze(ctx, files); err != nil {
		errs = append(errs, errkind.Transient("workspace", proj.Path, err))
	} else {
		wc.RepoMap = rm
	}

	if depGraph, err := b.graph.Analyze(ctx, files, source.NewFilesystem()); err != nil {
		errs = append(errs, errkind.Transient("workspace", proj.Path, err))
	} else {
		wc.Smells = b.smells.AnalyzeGraph(depGraph)
	}

	if dup, err := b.dup.AnalyzeProject(files); err != nil {
		errs = append(errs, errkind.Transient("workspace", proj.Path, err))
	} else {
		wc.Duplicates = dup
	}

	if sa, err := b.satd.Analyze(ctx, files, source.NewFilesystem()); err != nil {
		errs = append(errs, errkind.Transient("workspace", proj.Path, err))
	} else {
		wc.SATD = sa
	}

	if dc, err := b.dead.Analyze(ctx, files); err != nil {
		errs = append(errs, errkind.Transient("workspace", proj.Path, err))
	} else {
		wc.DeadCode = dc
	}

	if signals, err := b.enrich.Enrich(ctx, proj.Path, files); err != nil {
		errs = append(errs, errkind.Transient("workspace", proj.Path, err))
	} else {
		wc.History = signals
	}

	wc.DriftScore = driftScore(wc)
	return wc, errs
}

// driftScore is a weighted composite in the style of the removed
// pkg/analyzer/score package: each signal adds a fixed weight per counted
// item and the sum is capped at 100; it is not normalized by repo size. It is
// advisory only — no formula fidelity is claimed or required here, unlike
// C8's risk_score.
func driftScore(wc WorkspaceContext) float64 {
	var score float64
	if wc.Smells != nil {
		score += float64(wc.Smells.Summary.CriticalCount)*8 + float64(wc.Smells.Summary.HighCount)*4
	}
	if wc.Duplicates != nil {
		score += float64(wc.Duplicates.Summary.TotalGroups) * 2
	}
	if wc.SATD != nil {
		score += float64(wc.SATD.Summary.ByCategory["defect"]) * 3
	}
	if wc.DeadCode != nil {
		score += float64(len(wc.DeadCode.DeadFunctions)) * 0.5
	}
	if score > 100 {
		score = 100
	}
	return score
}

// TopDeadFunctions returns up to n dead-function names, for a compact
// summary view.
func (wc WorkspaceContext) TopDeadFunctions(n int) []string {
	if wc.DeadCode == nil {
		return nil
	}
	names := make([]string, 0, len(wc.DeadCode.DeadFunctions))
	for _, f := range wc.DeadCode.DeadFunctions {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	if len(names) > n {
		names = names[:n]
	}
	return names
}
