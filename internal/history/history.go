// Package history implements the git-history enrichment layer feeding C8's
// optional historical-risk bonus and C9's workspace snapshots. It composes
// pkg/analyzer/churn (file churn over N days) and pkg/analyzer/ownership
// (bus-factor/silo detection) unchanged, and adapts pkg/analyzer/changes'
// JIT-defect-risk scoring (CalculateRisk over CommitFeatures) into a
// per-file HistoricalRisk lookup keyed by path instead of by commit, since
// C8's impact queries reason about files, not commits. The trend/snapshot
// persistence shape (Trend/TrendPoint/delta, one JSON file per timestamp
// under history/snapshots/) is grounded on the now-removed pkg/analyzer/
// commit package's TrendAnalysis rendering, generalized from a complexity
// metric (no longer part of this system) to drift-scan metrics: pattern and
// violation counts per category.
package history

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/driftscan/driftscan/internal/errkind"
	"github.com/driftscan/driftscan/pkg/analyzer/changes"
	"github.com/driftscan/driftscan/pkg/analyzer/churn"
	"github.com/driftscan/driftscan/pkg/analyzer/ownership"
	"github.com/driftscan/driftscan/pkg/models"
)

// Enricher composes churn, ownership, and JIT-defect-risk analysis into
// per-file signals usable by C8's historical-bonus hook and C9's
// workspace context.
type Enricher struct {
	churn   *churn.Analyzer
	own     *ownership.Analyzer
	changes *changes.Analyzer
}

func NewEnricher(days int) *Enricher {
	return &Enricher{
		churn:   churn.New(churn.WithDays(days)),
		own:     ownership.New(),
		changes: changes.New(changes.WithDays(days)),
	}
}

func (e *Enricher) Close() {
	e.churn.Close()
	e.own.Close()
	e.changes.Close()
}

// FileSignal is the per-file historical signal used to compute risk bonuses.
type FileSignal struct {
	Path           string
	ChurnScore     float64
	IsSilo         bool
	BusFactor      int
	HistoricalRisk float64
}

// Enrich runs churn, ownership, and JIT-defect-risk analysis over repoPath
// and returns a per-relative-path signal map. changes.Analyzer scores
// commits, not files; HistoricalRisk folds that down to the highest risk
// score among commits touching each file, since one risky commit is enough
// to make a file worth flagging.
func (e *Enricher) Enrich(ctx context.Context, repoPath string, files []string) (map[string]FileSignal, error) {
	churnResult, err := e.churn.Analyze(ctx, repoPath, files)
	if err != nil {
		return nil, errkind.Transient("history", repoPath, err)
	}
	ownResult, err := e.own.AnalyzeRepo(repoPath, files)
	if err != nil {
		return nil, errkind.Transient("history", repoPath, err)
	}
	changesResult, err := e.changes.Analyze(ctx, repoPath, files)
	if err != nil {
		return nil, errkind.Transient("history", repoPath, err)
	}

	signals := map[string]FileSignal{}
	for _, f := range churnResult.Files {
		signals[f.RelativePath] = FileSignal{Path: f.RelativePath, ChurnScore: f.ChurnScore}
	}
	for _, f := range ownResult.Files {
		s := signals[f.Path]
		s.Path = f.Path
		s.IsSilo = f.IsSilo
		s.BusFactor = ownResult.Summary.BusFactor
		signals[f.Path] = s
	}
	for _, commit := range changesResult.Commits {
		for _, path := range commit.FilesModified {
			s := signals[path]
			s.Path = path
			if commit.RiskScore > s.HistoricalRisk {
				s.HistoricalRisk = commit.RiskScore
			}
			signals[path] = s
		}
	}
	return signals, nil
}

// HistoricalBonus implements the optional additive risk-bonus hook
// SPEC_FULL.md attaches to C8's risk formula: files with high recent churn,
// single-owner (silo) ownership, or a history of risky commits raise
// ImpactResult.HistoricalBonus, which callers may add to RiskScore at their
// discretion — it is never folded into the base formula itself, so the base
// score stays exactly per §4.8.
func HistoricalBonus(signals map[string]FileSignal, affectedFiles []string) float64 {
	if len(affectedFiles) == 0 {
		return 0
	}
	var total float64
	for _, f := range affectedFiles {
		s, ok := signals[f]
		if !ok {
			continue
		}
		bonus := s.ChurnScore*10 + s.HistoricalRisk*5
		if s.IsSilo {
			bonus += 5
		}
		total += bonus
	}
	return total / float64(len(affectedFiles))
}

// Snapshot is one point-in-time record of scan-derived drift metrics,
// persisted under .drift/history/snapshots/<iso-timestamp>.json.
type Snapshot struct {
	Timestamp           time.Time      `json:"timestamp"`
	TotalPatterns       int            `json:"total_patterns"`
	TotalViolations     int            `json:"total_violations"`
	ViolationsByCategory map[string]int `json:"violations_by_category"`
}

// SnapshotFromResult builds a Snapshot from a completed scan.
func SnapshotFromResult(ts time.Time, result *models.ScanResult) Snapshot {
	byCat := map[string]int{}
	for _, v := range result.Violations {
		byCat[string(v.Category)]++
	}
	return Snapshot{
		Timestamp:            ts,
		TotalPatterns:        len(result.Patterns),
		TotalViolations:      len(result.Violations),
		ViolationsByCategory: byCat,
	}
}

// WriteSnapshot persists a snapshot under dir/history/snapshots.
func WriteSnapshot(dir string, snap Snapshot) error {
	snapDir := filepath.Join(dir, "history", "snapshots")
	if err := os.MkdirAll(snapDir, 0o700); err != nil {
		return errkind.InternalErr("history", err)
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return errkind.InternalErr("history", err)
	}
	name := snap.Timestamp.UTC().Format("2006-01-02T15-04-05Z") + ".json"
	return os.WriteFile(filepath.Join(snapDir, name), data, 0o600)
}

// LoadSnapshots reads every persisted snapshot, sorted oldest first.
func LoadSnapshots(dir string) ([]Snapshot, error) {
	snapDir := filepath.Join(dir, "history", "snapshots")
	entries, err := os.ReadDir(snapDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errkind.InternalErr("history", err)
	}
	var out []Snapshot
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(snapDir, e.Name()))
		if err != nil {
			continue
		}
		var s Snapshot
		if err := json.Unmarshal(data, &s); err != nil {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// TrendPoint is one value in a metric's time series.
type TrendPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Trend is a named metric's time series plus its net change, the same
// shape the removed commit package rendered per-metric trends in.
type Trend struct {
	Metric string       `json:"metric"`
	Points []TrendPoint `json:"points"`
	Delta  float64      `json:"delta"`
}

// ViolationTrend builds the total-violations trend across snapshots.
func ViolationTrend(snapshots []Snapshot) Trend {
	return buildTrend("total_violations", snapshots, func(s Snapshot) float64 { return float64(s.TotalViolations) })
}

// PatternTrend builds the total-patterns trend across snapshots.
func PatternTrend(snapshots []Snapshot) Trend {
	return buildTrend("total_patterns", snapshots, func(s Snapshot) float64 { return float64(s.TotalPatterns) })
}

func buildTrend(metric string, snapshots []Snapshot, extract func(Snapshot) float64) Trend {
	points := make([]TrendPoint, len(snapshots))
	for i, s := range snapshots {
		points[i] = TrendPoint{Timestamp: s.Timestamp, Value: extract(s)}
	}
	var delta float64
	if len(points) >= 2 {
		delta = points[len(points)-1].Value - points[0].Value
	}
	return Trend{Metric: metric, Points: points, Delta: delta}
}
