package scan_test

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/driftscan/driftscan/internal/cache"
	"github.com/driftscan/driftscan/internal/detectors"
	"github.com/driftscan/driftscan/internal/registry"
	"github.com/driftscan/driftscan/internal/scan"
	"github.com/driftscan/driftscan/pkg/config"
	"github.com/driftscan/driftscan/pkg/models"
)

// TestMain verifies the sourcegraph/conc worker pool this package drives
// leaves no goroutine behind once Scan returns, including on the
// cancellation path that discards outcomes.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func writeTempGoFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestScanMergesPatternsAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	f1 := writeTempGoFile(t, dir, "a.go", "package a\nfunc F() error {\n\tfmt.Errorf(\"x: %w\", err)\n\treturn err\n}\n")
	f2 := writeTempGoFile(t, dir, "b.go", "package a\nfunc G() error {\n\tfmt.Errorf(\"y: %w\", err)\n\tfmt.Errorf(\"z: %w\", err)\n\treturn err\n}\n")

	reg := registry.New(registry.Hooks{})
	require.NoError(t, reg.Register("errors/propagation-style", detectors.NewErrors(),
		registry.Info{Category: models.CategoryErrors, Languages: []string{"go"}, Enabled: true}, false))

	cfg := config.DefaultConfig()
	svc := scan.New(reg, scan.WithConfig(cfg))

	files := []models.SourceFile{
		{AbsolutePath: f1, RelativePath: "a.go", Language: "go"},
		{AbsolutePath: f2, RelativePath: "b.go", Language: "go"},
	}
	result, err := svc.Scan(context.Background(), files, false)
	require.NoError(t, err)
	require.False(t, result.TimedOut)
	require.Len(t, result.Patterns, 1)
	require.Equal(t, "errors/propagation-style", result.Patterns[0].ID)
	require.Len(t, result.PerFileStats, 2)
}

// TestScanMergeIsCommutative is the §8 property-2 check: scanning the
// same file set in reverse order must produce the same merged patterns,
// modulo the order locations were appended in (go-cmp with a sorted-slice
// option, since testify's ObjectsAreEqual treats reordered slices as
// unequal).
func TestScanMergeIsCommutative(t *testing.T) {
	dir := t.TempDir()
	f1 := writeTempGoFile(t, dir, "a.go", "package a\nfunc F() error {\n\tfmt.Errorf(\"x: %w\", err)\n\treturn err\n}\n")
	f2 := writeTempGoFile(t, dir, "b.go", "package a\nfunc G() error {\n\tfmt.Errorf(\"y: %w\", err)\n\treturn err\n}\n")

	reg := registry.New(registry.Hooks{})
	require.NoError(t, reg.Register("errors/propagation-style", detectors.NewErrors(),
		registry.Info{Category: models.CategoryErrors, Languages: []string{"go"}, Enabled: true}, false))
	cfg := config.DefaultConfig()
	svc := scan.New(reg, scan.WithConfig(cfg))

	forward := []models.SourceFile{
		{AbsolutePath: f1, RelativePath: "a.go", Language: "go"},
		{AbsolutePath: f2, RelativePath: "b.go", Language: "go"},
	}
	reverse := []models.SourceFile{
		{AbsolutePath: f2, RelativePath: "b.go", Language: "go"},
		{AbsolutePath: f1, RelativePath: "a.go", Language: "go"},
	}

	r1, err := svc.Scan(context.Background(), forward, false)
	require.NoError(t, err)
	r2, err := svc.Scan(context.Background(), reverse, false)
	require.NoError(t, err)

	sortLocations := cmpopts.SortSlices(func(a, b models.Location) bool {
		return a.File < b.File || (a.File == b.File && a.Line < b.Line)
	})
	ignoreUnordered := cmpopts.SortSlices(func(a, b models.PerFileStat) bool { return a.File < b.File })

	if diff := cmp.Diff(r1.Patterns, r2.Patterns, sortLocations); diff != "" {
		t.Errorf("merge is not commutative (-forward +reverse):\n%s", diff)
	}
	if diff := cmp.Diff(r1.PerFileStats, r2.PerFileStats, ignoreUnordered); diff != "" {
		t.Errorf("per-file stats differ by scan order (-forward +reverse):\n%s", diff)
	}
}

// TestScanDiscardsPartialResultsOnCancel exercises the §5 discard-on-cancel
// path: a context that is already past its deadline when Scan starts, so
// every worker observes cancellation before completing.
func TestScanDiscardsPartialResultsOnCancel(t *testing.T) {
	dir := t.TempDir()
	var files []models.SourceFile
	for i := 0; i < 8; i++ {
		name := "f" + strconv.Itoa(i) + ".go"
		path := writeTempGoFile(t, dir, name, "package a\nfunc F() error {\n\tfmt.Errorf(\"x: %w\", err)\n\treturn err\n}\n")
		files = append(files, models.SourceFile{AbsolutePath: path, RelativePath: name, Language: "go"})
	}

	reg := registry.New(registry.Hooks{})
	require.NoError(t, reg.Register("errors/propagation-style", detectors.NewErrors(),
		registry.Info{Category: models.CategoryErrors, Languages: []string{"go"}, Enabled: true}, false))
	cfg := config.DefaultConfig()
	svc := scan.New(reg, scan.WithConfig(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), -1*time.Second)
	defer cancel()

	result, err := svc.Scan(ctx, files, false)
	require.Error(t, err)
	require.Nil(t, result)
}

func TestScanCapturesMissingFileAsNonFatalError(t *testing.T) {
	reg := registry.New(registry.Hooks{})
	cfg := config.DefaultConfig()
	svc := scan.New(reg, scan.WithConfig(cfg))

	files := []models.SourceFile{
		{AbsolutePath: "/does/not/exist.go", RelativePath: "exist.go", Language: "go"},
	}
	result, err := svc.Scan(context.Background(), files, false)
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
}

// TestConfidenceFrequencyConsistencyScoreLevel checks §4.4 step 4's
// canonical confidence formula against a hand-computed evidence set: two
// files contribute matching locations for the "wrapped" error style
// (one clean, one with a bare-return outlier against the file's own
// dominant form), and two unrelated files pad out the scan's total file
// count so frequency has a non-trivial denominator.
func TestConfidenceFrequencyConsistencyScoreLevel(t *testing.T) {
	dir := t.TempDir()
	fa := writeTempGoFile(t, dir, "a.go", "package a\nfunc F() error {\n\tfmt.Errorf(\"x: %w\", err)\n\treturn nil\n}\n")
	fb := writeTempGoFile(t, dir, "b.go", "package a\nfunc G() error {\n\tfmt.Errorf(\"y: %w\", err)\n\treturn err\n}\n")
	fc := writeTempGoFile(t, dir, "c.go", "package a\n\nfunc Noop() {}\n")
	fd := writeTempGoFile(t, dir, "d.go", "package a\n\nfunc Noop2() {}\n")

	reg := registry.New(registry.Hooks{})
	require.NoError(t, reg.Register("errors/propagation-style", detectors.NewErrors(),
		registry.Info{Category: models.CategoryErrors, Languages: []string{"go"}, Enabled: true}, false))
	cfg := config.DefaultConfig()
	svc := scan.New(reg, scan.WithConfig(cfg))

	files := []models.SourceFile{
		{AbsolutePath: fa, RelativePath: "a.go", Language: "go"},
		{AbsolutePath: fb, RelativePath: "b.go", Language: "go"},
		{AbsolutePath: fc, RelativePath: "c.go", Language: "go"},
		{AbsolutePath: fd, RelativePath: "d.go", Language: "go"},
	}

	result, err := svc.Scan(context.Background(), files, false)
	require.NoError(t, err)
	require.Len(t, result.Patterns, 1)

	conf := result.Patterns[0].Confidence
	// 2 matching locations (a.go, b.go) out of 4 files scanned.
	require.InDelta(t, 0.5, conf.Frequency, 1e-9)
	// 2 locations against 1 outlier (b.go's bare return).
	require.InDelta(t, 2.0/3.0, conf.Consistency, 1e-9)
	// Freshly discovered within this single scan: zero age.
	require.InDelta(t, 0, conf.AgeDays, 1e-6)
	require.Equal(t, 2, conf.SpreadFileCnt)
	wantScore := 0.40*0.5 + 0.40*(2.0/3.0) + 0.15*0 + 0.05*0.2
	require.InDelta(t, wantScore, conf.Score, 1e-9)
	require.Equal(t, models.ConfidenceLow, conf.Level)
}

// TestScanIncrementalEquivalence is the §8 property-8 check: scanning
// incrementally (an initial pass that warms the cache, then a second
// pass after only one file changed) must yield the same pattern
// evidence as scanning the final file content in one non-incremental
// pass. Metadata and the time-derived confidence components are
// normalized away before comparison since the two plans necessarily run
// at different instants.
func TestScanIncrementalEquivalence(t *testing.T) {
	dir := t.TempDir()
	pathA := writeTempGoFile(t, dir, "a.go", "package a\nfunc F() error {\n\tfmt.Errorf(\"x: %w\", err)\n\treturn nil\n}\n")
	pathB := writeTempGoFile(t, dir, "b.go", "package a\nfunc G() error {\n\tfmt.Errorf(\"y: %w\", err)\n\treturn err\n}\n")

	files := []models.SourceFile{
		{AbsolutePath: pathA, RelativePath: "a.go", Language: "go"},
		{AbsolutePath: pathB, RelativePath: "b.go", Language: "go"},
	}

	newSvc := func(t *testing.T, cacheDir string) *scan.Service {
		t.Helper()
		reg := registry.New(registry.Hooks{})
		require.NoError(t, reg.Register("errors/propagation-style", detectors.NewErrors(),
			registry.Info{Category: models.CategoryErrors, Languages: []string{"go"}, Enabled: true}, false))
		c, err := cache.New(cacheDir, 24, true)
		require.NoError(t, err)
		return scan.New(reg, scan.WithConfig(config.DefaultConfig()), scan.WithCache(c))
	}

	// Scenario A: warm the cache with an initial incremental scan, change
	// only b.go's content, then rescan incrementally. a.go's cached
	// outcome should be replayed verbatim; b.go is re-run fresh.
	svcA := newSvc(t, filepath.Join(t.TempDir(), "cache"))
	_, err := svcA.Scan(context.Background(), files, true)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(pathB,
		[]byte("package a\nfunc G() error {\n\tfmt.Errorf(\"y: %w\", err)\n\tfmt.Errorf(\"z: %w\", err)\n\treturn err\n}\n"), 0o644))
	incResult, err := svcA.Scan(context.Background(), files, true)
	require.NoError(t, err)

	// Scenario B: scan the final (post-edit) file content in a single
	// non-incremental pass.
	svcB := newSvc(t, filepath.Join(t.TempDir(), "cache"))
	fullResult, err := svcB.Scan(context.Background(), files, false)
	require.NoError(t, err)

	if diff := cmp.Diff(normalizePatterns(incResult.Patterns), normalizePatterns(fullResult.Patterns)); diff != "" {
		t.Errorf("incremental scan diverges from full rescan (-incremental +full):\n%s", diff)
	}
}

// normalizePatterns strips run-time-dependent fields (metadata
// timestamps, age/score) and canonicalizes slice order so two scans run
// at different instants can be compared for evidentiary equivalence.
func normalizePatterns(patterns []models.Pattern) []models.Pattern {
	out := make([]models.Pattern, len(patterns))
	for i, p := range patterns {
		p.Metadata = models.Metadata{}
		p.Confidence.AgeDays = 0
		p.Confidence.Score = 0
		p.Locations = sortedLocations(p.Locations)
		p.Outliers = sortedOutliers(p.Outliers)
		out[i] = p
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sortedLocations(locs []models.Location) []models.Location {
	cp := append([]models.Location(nil), locs...)
	sort.Slice(cp, func(i, j int) bool { return cp[i].Key() < cp[j].Key() })
	return cp
}

func sortedOutliers(outliers []models.Outlier) []models.Outlier {
	cp := append([]models.Outlier(nil), outliers...)
	sort.Slice(cp, func(i, j int) bool { return cp[i].Location.Key() < cp[j].Location.Key() })
	return cp
}
