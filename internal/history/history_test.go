package history_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/driftscan/driftscan/internal/history"
	"github.com/driftscan/driftscan/pkg/models"
)

func TestHistoricalBonusAveragesOverAffectedFiles(t *testing.T) {
	signals := map[string]history.FileSignal{
		"a.go": {Path: "a.go", ChurnScore: 1.0, IsSilo: true},
		"b.go": {Path: "b.go", ChurnScore: 0.0},
	}
	bonus := history.HistoricalBonus(signals, []string{"a.go", "b.go"})
	require.InDelta(t, (15.0+0.0)/2, bonus, 0.001)
}

func TestHistoricalBonusSkipsUnknownFiles(t *testing.T) {
	signals := map[string]history.FileSignal{"a.go": {ChurnScore: 2.0}}
	bonus := history.HistoricalBonus(signals, []string{"a.go", "missing.go"})
	require.InDelta(t, (20.0+0.0)/2, bonus, 0.001)
}

func TestHistoricalBonusEmptyFilesIsZero(t *testing.T) {
	require.Equal(t, 0.0, history.HistoricalBonus(nil, nil))
}

func TestSnapshotFromResultCountsByCategory(t *testing.T) {
	result := &models.ScanResult{
		Patterns: []models.Pattern{{ID: "p1"}, {ID: "p2"}},
		Violations: []models.Violation{
			{PatternID: "p1", Category: models.CategoryAPI},
			{PatternID: "p1", Category: models.CategoryAPI},
			{PatternID: "p2", Category: models.CategoryAuth},
		},
	}
	snap := history.SnapshotFromResult(time.Now(), result)
	require.Equal(t, 2, snap.TotalPatterns)
	require.Equal(t, 3, snap.TotalViolations)
	require.Equal(t, 2, snap.ViolationsByCategory[string(models.CategoryAPI)])
	require.Equal(t, 1, snap.ViolationsByCategory[string(models.CategoryAuth)])
}

func TestWriteLoadSnapshotsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s1 := history.Snapshot{Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), TotalViolations: 5}
	s2 := history.Snapshot{Timestamp: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), TotalViolations: 2}

	require.NoError(t, history.WriteSnapshot(dir, s2))
	require.NoError(t, history.WriteSnapshot(dir, s1))

	loaded, err := history.LoadSnapshots(dir)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	require.True(t, loaded[0].Timestamp.Before(loaded[1].Timestamp), "snapshots must come back oldest first")
}

func TestLoadSnapshotsMissingDirIsEmptyNotError(t *testing.T) {
	loaded, err := history.LoadSnapshots(t.TempDir())
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestViolationTrendDelta(t *testing.T) {
	snaps := []history.Snapshot{
		{Timestamp: time.Unix(0, 0), TotalViolations: 10},
		{Timestamp: time.Unix(1, 0), TotalViolations: 4},
	}
	trend := history.ViolationTrend(snaps)
	require.Equal(t, "total_violations", trend.Metric)
	require.Equal(t, -6.0, trend.Delta)
	require.Len(t, trend.Points, 2)
}

func TestViolationTrendSinglePointHasZeroDelta(t *testing.T) {
	trend := history.ViolationTrend([]history.Snapshot{{TotalViolations: 3}})
	require.Equal(t, 0.0, trend.Delta)
}
