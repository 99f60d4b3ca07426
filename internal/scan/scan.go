// Package scan implements C4, the Scanner Service: it partitions the
// file set across a bounded worker pool, runs every enabled detector
// against each file, and merges the per-file results into one
// project-wide ScanResult. Grounded on the teacher's
// internal/service/analysis.Service (cache-key hashing, functional
// Option configuration, progress-tracker wiring) generalized from a
// per-analyzer dispatch table to a per-detector fan-out, and on
// pkg/analyzer/commit's sourcegraph/conc worker-pool shape.
package scan

import (
	"context"
	"encoding/json"
	"os"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/driftscan/driftscan/internal/cache"
	"github.com/driftscan/driftscan/internal/detectors"
	"github.com/driftscan/driftscan/internal/errkind"
	"github.com/driftscan/driftscan/internal/progress"
	"github.com/driftscan/driftscan/internal/registry"
	"github.com/driftscan/driftscan/pkg/config"
	"github.com/driftscan/driftscan/pkg/models"
)

// Service runs a drift scan over a file set using the detectors
// registered in a Registry.
type Service struct {
	reg    *registry.Registry
	config *config.Config
	cache  *cache.Cache
	log    *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithConfig sets the configuration driving worker count, timeout and
// per-detector enablement.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) { s.config = cfg }
}

// WithCache enables per-file result caching keyed by content hash
// (blake3, via internal/cache), which backs incremental scans: a file
// whose hash is unchanged since the last scan has its cached detector
// outcome replayed instead of re-run.
func WithCache(c *cache.Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithLogger attaches structured logging for the worker pool's
// lifecycle and per-file detector failures. A nil logger is ignored,
// leaving the no-op default in place.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// New creates a Scanner Service bound to reg.
func New(reg *registry.Registry, opts ...Option) *Service {
	s := &Service{reg: reg, config: config.DefaultConfig(), log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// fileOutcome is one file's detector fan-out result, gathered by a
// single worker goroutine. Its fields are exported so it can be
// round-tripped through the per-file cache entry that backs incremental
// scans (§4.4's `incremental=true` option).
type fileOutcome struct {
	File     models.SourceFile                `json:"file"`
	Patterns []models.Pattern                 `json:"patterns"`
	Stat     models.PerFileStat               `json:"stat"`
	DetStats map[string]models.DetectorStat    `json:"det_stats"`
	Errs     []models.ScanError                `json:"errs"`
}

// Scan runs every enabled, language-matching detector against each
// file, merges patterns with identical id by unioning their locations
// (first_seen/last_seen taking the min/max across files), and returns
// the aggregate result. A detector that panics or returns an error is
// run once more on the same file; a second failure is captured per-file
// and does not abort the scan. A failed file read is retried up to 3
// times with exponential backoff. If
// ctx is cancelled or the configured timeout elapses first, per §5 the
// partial outcomes gathered so far are discarded rather than returned —
// Scan reports the cancellation as an error instead of a partial result.
//
// When incremental is true and a cache is attached via WithCache, a
// file whose content hash matches its last cached outcome is not
// re-run through the detector fan-out — its cached patterns are
// replayed instead. Every file, incremental or not, still reports a
// PerFileStat, so the merged result is identical to a full
// (incremental=false) scan up to sort order (§8 property 8).
func (s *Service) Scan(ctx context.Context, files []models.SourceFile, incremental bool) (*models.ScanResult, error) {
	timeout := time.Duration(s.config.Detectors.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	scanCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	workers := s.config.Detectors.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > 16 {
		workers = 16
	}
	if workers < 1 {
		workers = 1
	}

	active := s.reg.Query(registry.Query{EnabledOnly: true})
	s.log.Info("scan starting",
		zap.Int("files", len(files)), zap.Int("workers", workers),
		zap.Int("detectors", len(active)), zap.Bool("incremental", incremental))

	bar := progress.NewTracker("scanning", len(files))
	defer bar.FinishSuccess()

	var mu sync.Mutex
	outcomes := make([]fileOutcome, 0, len(files))
	cancelled := false

	p := pool.New().WithContext(scanCtx).WithMaxGoroutines(workers)
	for _, f := range files {
		f := f
		p.Go(func(ctx context.Context) error {
			defer bar.Tick()
			out, err := s.scanFile(ctx, f, active, incremental)
			if err != nil {
				if ctx.Err() != nil {
					mu.Lock()
					cancelled = true
					mu.Unlock()
					return nil
				}
				return err
			}
			mu.Lock()
			outcomes = append(outcomes, out)
			mu.Unlock()
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		s.log.Error("scan worker pool failed", zap.Error(err))
		return nil, errkind.InternalErr("scan", err)
	}

	// §5: on cancel or timeout, partial results are discarded, not
	// persisted — the caller gets the cancellation error, never a
	// ScanResult to save.
	if cancelled || scanCtx.Err() != nil {
		s.log.Warn("scan cancelled, discarding partial results", zap.Int("outcomes_gathered", len(outcomes)))
		return nil, errkind.Transient("scan", "", scanCtx.Err())
	}

	result := merge(outcomes)
	s.log.Info("scan finished",
		zap.Int("patterns", len(result.Patterns)),
		zap.Int("violations", len(result.Violations)),
		zap.Int("errors", len(result.Errors)),
	)
	return result, nil
}

// scanFile runs all active detectors against one file. A failed read is
// retried up to 3 times with backoff before it is captured as a per-file
// ScanError, and a failing detector is run once more before its error is
// captured. When incremental scanning is requested and a cache
// is attached, a content-hash match against the cached outcome skips
// the detector fan-out entirely and replays the cached result —
// detectors are deterministic in file content (§4.3), so this is
// observationally identical to re-running them.
func (s *Service) scanFile(ctx context.Context, f models.SourceFile, active []registry.QueryResult, incremental bool) (fileOutcome, error) {
	content, err := readWithRetry(ctx, f.AbsolutePath)
	if err != nil {
		return fileOutcome{File: f, Errs: []models.ScanError{{File: f.RelativePath, Component: "scan", Message: err.Error()}}}, nil
	}

	hash := cache.HashBytes(content)
	if incremental && s.cache != nil {
		if cached, ok := s.cache.GetWithHash(f.RelativePath, hash); ok {
			var out fileOutcome
			if err := json.Unmarshal(cached, &out); err == nil {
				s.log.Debug("incremental cache hit", zap.String("file", f.RelativePath))
				return out, nil
			}
		}
	}

	summary := &detectors.ProjectSummary{TotalFiles: 0, Occurrences: map[string]int{}}
	out := fileOutcome{File: f, DetStats: map[string]models.DetectorStat{}}
	detectorsRun := 0
	violations := 0

	for _, qr := range active {
		if len(qr.Info.Languages) > 0 && !containsLang(qr.Info.Languages, f.Language) {
			continue
		}
		det, err := s.reg.Get(qr.ID)
		if err != nil {
			continue
		}
		detectorsRun++
		detStart := time.Now()
		detCtx := detectors.Context{Content: content, Path: f.RelativePath, Language: f.Language, Summary: summary}
		res, err := runDetectorSafely(det, detCtx)
		if err != nil {
			res, err = runDetectorSafely(det, detCtx)
		}
		elapsed := time.Since(detStart)
		st := models.DetectorStat{DetectorID: qr.ID, FilesRun: 1, TotalTime: elapsed}
		if err != nil {
			st.Errors = 1
			s.log.Warn("detector failed", zap.String("detector", qr.ID), zap.String("file", f.RelativePath), zap.Error(err))
			out.Errs = append(out.Errs, models.ScanError{File: f.RelativePath, Component: qr.ID, Message: err.Error()})
			out.DetStats[qr.ID] = st
			continue
		}
		out.Patterns = append(out.Patterns, res.Patterns...)
		violations += len(res.Violations)
		out.DetStats[qr.ID] = st
	}

	out.Stat = models.PerFileStat{
		File: f.RelativePath, Language: f.Language, DetectorsRun: detectorsRun,
		PatternsMatched: len(out.Patterns), Violations: violations,
	}

	if s.cache != nil {
		if data, err := json.Marshal(out); err == nil {
			if err := s.cache.SetWithHash(f.RelativePath, hash, data); err != nil {
				s.log.Warn("failed to write incremental cache entry", zap.String("file", f.RelativePath), zap.Error(err))
			}
		}
	}
	return out, nil
}

func runDetectorSafely(d detectors.Detector, ctx detectors.Context) (res detectors.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errkind.DetectorErr("detector-panic", ctx.Path, nil)
		}
	}()
	res, err = d.Detect(ctx)
	return
}

func readWithRetry(ctx context.Context, path string) ([]byte, error) {
	var content []byte
	op := func() error {
		data, err := readFile(path)
		if err != nil {
			return errkind.Transient("scan", path, err)
		}
		content = data
		return nil
	}
	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return content, nil
}

func containsLang(langs []string, lang string) bool {
	for _, l := range langs {
		if l == lang {
			return true
		}
	}
	return false
}

// mergeState accumulates one pattern's merged evidence across files: the
// deduplicated location/outlier sets plus the first/last-seen bounds
// needed for §4.4 step 4's confidence formula.
type mergeState struct {
	pattern  models.Pattern
	locSeen  map[string]bool
	outSeen  map[string]bool
}

// merge unions per-file patterns by id — deduplicating locations and
// outliers by (file,line,column) per §4.4 step 3 — then computes each
// merged pattern's confidence from the combined evidence per step 4.
// Merging is order-independent: processing outcomes in any order (or
// any two non-overlapping partitions independently, then merging those
// partial results) yields the same merged pattern set, up to sort
// order (§8 property 2).
func merge(outcomes []fileOutcome) *models.ScanResult {
	states := map[string]*mergeState{}
	order := []string{}

	result := &models.ScanResult{}
	detectorStats := map[string]*models.DetectorStat{}
	now := time.Now()

	for _, out := range outcomes {
		result.PerFileStats = append(result.PerFileStats, out.Stat)
		result.Errors = append(result.Errors, out.Errs...)
		for id, st := range out.DetStats {
			if existing, ok := detectorStats[id]; ok {
				existing.FilesRun += st.FilesRun
				existing.TotalTime += st.TotalTime
				existing.Errors += st.Errors
			} else {
				cp := st
				detectorStats[id] = &cp
			}
		}
		for _, p := range out.Patterns {
			st, ok := states[p.ID]
			if !ok {
				cp := p
				cp.Locations = nil
				cp.Outliers = nil
				if cp.Metadata.FirstSeen.IsZero() {
					cp.Metadata.FirstSeen = now
				}
				if cp.Metadata.LastSeen.IsZero() {
					cp.Metadata.LastSeen = now
				}
				st = &mergeState{pattern: cp, locSeen: map[string]bool{}, outSeen: map[string]bool{}}
				states[p.ID] = st
				order = append(order, p.ID)
			}
			mergeMetadataBounds(&st.pattern, p.Metadata)
			for _, l := range p.Locations {
				k := l.Key()
				if st.locSeen[k] {
					continue
				}
				st.locSeen[k] = true
				st.pattern.Locations = append(st.pattern.Locations, l)
			}
			for _, o := range p.Outliers {
				k := o.Location.Key()
				if st.outSeen[k] {
					continue
				}
				st.outSeen[k] = true
				st.pattern.Outliers = append(st.pattern.Outliers, o)
			}
		}
	}

	sort.Strings(order)
	totalFiles := len(outcomes)
	for _, id := range order {
		p := states[id].pattern
		p.Confidence = computeConfidence(p, totalFiles, now)
		result.Patterns = append(result.Patterns, p)
	}

	for _, p := range result.Patterns {
		for _, o := range p.Outliers {
			result.Violations = append(result.Violations, models.Violation{
				PatternID: p.ID, PatternName: p.Name, Category: p.Category,
				Location: o.Location, Reason: o.Reason, Severity: p.Severity,
				SuggestedFix: o.SuggestedFix,
			})
		}
	}

	for _, st := range detectorStats {
		result.DetectorStats = append(result.DetectorStats, *st)
	}
	sort.Slice(result.DetectorStats, func(i, j int) bool {
		return result.DetectorStats[i].DetectorID < result.DetectorStats[j].DetectorID
	})

	return result
}

// mergeMetadataBounds widens dst's first/last-seen bounds to include src,
// per §4.4 step 3's "first_seen is min, last_seen is max" merge rule.
func mergeMetadataBounds(dst *models.Pattern, src models.Metadata) {
	if !src.FirstSeen.IsZero() && (dst.Metadata.FirstSeen.IsZero() || src.FirstSeen.Before(dst.Metadata.FirstSeen)) {
		dst.Metadata.FirstSeen = src.FirstSeen
	}
	if src.LastSeen.After(dst.Metadata.LastSeen) {
		dst.Metadata.LastSeen = src.LastSeen
	}
}

// computeConfidence implements §4.4 step 4's canonical formula exactly —
// the spec's own Design Notes flag this as the one formula needing
// fidelity verification, so every constant here is copied verbatim.
func computeConfidence(p models.Pattern, totalFilesInScope int, now time.Time) models.Confidence {
	matching := len(p.Locations)
	outliers := len(p.Outliers)

	scope := totalFilesInScope
	if scope < 1 {
		scope = 1
	}
	frequency := float64(matching) / float64(scope)
	if frequency > 1 {
		frequency = 1
	}

	consistency := 1.0
	if denom := matching + outliers; denom > 0 {
		consistency = float64(matching) / float64(denom)
	}

	ageDays := now.Sub(p.Metadata.FirstSeen).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}

	spread := distinctFileCount(p.Locations)

	score := 0.40*frequency + 0.40*consistency + 0.15*minF(1, ageDays/90) + 0.05*minF(1, float64(spread)/10)

	level := models.ConfidenceUncertain
	switch {
	case score >= 0.85:
		level = models.ConfidenceHigh
	case score >= 0.65:
		level = models.ConfidenceMedium
	case score >= 0.40:
		level = models.ConfidenceLow
	}

	return models.Confidence{
		Frequency:     frequency,
		Consistency:   consistency,
		AgeDays:       ageDays,
		SpreadFileCnt: spread,
		Score:         score,
		Level:         level,
	}
}

func distinctFileCount(locs []models.Location) int {
	seen := map[string]bool{}
	for _, l := range locs {
		seen[l.File] = true
	}
	return len(seen)
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func readFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}
