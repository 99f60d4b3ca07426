package detectors

import (
	"regexp"

	"github.com/driftscan/driftscan/pkg/models"
)

var (
	loopQueryRe   = regexp.MustCompile(`(?s)for\s*\([^)]*\)\s*\{[^{}]*\b(?:Find|Query|SELECT|Where)\b`)
	eagerLoadRe   = regexp.MustCompile(`\.(Preload|Includes|With)\s*\(`)
	unboundedFind = regexp.MustCompile(`\.(Find|Where)\([^)]*\)\s*(?:\.\w+\([^)]*\))*\s*(?:;|$)`)
	limitRe       = regexp.MustCompile(`\.(Limit|Take|First)\s*\(`)
)

// PerformanceDetector flags likely N+1 query patterns (a query-call
// inside a loop body) and unbounded result-set fetches, using eager
// loading and explicit limits elsewhere in the file as the dominant
// counter-evidence (§4.3 performance category highlight).
type PerformanceDetector struct{}

func NewPerformance() *PerformanceDetector { return &PerformanceDetector{} }

func (d *PerformanceDetector) ID() string                    { return "performance/query-efficiency" }
func (d *PerformanceDetector) Category() models.Category      { return models.CategoryPerformance }
func (d *PerformanceDetector) Method() models.DetectionMethod { return models.DetectionMethodRegex }

func (d *PerformanceDetector) Detect(ctx Context) (Result, error) {
	if IsExcludedFile(ctx.Path) {
		return Result{Confidence: 0.5}, nil
	}
	inComment := BuildCommentPredicate(ctx.Content)

	usesEagerLoad := eagerLoadRe.Match(ctx.Content)
	usesLimit := limitRe.Match(ctx.Content)

	var outliers []models.Outlier
	var locations []models.Location

	for _, m := range loopQueryRe.FindAllIndex(ctx.Content, -1) {
		if inComment(m[0]) {
			continue
		}
		line, col := LineCol(ctx.Content, m[0])
		loc := models.Location{File: ctx.Path, Line: line, Column: col}
		locations = append(locations, loc)
		if !usesEagerLoad {
			outliers = append(outliers, models.Outlier{
				Location:       loc,
				Reason:         "likely-n-plus-one-query: data-access call inside a loop body with no eager-loading elsewhere in the file",
				DeviationScore: 0.6,
			})
		}
	}

	for _, m := range unboundedFind.FindAllIndex(ctx.Content, -1) {
		if inComment(m[0]) {
			continue
		}
		line, col := LineCol(ctx.Content, m[0])
		loc := models.Location{File: ctx.Path, Line: line, Column: col}
		locations = append(locations, loc)
		if !usesLimit {
			outliers = append(outliers, models.Outlier{
				Location:       loc,
				Reason:         "unbounded-result-set: fetch without a visible limit/take/first bound",
				DeviationScore: 0.3,
			})
		}
	}

	if len(locations) == 0 {
		return Result{Confidence: 0.5}, nil
	}

	pattern := models.Pattern{
		ID: d.ID(), Name: "Query efficiency", Description: "Inferred query-efficiency conventions (eager loading, result limits)",
		Category: d.Category(), Subcategory: "query-efficiency", DetectionMethod: d.Method(),
		Severity: models.SeverityWarning, Locations: locations, Outliers: outliers, Status: models.StatusDiscovered,
	}
	var violations []models.Violation
	for _, o := range outliers {
		violations = append(violations, models.Violation{
			PatternID: d.ID(), PatternName: pattern.Name, Category: d.Category(),
			Location: o.Location, Reason: o.Reason, Severity: models.SeverityWarning,
		})
	}
	return Result{Patterns: []models.Pattern{pattern}, Violations: violations, Confidence: Confidence(len(locations), len(outliers))}, nil
}
