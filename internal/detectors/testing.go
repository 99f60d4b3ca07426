package detectors

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/driftscan/driftscan/pkg/models"
)

var (
	tableTestRe  = regexp.MustCompile(`(?m)(?:tests|cases|tt)\s*:?=\s*\[\]struct\s*\{`)
	subtestRe    = regexp.MustCompile(`t\.Run\s*\(`)
	skipAsserRe  = regexp.MustCompile(`\bt\.Skip\s*\(`)
	assertLibRe  = regexp.MustCompile(`\b(require|assert)\.\w+\s*\(`)
	rawCompareRe = regexp.MustCompile(`(?m)if\s+[^{]*!=\s*[^{]*\{\s*t\.(Fatalf?|Errorf?)\(`)
)

// TestingDetector infers the dominant test-structuring convention
// (table-driven + subtests vs. ad-hoc assertions) from test files only,
// flagging assertion-style outliers against the dominant form.
type TestingDetector struct{}

func NewTesting() *TestingDetector { return &TestingDetector{} }

func (d *TestingDetector) ID() string                    { return "testing/structure-style" }
func (d *TestingDetector) Category() models.Category      { return models.CategoryTesting }
func (d *TestingDetector) Method() models.DetectionMethod { return models.DetectionMethodRegex }

func (d *TestingDetector) Detect(ctx Context) (Result, error) {
	base := filepath.Base(ctx.Path)
	if !strings.HasSuffix(base, "_test.go") {
		return Result{Confidence: 0.5}, nil
	}
	inComment := BuildCommentPredicate(ctx.Content)

	counts := map[string]int{"testify": 0, "raw": 0}
	var locations []models.Location
	var rawOffsets []int

	for _, m := range assertLibRe.FindAllIndex(ctx.Content, -1) {
		if inComment(m[0]) {
			continue
		}
		counts["testify"]++
		line, col := LineCol(ctx.Content, m[0])
		locations = append(locations, models.Location{File: ctx.Path, Line: line, Column: col})
	}
	for _, m := range rawCompareRe.FindAllIndex(ctx.Content, -1) {
		if inComment(m[0]) {
			continue
		}
		counts["raw"]++
		rawOffsets = append(rawOffsets, m[0])
	}

	total := counts["testify"] + counts["raw"]
	if total == 0 {
		return Result{Confidence: 0.5}, nil
	}
	dominant := DominantForm(counts, []string{"testify", "raw"}, 3)

	var outliers []models.Outlier
	if dominant == "testify" {
		for _, off := range rawOffsets {
			line, col := LineCol(ctx.Content, off)
			outliers = append(outliers, models.Outlier{
				Location:       models.Location{File: ctx.Path, Line: line, Column: col},
				Reason:         "raw-assertion: project convention uses testify require/assert",
				DeviationScore: 0.3,
			})
		}
	}
	if tableTestRe.Match(ctx.Content) && !subtestRe.Match(ctx.Content) {
		outliers = append(outliers, models.Outlier{
			Location:       models.Location{File: ctx.Path, Line: 1, Column: 1},
			Reason:         "table-test-without-subtests: table-driven cases not run via t.Run",
			DeviationScore: 0.4,
		})
	}
	for _, m := range skipAsserRe.FindAllIndex(ctx.Content, -1) {
		line, col := LineCol(ctx.Content, m[0])
		outliers = append(outliers, models.Outlier{
			Location:       models.Location{File: ctx.Path, Line: line, Column: col},
			Reason:         "skipped-test",
			DeviationScore: 0.2,
		})
	}

	pattern := models.Pattern{
		ID: d.ID(), Name: "Test structure style", Description: "Inferred test-assertion and table-driven conventions",
		Category: d.Category(), Subcategory: "structure-style", DetectionMethod: d.Method(),
		Severity: models.SeverityInfo, Locations: locations, Outliers: outliers, Status: models.StatusDiscovered,
	}
	var violations []models.Violation
	for _, o := range outliers {
		violations = append(violations, models.Violation{
			PatternID: d.ID(), PatternName: pattern.Name, Category: d.Category(),
			Location: o.Location, Reason: o.Reason, Severity: models.SeverityInfo,
		})
	}
	return Result{Patterns: []models.Pattern{pattern}, Violations: violations, Confidence: Confidence(total, len(outliers))}, nil
}
