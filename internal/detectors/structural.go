package detectors

import (
	"bytes"
	"regexp"

	"github.com/cespare/xxhash/v2"

	"github.com/driftscan/driftscan/pkg/models"
)

var funcDeclRe = regexp.MustCompile(`(?m)^\s*func\s+(?:\([^)]*\)\s*)?\w+\s*\(`)

// StructuralDetector adapts the teacher's architectural-smell detector
// (hub/god-component analysis over a dependency graph) down to a
// per-file structural signal: oversized functions and duplicate
// statement blocks, hashed line-by-line the way the teacher's
// duplicate-detection package fingerprints token windows.
type StructuralDetector struct {
	maxFuncLines int
	windowSize   int
}

func NewStructural() *StructuralDetector {
	return &StructuralDetector{maxFuncLines: 80, windowSize: 6}
}

func (d *StructuralDetector) ID() string                    { return "structural/duplication-and-size" }
func (d *StructuralDetector) Category() models.Category      { return models.CategoryStructural }
func (d *StructuralDetector) Method() models.DetectionMethod { return models.DetectionMethodAST }

func (d *StructuralDetector) Detect(ctx Context) (Result, error) {
	if IsExcludedFile(ctx.Path) || ctx.Language != "go" {
		return Result{Confidence: 0.5}, nil
	}
	lines := bytes.Split(ctx.Content, []byte("\n"))

	var outliers []models.Outlier
	var locations []models.Location

	funcStarts := funcDeclRe.FindAllIndex(ctx.Content, -1)
	for i, m := range funcStarts {
		startLine, col := LineCol(ctx.Content, m[0])
		var endLine int
		if i+1 < len(funcStarts) {
			endLine, _ = LineCol(ctx.Content, funcStarts[i+1][0])
		} else {
			endLine = len(lines)
		}
		loc := models.Location{File: ctx.Path, Line: startLine, Column: col}
		locations = append(locations, loc)
		if size := endLine - startLine; size > d.maxFuncLines {
			outliers = append(outliers, models.Outlier{
				Location:       loc,
				Reason:         "oversized-function: exceeds the project's function-length convention",
				DeviationScore: clamp01(float64(size-d.maxFuncLines) / float64(d.maxFuncLines)),
			})
		}
	}

	seen := map[uint64]int{}
	for i := 0; i+d.windowSize <= len(lines); i++ {
		var buf bytes.Buffer
		empty := true
		for j := 0; j < d.windowSize; j++ {
			trimmed := bytes.TrimSpace(lines[i+j])
			if len(trimmed) > 0 {
				empty = false
			}
			buf.Write(trimmed)
		}
		if empty || buf.Len() < 40 {
			continue
		}
		h := xxhash.Sum64(buf.Bytes())
		seen[h]++
		if seen[h] == 2 {
			outliers = append(outliers, models.Outlier{
				Location:       models.Location{File: ctx.Path, Line: i + 1, Column: 1},
				Reason:         "duplicate-block: statement sequence repeats elsewhere in this file",
				DeviationScore: 0.4,
			})
		}
	}

	if len(locations) == 0 {
		return Result{Confidence: 0.5}, nil
	}

	pattern := models.Pattern{
		ID: d.ID(), Name: "Function size and duplication", Description: "Inferred function-length and block-duplication conventions",
		Category: d.Category(), Subcategory: "duplication-and-size", DetectionMethod: d.Method(),
		Severity: models.SeverityInfo, Locations: locations, Outliers: outliers, Status: models.StatusDiscovered,
	}
	var violations []models.Violation
	for _, o := range outliers {
		violations = append(violations, models.Violation{
			PatternID: d.ID(), PatternName: pattern.Name, Category: d.Category(),
			Location: o.Location, Reason: o.Reason, Severity: models.SeverityInfo,
		})
	}
	return Result{Patterns: []models.Pattern{pattern}, Violations: violations, Confidence: Confidence(len(locations), len(outliers))}, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
