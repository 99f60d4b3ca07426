package detectors

import (
	"regexp"

	"github.com/driftscan/driftscan/pkg/models"
)

var (
	errWrapRe     = regexp.MustCompile(`fmt\.Errorf\([^)]*%w`)
	errBareRe     = regexp.MustCompile(`\breturn\s+err\b`)
	errPanicRe    = regexp.MustCompile(`\bpanic\(`)
	errSwallowRe  = regexp.MustCompile(`(?m)if\s+err\s*!=\s*nil\s*\{\s*\}`)
)

// ErrorsDetector infers the dominant error-propagation convention
// (wrapped vs. bare), flags bare `return err` sites when wrapping
// dominates, and flags panics and swallowed errors whatever the
// dominant form.
type ErrorsDetector struct{}

func NewErrors() *ErrorsDetector { return &ErrorsDetector{} }

func (d *ErrorsDetector) ID() string                    { return "errors/propagation-style" }
func (d *ErrorsDetector) Category() models.Category      { return models.CategoryErrors }
func (d *ErrorsDetector) Method() models.DetectionMethod { return models.DetectionMethodRegex }

func (d *ErrorsDetector) Detect(ctx Context) (Result, error) {
	if IsExcludedFile(ctx.Path) || ctx.Language != "go" {
		return Result{Confidence: 0.5}, nil
	}
	inComment := BuildCommentPredicate(ctx.Content)

	counts := map[string]int{"wrapped": 0, "bare": 0}
	var locations []models.Location
	for _, m := range errWrapRe.FindAllIndex(ctx.Content, -1) {
		if inComment(m[0]) {
			continue
		}
		counts["wrapped"]++
		line, col := LineCol(ctx.Content, m[0])
		locations = append(locations, models.Location{File: ctx.Path, Line: line, Column: col})
	}
	for _, m := range errBareRe.FindAllIndex(ctx.Content, -1) {
		if inComment(m[0]) {
			continue
		}
		counts["bare"]++
	}
	dominant := DominantForm(counts, []string{"wrapped", "bare"}, 2)

	var outliers []models.Outlier
	if dominant == "wrapped" {
		for _, m := range errBareRe.FindAllIndex(ctx.Content, -1) {
			if inComment(m[0]) {
				continue
			}
			line, col := LineCol(ctx.Content, m[0])
			outliers = append(outliers, models.Outlier{
				Location:       models.Location{File: ctx.Path, Line: line, Column: col},
				Reason:         "unwrapped-error-return: project convention wraps errors with %w context",
				DeviationScore: 0.4,
			})
		}
	}
	for _, m := range errSwallowRe.FindAllIndex(ctx.Content, -1) {
		if inComment(m[0]) {
			continue
		}
		line, col := LineCol(ctx.Content, m[0])
		outliers = append(outliers, models.Outlier{
			Location:       models.Location{File: ctx.Path, Line: line, Column: col},
			Reason:         "swallowed-error: empty error-handling block",
			DeviationScore: 0.7,
		})
	}
	for _, m := range errPanicRe.FindAllIndex(ctx.Content, -1) {
		if inComment(m[0]) {
			continue
		}
		line, col := LineCol(ctx.Content, m[0])
		outliers = append(outliers, models.Outlier{
			Location:       models.Location{File: ctx.Path, Line: line, Column: col},
			Reason:         "panic-instead-of-error-return",
			DeviationScore: 0.5,
		})
	}

	total := counts["wrapped"] + counts["bare"]
	if total == 0 {
		return Result{Confidence: 0.5}, nil
	}

	pattern := models.Pattern{
		ID: d.ID(), Name: "Error propagation style", Description: "Inferred error wrapping/propagation convention",
		Category: d.Category(), Subcategory: "propagation-style", DetectionMethod: d.Method(),
		Severity: models.SeverityWarning, Locations: locations, Outliers: outliers, Status: models.StatusDiscovered,
	}
	var violations []models.Violation
	for _, o := range outliers {
		violations = append(violations, models.Violation{
			PatternID: d.ID(), PatternName: pattern.Name, Category: d.Category(),
			Location: o.Location, Reason: o.Reason, Severity: models.SeverityWarning,
		})
	}
	return Result{Patterns: []models.Pattern{pattern}, Violations: violations, Confidence: Confidence(total, len(outliers))}, nil
}
