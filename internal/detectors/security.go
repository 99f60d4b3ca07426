package detectors

import (
	"regexp"

	"github.com/driftscan/driftscan/pkg/models"
)

var (
	secretLiteralRe = regexp.MustCompile(`(?i)(api[_-]?key|secret|password|token)\s*[:=]\s*["'][A-Za-z0-9+/_=.-]{12,}["']`)
	execConcatRe    = regexp.MustCompile(`(?i)\b(exec|Command|shell_exec|os\.system)\s*\([^)]*\+`)
	sqlConcatRe     = regexp.MustCompile(`(?i)(SELECT|INSERT|UPDATE|DELETE)[^;"'` + "`" + `]*["'` + "`" + `]\s*\+`)
)

// SecurityDetector flags hardcoded secret-like literals, string-built
// shell commands, and string-concatenated SQL — the three patterns
// VIGILUM's regex+negated-safe-pattern scheme groups as high-confidence
// injection/secret-leak smells regardless of per-project convention,
// so every match is reported directly rather than only non-dominant
// occurrences.
type SecurityDetector struct{}

func NewSecurity() *SecurityDetector { return &SecurityDetector{} }

func (d *SecurityDetector) ID() string                    { return "security/injection-and-secrets" }
func (d *SecurityDetector) Category() models.Category      { return models.CategorySecurity }
func (d *SecurityDetector) Method() models.DetectionMethod { return models.DetectionMethodRegex }

func (d *SecurityDetector) Detect(ctx Context) (Result, error) {
	if IsExcludedFile(ctx.Path) {
		return Result{Confidence: 0.5}, nil
	}
	inComment := BuildCommentPredicate(ctx.Content)

	var locations []models.Location
	var outliers []models.Outlier

	add := func(offset int, reason string, score float64) {
		if inComment(offset) {
			return
		}
		line, col := LineCol(ctx.Content, offset)
		loc := models.Location{File: ctx.Path, Line: line, Column: col}
		locations = append(locations, loc)
		outliers = append(outliers, models.Outlier{Location: loc, Reason: reason, DeviationScore: score})
	}

	for _, m := range secretLiteralRe.FindAllIndex(ctx.Content, -1) {
		add(m[0], "hardcoded-secret-literal", 0.9)
	}
	for _, m := range execConcatRe.FindAllIndex(ctx.Content, -1) {
		add(m[0], "command-injection-risk: shell command built via string concatenation", 0.9)
	}
	for _, m := range sqlConcatRe.FindAllIndex(ctx.Content, -1) {
		add(m[0], "sql-injection-risk: query built via string concatenation", 0.9)
	}

	if len(locations) == 0 {
		return Result{Confidence: 0.5}, nil
	}

	pattern := models.Pattern{
		ID: d.ID(), Name: "Injection and secret exposure", Description: "Hardcoded secrets and string-built command/query risks",
		Category: d.Category(), Subcategory: "injection-and-secrets", DetectionMethod: d.Method(),
		Severity: models.SeverityError, Locations: locations, Outliers: outliers, Status: models.StatusDiscovered,
	}
	var violations []models.Violation
	for _, o := range outliers {
		violations = append(violations, models.Violation{
			PatternID: d.ID(), PatternName: pattern.Name, Category: d.Category(),
			Location: o.Location, Reason: o.Reason, Severity: models.SeverityError,
		})
	}
	return Result{Patterns: []models.Pattern{pattern}, Violations: violations, Confidence: Confidence(len(locations), len(outliers))}, nil
}
