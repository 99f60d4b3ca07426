package detectors

import (
	"regexp"

	"github.com/driftscan/driftscan/pkg/models"
)

// satdRe matches self-admitted-technical-debt markers, following the
// teacher's SATD marker vocabulary.
var satdRe = regexp.MustCompile(`(?i)\b(TODO|FIXME|HACK|XXX|KLUDGE)\b[:\s]`)

var exportedFuncRe = regexp.MustCompile(`(?m)^func\s+(?:\([^)]*\)\s*)?([A-Z]\w*)\s*\(`)
var docCommentRe = regexp.MustCompile(`(?m)^//\s*\S`)

// DocumentationDetector infers the project's doc-comment convention for
// exported functions and reports every SATD marker as a low-severity
// outlier; marker age is not considered.
type DocumentationDetector struct{}

func NewDocumentation() *DocumentationDetector { return &DocumentationDetector{} }

func (d *DocumentationDetector) ID() string                    { return "documentation/exported-doc-comments" }
func (d *DocumentationDetector) Category() models.Category      { return models.CategoryDocumentation }
func (d *DocumentationDetector) Method() models.DetectionMethod { return models.DetectionMethodRegex }

func (d *DocumentationDetector) Detect(ctx Context) (Result, error) {
	if IsExcludedFile(ctx.Path) || ctx.Language != "go" {
		return Result{Confidence: 0.5}, nil
	}

	var locations []models.Location
	var outliers []models.Outlier
	documented, undocumented := 0, 0

	for _, m := range exportedFuncRe.FindAllSubmatchIndex(ctx.Content, -1) {
		line, col := LineCol(ctx.Content, m[0])
		loc := models.Location{File: ctx.Path, Line: line, Column: col}
		locations = append(locations, loc)

		if line > 1 && hasDocCommentAbove(ctx.Content, line) {
			documented++
		} else {
			undocumented++
		}
	}

	dominant := DominantForm(map[string]int{"documented": documented, "undocumented": undocumented},
		[]string{"documented", "undocumented"}, 3)

	if dominant == "documented" {
		for i, m := range exportedFuncRe.FindAllIndex(ctx.Content, -1) {
			line, col := LineCol(ctx.Content, m[0])
			if !hasDocCommentAbove(ctx.Content, line) {
				outliers = append(outliers, models.Outlier{
					Location:       models.Location{File: ctx.Path, Line: line, Column: col},
					Reason:         "undocumented-exported-function: project convention documents exported functions",
					DeviationScore: 0.3,
				})
			}
			_ = i
		}
	}

	for _, m := range satdRe.FindAllIndex(ctx.Content, -1) {
		line, col := LineCol(ctx.Content, m[0])
		outliers = append(outliers, models.Outlier{
			Location:       models.Location{File: ctx.Path, Line: line, Column: col},
			Reason:         "self-admitted-technical-debt-marker",
			DeviationScore: 0.2,
		})
	}

	if len(locations) == 0 && len(outliers) == 0 {
		return Result{Confidence: 0.5}, nil
	}

	pattern := models.Pattern{
		ID: d.ID(), Name: "Exported documentation", Description: "Inferred documentation convention for exported identifiers",
		Category: d.Category(), Subcategory: "exported-doc-comments", DetectionMethod: d.Method(),
		Severity: models.SeverityInfo, Locations: locations, Outliers: outliers, Status: models.StatusDiscovered,
	}
	var violations []models.Violation
	for _, o := range outliers {
		violations = append(violations, models.Violation{
			PatternID: d.ID(), PatternName: pattern.Name, Category: d.Category(),
			Location: o.Location, Reason: o.Reason, Severity: models.SeverityInfo,
		})
	}
	total := documented + undocumented
	if total == 0 {
		total = len(outliers)
	}
	return Result{Patterns: []models.Pattern{pattern}, Violations: violations, Confidence: Confidence(total, len(outliers))}, nil
}

func hasDocCommentAbove(content []byte, line int) bool {
	offset := 0
	cur := 1
	for i, b := range content {
		if cur == line-1 {
			offset = i
			break
		}
		if b == '\n' {
			cur++
		}
	}
	if offset == 0 && line <= 1 {
		return false
	}
	end := offset
	for end < len(content) && content[end] != '\n' {
		end++
	}
	return docCommentRe.Match(content[offset:end])
}
