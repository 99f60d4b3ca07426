package detectors

import (
	"regexp"

	"github.com/driftscan/driftscan/pkg/models"
)

var (
	envelopeStdRe   = regexp.MustCompile(`\.json\(\s*\{\s*data\s*[:,]`)
	envelopeErrRe   = regexp.MustCompile(`\.json\(\s*\{\s*error\s*[:,]`)
	envelopeArrRe   = regexp.MustCompile(`\.json\(\s*\[`)
	envelopeHalRe   = regexp.MustCompile(`_links\s*:`)
	envelopeJSONAPI = regexp.MustCompile(`\bjsonapi\s*:`)
)

// EnvelopeDetector counts response-envelope shapes (standard data/error,
// JSON:API, HAL, raw array) and flags raw-array responses when another
// shape dominates (§4.3). Pagination shapes are not detected, and mixed
// envelope shapes or missing data/error fields are not flagged.
type EnvelopeDetector struct{}

func NewEnvelope() *EnvelopeDetector { return &EnvelopeDetector{} }

func (d *EnvelopeDetector) ID() string                    { return "api/response-envelope" }
func (d *EnvelopeDetector) Category() models.Category      { return models.CategoryAPI }
func (d *EnvelopeDetector) Method() models.DetectionMethod { return models.DetectionMethodRegex }

func (d *EnvelopeDetector) Detect(ctx Context) (Result, error) {
	if IsExcludedFile(ctx.Path) {
		return Result{Confidence: 0.5}, nil
	}
	inComment := BuildCommentPredicate(ctx.Content)

	counts := map[string]int{"standard": 0, "jsonapi": 0, "hal": 0, "direct": 0}
	var rawOffsets []int
	var stdOffsets []int

	for _, m := range envelopeStdRe.FindAllIndex(ctx.Content, -1) {
		if inComment(m[0]) {
			continue
		}
		counts["standard"]++
		stdOffsets = append(stdOffsets, m[0])
	}
	for range envelopeErrRe.FindAllIndex(ctx.Content, -1) {
		// error-field sites reinforce the "standard" envelope count but are
		// not separately tallied as a distinct shape.
		counts["standard"]++
	}
	for _, m := range envelopeJSONAPI.FindAllIndex(ctx.Content, -1) {
		if !inComment(m[0]) {
			counts["jsonapi"]++
		}
	}
	for _, m := range envelopeHalRe.FindAllIndex(ctx.Content, -1) {
		if !inComment(m[0]) {
			counts["hal"]++
		}
	}
	for _, m := range envelopeArrRe.FindAllIndex(ctx.Content, -1) {
		if inComment(m[0]) {
			continue
		}
		counts["direct"]++
		rawOffsets = append(rawOffsets, m[0])
	}

	if counts["standard"]+counts["jsonapi"]+counts["hal"]+counts["direct"] == 0 {
		return Result{Confidence: 0.5}, nil
	}

	dominant := DominantForm(counts, []string{"standard", "jsonapi", "hal", "direct"}, 2)

	var locations []models.Location
	for _, off := range stdOffsets {
		line, col := LineCol(ctx.Content, off)
		locations = append(locations, models.Location{File: ctx.Path, Line: line, Column: col})
	}

	var outliers []models.Outlier
	if dominant != "" && dominant != "direct" {
		for _, off := range rawOffsets {
			line, col := LineCol(ctx.Content, off)
			outliers = append(outliers, models.Outlier{
				Location:       models.Location{File: ctx.Path, Line: line, Column: col},
				Reason:         "raw-data-response: project convention is " + dominant + " envelope",
				DeviationScore: 0.5,
			})
		}
	}

	pattern := models.Pattern{
		ID: d.ID(), Name: "Response envelope", Description: "Inferred response envelope shape",
		Category: d.Category(), Subcategory: "response-envelope", DetectionMethod: d.Method(),
		Severity: models.SeverityWarning, Locations: locations, Outliers: outliers, Status: models.StatusDiscovered,
	}
	var violations []models.Violation
	for _, o := range outliers {
		violations = append(violations, models.Violation{
			PatternID: d.ID(), PatternName: pattern.Name, Category: d.Category(),
			Location: o.Location, Reason: o.Reason, Severity: models.SeverityWarning,
		})
	}

	total := counts["standard"] + counts["jsonapi"] + counts["hal"] + counts["direct"]
	return Result{
		Patterns: []models.Pattern{pattern}, Violations: violations,
		Confidence: Confidence(total, len(outliers)),
	}, nil
}
