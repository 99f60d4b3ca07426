package detectors

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/driftscan/driftscan/pkg/models"
)

// exemptRoutes are health-check/docs routes exempt from versioning
// checks per §4.3's route-structure category highlight.
var exemptRoutes = regexp.MustCompile(`^/(health|healthz|metrics|api/docs|docs|favicon\.ico)`)

var routeDeclRe = regexp.MustCompile(`(?m)(?:router|app|r)\.(?:get|post|put|patch|delete|use)\(\s*["'` + "`" + `]([^"'` + "`" + `]+)["'` + "`" + `]`)

// RoutesDetector infers URL-casing, versioning, and nesting-depth
// conventions across route declarations (§4.3). Singular vs plural
// resource names are not checked.
type RoutesDetector struct{}

func NewRoutes() *RoutesDetector { return &RoutesDetector{} }

func (d *RoutesDetector) ID() string                     { return "api/route-structure" }
func (d *RoutesDetector) Category() models.Category       { return models.CategoryAPI }
func (d *RoutesDetector) Method() models.DetectionMethod  { return models.DetectionMethodRegex }

func (d *RoutesDetector) Detect(ctx Context) (Result, error) {
	if IsExcludedFile(ctx.Path) {
		return Result{Confidence: 0.5}, nil
	}
	inComment := BuildCommentPredicate(ctx.Content)

	type occ struct {
		route  string
		offset int
	}
	var occs []occ
	for _, m := range routeDeclRe.FindAllSubmatchIndex(ctx.Content, -1) {
		if inComment(m[0]) {
			continue
		}
		route := string(ctx.Content[m[2]:m[3]])
		occs = append(occs, occ{route: route, offset: m[2]})
	}
	if len(occs) == 0 {
		return Result{Confidence: 0.5}, nil
	}

	casingCounts := map[string]int{"kebab": 0, "camel": 0, "snake": 0}
	versioned := false
	for _, o := range occs {
		for _, seg := range strings.Split(o.route, "/") {
			if seg == "" || strings.HasPrefix(seg, ":") || strings.HasPrefix(seg, "{") {
				continue
			}
			switch {
			case strings.Contains(seg, "-"):
				casingCounts["kebab"]++
			case strings.Contains(seg, "_"):
				casingCounts["snake"]++
			case seg != strings.ToLower(seg):
				casingCounts["camel"]++
			}
		}
		if regexp.MustCompile(`/v[0-9]+(/|$)`).MatchString(o.route) {
			versioned = true
		}
	}
	dominant := DominantForm(casingCounts, []string{"kebab", "snake", "camel"}, 2)

	var locations []models.Location
	var outliers []models.Outlier
	for _, o := range occs {
		line, col := LineCol(ctx.Content, o.offset)
		locations = append(locations, models.Location{File: ctx.Path, Line: line, Column: col})

		if dominant != "" {
			for _, seg := range strings.Split(o.route, "/") {
				if seg == "" || strings.HasPrefix(seg, ":") || strings.HasPrefix(seg, "{") {
					continue
				}
				segCasing := ""
				switch {
				case strings.Contains(seg, "-"):
					segCasing = "kebab"
				case strings.Contains(seg, "_"):
					segCasing = "snake"
				case seg != strings.ToLower(seg):
					segCasing = "camel"
				default:
					continue
				}
				if segCasing != dominant {
					outliers = append(outliers, models.Outlier{
						Location:       models.Location{File: ctx.Path, Line: line, Column: col},
						Reason:         fmt.Sprintf("inconsistent-casing: %q uses %s, project convention is %s", seg, segCasing, dominant),
						DeviationScore: 0.6,
						SuggestedFix:   ToKebab(seg),
					})
				}
			}
		}

		if versioned && !exemptRoutes.MatchString(o.route) && !regexp.MustCompile(`/v[0-9]+(/|$)`).MatchString(o.route) {
			outliers = append(outliers, models.Outlier{
				Location:       models.Location{File: ctx.Path, Line: line, Column: col},
				Reason:         "missing-api-version: project has versioned routes elsewhere",
				DeviationScore: 0.5,
			})
		}

		depth := 0
		for _, seg := range strings.Split(o.route, "/") {
			if seg != "" && !strings.HasPrefix(seg, ":") && !strings.HasPrefix(seg, "{") {
				depth++
			}
		}
		if depth > 4 {
			outliers = append(outliers, models.Outlier{
				Location:       models.Location{File: ctx.Path, Line: line, Column: col},
				Reason:         "excessive-nesting-depth",
				DeviationScore: 0.4,
			})
		}
	}

	pattern := models.Pattern{
		ID:              d.ID(),
		Name:            "Route structure",
		Description:     "Inferred URL casing/versioning/nesting conventions",
		Category:        d.Category(),
		Subcategory:     "route-structure",
		DetectionMethod: d.Method(),
		Severity:        models.SeverityWarning,
		Locations:       locations,
		Outliers:        outliers,
		Status:          models.StatusDiscovered,
	}

	var violations []models.Violation
	for _, o := range outliers {
		violations = append(violations, models.Violation{
			PatternID: d.ID(), PatternName: pattern.Name, Category: d.Category(),
			Location: o.Location, Reason: o.Reason, Severity: models.SeverityWarning,
			SuggestedFix: o.SuggestedFix,
		})
	}

	return Result{
		Patterns:   []models.Pattern{pattern},
		Violations: violations,
		Confidence: Confidence(len(occs), len(outliers)),
	}, nil
}
