package detectors

import (
	"regexp"

	"github.com/driftscan/driftscan/pkg/models"
)

var (
	ormCallRe = regexp.MustCompile(`\b(?:db|DB|conn|tx)\.(Find|First|Where|Create|Update|Delete|Exec|Query|Save)\s*\(`)
	rawSQLRe  = regexp.MustCompile(`(?i)\b(SELECT|INSERT\s+INTO|UPDATE|DELETE\s+FROM)\b`)
)

// DataAccessDetector counts ORM calls and raw-SQL keywords in each file
// with its own regexes (it does not call the Boundary/Data-Access
// Analyzer, C6) and, where the ORM form dominates, flags the raw-SQL
// sites.
type DataAccessDetector struct{}

func NewDataAccess() *DataAccessDetector { return &DataAccessDetector{} }

func (d *DataAccessDetector) ID() string                    { return "data-access/query-style" }
func (d *DataAccessDetector) Category() models.Category      { return models.CategoryDataAccess }
func (d *DataAccessDetector) Method() models.DetectionMethod { return models.DetectionMethodRegex }

func (d *DataAccessDetector) Detect(ctx Context) (Result, error) {
	if IsExcludedFile(ctx.Path) {
		return Result{Confidence: 0.5}, nil
	}
	inComment := BuildCommentPredicate(ctx.Content)

	counts := map[string]int{"orm": 0, "raw-sql": 0}
	var locations []models.Location
	var rawOffsets []int
	for _, m := range ormCallRe.FindAllIndex(ctx.Content, -1) {
		if inComment(m[0]) {
			continue
		}
		counts["orm"]++
		line, col := LineCol(ctx.Content, m[0])
		locations = append(locations, models.Location{File: ctx.Path, Line: line, Column: col})
	}
	for _, m := range rawSQLRe.FindAllIndex(ctx.Content, -1) {
		if inComment(m[0]) {
			continue
		}
		counts["raw-sql"]++
		rawOffsets = append(rawOffsets, m[0])
	}
	total := counts["orm"] + counts["raw-sql"]
	if total == 0 {
		return Result{Confidence: 0.5}, nil
	}
	dominant := DominantForm(counts, []string{"orm", "raw-sql"}, 2)

	var outliers []models.Outlier
	if dominant == "orm" {
		for _, off := range rawOffsets {
			line, col := LineCol(ctx.Content, off)
			outliers = append(outliers, models.Outlier{
				Location:       models.Location{File: ctx.Path, Line: line, Column: col},
				Reason:         "raw-sql-in-orm-project: project convention uses the ORM layer",
				DeviationScore: 0.5,
			})
		}
	}

	pattern := models.Pattern{
		ID: d.ID(), Name: "Data access query style", Description: "Inferred ORM-vs-raw-SQL convention",
		Category: d.Category(), Subcategory: "query-style", DetectionMethod: d.Method(),
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
