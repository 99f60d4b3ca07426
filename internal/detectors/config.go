package detectors

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/driftscan/driftscan/pkg/models"
)

var (
	envVarDeclRe  = regexp.MustCompile(`(?i)\bos\.(?:Getenv|LookupEnv)\(\s*["']([A-Za-z0-9_]+)["']`)
	envKeyCaseRe  = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)
	directSecretN = regexp.MustCompile(`(?i)(secret|password|token|key)`)
)

// ConfigDetector infers the environment-variable key-casing convention
// (SCREAMING_SNAKE_CASE being the near-universal default) and flags any
// direct-named secret env var read outside a config-loading file, on
// the theory that secrets should flow through a single config layer
// rather than being read ad hoc (§4.3 config category highlight).
type ConfigDetector struct{}

func NewConfig() *ConfigDetector { return &ConfigDetector{} }

func (d *ConfigDetector) ID() string                    { return "config/env-var-convention" }
func (d *ConfigDetector) Category() models.Category      { return models.CategoryConfig }
func (d *ConfigDetector) Method() models.DetectionMethod { return models.DetectionMethodRegex }

func (d *ConfigDetector) Detect(ctx Context) (Result, error) {
	if IsExcludedFile(ctx.Path) {
		return Result{Confidence: 0.5}, nil
	}
	inComment := BuildCommentPredicate(ctx.Content)
	isConfigFile := strings.Contains(strings.ToLower(filepath.Base(ctx.Path)), "config")

	var locations []models.Location
	var outliers []models.Outlier
	nonScreaming, screaming := 0, 0

	for _, m := range envVarDeclRe.FindAllSubmatchIndex(ctx.Content, -1) {
		if inComment(m[0]) {
			continue
		}
		key := string(ctx.Content[m[2]:m[3]])
		line, col := LineCol(ctx.Content, m[0])
		loc := models.Location{File: ctx.Path, Line: line, Column: col}
		locations = append(locations, loc)

		if envKeyCaseRe.MatchString(key) {
			screaming++
		} else {
			nonScreaming++
			outliers = append(outliers, models.Outlier{
				Location:       loc,
				Reason:         "non-screaming-snake-env-key: \"" + key + "\" deviates from SCREAMING_SNAKE_CASE convention",
				DeviationScore: 0.4,
			})
		}

		if directSecretN.MatchString(key) && !isConfigFile {
			outliers = append(outliers, models.Outlier{
				Location:       loc,
				Reason:         "secret-env-read-outside-config-layer: \"" + key + "\" read directly instead of via the config loader",
				DeviationScore: 0.5,
			})
		}
	}

	total := screaming + nonScreaming
	if total == 0 {
		return Result{Confidence: 0.5}, nil
	}

	pattern := models.Pattern{
		ID: d.ID(), Name: "Environment variable convention", Description: "Inferred env-var key casing and config-layer access convention",
		Category: d.Category(), Subcategory: "env-var-convention", DetectionMethod: d.Method(),
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
