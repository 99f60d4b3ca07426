package detectors

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/driftscan/driftscan/pkg/models"
)

// roleFileRe identifies files whose name suggests a service/repository/
// controller role — the population the auth detector's ownership-check
// rule applies to (§4.3).
var roleFileRe = regexp.MustCompile(`(?i)(service|repository|repo|controller|handler)\.(go|ts|js|py|rb)$`)

var (
	destructiveOpRe  = regexp.MustCompile(`(?i)\b(delete|destroy|update|drop\s+table|truncate)\b`)
	ownershipCheckRe = regexp.MustCompile(`(?i)\b(owner_id|ownerid|user_id\s*==|\.owner\b|current_user\.id|req\.user\.id|CheckOwner|AssertOwner)\b`)
	roleCheckRe      = regexp.MustCompile(`(?i)\b(require_role|has_role|RequireRole|@PreAuthorize|IsAdmin|role\s*==\s*['"]admin['"])\b`)
	tenantScopeRe    = regexp.MustCompile(`(?i)\b(tenant_id|TenantID|org_id|OrganizationID)\b`)
)

// AuthDetector classifies auth primitives (role checks, ownership
// checks, tenant scoping) and flags destructive operations in
// service/repo/controller files with no ownership check anywhere in the
// file (§4.3's auth/RBAC/ownership category highlight).
type AuthDetector struct{}

func NewAuth() *AuthDetector { return &AuthDetector{} }

func (d *AuthDetector) ID() string                    { return "auth/ownership-check" }
func (d *AuthDetector) Category() models.Category      { return models.CategoryAuth }
func (d *AuthDetector) Method() models.DetectionMethod { return models.DetectionMethodRegex }

func (d *AuthDetector) Detect(ctx Context) (Result, error) {
	if IsExcludedFile(ctx.Path) {
		return Result{Confidence: 0.5}, nil
	}
	if !roleFileRe.MatchString(filepath.Base(ctx.Path)) {
		return Result{Confidence: 0.5}, nil
	}
	inComment := BuildCommentPredicate(ctx.Content)

	hasOwnershipCheck := ownershipCheckRe.Match(ctx.Content)
	hasRoleCheck := roleCheckRe.Match(ctx.Content)
	hasTenantScope := tenantScopeRe.Match(ctx.Content)

	destructiveMatches := destructiveOpRe.FindAllIndex(ctx.Content, -1)

	var locations []models.Location
	var outliers []models.Outlier
	for _, m := range destructiveMatches {
		if inComment(m[0]) {
			continue
		}
		line, col := LineCol(ctx.Content, m[0])
		loc := models.Location{File: ctx.Path, Line: line, Column: col}
		locations = append(locations, loc)
		if !hasOwnershipCheck && !hasRoleCheck {
			outliers = append(outliers, models.Outlier{
				Location: loc,
				Reason:   "sensitive-operation-without-access-control: " + strings.TrimSpace(string(ctx.Content[m[0]:m[1]])) + " in a service/repo/controller file with no ownership or role check",
				DeviationScore: 0.8,
			})
		}
	}
	if len(locations) == 0 {
		return Result{Confidence: 0.5}, nil
	}

	pattern := models.Pattern{
		ID: d.ID(), Name: "Ownership/role check on sensitive operations",
		Description: "Destructive operations expected to be guarded by an ownership or role check",
		Category:    d.Category(), Subcategory: "ownership-check", DetectionMethod: d.Method(),
		Severity: models.SeverityError, Locations: locations, Outliers: outliers,
		Metadata: models.Metadata{Tags: tagsFor(hasTenantScope)},
		Status:   models.StatusDiscovered,
	}
	var violations []models.Violation
	for _, o := range outliers {
		violations = append(violations, models.Violation{
			PatternID: d.ID(), PatternName: pattern.Name, Category: d.Category(),
			Location: o.Location, Reason: o.Reason, Severity: models.SeverityError,
		})
	}

	return Result{
		Patterns: []models.Pattern{pattern}, Violations: violations,
		Confidence: Confidence(len(locations), len(outliers)),
	}, nil
}

func tagsFor(tenantScoped bool) []string {
	if tenantScoped {
		return []string{"tenant-scoped"}
	}
	return nil
}
