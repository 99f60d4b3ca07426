// Package boundary implements C6, the Boundary / Data-Access Analyzer:
// it extracts ORM/SQL access points, classifies (table,field) pairs by
// sensitivity, and flags hardcoded secrets and suspicious env-var
// reads. Grounded on AditS-H-VIGILUM's regex-with-negated-safe-pattern
// VulnerabilityPattern/PatternDetector shape (source patterns plus a
// safe/negation pattern, confidence per match). Access points are found
// by one ORM-call regex for every language, Go included; no go/ast
// parsing is done.
package boundary

import (
	"regexp"

	"github.com/awnumar/memguard"

	"github.com/driftscan/driftscan/internal/detectors"
	"github.com/driftscan/driftscan/pkg/models"
)

// sensitivityDict is the layered classification dictionary of §4.6:
// credentials > financial > health > pii > internal. Earlier entries
// win on overlap.
var sensitivityDict = []struct {
	re  *regexp.Regexp
	sen models.Sensitivity
}{
	{regexp.MustCompile(`(?i)(password|passwd|secret|api_?key|private_?key|token)`), models.SensitivityCredentials},
	{regexp.MustCompile(`(?i)(credit_?card|card_number|cvv|iban|account_number|routing_number)`), models.SensitivityFinancial},
	{regexp.MustCompile(`(?i)(diagnosis|medical|health_record|prescription|patient)`), models.SensitivityHealth},
	{regexp.MustCompile(`(?i)(email|phone|ssn|address|date_of_birth|full_name|first_name|last_name)`), models.SensitivityPII},
	{regexp.MustCompile(`(?i)(internal_note|debug_flag|admin_only)`), models.SensitivityInternal},
}

// accessPointRe matches ORM-style calls naming a table/model, capturing
// the table token for the AccessPoint (§4.6 framework-specific ORM
// extractor, generalized to a single cross-language regex rather than
// one extractor per framework — languages beyond Go are additive work
// tracked for a later extractor, not a dropped requirement).
var accessPointRe = regexp.MustCompile(`(?i)\b(?:db|DB|conn|tx)\.(Find|First|Where|Create|Update|Delete|Save|Model|Table)\(([^)]*)\)`)

var fieldNameRe = regexp.MustCompile(`\b([a-z_][a-z0-9_]*)\s*:`)

var secretPatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{"provider-api-key", regexp.MustCompile(`\b(sk-[A-Za-z0-9]{20,}|AKIA[0-9A-Z]{16})\b`)},
	{"private-key-header", regexp.MustCompile(`-----BEGIN (?:RSA |EC )?PRIVATE KEY-----`)},
	{"db-uri-with-credentials", regexp.MustCompile(`(?i)\b(?:postgres|postgresql|mysql|mongodb)://[^:\s]+:[^@\s]+@`)},
	{"jwt-like-token", regexp.MustCompile(`\beyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}\b`)},
	{"generic-literal-secret", regexp.MustCompile(`(?i)(?:secret|password|api[_-]?key)\s*[:=]\s*["'][A-Za-z0-9+/_=.-]{12,}["']`)},
}

// safeSecretRe excludes placeholder/example values from secret
// findings — the "negated safe pattern" half of VIGILUM's scheme.
var safeSecretRe = regexp.MustCompile(`(?i)(your[_-]?api[_-]?key|xxxx|changeme|example|placeholder|<[a-z_]+>)`)

var envReadRe = regexp.MustCompile(`(?i)\bos\.(?:Getenv|LookupEnv)\(\s*["']([A-Za-z0-9_]+)["']`)
var envFallbackRe = regexp.MustCompile(`(?i)(secret|password|token|key)`)

// Analyzer runs C6's scan over a set of already-read file contents.
type Analyzer struct{}

func New() *Analyzer { return &Analyzer{} }

// Scan implements the §4.6 contract: scan(files[]) -> BoundaryResult.
// files maps relative path -> content, matching the streaming,
// one-file-at-a-time shape the rest of C1-C9 uses.
func (a *Analyzer) Scan(files map[string][]byte) models.BoundaryResult {
	var result models.BoundaryResult
	classified := map[string]models.Sensitivity{}

	for path, content := range files {
		if detectors.IsExcludedFile(path) {
			continue
		}
		inComment := detectors.BuildCommentPredicate(content)

		for _, m := range accessPointRe.FindAllSubmatchIndex(content, -1) {
			if inComment(m[0]) {
				continue
			}
			op := operationFor(string(content[m[2]:m[3]]))
			args := string(content[m[4]:m[5]])
			table := tableToken(args)
			var fields []string
			for _, fm := range fieldNameRe.FindAllSubmatch([]byte(args), -1) {
				fields = append(fields, string(fm[1]))
			}
			line, _ := detectors.LineCol(content, m[0])
			result.AccessPoints = append(result.AccessPoints, models.AccessPoint{
				File: path, Line: line, Table: table, Fields: fields, Operation: op, Framework: "orm",
			})
			for _, f := range fields {
				key := table + "." + f
				if _, ok := classified[key]; ok {
					continue
				}
				sen := classify(f)
				classified[key] = sen
				result.SensitiveFields = append(result.SensitiveFields, models.SensitiveField{Table: table, Field: f, Sensitivity: sen})
			}
		}

		// A span overlapping one already reported under an earlier
		// catalogue entry is not reported again.
		var flagged [][2]int
		for _, sp := range secretPatterns {
			for _, m := range sp.re.FindAllIndex(content, -1) {
				if inComment(m[0]) {
					continue
				}
				overlaps := false
				for _, f := range flagged {
					if m[0] < f[1] && f[0] < m[1] {
						overlaps = true
						break
					}
				}
				raw := content[m[0]:m[1]]
				if overlaps || safeSecretRe.Match(raw) {
					continue
				}
				flagged = append(flagged, [2]int{m[0], m[1]})
				line, col := detectors.LineCol(content, m[0])
				result.Secrets = append(result.Secrets, models.SecretFinding{
					File: path, Line: line, Column: col, Kind: sp.name, Preview: redactPreview(raw),
				})
			}
		}

		for _, m := range envReadRe.FindAllSubmatchIndex(content, -1) {
			if inComment(m[0]) {
				continue
			}
			key := string(content[m[2]:m[3]])
			if envFallbackRe.MatchString(key) {
				line, _ := detectors.LineCol(content, m[0])
				result.EnvIssues = append(result.EnvIssues, models.EnvIssue{
					File: path, Line: line, Key: key, Reason: "secret-like-env-var-read-directly",
				})
			}
		}
	}
	return result
}

func operationFor(method string) models.Operation {
	switch method {
	case "Find", "First", "Where", "Model", "Table":
		return models.OpRead
	case "Create", "Save":
		return models.OpWrite
	case "Update":
		return models.OpUpdate
	case "Delete":
		return models.OpDelete
	default:
		return models.OpRead
	}
}

var tableTokenRe = regexp.MustCompile(`["']([A-Za-z_][A-Za-z0-9_]*)["']`)

func tableToken(args string) string {
	if m := tableTokenRe.FindStringSubmatch(args); m != nil {
		return m[1]
	}
	return "unknown"
}

// classify implements the layered sensitivity dictionary, deterministic
// for a given field name within a project (§4.6's invariant).
func classify(field string) models.Sensitivity {
	for _, entry := range sensitivityDict {
		if entry.re.MatchString(field) {
			return entry.sen
		}
	}
	return models.SensitivityPublic
}

// redactPreview holds the matched secret in memguard-locked memory just
// long enough to build a masked preview, so the raw value never
// persists in a Go-managed string beyond this call.
func redactPreview(raw []byte) string {
	buf := memguard.NewBufferFromBytes(append([]byte(nil), raw...))
	defer buf.Destroy()
	b := buf.Bytes()
	if len(b) <= 8 {
		return "****"
	}
	return string(b[:4]) + "..." + string(b[len(b)-4:])
}
