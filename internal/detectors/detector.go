// Package detectors defines the sealed Detector variant and the shared
// helpers (comment-exclusion predicate, excluded-file check, dominant-
// pattern counting) every concrete detector builds on. This replaces the
// teacher's BaseDetector-subclass hierarchy (the §9 REDESIGN FLAG
// "inheritance hierarchies for detectors") with a single interface plus
// free functions taking (content, in_comment_predicate).
package detectors

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/driftscan/driftscan/pkg/models"
)

// Context is the uniform input every detector receives, matching §4.3's
// `detect(context)` contract: (content, path, language) plus the
// project-wide summary needed for dominance decisions.
type Context struct {
	Content  []byte
	Path     string // relative path
	Language string
	Summary  *ProjectSummary
}

// ProjectSummary is the read-only, project-wide aggregate a detector may
// consult to decide dominance (e.g. the project's prevailing URL casing).
// It is populated by the Scanner Service from a first pass over all
// files and handed to every detector unchanged, so that "same content +
// same summary => same output" (determinism, §4.3) holds.
type ProjectSummary struct {
	TotalFiles int
	// Occurrences lets a detector accumulate votes across files in a
	// single scan and then decide the dominant form on the second pass.
	// Detectors key this themselves (e.g. "casing:kebab").
	Occurrences map[string]int
}

// Result is what a detector emits for one file.
type Result struct {
	Patterns   []models.Pattern
	Violations []models.Violation
	Confidence float64
	Extras     map[string]any
}

// QuickFix is an optional suggested edit a detector can offer for a
// violation.
type QuickFix struct {
	Description string
	Replacement string
}

// Detector is the sealed variant over {RegexDetector, AstDetector,
// SemanticDetector} from §4.3, reduced in Go to one interface: the three
// "kinds" differ only in how they build Result internally, not in the
// contract callers depend on.
type Detector interface {
	ID() string
	Category() models.Category
	Method() models.DetectionMethod
	Detect(ctx Context) (Result, error)
}

// QuickFixer is optionally implemented by detectors that can suggest an
// edit for one of their own violations.
type QuickFixer interface {
	GenerateQuickFix(v models.Violation) (QuickFix, bool)
}

// excludedFileRe matches test/spec/story/declaration/vendor-equivalent
// files that detectors skip unless they opt in (§4.3 "Excluded files").
var excludedFileRe = regexp.MustCompile(`(?i)(_test\.|\.test\.|\.spec\.|_spec\.|\.story\.|\.stories\.|\.d\.ts$|/vendor/|/node_modules/|/dist/|/generated/)`)

// IsExcludedFile reports whether path should be skipped by default.
func IsExcludedFile(path string) bool {
	return excludedFileRe.MatchString(filepath.ToSlash(path))
}

// CommentPredicate reports whether a byte offset in content falls inside
// a comment. Detectors precompute one of these per file per §4.3.
type CommentPredicate func(offset int) bool

// BuildCommentPredicate scans content once and returns a predicate
// answering "is this offset inside a single-line or block comment",
// covering the C-family "//" and "/* */" forms plus "#" line comments
// (Ruby/Python/Bash) and triple-quoted Python strings are intentionally
// not treated as comments (they are executable string literals).
func BuildCommentPredicate(content []byte) CommentPredicate {
	ranges := make([][2]int, 0, 16)
	n := len(content)
	i := 0
	for i < n {
		switch {
		case content[i] == '/' && i+1 < n && content[i+1] == '/':
			start := i
			for i < n && content[i] != '\n' {
				i++
			}
			ranges = append(ranges, [2]int{start, i})
		case content[i] == '/' && i+1 < n && content[i+1] == '*':
			start := i
			i += 2
			for i+1 < n && !(content[i] == '*' && content[i+1] == '/') {
				i++
			}
			i += 2
			if i > n {
				i = n
			}
			ranges = append(ranges, [2]int{start, i})
		case content[i] == '#':
			start := i
			for i < n && content[i] != '\n' {
				i++
			}
			ranges = append(ranges, [2]int{start, i})
		case content[i] == '"' || content[i] == '\'':
			q := content[i]
			i++
			for i < n && content[i] != q {
				if content[i] == '\\' {
					i++
				}
				i++
			}
			i++
		default:
			i++
		}
	}
	return func(offset int) bool {
		for _, r := range ranges {
			if offset >= r[0] && offset < r[1] {
				return true
			}
		}
		return false
	}
}

// LineCol converts a byte offset in content to 1-indexed (line, column).
func LineCol(content []byte, offset int) (line, col int) {
	line, col = 1, 1
	for i := 0; i < offset && i < len(content); i++ {
		if content[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return
}

// Confidence computes a detector's per-file confidence per §4.3:
// 1 - violations/matches clamped to [0,1], or 0.5 with zero matches.
func Confidence(matches, violations int) float64 {
	if matches == 0 {
		return 0.5
	}
	c := 1 - float64(violations)/float64(matches)
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// DominantForm implements the dominant-pattern rule of §4.3: counts is a
// form -> occurrence-count map; preferredOrder breaks ties. Returns ""
// if total evidence is below minEvidence.
func DominantForm(counts map[string]int, preferredOrder []string, minEvidence int) string {
	total := 0
	best := ""
	bestCount := -1
	for _, form := range preferredOrder {
		c := counts[form]
		total += 0 // preferredOrder may not cover all keys; counted below
		if c > bestCount {
			bestCount = c
			best = form
		}
	}
	for form, c := range counts {
		total += c
		if !containsStr(preferredOrder, form) && c > bestCount {
			bestCount = c
			best = form
		}
	}
	if total < minEvidence {
		return ""
	}
	return best
}

func containsStr(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

// ToKebab converts camelCase/PascalCase/snake_case to kebab-case, used
// by the route-casing detector's suggested_fix.
func ToKebab(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r == '_' {
			b.WriteByte('-')
			continue
		}
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r - 'A' + 'a')
			continue
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}
