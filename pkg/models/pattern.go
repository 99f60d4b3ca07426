// Package models holds the wire/data types shared across driftscan's
// components: patterns, variants, violations, boundary data-access
// records, and call graph nodes/edges. Types carry `json` tags following
// the convention established throughout the example pack's model
// packages.
package models

import (
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// Location pins a pattern occurrence or a call site to a byte range in a file.
type Location struct {
	File      string `json:"file"`
	Line      int    `json:"line"`
	Column    int    `json:"column"`
	EndLine   int    `json:"end_line,omitempty"`
	EndColumn int    `json:"end_column,omitempty"`
}

// Key returns the (file,line,column) dedup/identity key used throughout
// §4.4's merge algorithm and §4.5's variant coverage lookup.
func (l Location) Key() string {
	return l.File + ":" + itoa(l.Line) + ":" + itoa(l.Column)
}

// Outlier is a location that deviates from a pattern's dominant form.
type Outlier struct {
	Location       Location `json:"location"`
	Reason         string   `json:"reason"`
	DeviationScore float64  `json:"deviation_score"`
	SuggestedFix   string   `json:"suggested_fix,omitempty"`
}

// Confidence is the four-component confidence record defined in §4.4.
type Confidence struct {
	Frequency      float64         `json:"frequency"`
	Consistency    float64         `json:"consistency"`
	AgeDays        float64         `json:"age_days"`
	SpreadFileCnt  int             `json:"spread_file_count"`
	Score          float64         `json:"score"`
	Level          ConfidenceLevel `json:"level"`
}

// Metadata carries provenance and lifecycle bookkeeping for a Pattern.
type Metadata struct {
	FirstSeen  time.Time  `json:"first_seen"`
	LastSeen   time.Time  `json:"last_seen"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`
	ApprovedBy string     `json:"approved_by,omitempty"`
	Tags       []string   `json:"tags,omitempty"`
}

// Pattern is an inferred convention: see spec §3.
type Pattern struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	Category        Category        `json:"category"`
	Subcategory     string          `json:"subcategory"`
	DetectionMethod DetectionMethod `json:"detection_method"`
	Confidence      Confidence      `json:"confidence"`
	Severity        Severity        `json:"severity"`
	Locations       []Location      `json:"locations"`
	Outliers        []Outlier       `json:"outliers"`
	Metadata        Metadata        `json:"metadata"`
	Status          Status          `json:"status"`
}

// LocationKeys returns the set of (file,line,column) keys occupied by the
// pattern's locations, used to assert the outlier/location disjointness
// invariant from §3.
func (p *Pattern) LocationKeys() map[string]struct{} {
	out := make(map[string]struct{}, len(p.Locations))
	for _, l := range p.Locations {
		out[l.Key()] = struct{}{}
	}
	return out
}

// Variant is an intentional, user-sanctioned deviation from a Pattern.
type Variant struct {
	ID        string       `json:"id"`
	PatternID string       `json:"pattern_id"`
	Name      string       `json:"name"`
	Reason    string       `json:"reason"`
	Scope     VariantScope `json:"scope"`
	ScopeVal  string       `json:"scope_value,omitempty"`
	Locations []Location   `json:"locations"`
	CreatedAt time.Time    `json:"created_at"`
}

// Covers reports whether the variant's scope covers the given location,
// per §4.5's variant-coverage contract.
func (v *Variant) Covers(loc Location) bool {
	switch v.Scope {
	case ScopeGlobal:
		return true
	case ScopeDirectory:
		return matchesScopeVal(loc.File, v.ScopeVal)
	case ScopeFile:
		if loc.File == v.ScopeVal {
			return true
		}
		return matchesScopeVal(loc.File, v.ScopeVal)
	default:
		return false
	}
}

// matchesScopeVal treats scopeVal as a doublestar glob (e.g.
// "internal/**/*_test.go") when it contains glob metacharacters, falling
// back to a plain directory prefix for the common "internal/foo" case.
func matchesScopeVal(file, scopeVal string) bool {
	if scopeVal == "" {
		return false
	}
	if ok, err := doublestar.Match(scopeVal, file); err == nil && ok {
		return true
	}
	return hasPathPrefix(file, scopeVal)
}

// Violation is the runtime projection of an Outlier plus its owning
// Pattern's metadata, keyed by (pattern_id,file,line,column).
type Violation struct {
	PatternID    string   `json:"pattern_id"`
	PatternName  string   `json:"pattern_name"`
	Category     Category `json:"category"`
	Location     Location `json:"location"`
	Reason       string   `json:"reason"`
	Severity     Severity `json:"severity"`
	SuggestedFix string   `json:"suggested_fix,omitempty"`
}

// Key is the violation identity key from §3's "Violation" definition.
func (v Violation) Key() string {
	return v.PatternID + "@" + v.Location.Key()
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func hasPathPrefix(file, dir string) bool {
	if dir == "" {
		return false
	}
	if len(file) < len(dir) {
		return false
	}
	if file[:len(dir)] != dir {
		return false
	}
	return len(file) == len(dir) || file[len(dir)] == '/'
}
