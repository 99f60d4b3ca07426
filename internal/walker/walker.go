// Package walker implements C1, the File Walker: it produces the
// filtered set of source files under a root, honoring ignore patterns
// with the precedence order built-in defaults -> project .driftignore ->
// .gitignore (opt-in) -> caller overrides. Adapted from the teacher's
// internal/scanner.Scanner, which already satisfied the
// symlink-escape-prevention and SkipDir-on-exclude invariants; this
// version adds .driftignore support, hidden-directory traversal gating,
// and a non-fatal per-entry error side channel.
package walker

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/driftscan/driftscan/pkg/config"
	"github.com/driftscan/driftscan/pkg/models"
	"github.com/driftscan/driftscan/pkg/parser"
)

// defaultIgnore mirrors the built-in defaults named in spec §6.
var defaultIgnore = []string{
	"node_modules", "dist", "build", ".git", ".drift", "vendor",
	"*.min.js", "*.map", "coverage", ".next", ".cache",
}

// EntryError is a non-fatal failure on a single walk entry (permission
// denied, unresolvable symlink, ...). The walk continues past these.
type EntryError struct {
	Path string
	Err  error
}

// Walker finds source files in a directory, honoring ignore patterns.
type Walker struct {
	cfg      *config.Config
	matchers []gitignore.Matcher
	// positivelyIncluded holds directory names that a negated ("!") rule
	// re-includes, which is also what permits traversal into a hidden
	// (dot-prefixed) directory per §4.1's policy.
	positivelyIncluded map[string]bool
}

// New creates a Walker. A nil config falls back to config.DefaultConfig().
func New(cfg *config.Config) *Walker {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Walker{cfg: cfg, positivelyIncluded: map[string]bool{}}
}

func findGitRoot(start string) string {
	dir := start
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadPatterns assembles the ignore matcher chain in the mandated
// precedence order: built-in defaults, then the project's .driftignore,
// then (opt-in) .gitignore, then the config's caller-override patterns.
func (w *Walker) loadPatterns(root string) {
	var base []gitignore.Pattern
	for _, p := range defaultIgnore {
		base = append(base, gitignore.ParsePattern(p, nil))
	}

	if data, err := os.ReadFile(filepath.Join(root, ".driftignore")); err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			base = append(base, gitignore.ParsePattern(line, nil))
			if strings.HasPrefix(line, "!") {
				w.positivelyIncluded[strings.TrimPrefix(line, "!")] = true
			}
		}
	}

	if w.cfg.Exclude.Gitignore {
		if gitRoot := findGitRoot(root); gitRoot != "" {
			if patterns, err := gitignore.ReadPatterns(osfs.New(gitRoot), nil); err == nil {
				base = append(base, patterns...)
			}
		}
	}

	// Caller overrides (config.Exclude.Patterns) are applied last so they
	// take final precedence, including the ability to re-include via "!".
	for _, p := range w.cfg.Exclude.Patterns {
		base = append(base, gitignore.ParsePattern(p, nil))
		if strings.HasPrefix(p, "!") {
			w.positivelyIncluded[strings.TrimPrefix(p, "!")] = true
		}
	}

	if len(base) > 0 {
		w.matchers = append(w.matchers, gitignore.NewMatcher(base))
	}
}

func (w *Walker) isExcluded(relPath string, isDir bool) bool {
	if len(w.matchers) == 0 {
		return false
	}
	parts := strings.Split(relPath, string(filepath.Separator))
	for _, m := range w.matchers {
		if m.Match(parts, isDir) {
			return true
		}
	}
	return false
}

// isHiddenUnlisted reports whether a directory name starts with "." and
// has not been positively re-included by a "!" rule, per §4.1's hidden-
// directory policy.
func (w *Walker) isHiddenUnlisted(name string) bool {
	if !strings.HasPrefix(name, ".") || name == "." || name == ".." {
		return false
	}
	return !w.positivelyIncluded[name]
}

// Walk scans root and returns the filtered source files plus any
// non-fatal per-entry errors encountered along the way. The returned
// slice is not restartable; callers needing repeated enumeration call
// Walk again.
func (w *Walker) Walk(root string) ([]models.SourceFile, []EntryError) {
	var files []models.SourceFile
	var errs []EntryError

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, []EntryError{{Path: root, Err: err}}
	}
	absRoot, err = filepath.EvalSymlinks(absRoot)
	if err != nil {
		return nil, []EntryError{{Path: root, Err: err}}
	}

	w.loadPatterns(root)

	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			errs = append(errs, EntryError{Path: path, Err: err})
			return nil
		}

		relPath, _ := filepath.Rel(root, path)
		if relPath == "." {
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			resolved, rerr := filepath.EvalSymlinks(path)
			if rerr != nil {
				errs = append(errs, EntryError{Path: path, Err: rerr})
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if !isWithinRoot(resolved, absRoot) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}

		base := filepath.Base(path)
		if d.IsDir() {
			if w.isHiddenUnlisted(base) {
				return filepath.SkipDir
			}
			if w.isExcluded(relPath, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if w.isExcluded(relPath, false) {
			return nil
		}

		lang := parser.DetectLanguage(path)
		if lang == parser.LangUnknown {
			return nil
		}
		files = append(files, models.SourceFile{
			AbsolutePath: path,
			RelativePath: relPath,
			Language:     string(lang),
		})
		return nil
	})

	return files, errs
}

func isWithinRoot(path, root string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	absPath = filepath.Clean(absPath)
	root = filepath.Clean(root)
	return absPath == root || strings.HasPrefix(absPath, root+string(filepath.Separator))
}

// FilterBySize drops files over maxSize bytes (0 disables the filter),
// returning the filtered list and how many were skipped.
func FilterBySize(files []models.SourceFile, maxSize int64) ([]models.SourceFile, int) {
	if maxSize <= 0 {
		return files, 0
	}
	filtered := make([]models.SourceFile, 0, len(files))
	skipped := 0
	for _, f := range files {
		info, err := os.Stat(f.AbsolutePath)
		if err != nil || info.Size() > maxSize {
			skipped++
			continue
		}
		filtered = append(filtered, f)
	}
	return filtered, skipped
}

// GroupByLanguage partitions files by detected language.
func GroupByLanguage(files []models.SourceFile) map[string][]models.SourceFile {
	out := make(map[string][]models.SourceFile)
	for _, f := range files {
		out[f.Language] = append(out[f.Language], f)
	}
	return out
}
