package changes

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

func initGitRepo(t *testing.T, path string) *git.Repository {
	t.Helper()
	repo, err := git.PlainInit(path, false)
	if err != nil {
		t.Fatalf("Failed to init git repo: %v", err)
	}
	return repo
}

func writeFileAndCommit(t *testing.T, repo *git.Repository, repoPath, filename, content, message string) {
	t.Helper()
	filePath := filepath.Join(repoPath, filename)
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		t.Fatalf("Failed to mkdir: %v", err)
	}
	if err := os.WriteFile(filePath, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write file %s: %v", filename, err)
	}

	w, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Failed to get worktree: %v", err)
	}
	if _, err := w.Add(filename); err != nil {
		t.Fatalf("Failed to add file %s: %v", filename, err)
	}
	_, err = w.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "Test Author",
			Email: "test@example.com",
			When:  time.Now(),
		},
	})
	if err != nil {
		t.Fatalf("Failed to commit: %v", err)
	}
}

func TestNewDefaultsAndOptions(t *testing.T) {
	a := New()
	if a.days != 30 {
		t.Errorf("default days = %d, want 30", a.days)
	}

	ref := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	a = New(WithDays(90), WithReferenceTime(ref))
	if a.days != 90 {
		t.Errorf("days = %d, want 90", a.days)
	}
	if !a.reference.Equal(ref) {
		t.Errorf("reference = %v, want %v", a.reference, ref)
	}
}

func TestAnalyzeBuildsRiskForEachCommit(t *testing.T) {
	repoPath := t.TempDir()
	repo := initGitRepo(t, repoPath)

	writeFileAndCommit(t, repo, repoPath, "a.go", "package main\n", "initial commit")
	writeFileAndCommit(t, repo, repoPath, "a.go", "package main\nfunc main() {}\n", "fix: nil pointer crash")
	writeFileAndCommit(t, repo, repoPath, "b.go", "package main\n", "add helper")

	a := New(WithDays(3650), WithReferenceTime(time.Now().Add(24*time.Hour)))
	result, err := a.Analyze(context.Background(), repoPath, nil)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	// The initial commit has no parent and is not analyzed.
	if result.Summary.TotalCommits != 2 {
		t.Errorf("Summary.TotalCommits = %d, want 2", result.Summary.TotalCommits)
	}
	if result.Summary.BugFixCount < 1 {
		t.Errorf("Summary.BugFixCount = %d, want >= 1", result.Summary.BugFixCount)
	}
	for _, c := range result.Commits {
		if c.RiskScore < 0 || c.RiskScore > 1 {
			t.Errorf("commit %s RiskScore = %v, want in [0,1]", c.CommitHash, c.RiskScore)
		}
		if c.RiskLevel == "" {
			t.Errorf("commit %s has empty RiskLevel", c.CommitHash)
		}
	}
}

func TestAnalyzeFiltersByFiles(t *testing.T) {
	repoPath := t.TempDir()
	repo := initGitRepo(t, repoPath)

	writeFileAndCommit(t, repo, repoPath, "a.go", "package main\n", "touch a")
	writeFileAndCommit(t, repo, repoPath, "b.go", "package main\n", "touch b")

	a := New(WithDays(3650), WithReferenceTime(time.Now().Add(24*time.Hour)))
	result, err := a.Analyze(context.Background(), repoPath, []string{"a.go"})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	for _, c := range result.Commits {
		found := false
		for _, f := range c.FilesModified {
			if f == "a.go" {
				found = true
			}
		}
		if !found {
			t.Errorf("commit %s does not touch a.go, FilesModified=%v", c.CommitHash, c.FilesModified)
		}
	}
}

func TestIsBugFixCommit(t *testing.T) {
	cases := map[string]bool{
		"fix: nil pointer dereference": true,
		"Fixes #123":                   true,
		"resolve race condition":       true,
		"add new feature":              false,
		"docs: update readme":          false,
	}
	for msg, want := range cases {
		if got := isBugFixCommit(msg); got != want {
			t.Errorf("isBugFixCommit(%q) = %v, want %v", msg, got, want)
		}
	}
}

func TestIsAutomatedCommit(t *testing.T) {
	cases := map[string]bool{
		"chore(deps): bump lodash":  true,
		"ci: update workflow":       true,
		"Merge pull request #1":     true,
		"implement risk prediction": false,
	}
	for msg, want := range cases {
		if got := isAutomatedCommit(msg); got != want {
			t.Errorf("isAutomatedCommit(%q) = %v, want %v", msg, got, want)
		}
	}
}

func TestGetRiskLevel(t *testing.T) {
	thresholds := DefaultRiskThresholds()
	if got := GetRiskLevel(thresholds.HighThreshold+0.1, thresholds); got != RiskLevelHigh {
		t.Errorf("GetRiskLevel above high threshold = %v, want high", got)
	}
	if got := GetRiskLevel(0, thresholds); got != RiskLevelLow {
		t.Errorf("GetRiskLevel(0) = %v, want low", got)
	}
}
