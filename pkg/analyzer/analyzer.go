// Package analyzer defines shared interfaces for the analyzers composed
// into internal/workspace and internal/history: file-scope analyzers
// (repomap, deadcode), source-aware analyzers reading from a
// ContentSource (graph, satd), and repo-history analyzers (churn,
// ownership-adjacent, changes).
package analyzer

import "context"

// ContentSource provides file content for source-based analysis.
// Implementations may read from filesystem, git trees, or other sources.
type ContentSource interface {
	Read(path string) ([]byte, error)
}

// FileAnalyzer analyzes source code files directly from the filesystem.
// T is the result type returned by the analyzer.
type FileAnalyzer[T any] interface {
	// Analyze processes the given files and returns analysis results.
	Analyze(ctx context.Context, files []string) (T, error)

	// Close releases any resources held by the analyzer.
	Close()
}

// SourceFileAnalyzer analyzes source code files read from a ContentSource
// rather than directly from the filesystem.
// T is the result type returned by the analyzer.
type SourceFileAnalyzer[T any] interface {
	Analyze(ctx context.Context, files []string, src ContentSource) (T, error)

	// Close releases any resources held by the analyzer.
	Close()
}

// RepoAnalyzer analyzes git repository history.
// T is the result type returned by the analyzer.
type RepoAnalyzer[T any] interface {
	// Analyze processes the repository at repoPath, optionally filtering to
	// the specified files. If files is nil or empty, all files are analyzed.
	Analyze(ctx context.Context, repoPath string, files []string) (T, error)

	// Close releases any resources held by the analyzer.
	Close()
}
