package callgraph_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/driftscan/driftscan/internal/callgraph"
	"github.com/driftscan/driftscan/pkg/ast"
	"github.com/driftscan/driftscan/pkg/models"
)

// fakeFile is a minimal ast.File backed by in-memory fixtures, standing
// in for the tree-sitter provider in unit tests.
type fakeFile struct {
	path  string
	fns   []ast.FunctionDecl
	calls []ast.CallInfo
	imps  []ast.Import
}

func (f *fakeFile) Path() string                   { return f.path }
func (f *fakeFile) Language() ast.Language          { return ast.LangGo }
func (f *fakeFile) Functions() []ast.FunctionDecl   { return f.fns }
func (f *fakeFile) Calls() []ast.CallInfo           { return f.calls }
func (f *fakeFile) Symbols() []ast.Symbol           { return nil }
func (f *fakeFile) Imports() []ast.Import           { return f.imps }

type fakeProvider struct {
	files map[string]*fakeFile
}

func (p *fakeProvider) Parse(path string) (ast.File, error) {
	f, ok := p.files[path]
	if !ok {
		return nil, ast.ErrUnsupportedLanguage
	}
	return f, nil
}
func (p *fakeProvider) ParseWithTypes(path string) (ast.TypedFile, error) { return nil, ast.ErrTypesUnavailable }
func (p *fakeProvider) Language(path string) ast.Language                 { return ast.LangGo }
func (p *fakeProvider) Close()                                            {}

func newFixtureProvider() *fakeProvider {
	return &fakeProvider{files: map[string]*fakeFile{
		"pkg/routes/handler.go": {
			path: "pkg/routes/handler.go",
			fns: []ast.FunctionDecl{
				{Name: "Handle", Pos: ast.Position{File: "pkg/routes/handler.go", Line: 10}, EndLine: 20},
			},
			calls: []ast.CallInfo{
				{Callee: "Save", Pos: ast.Position{File: "pkg/routes/handler.go", Line: 12}},
				{Callee: "Unknown", Pos: ast.Position{File: "pkg/routes/handler.go", Line: 15}},
			},
		},
		"pkg/store/repo.go": {
			path: "pkg/store/repo.go",
			fns: []ast.FunctionDecl{
				{Name: "Save", Pos: ast.Position{File: "pkg/store/repo.go", Line: 5}, EndLine: 9},
			},
		},
	}}
}

func TestBuildResolvesCrossFileCallByBareName(t *testing.T) {
	store, err := callgraph.Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	b := callgraph.New(newFixtureProvider(), store)
	result, err := b.Build(context.Background(), []string{"pkg/routes/handler.go", "pkg/store/repo.go"}, nil, nil)
	require.NoError(t, err)

	require.Equal(t, 2, result.FilesProcessed)
	require.Equal(t, 2, result.TotalFunctions)
	require.Equal(t, 2, result.TotalCalls)
	require.Equal(t, 1, result.ResolvedCalls)
	require.InDelta(t, 0.5, result.ResolutionRate, 0.001)

	edges, err := store.EdgesFromCaller("pkg/routes.Handle")
	require.NoError(t, err)
	require.Len(t, edges, 2)

	var resolved, unresolved int
	for _, e := range edges {
		if e.Resolved {
			resolved++
			require.Equal(t, "pkg/store.Save", e.CalleeID)
			require.NoError(t, e.Validate())
		} else {
			unresolved++
			require.Empty(t, e.CalleeID)
			require.NoError(t, e.Validate())
		}
	}
	require.Equal(t, 1, resolved)
	require.Equal(t, 1, unresolved)
}

func TestBuildTagsFrameworkEntryPointsByPathConvention(t *testing.T) {
	store, err := callgraph.Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	b := callgraph.New(newFixtureProvider(), store)
	result, err := b.Build(context.Background(), []string{"pkg/routes/handler.go", "pkg/store/repo.go"}, nil, nil)
	require.NoError(t, err)

	require.Contains(t, result.EntryPoints, "pkg/routes.Handle")
	require.NotContains(t, result.EntryPoints, "pkg/store.Save")
}

func TestBuildTagsDataAccessorsFromAccessPointAtCallSite(t *testing.T) {
	store, err := callgraph.Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	b := callgraph.New(newFixtureProvider(), store)
	result, err := b.Build(context.Background(), []string{"pkg/routes/handler.go", "pkg/store/repo.go"}, nil,
		[]models.AccessPoint{{File: "pkg/routes/handler.go", Line: 12}})
	require.NoError(t, err)

	require.Contains(t, result.DataAccessors, "pkg/store.Save")
}

func TestWithBatchSizeIgnoresNonPositive(t *testing.T) {
	store, err := callgraph.Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	b := callgraph.New(newFixtureProvider(), store).WithBatchSize(0).WithBatchSize(-5)
	_, err = b.Build(context.Background(), []string{"pkg/routes/handler.go"}, nil, nil)
	require.NoError(t, err)
}
