package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestImpactEndToEnd(t *testing.T) {
	root := t.TempDir()
	writeSampleProject(t, root)
	require.NoError(t, execDriftscan(t, "setup", "init", root))
	require.NoError(t, execDriftscan(t, "setup", "callgraph", root))

	require.NoError(t, execDriftscan(t, "impact", filepath.Join(root, "handler.go"), "--path", root, "--format", "json"))
}

func TestImpactWithHistoricalBonus(t *testing.T) {
	root := t.TempDir()
	writeSampleProject(t, root)
	require.NoError(t, execDriftscan(t, "setup", "init", root))
	require.NoError(t, execDriftscan(t, "setup", "callgraph", root))

	// Not a git repo: history enrichment must fail soft and still render.
	require.NoError(t, execDriftscan(t, "impact", filepath.Join(root, "handler.go"),
		"--path", root, "--historical", "--format", "json"))
}
