package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApproveUnknownPatternIsError(t *testing.T) {
	root := t.TempDir()
	writeSampleProject(t, root)
	require.NoError(t, execDriftscan(t, "setup", "init", root))

	err := execDriftscan(t, "approve", "does-not-exist", "--path", root)
	require.Error(t, err)
}

func TestIgnoreUnknownPatternIsError(t *testing.T) {
	root := t.TempDir()
	writeSampleProject(t, root)
	require.NoError(t, execDriftscan(t, "setup", "init", root))

	err := execDriftscan(t, "ignore", "does-not-exist", "--path", root)
	require.Error(t, err)
}
