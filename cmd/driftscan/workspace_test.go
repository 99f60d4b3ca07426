package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitProjectAndSwitchProject(t *testing.T) {
	t.Setenv("DRIFTSCAN_HOME", t.TempDir())

	rootA := t.TempDir()
	writeSampleProject(t, rootA)
	rootB := t.TempDir()
	writeSampleProject(t, rootB)

	require.NoError(t, execDriftscan(t, "init-project", rootA))
	require.NoError(t, execDriftscan(t, "init-project", rootB))

	require.NoError(t, execDriftscan(t, "switch-project", rootA))
}

func TestInitProjectThenLoadContext(t *testing.T) {
	t.Setenv("DRIFTSCAN_HOME", t.TempDir())

	root := t.TempDir()
	writeSampleProject(t, root)

	require.NoError(t, execDriftscan(t, "init-project", root))
	require.NoError(t, execDriftscan(t, "load-context", root, "--format", "json"))
}

func TestLoadContextWithoutActiveProjectIsError(t *testing.T) {
	t.Setenv("DRIFTSCAN_HOME", t.TempDir())

	err := execDriftscan(t, "load-context")
	require.Error(t, err)
}
