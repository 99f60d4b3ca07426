package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseVariantScope(t *testing.T) {
	s, err := parseVariantScope("global")
	require.NoError(t, err)
	require.Equal(t, "global", string(s))

	s, err = parseVariantScope("directory")
	require.NoError(t, err)
	require.Equal(t, "directory", string(s))

	s, err = parseVariantScope("file")
	require.NoError(t, err)
	require.Equal(t, "file", string(s))

	_, err = parseVariantScope("bogus")
	require.Error(t, err)
}

func TestCreateVariantRejectsUnknownScope(t *testing.T) {
	root := t.TempDir()
	writeSampleProject(t, root)
	require.NoError(t, execDriftscan(t, "setup", "init", root))

	err := execDriftscan(t, "create-variant", "some-pattern", "--path", root, "--scope", "bogus")
	require.Error(t, err)
}

func TestCreateVariantRequiresScopeValueForNonGlobal(t *testing.T) {
	root := t.TempDir()
	writeSampleProject(t, root)
	require.NoError(t, execDriftscan(t, "setup", "init", root))

	err := execDriftscan(t, "create-variant", "some-pattern", "--path", root, "--scope", "file")
	require.Error(t, err)
}
