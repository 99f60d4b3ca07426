package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/driftscan/driftscan/pkg/models"
)

func TestGetPathDefaultsToCurrentDir(t *testing.T) {
	require.Equal(t, ".", getPath(nil))
	require.Equal(t, "/foo", getPath([]string{"/foo"}))
}

func newFlagCmd(t *testing.T) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "x", RunE: func(*cobra.Command, []string) error { return nil }}
	cmd.Flags().String("project-dir", ".drift", "")
	cmd.Flags().String("format", "text", "")
	cmd.Flags().String("output", "", "")
	return cmd
}

func TestDriftDirRelativeJoinsRoot(t *testing.T) {
	cmd := newFlagCmd(t)
	require.Equal(t, filepath.Join("/repo", ".drift"), driftDir(cmd, "/repo"))
}

func TestDriftDirAbsoluteIgnoresRoot(t *testing.T) {
	cmd := newFlagCmd(t)
	require.NoError(t, cmd.Flags().Set("project-dir", "/elsewhere/.drift"))
	require.Equal(t, "/elsewhere/.drift", driftDir(cmd, "/repo"))
}

func TestFilePathsAndRelFilePaths(t *testing.T) {
	files := []models.SourceFile{
		{AbsolutePath: "/repo/a.go", RelativePath: "a.go"},
		{AbsolutePath: "/repo/pkg/b.go", RelativePath: "pkg/b.go"},
	}
	require.Equal(t, []string{"/repo/a.go", "/repo/pkg/b.go"}, filePaths(files))
	require.Equal(t, []string{"a.go", "pkg/b.go"}, relFilePaths(files))
}

func TestWorkspaceRegistryDirHonorsEnv(t *testing.T) {
	t.Setenv("DRIFTSCAN_HOME", "/custom/home")
	require.Equal(t, "/custom/home", workspaceRegistryDir())
}

func TestWorkspaceRegistryDirFallsBackToUserHome(t *testing.T) {
	t.Setenv("DRIFTSCAN_HOME", "")
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".driftscan"), workspaceRegistryDir())
}

func TestItoaFmt(t *testing.T) {
	require.Equal(t, "0", itoaFmt(0))
	require.Equal(t, "42", itoaFmt(42))
}
