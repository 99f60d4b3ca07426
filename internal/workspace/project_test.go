package workspace_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/driftscan/driftscan/internal/workspace"
)

func TestInitProjectRegistersAndActivates(t *testing.T) {
	registryDir := t.TempDir()
	projectDir := t.TempDir()
	m := workspace.NewManager(registryDir)

	p, err := m.InitProject(projectDir, false)
	require.NoError(t, err)
	require.Equal(t, projectDir, p.Path)
	require.Equal(t, workspace.CurrentSchemaVersion, p.SchemaVer)

	active, ok, err := m.ActiveProject()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, projectDir, active.Path)
}

func TestInitProjectWithoutForceReturnsExistingRecord(t *testing.T) {
	registryDir := t.TempDir()
	projectDir := t.TempDir()
	m := workspace.NewManager(registryDir)

	first, err := m.InitProject(projectDir, false)
	require.NoError(t, err)

	second, err := m.InitProject(projectDir, false)
	require.NoError(t, err)
	require.Equal(t, first.CreatedAt, second.CreatedAt)
}

func TestInitProjectWithForceReinitializes(t *testing.T) {
	registryDir := t.TempDir()
	projectDir := t.TempDir()
	m := workspace.NewManager(registryDir)

	first, err := m.InitProject(projectDir, false)
	require.NoError(t, err)

	second, err := m.InitProject(projectDir, true)
	require.NoError(t, err)
	require.True(t, !second.CreatedAt.Before(first.CreatedAt))
}

func TestSwitchProjectByNameAndByPath(t *testing.T) {
	registryDir := t.TempDir()
	a := t.TempDir()
	b := t.TempDir()
	m := workspace.NewManager(registryDir)

	_, err := m.InitProject(a, false)
	require.NoError(t, err)
	pb, err := m.InitProject(b, false)
	require.NoError(t, err)

	got, err := m.SwitchProject(pb.Name)
	require.NoError(t, err)
	require.Equal(t, b, got.Path)

	active, _, err := m.ActiveProject()
	require.NoError(t, err)
	require.Equal(t, b, active.Path)

	got, err = m.SwitchProject(a)
	require.NoError(t, err)
	require.Equal(t, a, got.Path)
}

func TestSwitchProjectUnknownRefIsNotFound(t *testing.T) {
	m := workspace.NewManager(t.TempDir())
	_, err := m.SwitchProject("does-not-exist")
	require.Error(t, err)
}

func TestTouchLoadedUpdatesLastLoaded(t *testing.T) {
	registryDir := t.TempDir()
	projectDir := t.TempDir()
	m := workspace.NewManager(registryDir)

	p, err := m.InitProject(projectDir, false)
	require.NoError(t, err)
	require.True(t, p.LastLoaded.IsZero())

	require.NoError(t, m.TouchLoaded(projectDir))
	active, ok, err := m.ActiveProject()
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, active.LastLoaded.IsZero())
}
