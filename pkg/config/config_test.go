package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)
	require.True(t, cfg.Detectors.Routes)
	require.True(t, cfg.Detectors.Auth)
	require.Equal(t, 300, cfg.Detectors.TimeoutSec)
	require.Equal(t, 0.85, cfg.Thresholds.ConfidenceHigh)
	require.Equal(t, "layered-json", cfg.Store.Layout)
	require.Equal(t, 50, cfg.CallGraph.ResolutionBatchSize)
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadWeights(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Duplicates.NumHashFunctions = 7
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsBadStoreLayout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.Layout = "xml"
	require.Error(t, cfg.Validate())
}

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "driftscan.toml")
	content := `
[detectors]
routes = false
workers = 4
max_file_size = 1024
timeout_seconds = 60

[store]
layout = "sqlite"
dir = ".drift/patterns"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.False(t, cfg.Detectors.Routes)
	require.Equal(t, 4, cfg.Detectors.Workers)
	require.Equal(t, "sqlite", cfg.Store.Layout)
	require.NoError(t, cfg.Validate())
}

func TestFindConfigFile(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	defer func() { require.NoError(t, os.Chdir(wd)) }()
	require.NoError(t, os.Chdir(dir))

	require.Empty(t, FindConfigFile())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "driftscan.toml"), []byte("\n"), 0o644))
	require.Equal(t, "driftscan.toml", FindConfigFile())
}

func TestLoadOrDefaultWithoutFile(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	defer func() { require.NoError(t, os.Chdir(wd)) }()
	require.NoError(t, os.Chdir(dir))

	cfg, err := LoadOrDefault()
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
}
