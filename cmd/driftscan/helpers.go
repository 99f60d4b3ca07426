package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/driftscan/driftscan/internal/errkind"
	"github.com/driftscan/driftscan/internal/output"
	"github.com/driftscan/driftscan/internal/patternstore"
	"github.com/driftscan/driftscan/internal/walker"
	"github.com/driftscan/driftscan/pkg/config"
	"github.com/driftscan/driftscan/pkg/models"
)

// getPath returns args[0], defaulting to ".".
func getPath(args []string) string {
	if len(args) == 0 {
		return "."
	}
	return args[0]
}

func getFormat(cmd *cobra.Command) string {
	f, _ := cmd.Flags().GetString("format")
	return f
}

func getOutputFile(cmd *cobra.Command) string {
	f, _ := cmd.Flags().GetString("output")
	return f
}

func newFormatter(cmd *cobra.Command) (*output.Formatter, error) {
	return output.NewFormatter(output.ParseFormat(getFormat(cmd)), getOutputFile(cmd), getOutputFile(cmd) == "")
}

// loadConfig resolves the effective config: --config flag, then
// standard locations, then defaults.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if cfgFile != "" {
		result, err := config.LoadConfig(config.WithPath(cfgFile))
		if err != nil {
			return nil, errkind.InvalidArg("config", err)
		}
		return result.Config, nil
	}
	cfg, err := config.LoadOrDefault()
	if err != nil {
		return nil, errkind.InvalidArg("config", err)
	}
	return cfg, nil
}

// driftDir resolves the project's .drift state directory relative to
// the scanned path, honoring --project-dir.
func driftDir(cmd *cobra.Command, root string) string {
	dir, _ := cmd.Flags().GetString("project-dir")
	if dir == "" {
		dir = ".drift"
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(root, dir)
}

// discoverFiles walks root per cfg's exclude rules, applying the
// configured max-file-size cutoff.
func discoverFiles(cfg *config.Config, root string) ([]models.SourceFile, []walker.EntryError) {
	w := walker.New(cfg)
	files, errs := w.Walk(root)
	files, _ = walker.FilterBySize(files, cfg.Detectors.MaxFileSize)
	return files, errs
}

// openStore opens the Pattern & Variant Store rooted at dir per cfg's
// configured layout.
func openStore(cfg *config.Config, dir string) (patternstore.Store, error) {
	store, err := patternstore.New(cfg.Store.Layout, dir)
	if err != nil {
		return nil, err
	}
	if err := store.Initialize(); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

func filePaths(src []models.SourceFile) []string {
	out := make([]string, len(src))
	for i, f := range src {
		out[i] = f.AbsolutePath
	}
	return out
}

func relFilePaths(src []models.SourceFile) []string {
	out := make([]string, len(src))
	for i, f := range src {
		out[i] = f.RelativePath
	}
	return out
}

// buildLogger constructs the structured logger passed to the Scanner
// Service (C4) and Call Graph Builder (C7), the two components
// SPEC_FULL.md §4.C calls out as needing observability beyond returned
// errors. --verbose selects development-mode (console, debug level);
// otherwise a quieter production-mode (JSON, info level) logger is used.
func buildLogger() *zap.Logger {
	var cfg zap.Config
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// workspaceRegistryDir resolves the cross-project registry location the
// Workspace Manager persists known projects under, honoring
// $DRIFTSCAN_HOME and falling back to ~/.driftscan.
func workspaceRegistryDir() string {
	if d := os.Getenv("DRIFTSCAN_HOME"); d != "" {
		return d
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".driftscan"
	}
	return filepath.Join(home, ".driftscan")
}

// reportEntryErrors marks the run as a partial success (exit 2) if any
// walk-time entry errors occurred, and prints them to stderr when
// --verbose is set.
func reportEntryErrors(cmd *cobra.Command, errs []walker.EntryError) {
	if len(errs) == 0 {
		return
	}
	exitCode = exitPartialSuccess
	if verbose {
		for _, e := range errs {
			fmt.Fprintf(cmd.ErrOrStderr(), "walk: %s: %v\n", e.Path, e.Err)
		}
	}
}
