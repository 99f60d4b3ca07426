package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/driftscan/driftscan/internal/boundary"
	"github.com/driftscan/driftscan/internal/cache"
	"github.com/driftscan/driftscan/internal/callgraph"
	"github.com/driftscan/driftscan/internal/errkind"
	"github.com/driftscan/driftscan/internal/output"
	"github.com/driftscan/driftscan/internal/progress"
	"github.com/driftscan/driftscan/internal/registry"
	"github.com/driftscan/driftscan/internal/scan"
	"github.com/driftscan/driftscan/pkg/ast/treesitter"
	"github.com/driftscan/driftscan/pkg/models"
)

// driftManifest is the external-interface §6 manifest.json shape:
// last-scan bookkeeping plus the on-disk schema version.
type driftManifest struct {
	SchemaVersion int       `json:"schema_version"`
	LastScanAt    time.Time `json:"last_scan_at,omitempty"`
	FilesScanned  int       `json:"files_scanned,omitempty"`
	PatternsFound int       `json:"patterns_found,omitempty"`
	ViolationsFound int     `json:"violations_found,omitempty"`
	CallGraphBuiltAt time.Time `json:"call_graph_built_at,omitempty"`
}

// driftProjectConfig is the §6 config.json shape: version, project
// identity, ignore list, and feature toggles. Top-level keys of an
// existing config.json that this struct does not model are kept when
// `setup init --force` rewrites the file.
type driftProjectConfig struct {
	Version string `json:"version"`
	Project struct {
		ID            string    `json:"id"`
		Name          string    `json:"name"`
		InitializedAt time.Time `json:"initializedAt"`
	} `json:"project"`
	Ignore   []string `json:"ignore"`
	Features struct {
		CallGraph bool `json:"callGraph"`
		Boundaries bool `json:"boundaries"`
		DNA       bool `json:"dna"`
		Contracts bool `json:"contracts"`
	} `json:"features"`
	Telemetry struct {
		Enabled bool `json:"enabled"`
	} `json:"telemetry"`
}

const driftSchemaVersion = 1

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Initialize and run drift detection over a project",
}

var setupInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Create a .drift state directory and config.json for a project",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSetupInit,
}

var setupScanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "Scan a project for patterns and violations, updating the pattern store",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSetupScan,
}

var setupCallgraphCmd = &cobra.Command{
	Use:   "callgraph [path]",
	Short: "Build the cross-file call graph",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSetupCallgraph,
}

var setupFullCmd = &cobra.Command{
	Use:   "full [path]",
	Short: "Run init, scan, callgraph and boundary analysis in sequence",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSetupFull,
}

var setupStatusCmd = &cobra.Command{
	Use:   "status [path]",
	Short: "Show the current .drift state summary",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSetupStatus,
}

func init() {
	setupCmd.AddCommand(setupInitCmd, setupScanCmd, setupCallgraphCmd, setupFullCmd, setupStatusCmd)
	setupInitCmd.Flags().Bool("force", false, "Reinitialize even if .drift already exists")
	setupScanCmd.Flags().Bool("incremental", false, "Only re-run detectors on files whose content changed since the last scan")
	rootCmd.AddCommand(setupCmd)
}

func runSetupInit(cmd *cobra.Command, args []string) error {
	root, err := filepath.Abs(getPath(args))
	if err != nil {
		return errkind.InvalidArg("setup-init", err)
	}
	force, _ := cmd.Flags().GetBool("force")
	dir := driftDir(cmd, root)

	configPath := filepath.Join(dir, "config.json")
	if _, err := os.Stat(configPath); err == nil && !force {
		return errkind.InvalidArg("setup-init", fmt.Errorf("%s already initialized (use --force to reinitialize)", dir))
	}

	for _, sub := range []string{
		"patterns/discovered", "patterns/approved", "patterns/ignored", "patterns/variants",
		"history/snapshots", "lake/callgraph", "boundaries", "constants", "backups",
	} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return errkind.InternalErr("setup-init", err)
		}
	}

	var cfg driftProjectConfig
	cfg.Version = "1.0.0"
	cfg.Project.ID = uuid.NewString()
	cfg.Project.Name = filepath.Base(root)
	cfg.Project.InitializedAt = time.Now().UTC()
	cfg.Features.CallGraph = true
	cfg.Features.Boundaries = true
	cfg.Telemetry.Enabled = false

	var out any = cfg
	if existing := map[string]any{}; readJSON(configPath, &existing) == nil {
		if data, err := json.Marshal(cfg); err == nil {
			var known map[string]any
			if json.Unmarshal(data, &known) == nil {
				for k, v := range known {
					existing[k] = v
				}
				out = existing
			}
		}
	}
	if err := writeJSON(configPath, out); err != nil {
		return errkind.InternalErr("setup-init", err)
	}
	if err := writeJSON(filepath.Join(dir, "manifest.json"), driftManifest{SchemaVersion: driftSchemaVersion}); err != nil {
		return errkind.InternalErr("setup-init", err)
	}

	ignorePath := filepath.Join(root, ".driftignore")
	if _, err := os.Stat(ignorePath); os.IsNotExist(err) {
		defaults := "node_modules/\ndist/\nbuild/\n.git/\n.drift/\nvendor/\n"
		_ = os.WriteFile(ignorePath, []byte(defaults), 0o644)
	}

	f, err := newFormatter(cmd)
	if err != nil {
		return err
	}
	defer f.Close()
	f.Success("Initialized %s", dir)
	return nil
}

func runSetupScan(cmd *cobra.Command, args []string) error {
	root, err := filepath.Abs(getPath(args))
	if err != nil {
		return errkind.InvalidArg("setup-scan", err)
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	dir := driftDir(cmd, root)

	files, walkErrs := discoverFiles(cfg, root)
	reportEntryErrors(cmd, walkErrs)

	reg := registry.New(registry.Hooks{})
	if err := registry.RegisterDefaults(reg, cfg.Detectors); err != nil {
		return errkind.InternalErr("setup-scan", err)
	}

	incremental, _ := cmd.Flags().GetBool("incremental")
	opts := []scan.Option{scan.WithConfig(cfg), scan.WithLogger(buildLogger())}
	if cfg.Cache.Enabled {
		cacheDir := cfg.Cache.Dir
		if !filepath.IsAbs(cacheDir) {
			cacheDir = filepath.Join(root, cacheDir)
		}
		if fileCache, err := cache.New(cacheDir, cfg.Cache.TTL, true); err == nil {
			opts = append(opts, scan.WithCache(fileCache))
		}
	}
	svc := scan.New(reg, opts...)
	result, err := svc.Scan(cmd.Context(), files, incremental)
	if err != nil {
		return err
	}

	store, err := openStore(cfg, filepath.Join(dir, "patterns"))
	if err != nil {
		return errkind.InternalErr("setup-scan", err)
	}
	defer store.Close()
	if err := store.SaveAll(result.Patterns); err != nil {
		return errkind.InternalErr("setup-scan", err)
	}

	manifest := driftManifest{
		SchemaVersion: driftSchemaVersion, LastScanAt: time.Now().UTC(),
		FilesScanned: len(files), PatternsFound: len(result.Patterns), ViolationsFound: len(result.Violations),
	}
	if err := mergeManifest(dir, manifest); err != nil {
		return errkind.InternalErr("setup-scan", err)
	}

	if len(result.Errors) > 0 {
		exitCode = exitPartialSuccess
	}

	f, err := newFormatter(cmd)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Output(output.NewTable(
		fmt.Sprintf("Scan of %s", root),
		[]string{"Files", "Patterns", "Violations", "Errors"},
		[][]string{{
			itoaFmt(len(files)), itoaFmt(len(result.Patterns)),
			itoaFmt(len(result.Violations)), itoaFmt(len(result.Errors)),
		}},
		nil, result,
	))
}

func runSetupCallgraph(cmd *cobra.Command, args []string) error {
	root, err := filepath.Abs(getPath(args))
	if err != nil {
		return errkind.InvalidArg("setup-callgraph", err)
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	dir := driftDir(cmd, root)

	files, walkErrs := discoverFiles(cfg, root)
	reportEntryErrors(cmd, walkErrs)

	store, err := callgraph.Open(dir)
	if err != nil {
		return err
	}
	defer store.Close()

	provider := treesitter.New()
	defer provider.Close()

	builder := callgraph.New(provider, store).
		WithBatchSize(cfg.CallGraph.ResolutionBatchSize).
		WithLogger(buildLogger())

	bar := progress.NewSpinner("Building call graph...")
	result, err := builder.Build(cmd.Context(), filePaths(files), nil, nil)
	bar.FinishSuccess()
	if err != nil {
		return err
	}

	if err := mergeManifest(dir, driftManifest{SchemaVersion: driftSchemaVersion, CallGraphBuiltAt: time.Now().UTC()}); err != nil {
		return errkind.InternalErr("setup-callgraph", err)
	}

	f, err := newFormatter(cmd)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Output(output.NewTable(
		"Call Graph",
		[]string{"Files", "Functions", "Calls", "Resolved", "Resolution Rate"},
		[][]string{{
			itoaFmt(result.FilesProcessed), itoaFmt(result.TotalFunctions), itoaFmt(result.TotalCalls),
			itoaFmt(result.ResolvedCalls), fmt.Sprintf("%.1f%%", result.ResolutionRate*100),
		}},
		nil, result,
	))
}

func runSetupFull(cmd *cobra.Command, args []string) error {
	root := getPath(args)
	if err := runSetupInit(cmd, []string{root}); err != nil {
		var ke *errkind.Error
		if !(errorsAsE(err, &ke) && ke.Kind == errkind.InvalidArgument) {
			return err
		}
	}
	if err := runSetupScan(cmd, []string{root}); err != nil {
		return err
	}
	if err := runSetupCallgraph(cmd, []string{root}); err != nil {
		return err
	}
	return runBoundaryScan(cmd, root)
}

func runBoundaryScan(cmd *cobra.Command, root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return errkind.InvalidArg("setup-full", err)
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	dir := driftDir(cmd, absRoot)

	files, _ := discoverFiles(cfg, absRoot)
	contents := make(map[string][]byte, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file.AbsolutePath)
		if err != nil {
			continue
		}
		contents[file.RelativePath] = data
	}

	result := boundary.New().Scan(contents)
	if err := writeJSON(filepath.Join(dir, "boundaries", "access-map.json"), result); err != nil {
		return errkind.InternalErr("setup-full", err)
	}

	f, err := newFormatter(cmd)
	if err != nil {
		return err
	}
	defer f.Close()
	f.Success("Boundary analysis: %d access points, %d secrets flagged", len(result.AccessPoints), len(result.Secrets))
	return nil
}

func runSetupStatus(cmd *cobra.Command, args []string) error {
	root, err := filepath.Abs(getPath(args))
	if err != nil {
		return errkind.InvalidArg("setup-status", err)
	}
	dir := driftDir(cmd, root)

	var manifest driftManifest
	if err := readJSON(filepath.Join(dir, "manifest.json"), &manifest); err != nil {
		return errkind.NotFoundErr("setup-status", dir, fmt.Errorf("project not initialized (run `driftscan setup init`)"))
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := openStore(cfg, filepath.Join(dir, "patterns"))
	if err != nil {
		return errkind.InternalErr("setup-status", err)
	}
	defer store.Close()

	discovered, _ := store.GetByStatus(models.StatusDiscovered)
	approved, _ := store.GetByStatus(models.StatusApproved)
	ignored, _ := store.GetByStatus(models.StatusIgnored)

	f, err := newFormatter(cmd)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Output(output.NewTable(
		fmt.Sprintf("Status of %s", root),
		[]string{"Last Scan", "Discovered", "Approved", "Ignored"},
		[][]string{{
			manifest.LastScanAt.Format(time.RFC3339), itoaFmt(len(discovered)), itoaFmt(len(approved)), itoaFmt(len(ignored)),
		}},
		nil, manifest,
	))
}

func mergeManifest(dir string, update driftManifest) error {
	path := filepath.Join(dir, "manifest.json")
	var existing driftManifest
	_ = readJSON(path, &existing)

	if !update.LastScanAt.IsZero() {
		existing.LastScanAt = update.LastScanAt
		existing.FilesScanned = update.FilesScanned
		existing.PatternsFound = update.PatternsFound
		existing.ViolationsFound = update.ViolationsFound
	}
	if !update.CallGraphBuiltAt.IsZero() {
		existing.CallGraphBuiltAt = update.CallGraphBuiltAt
	}
	existing.SchemaVersion = driftSchemaVersion
	return writeJSON(path, existing)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func itoaFmt(n int) string { return fmt.Sprintf("%d", n) }

func errorsAsE(err error, target **errkind.Error) bool {
	ke, ok := err.(*errkind.Error)
	if !ok {
		return false
	}
	*target = ke
	return true
}
