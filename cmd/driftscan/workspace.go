package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/driftscan/driftscan/internal/errkind"
	"github.com/driftscan/driftscan/internal/output"
	"github.com/driftscan/driftscan/internal/workspace"
)

var initProjectCmd = &cobra.Command{
	Use:   "init-project [path]",
	Short: "Register a project with the cross-project workspace registry",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInitProject,
}

var switchProjectCmd = &cobra.Command{
	Use:   "switch-project <name-or-path>",
	Short: "Make another registered project the active one",
	Args:  cobra.ExactArgs(1),
	RunE:  runSwitchProject,
}

var loadContextCmd = &cobra.Command{
	Use:   "load-context [path]",
	Short: "Load (or rebuild) the active project's cached workspace context",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLoadContext,
}

func init() {
	initProjectCmd.Flags().Bool("force", false, "Re-register even if already known")
	loadContextCmd.Flags().Bool("refresh", false, "Bypass the context cache TTL and rebuild")
	rootCmd.AddCommand(initProjectCmd, switchProjectCmd, loadContextCmd)
}

func runInitProject(cmd *cobra.Command, args []string) error {
	root, err := filepath.Abs(getPath(args))
	if err != nil {
		return errkind.InvalidArg("init-project", err)
	}
	force, _ := cmd.Flags().GetBool("force")

	mgr := workspace.NewManager(workspaceRegistryDir())
	proj, err := mgr.InitProject(root, force)
	if err != nil {
		return err
	}

	f, err := newFormatter(cmd)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Output(output.NewTable(
		"Project registered",
		[]string{"Name", "Path", "Ref", "Schema"},
		[][]string{{proj.Name, proj.Path, proj.Ref, itoaFmt(proj.SchemaVer)}},
		nil, proj,
	))
}

func runSwitchProject(cmd *cobra.Command, args []string) error {
	mgr := workspace.NewManager(workspaceRegistryDir())
	proj, err := mgr.SwitchProject(args[0])
	if err != nil {
		return err
	}

	f, err := newFormatter(cmd)
	if err != nil {
		return err
	}
	defer f.Close()
	f.Success("Active project is now %s (%s)", proj.Name, proj.Path)
	return nil
}

func runLoadContext(cmd *cobra.Command, args []string) error {
	mgr := workspace.NewManager(workspaceRegistryDir())

	var proj workspace.Project
	if len(args) > 0 {
		root, err := filepath.Abs(args[0])
		if err != nil {
			return errkind.InvalidArg("load-context", err)
		}
		proj, err = mgr.InitProject(root, false)
		if err != nil {
			return err
		}
	} else {
		active, ok, err := mgr.ActiveProject()
		if err != nil {
			return err
		}
		if !ok {
			return errkind.NotFoundErr("load-context", "active project", nil)
		}
		proj = active
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	files, entryErrs := discoverFiles(cfg, proj.Path)
	reportEntryErrors(cmd, entryErrs)

	refresh, _ := cmd.Flags().GetBool("refresh")
	wc, errs := mgr.LoadContext(cmd.Context(), cfg, proj, relFilePaths(files), refresh)
	if len(errs) > 0 {
		exitCode = exitPartialSuccess
		if verbose {
			for _, e := range errs {
				cmd.PrintErrln("load-context:", e)
			}
		}
	}

	f, err := newFormatter(cmd)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Output(output.NewTable(
		"Workspace context",
		[]string{"Project", "Generated At", "Drift Score", "Top Dead Functions"},
		[][]string{{
			wc.Project.Name,
			wc.GeneratedAt.Format("2006-01-02T15:04:05Z07:00"),
			itoaFmt(int(wc.DriftScore)),
			joinTop(wc.TopDeadFunctions(5)),
		}},
		nil, wc,
	))
}

func joinTop(names []string) string {
	if len(names) == 0 {
		return "-"
	}
	out := names[0]
	for _, n := range names[1:] {
		out += ", " + n
	}
	return out
}
