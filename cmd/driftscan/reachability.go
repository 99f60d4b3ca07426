package main

import (
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/driftscan/driftscan/internal/callgraph"
	"github.com/driftscan/driftscan/internal/errkind"
	"github.com/driftscan/driftscan/internal/output"
	"github.com/driftscan/driftscan/internal/reachability"
	"github.com/driftscan/driftscan/pkg/models"
)

var reachabilityCmd = &cobra.Command{
	Use:   "reachability",
	Short: "Ask what can reach a node, what reaches a data accessor, or what is unreachable",
	RunE:  runReachability,
}

func init() {
	reachabilityCmd.Flags().StringSlice("from", nil, "Entry-point node IDs to start from (default: every tagged entry point)")
	reachabilityCmd.Flags().String("to", "", "Exact-match sink node ID")
	reachabilityCmd.Flags().Bool("data-exposure", false, "Report paths from entry points to a sensitive access point instead")
	reachabilityCmd.Flags().String("access-point-file", "", "File containing the access point, for --data-exposure")
	reachabilityCmd.Flags().Int("access-point-line", 0, "Line of the access point call site, for --data-exposure")
	reachabilityCmd.Flags().Bool("dead-code", false, "List non-entry-point nodes unreachable from any entry point")
	reachabilityCmd.Flags().Int("max-depth", 0, "Max traversal depth (0 = engine default)")
	reachabilityCmd.Flags().Int("max-paths", 0, "Max paths to return (0 = engine default)")
	reachabilityCmd.Flags().Bool("follow-unresolved", false, "Traverse edges the call graph could not resolve")
	rootCmd.AddCommand(reachabilityCmd)
}

func runReachability(cmd *cobra.Command, args []string) error {
	root, _ := cmd.Flags().GetString("path")
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return errkind.InvalidArg("reachability", err)
	}

	store, err := callgraph.Open(driftDir(cmd, absRoot))
	if err != nil {
		return err
	}
	defer store.Close()

	engine := reachability.NewEngine(store)

	maxDepth, _ := cmd.Flags().GetInt("max-depth")
	maxPaths, _ := cmd.Flags().GetInt("max-paths")
	followUnresolved, _ := cmd.Flags().GetBool("follow-unresolved")
	opts := reachability.Options{MaxDepth: maxDepth, MaxPaths: maxPaths, FollowUnresolved: followUnresolved}

	f, err := newFormatter(cmd)
	if err != nil {
		return err
	}
	defer f.Close()

	if deadCode, _ := cmd.Flags().GetBool("dead-code"); deadCode {
		ids, err := engine.DeadCode()
		if err != nil {
			return err
		}
		rows := make([][]string, len(ids))
		for i, id := range ids {
			rows[i] = []string{id}
		}
		return f.Output(output.NewTable("Dead code", []string{"Node ID"}, rows, nil, ids))
	}

	if dataExposure, _ := cmd.Flags().GetBool("data-exposure"); dataExposure {
		apFile, _ := cmd.Flags().GetString("access-point-file")
		apLine, _ := cmd.Flags().GetInt("access-point-line")
		if apFile == "" || apLine == 0 {
			return errkind.InvalidArg("reachability", errAccessPointRequired)
		}
		paths, err := engine.DataExposure(cmd.Context(), models.AccessPoint{File: apFile, Line: apLine}, opts)
		if err != nil {
			return err
		}
		return f.Output(renderPaths("Data exposure paths", paths))
	}

	from, _ := cmd.Flags().GetStringSlice("from")
	to, _ := cmd.Flags().GetString("to")
	var sink func(models.CallGraphNode) bool
	if to != "" {
		sink = func(n models.CallGraphNode) bool { return n.ID == to }
	} else {
		sink = func(models.CallGraphNode) bool { return false }
	}

	paths, err := engine.Reachability(cmd.Context(), from, sink, opts)
	if err != nil {
		return err
	}
	return f.Output(renderPaths("Reachability paths", paths))
}

func renderPaths(title string, paths []models.Path) *output.Table {
	rows := make([][]string, len(paths))
	for i, p := range paths {
		rows[i] = []string{itoaFmt(i + 1), strings.Join(p.Nodes, " -> "), itoaFmt(int(p.Confidence * 100))}
	}
	return output.NewTable(title, []string{"#", "Path", "Confidence %"}, rows, nil, paths)
}

type reachabilityErr string

func (e reachabilityErr) Error() string { return string(e) }

const errAccessPointRequired reachabilityErr = "--access-point-file and --access-point-line are required with --data-exposure"
