package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
	"github.com/spf13/cobra"

	"github.com/driftscan/driftscan/internal/callgraph"
	"github.com/driftscan/driftscan/internal/errkind"
	"github.com/driftscan/driftscan/internal/history"
	"github.com/driftscan/driftscan/internal/output"
	"github.com/driftscan/driftscan/internal/reachability"
)

var impactCmd = &cobra.Command{
	Use:   "impact <file> [file...]",
	Short: "Report the blast radius of changing the given files",
	Args: func(cmd *cobra.Command, args []string) error {
		if diffPath, _ := cmd.Flags().GetString("diff"); diffPath != "" {
			return nil
		}
		return cobra.MinimumNArgs(1)(cmd, args)
	},
	RunE: runImpact,
}

func init() {
	impactCmd.Flags().Int("depth", 0, "Max traversal depth (0 = engine default)")
	impactCmd.Flags().Bool("historical", false, "Blend in a commit-history risk bonus (§4.8 optional signal)")
	impactCmd.Flags().Int("historical-days", 90, "Lookback window for the historical bonus")
	impactCmd.Flags().Bool("centrality", false, "Rank affected functions by call-graph PageRank centrality")
	impactCmd.Flags().String("diff", "", "Read changed files from a unified diff instead of the positional file list")
	rootCmd.AddCommand(impactCmd)
}

func runImpact(cmd *cobra.Command, args []string) error {
	root, _ := cmd.Flags().GetString("path")
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return errkind.InvalidArg("impact", err)
	}
	depth, _ := cmd.Flags().GetInt("depth")

	files := args
	if diffPath, _ := cmd.Flags().GetString("diff"); diffPath != "" {
		changed, err := filesFromDiff(diffPath)
		if err != nil {
			return errkind.InvalidArg("impact", err)
		}
		files = changed
	}

	store, err := callgraph.Open(driftDir(cmd, absRoot))
	if err != nil {
		return err
	}
	defer store.Close()

	engine := reachability.NewEngine(store)
	result, err := engine.ImpactOfChanges(cmd.Context(), files, depth)
	if err != nil {
		return err
	}

	if useHistory, _ := cmd.Flags().GetBool("historical"); useHistory {
		days, _ := cmd.Flags().GetInt("historical-days")
		enricher := history.NewEnricher(days)
		defer enricher.Close()
		signals, err := enricher.Enrich(cmd.Context(), absRoot, result.AffectedFiles)
		if err == nil {
			result.HistoricalBonus = history.HistoricalBonus(signals, result.AffectedFiles)
		}
	}

	if showCentrality, _ := cmd.Flags().GetBool("centrality"); showCentrality {
		ranked, err := engine.Centrality()
		if err == nil {
			filtered := make(map[string]float64, len(result.AffectedFunctions))
			for _, id := range result.AffectedFunctions {
				if score, ok := ranked[id]; ok {
					filtered[id] = score
				}
			}
			result.Centrality = filtered
		}
	}

	f, err := newFormatter(cmd)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Output(output.NewTable(
		"Impact",
		[]string{"Affected Files", "Affected Functions", "Entry Points", "Data Accessors", "Risk Score"},
		[][]string{{
			itoaFmt(len(result.AffectedFiles)), itoaFmt(len(result.AffectedFunctions)),
			itoaFmt(len(result.EntryPointsTouched)), itoaFmt(len(result.DataAccessTouched)),
			itoaFmt(result.RiskScore),
		}},
		nil, result,
	))
}

// filesFromDiff extracts the new-side path of every file touched by a
// unified diff, via sourcegraph/go-diff, for --diff's "impact of this
// patch" mode. A deleted file (new name "/dev/null") falls back to its
// old-side path so its removal still seeds the impact traversal.
func filesFromDiff(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fileDiffs, err := diff.ParseMultiFileDiff(data)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, fd := range fileDiffs {
		name := fd.NewName
		if name == "" || name == "/dev/null" {
			name = fd.OrigName
		}
		name = strings.TrimPrefix(name, "a/")
		name = strings.TrimPrefix(name, "b/")
		if name != "" && name != "/dev/null" {
			files = append(files, name)
		}
	}
	return files, nil
}
